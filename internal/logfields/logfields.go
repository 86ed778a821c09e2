// Package logfields holds the canonical slog attribute keys used across nodebuilder.
package logfields

import (
	"log/slog"
	"time"
)

const (
	KeyBuildID    = "build_id"
	KeyStage      = "stage"
	KeyTarget     = "target"
	KeyPath       = "path"
	KeyTool       = "tool"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
)

func BuildID(id string) slog.Attr  { return slog.String(KeyBuildID, id) }
func Stage(name string) slog.Attr  { return slog.String(KeyStage, name) }
func Target(name string) slog.Attr { return slog.String(KeyTarget, name) }
func Path(p string) slog.Attr      { return slog.String(KeyPath, p) }
func Tool(name string) slog.Attr   { return slog.String(KeyTool, name) }
func Duration(d time.Duration) slog.Attr {
	return slog.Float64(KeyDurationMS, float64(d.Microseconds())/1000)
}

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
