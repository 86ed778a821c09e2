// Package toolchain locates and runs the Node.js command line tools a build depends on.
package toolchain

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/nodebuilder-go/nodebuilder/internal/logfields"
)

// LookPathFunc resolves an executable name, like exec.LookPath.
type LookPathFunc func(file string) (string, error)

// Command is a resolved tool invocation prefix, e.g. ["npx", "--yes", "esbuild"].
type Command struct {
	Path string
	Args []string
}

// String returns the command line for logs.
func (c Command) String() string {
	return strings.Join(append([]string{c.Path}, c.Args...), " ")
}

// Resolve finds tool on PATH, falling back to running it through npx.
// ok is false when neither is available.
func Resolve(tool string, lookPath LookPathFunc) (cmd Command, ok bool) {
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	if p, err := lookPath(tool); err == nil {
		return Command{Path: p}, true
	}
	if p, err := lookPath("npx"); err == nil {
		return Command{Path: p, Args: []string{"--yes", tool}}, true
	}
	return Command{}, false
}

// Invocation describes one tool run.
type Invocation struct {
	Command Command
	Args    []string
	Dir     string
	Env     []string

	// Stdout receives the tool's standard output. Nil discards it.
	Stdout io.Writer
}

// Run executes the invocation and returns its standard error. The error is
// the raw exec error; callers attach their own codes.
func Run(ctx context.Context, inv Invocation) (string, error) {
	args := append(append([]string{}, inv.Command.Args...), inv.Args...)
	cmd := exec.CommandContext(ctx, inv.Command.Path, args...)
	cmd.Dir = inv.Dir
	if len(inv.Env) > 0 {
		cmd.Env = inv.Env
	}

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.Stdout = inv.Stdout

	slog.Debug("Running tool",
		logfields.Tool(inv.Command.String()),
		slog.Any("args", inv.Args),
		logfields.Path(inv.Dir))

	err := cmd.Run()
	return stderr.String(), err
}
