package build

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/nodebuilder-go/nodebuilder/internal/errors"
	"github.com/nodebuilder-go/nodebuilder/internal/fsutil"
	"github.com/nodebuilder-go/nodebuilder/internal/metrics"
)

// Stage names a pipeline step.
type Stage string

const (
	StagePrepare  Stage = "prepare"
	StageBundle   Stage = "bundle"
	StageBinaries Stage = "binaries"
	StageNode     Stage = "node"
	StageDocker   Stage = "docker"
	StageLinux    Stage = "linux"
	StageWindows  Stage = "windows"
	StagePublish  Stage = "publish"
	StageCleanup  Stage = "cleanup"
)

// Outcome is the final state of a build.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
)

// StageResult describes one finished stage.
type StageResult struct {
	Name      Stage               `json:"name"`
	Status    metrics.ResultLabel `json:"status"`
	Duration  time.Duration       `json:"duration_ns"`
	Artifacts []string            `json:"artifacts,omitempty"`
	Error     string              `json:"error,omitempty"`
}

// Report summarizes a build run.
type Report struct {
	ID       string        `json:"id"`
	Project  string        `json:"project"`
	Version  string        `json:"version"`
	Commit   string        `json:"commit,omitempty"`
	Branch   string        `json:"branch,omitempty"`
	Start    time.Time     `json:"start"`
	Duration time.Duration `json:"duration_ns"`
	Outcome  Outcome       `json:"outcome"`
	Error    string        `json:"error,omitempty"`
	Stages   []StageResult `json:"stages"`
}

// Stage returns the result of the named stage, if it ran.
func (r *Report) Stage(name Stage) (StageResult, bool) {
	for _, s := range r.Stages {
		if s.Name == name {
			return s, true
		}
	}
	return StageResult{}, false
}

// Artifacts returns every file written by the build, in stage order.
func (r *Report) Artifacts() []string {
	var files []string
	for _, s := range r.Stages {
		files = append(files, s.Artifacts...)
	}
	return files
}

// WriteJSON writes the report to path as indented JSON.
func (r *Report) WriteJSON(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return errors.New("E205").Wrap(err)
	}
	if err := fsutil.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return errors.New("E205").WithPath(path).Wrap(err)
	}
	return nil
}

// artifacts groups written files by target directory name.
type artifacts map[string][]string

func (a artifacts) add(target string, files ...string) {
	a[target] = append(a[target], files...)
}

func (a artifacts) targets() []string {
	names := make([]string, 0, len(a))
	for name := range a {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
