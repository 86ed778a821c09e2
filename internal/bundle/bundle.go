// Package bundle turns a Node.js entry point into a single JavaScript file.
package bundle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/nodebuilder-go/nodebuilder/internal/errors"
	"github.com/nodebuilder-go/nodebuilder/internal/toolchain"
)

// Request describes one bundle.
type Request struct {
	// Entry is the absolute entry point.
	Entry string

	// SourceDir is the working directory of the bundler.
	SourceDir string

	// Outfile is the absolute path of the bundle.
	Outfile string

	// NodeMajor selects the language target. Zero leaves it to the bundler.
	NodeMajor uint64

	// Env values are substituted for process.env.<key> in the bundle.
	Env map[string]string

	// Minify enables production minification.
	Minify bool
}

// Result reports a finished bundle.
type Result struct {
	Output string
	Size   int64

	// Log holds the bundler's diagnostic output, such as warnings.
	Log string
}

// Bundler produces a bundle.
type Bundler interface {
	Bundle(ctx context.Context, req Request) (*Result, error)
}

// Esbuild bundles with the esbuild CLI.
type Esbuild struct {
	// LookPath resolves executables. Defaults to exec.LookPath.
	LookPath toolchain.LookPathFunc

	// Stdout receives esbuild's standard output.
	Stdout io.Writer
}

// NewEsbuild returns an esbuild bundler using the process PATH.
func NewEsbuild() *Esbuild {
	return &Esbuild{}
}

// Bundle implements Bundler.
func (e *Esbuild) Bundle(ctx context.Context, req Request) (*Result, error) {
	cmd, ok := toolchain.Resolve("esbuild", e.LookPath)
	if !ok {
		return nil, errors.New("E300")
	}

	if err := os.MkdirAll(filepath.Dir(req.Outfile), 0o755); err != nil {
		return nil, errors.New("E200").WithPath(filepath.Dir(req.Outfile)).Wrap(err)
	}

	stderr, err := toolchain.Run(ctx, toolchain.Invocation{
		Command: cmd,
		Args:    Args(req),
		Dir:     req.SourceDir,
		Stdout:  e.Stdout,
	})
	if err != nil {
		return nil, errors.New("E301").
			WithPath(req.Entry).
			WithDetail(stderr).
			Wrap(err)
	}

	info, err := os.Stat(req.Outfile)
	if err != nil {
		return nil, errors.New("E301").
			WithPath(req.Outfile).
			WithDetail("esbuild exited successfully but wrote no bundle").
			Wrap(err)
	}

	return &Result{Output: req.Outfile, Size: info.Size(), Log: stderr}, nil
}

// Args builds the esbuild argument list for req.
func Args(req Request) []string {
	args := []string{
		req.Entry,
		"--bundle",
		"--platform=node",
		"--outfile=" + req.Outfile,
		"--log-level=warning",
	}
	if req.NodeMajor > 0 {
		args = append(args, fmt.Sprintf("--target=node%d", req.NodeMajor))
	}
	if req.Minify {
		args = append(args, "--minify")
	}

	keys := make([]string, 0, len(req.Env))
	for k := range req.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		// esbuild expects define values as JSON literals.
		v, _ := json.Marshal(req.Env[k])
		args = append(args, "--define:process.env."+k+"="+string(v))
	}
	return args
}
