// Package compile packs a JavaScript bundle and a Node.js runtime into a
// standalone executable.
package compile

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/nodebuilder-go/nodebuilder/internal/errors"
	"github.com/nodebuilder-go/nodebuilder/internal/toolchain"
)

// Request describes one executable.
type Request struct {
	// Input is the bundle to compile.
	Input string

	// Output is the executable path without any platform extension.
	Output string

	// Target is the compiler target, e.g. "linux-x64-12.18.2".
	Target string

	// Dir is the compiler's working directory; its download cache lives there.
	Dir string
}

// Result reports a finished executable.
type Result struct {
	// Output is the produced file, including ".exe" for Windows targets.
	Output string
	Size   int64
	Log    string
}

// Compiler produces an executable.
type Compiler interface {
	Compile(ctx context.Context, req Request) (*Result, error)
}

// Nexe compiles with the nexe CLI.
type Nexe struct {
	// LookPath resolves executables. Defaults to exec.LookPath.
	LookPath toolchain.LookPathFunc

	// Stdout receives nexe's progress output.
	Stdout io.Writer
}

// NewNexe returns a nexe compiler using the process PATH.
func NewNexe() *Nexe {
	return &Nexe{}
}

// Compile implements Compiler.
func (n *Nexe) Compile(ctx context.Context, req Request) (*Result, error) {
	cmd, ok := toolchain.Resolve("nexe", n.LookPath)
	if !ok {
		return nil, errors.New("E302")
	}

	if err := os.MkdirAll(filepath.Dir(req.Output), 0o755); err != nil {
		return nil, errors.New("E200").WithPath(filepath.Dir(req.Output)).Wrap(err)
	}

	stderr, err := toolchain.Run(ctx, toolchain.Invocation{
		Command: cmd,
		Args:    Args(req),
		Dir:     req.Dir,
		Stdout:  n.Stdout,
	})
	if err != nil {
		return nil, errors.New("E303").
			WithPath(req.Output).
			WithDetail(stderr).
			Wrap(err)
	}

	out, info, err := locateOutput(req.Output)
	if err != nil {
		return nil, errors.New("E303").
			WithPath(req.Output).
			WithDetail("nexe exited successfully but wrote no executable").
			Wrap(err)
	}
	return &Result{Output: out, Size: info.Size(), Log: stderr}, nil
}

// Args builds the nexe argument list for req.
func Args(req Request) []string {
	return []string{
		req.Input,
		"--output", req.Output,
		"--target", req.Target,
	}
}

// locateOutput finds the executable; nexe appends ".exe" for Windows targets.
func locateOutput(output string) (string, os.FileInfo, error) {
	info, err := os.Stat(output)
	if err == nil {
		return output, info, nil
	}
	if exe, exeErr := os.Stat(output + ".exe"); exeErr == nil {
		return output + ".exe", exe, nil
	}
	return "", nil, err
}
