package compile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	nberrors "github.com/nodebuilder-go/nodebuilder/internal/errors"
)

func TestArgs(t *testing.T) {
	got := Args(Request{
		Input:  "/app/build/temp/gateway.js",
		Output: "/app/build/linux-x64/gateway",
		Target: "linux-x64-12.18.2",
	})
	assert.Equal(t, []string{
		"/app/build/temp/gateway.js",
		"--output", "/app/build/linux-x64/gateway",
		"--target", "linux-x64-12.18.2",
	}, got)
}

func TestCompile_NoToolAvailable(t *testing.T) {
	n := &Nexe{LookPath: func(string) (string, error) { return "", errors.New("missing") }}
	_, err := n.Compile(context.Background(), Request{Output: filepath.Join(t.TempDir(), "app")})
	require.Error(t, err)
	assert.Equal(t, "E302", nberrors.CodeOf(err))
}

func fakeNexe(t *testing.T, body string) func(string) (string, error) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("uses a shell script")
	}
	script := filepath.Join(t.TempDir(), "nexe")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\n"+body), 0o755))
	return func(name string) (string, error) {
		if name == "nexe" {
			return script, nil
		}
		return "", errors.New("missing")
	}
}

func TestCompile_RunsInBuildDir(t *testing.T) {
	// $3 is the --output value.
	lookPath := fakeNexe(t, "echo binary > \"$3\"\npwd > cwd.txt\n")
	build := t.TempDir()
	out := filepath.Join(build, "linux-x64", "gateway")

	res, err := (&Nexe{LookPath: lookPath}).Compile(context.Background(), Request{
		Input:  filepath.Join(build, "temp", "gateway.js"),
		Output: out,
		Target: "linux-x64-12.18.2",
		Dir:    build,
	})
	require.NoError(t, err)
	assert.Equal(t, out, res.Output)
	assert.Equal(t, int64(len("binary\n")), res.Size)

	_, err = os.Stat(filepath.Join(build, "cwd.txt"))
	assert.NoError(t, err, "compiler should run with the build directory as cwd")
}

func TestCompile_FindsExeSuffix(t *testing.T) {
	lookPath := fakeNexe(t, "echo binary > \"$3.exe\"\n")
	build := t.TempDir()
	out := filepath.Join(build, "windows-x64", "gateway")

	res, err := (&Nexe{LookPath: lookPath}).Compile(context.Background(), Request{
		Output: out,
		Target: "windows-x64-12.18.2",
		Dir:    build,
	})
	require.NoError(t, err)
	assert.Equal(t, out+".exe", res.Output)
}

func TestCompile_Failure(t *testing.T) {
	lookPath := fakeNexe(t, "echo 'Error: linux-x64-99.0.0 not available' >&2\nexit 1\n")
	build := t.TempDir()

	_, err := (&Nexe{LookPath: lookPath}).Compile(context.Background(), Request{
		Output: filepath.Join(build, "linux-x64", "gateway"),
		Target: "linux-x64-99.0.0",
		Dir:    build,
	})
	require.Error(t, err)

	var be *nberrors.BuildError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "E303", be.Code)
	assert.Contains(t, be.Detail, "not available")
}
