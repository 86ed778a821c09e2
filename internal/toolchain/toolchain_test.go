package toolchain

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeLookPath(found map[string]string) LookPathFunc {
	return func(file string) (string, error) {
		if p, ok := found[file]; ok {
			return p, nil
		}
		return "", errors.New("not found")
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name   string
		found  map[string]string
		want   Command
		wantOK bool
	}{
		{
			name:   "tool on path",
			found:  map[string]string{"esbuild": "/usr/bin/esbuild", "npx": "/usr/bin/npx"},
			want:   Command{Path: "/usr/bin/esbuild"},
			wantOK: true,
		},
		{
			name:   "npx fallback",
			found:  map[string]string{"npx": "/usr/bin/npx"},
			want:   Command{Path: "/usr/bin/npx", Args: []string{"--yes", "esbuild"}},
			wantOK: true,
		},
		{
			name:   "nothing available",
			found:  map[string]string{},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Resolve("esbuild", fakeLookPath(tt.found))
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCommandString(t *testing.T) {
	c := Command{Path: "npx", Args: []string{"--yes", "nexe"}}
	assert.Equal(t, "npx --yes nexe", c.String())
}

func TestRun_CapturesStderr(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a shell script")
	}
	dir := t.TempDir()
	script := filepath.Join(dir, "tool")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\necho \"warn: $1\" >&2\npwd > out.txt\nexit 3\n"), 0o755))

	stderr, err := Run(context.Background(), Invocation{
		Command: Command{Path: script},
		Args:    []string{"hello"},
		Dir:     dir,
	})
	require.Error(t, err)
	assert.Equal(t, "warn: hello\n", stderr)

	out, rerr := os.ReadFile(filepath.Join(dir, "out.txt"))
	require.NoError(t, rerr)
	wantDir, _ := filepath.EvalSymlinks(dir)
	gotDir, _ := filepath.EvalSymlinks(string(out[:len(out)-1]))
	assert.Equal(t, wantDir, gotDir)
}
