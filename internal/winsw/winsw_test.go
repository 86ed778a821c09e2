package winsw

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodebuilder-go/nodebuilder/internal/errors"
)

func TestNewBinary_Defaults(t *testing.T) {
	b := NewBinary("")
	assert.Equal(t, Version, b.Version)
	assert.Equal(t, GitHubReleaseURL, b.DownloadBaseURL)
	assert.Contains(t, b.BinDir, filepath.FromSlash(DefaultBinDir))
}

func TestDownloadURL(t *testing.T) {
	b := &Binary{Version: "v2.11.0", DownloadBaseURL: "https://mirror.example.com/winsw/"}
	assert.Equal(t, "https://mirror.example.com/winsw/v2.11.0/WinSW.NET4.exe", b.downloadURL())

	b.DownloadBaseURL = ""
	assert.Equal(t, GitHubReleaseURL+"/v2.11.0/WinSW.NET4.exe", b.downloadURL())
}

func TestEnsureInstalled_DownloadsOnce(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/v2.12.0/WinSW.NET4.exe", r.URL.Path)
		w.Write([]byte("MZ fake exe"))
	}))
	defer srv.Close()

	b := &Binary{Version: "v2.12.0", BinDir: t.TempDir(), DownloadBaseURL: srv.URL}

	var messages []string
	path, err := b.EnsureInstalled(context.Background(), func(m string) { messages = append(messages, m) })
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(b.BinDir, "v2.12.0", FileName), path)
	assert.Len(t, messages, 2)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "MZ fake exe", string(data))
	assert.True(t, b.IsCached())

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file should be renamed away")

	// A second Binary sharing the cache does not download again.
	b2 := &Binary{Version: "v2.12.0", BinDir: b.BinDir, DownloadBaseURL: srv.URL}
	_, err = b2.EnsureInstalled(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestEnsureInstalled_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	b := &Binary{Version: "v0.0.0", BinDir: t.TempDir(), DownloadBaseURL: srv.URL}
	_, err := b.EnsureInstalled(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, "E304", errors.CodeOf(err))
	assert.Contains(t, err.Error(), "status 404")
	assert.False(t, b.IsCached())
}

func TestEnsureInstalled_Offline(t *testing.T) {
	b := &Binary{Version: Version, BinDir: t.TempDir(), Offline: true}
	_, err := b.EnsureInstalled(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, "E304", errors.CodeOf(err))
}

func TestEnsureInstalled_LocalPath(t *testing.T) {
	local := filepath.Join(t.TempDir(), "WinSW.NET4.exe")
	require.NoError(t, os.WriteFile(local, []byte("MZ"), 0o644))

	b := &Binary{Version: Version, BinDir: t.TempDir(), LocalPath: local, Offline: true}
	path, err := b.EnsureInstalled(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, local, path)

	missing := &Binary{LocalPath: filepath.Join(t.TempDir(), "nope.exe")}
	_, err = missing.EnsureInstalled(context.Background(), nil)
	assert.Equal(t, "E304", errors.CodeOf(err))
}
