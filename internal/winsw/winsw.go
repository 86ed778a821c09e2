// Package winsw provides the WinSW executable that wraps a binary as a Windows service.
// It uses an explicit local copy when given one and otherwise downloads and
// caches the release from GitHub.
package winsw

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/nodebuilder-go/nodebuilder/internal/errors"
)

const (
	// Version is the WinSW release used when the manifest does not pin one.
	Version = "v2.12.0"

	// FileName is the .NET 4 build of the wrapper.
	FileName = "WinSW.NET4.exe"

	// GitHubReleaseURL is the base URL for downloading WinSW.
	GitHubReleaseURL = "https://github.com/winsw/winsw/releases/download"

	// DefaultBinDir is the cache directory under the user's home.
	DefaultBinDir = ".nodebuilder/bin"
)

// Binary locates or downloads the WinSW executable.
type Binary struct {
	// Version is the WinSW release.
	Version string

	// BinDir is the cache root; releases live in BinDir/<version>/.
	BinDir string

	// LocalPath, when set, is used instead of the cache.
	LocalPath string

	// DownloadBaseURL overrides GitHubReleaseURL.
	DownloadBaseURL string

	// Offline disables downloads.
	Offline bool

	// HTTPClient is used for downloads. If nil, a default client is used.
	HTTPClient *http.Client

	path string
	mu   sync.Mutex
}

// NewBinary creates a Binary for version (Version when empty) cached under ~/.nodebuilder/bin.
func NewBinary(version string) *Binary {
	if version == "" {
		version = Version
	}
	return &Binary{
		Version:         version,
		BinDir:          defaultBinDir(),
		DownloadBaseURL: GitHubReleaseURL,
	}
}

func defaultBinDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", DefaultBinDir)
	}
	return filepath.Join(home, DefaultBinDir)
}

// EnsureInstalled returns the path of a usable WinSW executable,
// downloading it if needed. Errors carry code E304.
func (b *Binary) EnsureInstalled(ctx context.Context, progress func(msg string)) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.path != "" {
		return b.path, nil
	}

	if b.LocalPath != "" {
		if _, err := os.Stat(b.LocalPath); err != nil {
			return "", errors.New("E304").WithPath(b.LocalPath).Wrap(err)
		}
		b.path = b.LocalPath
		return b.path, nil
	}

	path := b.cachePath()
	if _, err := os.Stat(path); err == nil {
		b.path = path
		return path, nil
	}

	if b.Offline {
		return "", errors.New("E304").
			WithPath(path).
			WithDetail("WinSW is not cached and downloads are disabled.")
	}

	if err := b.download(ctx, progress); err != nil {
		return "", errors.New("E304").WithPath(b.downloadURL()).Wrap(err)
	}

	b.path = path
	return path, nil
}

// IsCached reports whether the release is already in the cache.
func (b *Binary) IsCached() bool {
	_, err := os.Stat(b.cachePath())
	return err == nil
}

func (b *Binary) cachePath() string {
	return filepath.Join(b.BinDir, b.Version, FileName)
}

func (b *Binary) downloadURL() string {
	base := b.DownloadBaseURL
	if base == "" {
		base = GitHubReleaseURL
	}
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(base, "/"), b.Version, FileName)
}

func (b *Binary) download(ctx context.Context, progress func(msg string)) error {
	url := b.downloadURL()
	dest := b.cachePath()

	if progress != nil {
		progress(fmt.Sprintf("Downloading WinSW %s...", b.Version))
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("failed to create bin directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	client := b.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed with status %d (URL: %s)", resp.StatusCode, url)
	}

	tmpPath := dest + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	written, err := io.Copy(f, resp.Body)
	f.Close()
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write file: %w", err)
	}
	if written == 0 {
		os.Remove(tmpPath)
		return fmt.Errorf("download from %s was empty", url)
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to install binary: %w", err)
	}

	if progress != nil {
		progress(fmt.Sprintf("Cached WinSW at %s", dest))
	}
	return nil
}
