// Package watch rebuilds a project when its sources change.
//
// Source directories are watched recursively with fsnotify. Bursts of events
// are collapsed into a single callback after a quiet period, and the callback
// runs on the watcher goroutine, so rebuilds never overlap.
package watch

import (
	"context"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/nodebuilder-go/nodebuilder/internal/errors"
	"github.com/nodebuilder-go/nodebuilder/internal/logfields"
)

// DefaultDebounce is the quiet period before a change is reported.
const DefaultDebounce = 300 * time.Millisecond

// DefaultIgnore contains patterns that never trigger a rebuild.
var DefaultIgnore = []string{
	".git",
	"node_modules",
	"*.swp",
	"*.swx",
	"*~",
	"*.tmp",
	".DS_Store",
}

// Config configures a Watcher.
type Config struct {
	// Dirs are watched recursively.
	Dirs []string

	// Files are single files to watch, such as package.json.
	Files []string

	// Exclude are directories whose events are dropped, such as the build
	// directory when it lives inside a watched directory.
	Exclude []string

	// Ignore are name or glob patterns matched against paths relative to
	// their watched directory. Defaults to DefaultIgnore.
	Ignore []string

	// Debounce defaults to DefaultDebounce.
	Debounce time.Duration

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Watcher reports changed files.
type Watcher struct {
	config   Config
	files    map[string]struct{}
	onChange func(paths []string)
	log      *slog.Logger
}

// New creates a Watcher. Nothing is watched until Run is called.
func New(config Config) *Watcher {
	if config.Debounce <= 0 {
		config.Debounce = DefaultDebounce
	}
	if len(config.Ignore) == 0 {
		config.Ignore = DefaultIgnore
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	for i, d := range config.Dirs {
		config.Dirs[i] = filepath.Clean(d)
	}
	for i, d := range config.Exclude {
		config.Exclude[i] = filepath.Clean(d)
	}

	files := make(map[string]struct{}, len(config.Files))
	for _, f := range config.Files {
		files[filepath.Clean(f)] = struct{}{}
	}

	return &Watcher{
		config: config,
		files:  files,
		log:    config.Logger,
	}
}

// OnChange sets the callback receiving the sorted changed paths.
func (w *Watcher) OnChange(fn func(paths []string)) {
	w.onChange = fn
}

// Run watches until ctx is done. Setup failures carry code E305.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.New("E305").Wrap(err)
	}
	defer fw.Close()

	for _, dir := range w.config.Dirs {
		if err := w.addRecursive(fw, dir); err != nil {
			return errors.New("E305").WithPath(dir).Wrap(err)
		}
	}
	parents := map[string]bool{}
	for f := range w.files {
		parent := filepath.Dir(f)
		if parents[parent] || w.underDir(parent) {
			continue
		}
		parents[parent] = true
		if err := fw.Add(parent); err != nil {
			return errors.New("E305").WithPath(f).Wrap(err)
		}
	}

	pending := map[string]struct{}{}
	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
					if err := w.addRecursive(fw, ev.Name); err != nil {
						w.log.Warn("watch add failed", logfields.Path(ev.Name), logfields.Error(err))
					}
				}
			}
			w.log.Debug("file change detected", logfields.Path(ev.Name), slog.String("op", ev.Op.String()))
			pending[filepath.Clean(ev.Name)] = struct{}{}

			if timer == nil {
				timer = time.NewTimer(w.config.Debounce)
			} else {
				timer.Reset(w.config.Debounce)
			}
			fire = timer.C

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watcher error", logfields.Error(err))

		case <-fire:
			fire = nil
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			clear(pending)
			if w.onChange != nil {
				w.onChange(paths)
			}
		}
	}
}

func (w *Watcher) addRecursive(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			if p == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && (w.excluded(p) || w.ignored(p)) {
			return filepath.SkipDir
		}
		if err := fw.Add(p); err != nil {
			w.log.Warn("watch add failed", logfields.Path(p), logfields.Error(err))
		}
		return nil
	})
}

// relevant reports whether ev should trigger a rebuild.
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}
	name := filepath.Clean(ev.Name)
	if _, ok := w.files[name]; ok {
		return true
	}
	if w.excluded(name) {
		return false
	}
	return w.underDir(name) && !w.ignored(name)
}

func (w *Watcher) excluded(p string) bool {
	for _, dir := range w.config.Exclude {
		if p == dir || within(p, dir) {
			return true
		}
	}
	return false
}

func (w *Watcher) underDir(p string) bool {
	for _, dir := range w.config.Dirs {
		if p == dir || within(p, dir) {
			return true
		}
	}
	return false
}

// ignored matches the ignore patterns against p relative to its watched
// directory, so directories above the project never match.
func (w *Watcher) ignored(p string) bool {
	rel := p
	for _, dir := range w.config.Dirs {
		if within(p, dir) {
			rel, _ = filepath.Rel(dir, p)
			break
		}
	}
	name := filepath.Base(rel)
	normalized := filepath.ToSlash(rel)

	for _, pattern := range w.config.Ignore {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		if name == pattern {
			return true
		}

		hasPathSep := strings.Contains(pattern, "/")
		if strings.ContainsAny(pattern, "*?[") {
			if hasPathSep {
				if matched, _ := path.Match(pattern, normalized); matched {
					return true
				}
			} else if matched, _ := filepath.Match(pattern, name); matched {
				return true
			}
			continue
		}

		if hasPathSep {
			if pathMatchesSegments(normalized, pattern) {
				return true
			}
			continue
		}
		if pathHasSegment(normalized, pattern) {
			return true
		}
	}
	return false
}

func pathHasSegment(p, segment string) bool {
	for _, part := range splitPathSegments(p) {
		if part == segment {
			return true
		}
	}
	return false
}

func pathMatchesSegments(p, pattern string) bool {
	parts := splitPathSegments(p)
	want := splitPathSegments(pattern)
	if len(want) == 0 || len(want) > len(parts) {
		return false
	}
	for i := 0; i <= len(parts)-len(want); i++ {
		match := true
		for j := range want {
			if parts[i+j] != want[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func splitPathSegments(p string) []string {
	var out []string
	for _, part := range strings.Split(p, "/") {
		if part != "" && part != "." {
			out = append(out, part)
		}
	}
	return out
}

func within(child, parent string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
