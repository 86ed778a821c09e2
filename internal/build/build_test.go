package build

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodebuilder-go/nodebuilder/internal/bundle"
	"github.com/nodebuilder-go/nodebuilder/internal/compile"
	"github.com/nodebuilder-go/nodebuilder/internal/config"
	"github.com/nodebuilder-go/nodebuilder/internal/console"
	"github.com/nodebuilder-go/nodebuilder/internal/errors"
	"github.com/nodebuilder-go/nodebuilder/internal/metrics"
	"github.com/nodebuilder-go/nodebuilder/internal/publish"
	"github.com/nodebuilder-go/nodebuilder/internal/winsw"
)

type fakeBundler struct {
	requests []bundle.Request
	err      error
}

func (f *fakeBundler) Bundle(ctx context.Context, req bundle.Request) (*bundle.Result, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	content := []byte("console.log(process.env.VERSION)\n")
	if err := os.WriteFile(req.Outfile, content, 0o644); err != nil {
		return nil, err
	}
	return &bundle.Result{Output: req.Outfile, Size: int64(len(content))}, nil
}

type fakeCompiler struct {
	targets []string
}

func (f *fakeCompiler) Compile(ctx context.Context, req compile.Request) (*compile.Result, error) {
	f.targets = append(f.targets, req.Target)
	out := req.Output
	if strings.HasPrefix(req.Target, "windows") {
		out += ".exe"
	}
	if err := os.WriteFile(out, []byte("binary "+req.Target), 0o755); err != nil {
		return nil, err
	}
	return &compile.Result{Output: out, Size: 1}, nil
}

type fakePublisher struct {
	dir, version string
}

func (f *fakePublisher) Publish(ctx context.Context, dir, version string, skip ...string) ([]publish.Object, error) {
	f.dir, f.version = dir, version
	return []publish.Object{{Key: version + "/node/gateway.js"}}, nil
}

type recordingRecorder struct {
	metrics.NoopRecorder
	mu      sync.Mutex
	results map[string]metrics.ResultLabel
	outcome string
	bundle  int64
}

func (r *recordingRecorder) IncStageResult(stage string, result metrics.ResultLabel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.results == nil {
		r.results = map[string]metrics.ResultLabel{}
	}
	r.results[stage] = result
}

func (r *recordingRecorder) IncBuildOutcome(outcome string) { r.outcome = outcome }
func (r *recordingRecorder) SetBundleSize(n int64)          { r.bundle = n }

const allTargets = `{
  "name": "@acme/gateway", "version": "1.4.0",
  "builder": {
    "entry": "index.js", "node": "12.18.2",
    "dirs": {"build": "build", "src": "src"},
    "environments": ["linux-x64", "windows-x64", "docker"],
    "copy": [{"from": "config.json", "to": "config.json"}, {"from": "absent.txt", "to": "absent.txt"}],
    "winsw": {"path": "WinSW.NET4.exe"}
  }
}`

const dockerOnly = `{"name":"gateway","version":"2.0.0","builder":{"entry":"index.js","node":"12.18.2","dirs":{"build":"build","src":"src"},"environments":["docker"]}}`

// newProject writes manifest, a config.json and a fake WinSW executable into
// a fresh project directory and loads it.
func newProject(t *testing.T, manifest string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.ManifestFileName), []byte(manifest), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "index.js"), []byte("module.exports = 1\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(`{"port":8080}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "WinSW.NET4.exe"), []byte("MZ"), 0o755))

	cfg, err := config.Load(dir)
	require.NoError(t, err)
	return cfg
}

func listFiles(t *testing.T, dir string) []string {
	t.Helper()
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			rel, _ := filepath.Rel(dir, path)
			files = append(files, filepath.ToSlash(rel))
		}
		return nil
	})
	require.NoError(t, err)
	sort.Strings(files)
	return files
}

func stageNames(r *Report) []Stage {
	var names []Stage
	for _, s := range r.Stages {
		names = append(names, s.Name)
	}
	return names
}

func TestBuild_AllTargets(t *testing.T) {
	cfg := newProject(t, allTargets)
	t.Setenv("npm_package_version", "")
	t.Setenv("VERSION", "")

	bundler := &fakeBundler{}
	compiler := &fakeCompiler{}
	rec := &recordingRecorder{}
	var buf bytes.Buffer

	report, err := New(cfg, Options{
		Bundler:  bundler,
		Compiler: compiler,
		Console:  console.New(&buf, false),
		Recorder: rec,
	}).Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"docker/Dockerfile",
		"docker/config.json",
		"docker/docker-compose.yml",
		"docker/gateway.js",
		"linux-x64/config.json",
		"linux-x64/gateway",
		"linux-x64/install/gateway.service",
		"linux-x64/install/gateway.sh",
		"node/config.json",
		"node/gateway.js",
		"windows-x64/config.json",
		"windows-x64/gateway.exe",
		"windows-x64/service/service.exe",
		"windows-x64/service/service.xml",
	}, listFiles(t, cfg.Dirs.Build))

	assert.NoDirExists(t, cfg.Dirs.Temp)
	assert.Equal(t, []string{"linux-x64-12.18.2", "windows-x64-12.18.2"}, compiler.targets)

	require.Len(t, bundler.requests, 1)
	req := bundler.requests[0]
	assert.Equal(t, cfg.EntryPath(), req.Entry)
	assert.Equal(t, uint64(12), req.NodeMajor)
	assert.Equal(t, "1.4.0", req.Env["VERSION"])

	want := []byte(`{"port":8080}`)
	for _, target := range []string{"node", "docker", "linux-x64", "windows-x64"} {
		got, err := os.ReadFile(filepath.Join(cfg.Dirs.Build, target, "config.json"))
		require.NoError(t, err)
		assert.Equal(t, want, got, target)
	}

	assert.Equal(t, []Stage{
		StagePrepare, StageBundle, StageBinaries, StageNode, StageDocker,
		StageLinux, StageWindows, StagePublish, StageCleanup,
	}, stageNames(report))
	publishStage, ok := report.Stage(StagePublish)
	require.True(t, ok)
	assert.Equal(t, metrics.ResultSkipped, publishStage.Status)

	assert.Equal(t, OutcomeSuccess, report.Outcome)
	assert.Equal(t, "success", rec.outcome)
	assert.Equal(t, metrics.ResultSuccess, rec.results["windows"])
	assert.Positive(t, rec.bundle)
	assert.NotEmpty(t, report.ID)
	assert.Contains(t, report.Artifacts(), filepath.Join(cfg.Dirs.Build, "docker", "Dockerfile"))

	out := buf.String()
	assert.Contains(t, out, "Creating binary for 'linux-x64-12.18.2'...")
	assert.Contains(t, out, "Creating 'Node.js' package...")
	assert.Contains(t, out, "Creating 'Docker' container...")
	assert.Contains(t, out, "Creating service daemon for 'windows-x64'...")
	assert.NotContains(t, out, "absent.txt")
}

func TestBuild_DockerOnly(t *testing.T) {
	cfg := newProject(t, dockerOnly)
	compiler := &fakeCompiler{}

	report, err := New(cfg, Options{Bundler: &fakeBundler{}, Compiler: compiler}).Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"docker/Dockerfile",
		"docker/docker-compose.yml",
		"docker/gateway.js",
		"node/gateway.js",
	}, listFiles(t, cfg.Dirs.Build))
	assert.Empty(t, compiler.targets)

	dockerfile, err := os.ReadFile(filepath.Join(cfg.Dirs.Build, "docker", "Dockerfile"))
	require.NoError(t, err)
	assert.Contains(t, string(dockerfile), "FROM node:10-alpine\n")
	assert.Contains(t, string(dockerfile), `WORKDIR "/usr/src/app"`)
	assert.Contains(t, string(dockerfile), `CMD ["node","gateway.js"]`)

	compose, err := os.ReadFile(filepath.Join(cfg.Dirs.Build, "docker", "docker-compose.yml"))
	require.NoError(t, err)
	assert.Contains(t, string(compose), "restart: always")

	for _, name := range []Stage{StageBinaries, StageLinux, StageWindows} {
		st, ok := report.Stage(name)
		require.True(t, ok)
		assert.Equal(t, metrics.ResultSkipped, st.Status, name)
	}
}

func TestBuild_ClearsPreviousOutput(t *testing.T) {
	cfg := newProject(t, dockerOnly)
	stale := filepath.Join(cfg.Dirs.Build, "linux-x64", "old-binary")
	require.NoError(t, os.MkdirAll(filepath.Dir(stale), 0o755))
	require.NoError(t, os.WriteFile(stale, []byte("stale"), 0o644))

	_, err := New(cfg, Options{Bundler: &fakeBundler{}, Compiler: &fakeCompiler{}}).Build(context.Background())
	require.NoError(t, err)

	assert.NoFileExists(t, stale)
	assert.NoDirExists(t, filepath.Join(cfg.Dirs.Build, "linux-x64"))
}

func TestBuild_StageFailureStops(t *testing.T) {
	cfg := newProject(t, allTargets)
	compiler := &fakeCompiler{}
	var seen []Stage

	report, err := New(cfg, Options{
		Bundler:  &fakeBundler{err: errors.New("E301").Wrap(fmt.Errorf("syntax error"))},
		Compiler: compiler,
		OnStage:  func(r StageResult) { seen = append(seen, r.Name) },
	}).Build(context.Background())
	require.Error(t, err)
	assert.Equal(t, "E301", errors.CodeOf(err))

	assert.Equal(t, []Stage{StagePrepare, StageBundle}, seen)
	assert.Equal(t, OutcomeFailed, report.Outcome)
	assert.Contains(t, report.Error, "syntax error")
	st, _ := report.Stage(StageBundle)
	assert.Equal(t, metrics.ResultFailed, st.Status)

	assert.Empty(t, compiler.targets)
	assert.DirExists(t, cfg.Dirs.Temp)
	assert.NoDirExists(t, filepath.Join(cfg.Dirs.Build, "node"))
}

func TestBuild_OfflineWithoutWinSW(t *testing.T) {
	cfg := newProject(t, strings.Replace(allTargets, `"winsw": {"path": "WinSW.NET4.exe"}`, `"winsw": {}`, 1))
	bin := winsw.NewBinary("")
	bin.BinDir = t.TempDir()
	var buf bytes.Buffer

	report, err := New(cfg, Options{
		Bundler:  &fakeBundler{},
		Compiler: &fakeCompiler{},
		WinSW:    bin,
		Offline:  true,
		Console:  console.New(&buf, false),
	}).Build(context.Background())
	require.NoError(t, err)

	st, _ := report.Stage(StageWindows)
	assert.Equal(t, metrics.ResultSkipped, st.Status)
	assert.NoDirExists(t, filepath.Join(cfg.Dirs.Build, "windows-x64", "service"))
	assert.FileExists(t, filepath.Join(cfg.Dirs.Build, "windows-x64", "gateway.exe"))
	assert.Contains(t, buf.String(), "WinSW is not available offline")
}

func TestBuild_MissingWinSWFails(t *testing.T) {
	cfg := newProject(t, strings.Replace(allTargets, "WinSW.NET4.exe", "missing.exe", 1))

	report, err := New(cfg, Options{Bundler: &fakeBundler{}, Compiler: &fakeCompiler{}}).Build(context.Background())
	require.Error(t, err)
	assert.Equal(t, "E304", errors.CodeOf(err))
	st, _ := report.Stage(StageWindows)
	assert.Equal(t, metrics.ResultFailed, st.Status)
}

func TestBuild_PublishAndKeepTemp(t *testing.T) {
	cfg := newProject(t, dockerOnly)
	t.Setenv("npm_package_version", "")
	t.Setenv("VERSION", "2.0.0-rc.1")
	pub := &fakePublisher{}

	report, err := New(cfg, Options{
		Bundler:   &fakeBundler{},
		Compiler:  &fakeCompiler{},
		Publisher: pub,
		KeepTemp:  true,
	}).Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, cfg.Dirs.Build, pub.dir)
	assert.Equal(t, "2.0.0-rc.1", pub.version)
	assert.Equal(t, "2.0.0-rc.1", report.Version)

	st, _ := report.Stage(StagePublish)
	assert.Equal(t, []string{"2.0.0-rc.1/node/gateway.js"}, st.Artifacts)

	cleanup, _ := report.Stage(StageCleanup)
	assert.Equal(t, metrics.ResultSkipped, cleanup.Status)
	assert.FileExists(t, cfg.BundlePath())
}

func TestBuild_Canceled(t *testing.T) {
	cfg := newProject(t, dockerOnly)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := New(cfg, Options{Bundler: &fakeBundler{}, Compiler: &fakeCompiler{}}).Build(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, report.Stages)
	assert.Equal(t, OutcomeFailed, report.Outcome)
}

func TestReport_WriteJSON(t *testing.T) {
	report := &Report{
		ID:       "3b1f",
		Project:  "gateway",
		Version:  "1.0.0",
		Start:    time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		Duration: 1500 * time.Millisecond,
		Outcome:  OutcomeSuccess,
		Stages: []StageResult{
			{Name: StageNode, Status: metrics.ResultSuccess, Artifacts: []string{"build/node/gateway.js"}},
		},
	}
	path := filepath.Join(t.TempDir(), "reports", "build.json")
	require.NoError(t, report.WriteJSON(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "gateway", decoded["project"])
	assert.Equal(t, "success", decoded["outcome"])
	assert.EqualValues(t, 1.5e9, decoded["duration_ns"])
	assert.NotContains(t, decoded, "commit")
}

type fakeS3 struct {
	mu   sync.Mutex
	keys []string
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, aws.ToString(in.Key))
	return &s3.PutObjectOutput{}, nil
}

func TestBuild_PublishSkipsTemp(t *testing.T) {
	cfg := newProject(t, dockerOnly)
	t.Setenv("npm_package_version", "")
	t.Setenv("VERSION", "")
	store := &fakeS3{}

	_, err := New(cfg, Options{
		Bundler:   &fakeBundler{},
		Compiler:  &fakeCompiler{},
		Publisher: publish.New(store, "releases", "gateway"),
	}).Build(context.Background())
	require.NoError(t, err)

	sort.Strings(store.keys)
	assert.Equal(t, []string{
		"gateway/2.0.0/docker/Dockerfile",
		"gateway/2.0.0/docker/docker-compose.yml",
		"gateway/2.0.0/docker/gateway.js",
		"gateway/2.0.0/node/gateway.js",
	}, store.keys)
}

func TestBuild_RecordsCommit(t *testing.T) {
	cfg := newProject(t, dockerOnly)
	repo, err := git.PlainInit(cfg.Dir(), false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("package.json")
	require.NoError(t, err)
	hash, err := wt.Commit("Initial commit", &git.CommitOptions{
		Author: &object.Signature{Name: "Test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)

	bundler := &fakeBundler{}
	var buf bytes.Buffer
	report, err := New(cfg, Options{
		Bundler:  bundler,
		Compiler: &fakeCompiler{},
		Console:  console.New(&buf, false),
	}).Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, hash.String(), report.Commit)
	assert.Equal(t, "master", report.Branch)
	assert.Equal(t, hash.String(), bundler.requests[0].Env["COMMIT"])
	assert.Contains(t, buf.String(), "Building commit `"+hash.String()[:8]+"` on `master`.")
}
