package build

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nodebuilder-go/nodebuilder/internal/bundle"
	"github.com/nodebuilder-go/nodebuilder/internal/compile"
	"github.com/nodebuilder-go/nodebuilder/internal/config"
	"github.com/nodebuilder-go/nodebuilder/internal/console"
	"github.com/nodebuilder-go/nodebuilder/internal/emit"
	"github.com/nodebuilder-go/nodebuilder/internal/errors"
	"github.com/nodebuilder-go/nodebuilder/internal/fsutil"
	"github.com/nodebuilder-go/nodebuilder/internal/gitinfo"
	"github.com/nodebuilder-go/nodebuilder/internal/logfields"
	"github.com/nodebuilder-go/nodebuilder/internal/metrics"
	"github.com/nodebuilder-go/nodebuilder/internal/publish"
	"github.com/nodebuilder-go/nodebuilder/internal/winsw"
)

// TracerName is the instrumentation name of build spans.
const TracerName = "github.com/nodebuilder-go/nodebuilder/internal/build"

// Publisher uploads a finished build directory.
type Publisher interface {
	Publish(ctx context.Context, dir, version string, skip ...string) ([]publish.Object, error)
}

// Options configures the builder. Zero values select the defaults.
type Options struct {
	// Bundler defaults to esbuild.
	Bundler bundle.Bundler

	// Compiler defaults to nexe.
	Compiler compile.Compiler

	// WinSW provides the Windows service wrapper. It defaults to the
	// release named in the manifest, or the manifest's local path.
	WinSW *winsw.Binary

	// Console receives the build log. Defaults to a discarding console.
	Console *console.Console

	// Logger receives structured diagnostics. Defaults to slog.Default().
	Logger *slog.Logger

	// Recorder receives metrics. Defaults to metrics.NoopRecorder.
	Recorder metrics.Recorder

	// Tracer defaults to the global tracer provider.
	Tracer trace.Tracer

	// Publisher enables the publish stage when set.
	Publisher Publisher

	// KeepTemp leaves the temp directory after a successful build.
	KeepTemp bool

	// Offline skips the windows stage when WinSW is not available locally
	// instead of downloading it.
	Offline bool

	// Minify is passed to the bundler.
	Minify bool

	// OnStage is called after every stage.
	OnStage func(StageResult)
}

// Builder runs the build pipeline for one configuration.
type Builder struct {
	config  *config.Config
	options Options
	out     *console.Console
	log     *slog.Logger
	tracer  trace.Tracer
}

// New creates a builder for cfg.
func New(cfg *config.Config, options Options) *Builder {
	if options.Bundler == nil {
		options.Bundler = bundle.NewEsbuild()
	}
	if options.Compiler == nil {
		options.Compiler = compile.NewNexe()
	}
	if options.WinSW == nil {
		options.WinSW = winsw.NewBinary(cfg.WinSW.Version)
		options.WinSW.LocalPath = cfg.WinSW.Path
	}
	if options.Offline {
		options.WinSW.Offline = true
	}
	if options.Console == nil {
		options.Console = console.Discard()
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	if options.Recorder == nil {
		options.Recorder = metrics.NoopRecorder{}
	}
	if options.Tracer == nil {
		options.Tracer = otel.Tracer(TracerName)
	}

	return &Builder{
		config:  cfg,
		options: options,
		out:     options.Console,
		log:     options.Logger,
		tracer:  options.Tracer,
	}
}

// stage is one step of the pipeline. It returns the files it wrote, grouped
// by target directory name.
type stage struct {
	name Stage
	run  func(ctx context.Context, r *Report) (artifacts, error)
}

func (b *Builder) stages() []stage {
	return []stage{
		{StagePrepare, b.prepare},
		{StageBundle, b.bundle},
		{StageBinaries, b.binaries},
		{StageNode, b.node},
		{StageDocker, b.docker},
		{StageLinux, b.linux},
		{StageWindows, b.windows},
		{StagePublish, b.publish},
		{StageCleanup, b.cleanup},
	}
}

// Build runs every stage in order. The report is returned even when a stage
// fails; it then records the failed stage and the error.
func (b *Builder) Build(ctx context.Context) (*Report, error) {
	report := &Report{
		ID:      uuid.NewString(),
		Project: b.config.Name,
		Version: b.config.BundleVersion(),
		Start:   time.Now(),
		Outcome: OutcomeSuccess,
	}
	if info, err := gitinfo.Lookup(b.config.Dir()); err != nil {
		b.log.Debug("git lookup failed", logfields.Path(b.config.Dir()), logfields.Error(err))
	} else if info.Commit != "" {
		report.Commit = info.Commit
		report.Branch = info.Branch
		if info.Branch != "" {
			b.out.Info("Building commit `%s` on `%s`.", info.Short(), info.Branch)
		} else {
			b.out.Info("Building commit `%s`.", info.Short())
		}
	}

	log := b.log.With(logfields.BuildID(report.ID))

	ctx, span := b.tracer.Start(ctx, "nodebuilder.build", trace.WithAttributes(
		attribute.String("nodebuilder.build_id", report.ID),
		attribute.String("nodebuilder.project", report.Project),
		attribute.String("nodebuilder.version", report.Version),
	))
	defer span.End()

	var buildErr error
	for _, st := range b.stages() {
		if err := ctx.Err(); err != nil {
			buildErr = err
			break
		}
		if err := b.runStage(ctx, log, report, st); err != nil {
			buildErr = err
			break
		}
	}

	report.Duration = time.Since(report.Start)
	b.options.Recorder.ObserveBuildDuration(report.Duration)

	if buildErr != nil {
		report.Outcome = OutcomeFailed
		report.Error = buildErr.Error()
		span.RecordError(buildErr)
		span.SetStatus(codes.Error, buildErr.Error())
		log.Info("build failed", logfields.Duration(report.Duration), logfields.Error(buildErr))
	} else {
		span.SetStatus(codes.Ok, "")
		log.Info("build finished", logfields.Duration(report.Duration))
	}
	b.options.Recorder.IncBuildOutcome(string(report.Outcome))

	return report, buildErr
}

func (b *Builder) runStage(ctx context.Context, log *slog.Logger, report *Report, st stage) error {
	ctx, span := b.tracer.Start(ctx, "nodebuilder.stage."+string(st.name),
		trace.WithAttributes(attribute.String("nodebuilder.stage", string(st.name))))
	defer span.End()

	log = log.With(logfields.Stage(string(st.name)))
	log.Debug("stage started")

	start := time.Now()
	files, err := st.run(ctx, report)
	result := StageResult{
		Name:     st.name,
		Status:   metrics.ResultSuccess,
		Duration: time.Since(start),
	}

	switch {
	case err != nil:
		result.Status = metrics.ResultFailed
		result.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Debug("stage failed", logfields.Duration(result.Duration), logfields.Error(err))
	case files == nil:
		result.Status = metrics.ResultSkipped
		span.SetStatus(codes.Ok, "skipped")
		log.Debug("stage skipped")
	default:
		span.SetStatus(codes.Ok, "")
		for _, target := range files.targets() {
			b.options.Recorder.AddArtifacts(target, len(files[target]))
			result.Artifacts = append(result.Artifacts, files[target]...)
		}
		span.SetAttributes(attribute.Int("nodebuilder.artifacts", len(result.Artifacts)))
		log.Debug("stage finished", logfields.Duration(result.Duration))
	}

	b.options.Recorder.ObserveStageDuration(string(st.name), result.Duration)
	b.options.Recorder.IncStageResult(string(st.name), result.Status)
	report.Stages = append(report.Stages, result)
	if b.options.OnStage != nil {
		b.options.OnStage(result)
	}
	return err
}

func (b *Builder) prepare(ctx context.Context, _ *Report) (artifacts, error) {
	dirs := b.config.Dirs
	if err := fsutil.EmptyDir(dirs.Build); err != nil {
		return nil, errors.New("E200").WithPath(dirs.Build).Wrap(err)
	}
	if err := os.MkdirAll(dirs.Temp, 0o755); err != nil {
		return nil, errors.New("E200").WithPath(dirs.Temp).Wrap(err)
	}
	return artifacts{}, nil
}

func (b *Builder) bundle(ctx context.Context, report *Report) (artifacts, error) {
	start := time.Now()
	b.out.Divider()
	b.out.Info("Running `esbuild`...")

	env := map[string]string{"VERSION": report.Version}
	if report.Commit != "" {
		env["COMMIT"] = report.Commit
	}

	res, err := b.options.Bundler.Bundle(ctx, bundle.Request{
		Entry:     b.config.EntryPath(),
		SourceDir: b.config.Dirs.Src,
		Outfile:   b.config.BundlePath(),
		NodeMajor: b.config.NodeMajor(),
		Env:       env,
		Minify:    b.options.Minify,
	})
	if err != nil {
		return nil, err
	}
	if res.Log != "" {
		b.out.Raw(res.Log)
	}
	b.options.Recorder.SetBundleSize(res.Size)
	b.log.Debug("bundle written", logfields.Path(res.Output))

	b.out.Finished(time.Since(start))
	return artifacts{"temp": {res.Output}}, nil
}

func (b *Builder) binaries(ctx context.Context, _ *Report) (artifacts, error) {
	envs := b.config.BinaryEnvironments()
	if len(envs) == 0 {
		return nil, nil
	}

	files := artifacts{}
	for _, env := range envs {
		target := b.config.NodeTarget(env)
		dir := b.config.TargetDir(string(env))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.New("E200").WithPath(dir).Wrap(err)
		}

		b.out.Divider()
		b.out.Info("Creating binary for '%s'...", target)
		start := time.Now()

		res, err := b.options.Compiler.Compile(ctx, compile.Request{
			Input:  b.config.BundlePath(),
			Output: filepath.Join(dir, b.config.Shortcut),
			Target: target,
			Dir:    b.config.Dirs.Build,
		})
		if err != nil {
			return nil, err
		}
		b.log.Debug("binary written", logfields.Target(target), logfields.Path(res.Output))
		files.add(string(env), res.Output)

		out, err := emit.CopyRules(ctx, b.config, dir, b.out)
		if err != nil {
			return nil, err
		}
		files.add(string(env), out.Files...)
		b.out.Finished(time.Since(start))
	}
	return files, nil
}

func (b *Builder) node(ctx context.Context, _ *Report) (artifacts, error) {
	return b.emit("Creating 'Node.js' package...", emit.NodeDir, func() (*emit.Output, error) {
		return emit.NodePackage(ctx, b.config, b.out)
	})
}

func (b *Builder) docker(ctx context.Context, _ *Report) (artifacts, error) {
	if !b.config.HasEnvironment(config.EnvDocker) {
		return nil, nil
	}
	return b.emit("Creating 'Docker' container...", emit.DockerDir, func() (*emit.Output, error) {
		return emit.DockerContext(ctx, b.config, b.out)
	})
}

func (b *Builder) linux(ctx context.Context, _ *Report) (artifacts, error) {
	if !b.config.HasEnvironment(config.EnvLinuxX64) {
		return nil, nil
	}
	msg := "Creating service daemon for 'linux-x64'..."
	return b.emit(msg, string(config.EnvLinuxX64), func() (*emit.Output, error) {
		return emit.LinuxService(b.config, b.out)
	})
}

func (b *Builder) windows(ctx context.Context, _ *Report) (artifacts, error) {
	if !b.config.HasEnvironment(config.EnvWindowsX64) {
		return nil, nil
	}

	path, err := b.options.WinSW.EnsureInstalled(ctx, func(msg string) {
		b.out.Info("%s", msg)
	})
	if err != nil {
		if b.options.Offline && errors.CodeOf(err) == "E304" {
			b.out.Warn("WinSW is not available offline, skipping the Windows service.")
			b.log.Warn("windows service skipped", logfields.Error(err))
			return nil, nil
		}
		return nil, err
	}

	msg := "Creating service daemon for 'windows-x64'..."
	return b.emit(msg, string(config.EnvWindowsX64), func() (*emit.Output, error) {
		return emit.WindowsService(b.config, path, b.out)
	})
}

func (b *Builder) publish(ctx context.Context, report *Report) (artifacts, error) {
	if b.options.Publisher == nil {
		return nil, nil
	}

	b.out.Divider()
	b.out.Info("Publishing `%s`...", b.config.Dirs.Build)
	start := time.Now()

	objects, err := b.options.Publisher.Publish(ctx, b.config.Dirs.Build, report.Version, b.config.Dirs.Temp)
	if err != nil {
		return nil, err
	}
	files := artifacts{}
	for _, obj := range objects {
		files.add("publish", obj.Key)
	}
	b.out.Ok("Uploaded %d files in %ss", len(objects), console.Seconds(time.Since(start)))
	return files, nil
}

func (b *Builder) cleanup(ctx context.Context, _ *Report) (artifacts, error) {
	if b.options.KeepTemp {
		b.out.Info("Temp directory kept at `%s`.", b.config.Dirs.Temp)
		return nil, nil
	}
	if err := os.RemoveAll(b.config.Dirs.Temp); err != nil {
		return nil, errors.New("E203").WithPath(b.config.Dirs.Temp).Wrap(err)
	}
	return artifacts{}, nil
}

// emit runs an emitter framed by a divider and its duration.
func (b *Builder) emit(msg, target string, fn func() (*emit.Output, error)) (artifacts, error) {
	b.out.Divider()
	b.out.Info("%s", msg)
	start := time.Now()

	out, err := fn()
	if err != nil {
		return nil, err
	}

	b.out.Finished(time.Since(start))
	return artifacts{target: out.Files}, nil
}
