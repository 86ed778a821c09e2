package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/joho/godotenv"

	"github.com/nodebuilder-go/nodebuilder/internal/errors"
)

const (
	// ManifestFileName is the name of the project manifest.
	ManifestFileName = "package.json"

	// EnvFileName is loaded from the project directory before a build.
	EnvFileName = ".env"

	// DefaultTempDir is the temp directory name inside the build directory.
	DefaultTempDir = "temp"

	// DefaultServiceRoot is where the Linux installer places the binary.
	DefaultServiceRoot = "/srv/invipo"

	// Docker defaults.
	DefaultDockerImage   = "node:10-alpine"
	DefaultDockerWorkdir = "/usr/src/app"
	DefaultDockerRestart = RestartAlways
)

// Environment is a build target.
type Environment string

const (
	EnvLinuxX64   Environment = "linux-x64"
	EnvWindowsX64 Environment = "windows-x64"
	EnvDocker     Environment = "docker"
)

// Valid reports whether e is a supported environment.
func (e Environment) Valid() bool {
	switch e {
	case EnvLinuxX64, EnvWindowsX64, EnvDocker:
		return true
	}
	return false
}

// Restart is a docker compose restart policy.
type Restart string

const (
	RestartNo            Restart = "no"
	RestartAlways        Restart = "always"
	RestartOnFailure     Restart = "on-failure"
	RestartUnlessStopped Restart = "unless-stopped"
)

// Valid reports whether r is a supported restart policy.
func (r Restart) Valid() bool {
	switch r {
	case RestartNo, RestartAlways, RestartOnFailure, RestartUnlessStopped:
		return true
	}
	return false
}

// Dirs holds the absolute source, build and temp directories.
type Dirs struct {
	Build string `json:"build"`
	Src   string `json:"src"`
	Temp  string `json:"temp,omitempty"`
}

// CopyRule copies From (relative to the project) to To (relative to each target directory).
type CopyRule struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Volume is a compose volume mapping.
type Volume struct {
	HostPath    string `json:"hostPath"`
	ServicePath string `json:"servicePath"`
}

// Port is a compose port mapping.
type Port struct {
	HostPort      int `json:"hostPort"`
	ContainerPort int `json:"containerPort"`
}

// DockerConfig describes the generated image and compose service.
type DockerConfig struct {
	Externals []string `json:"externals,omitempty"`
	Image     string   `json:"image,omitempty"`
	Workdir   string   `json:"workdir,omitempty"`
	Run       []string `json:"run,omitempty"`
	Cmd       string   `json:"cmd,omitempty"`
	Restart   Restart  `json:"restart,omitempty"`
	Volumes   []Volume `json:"volumes,omitempty"`
	Ports     []Port   `json:"ports,omitempty"`
}

// ServiceConfig configures the Linux systemd installer.
type ServiceConfig struct {
	// Root is the directory under which the service is installed.
	Root string `json:"root,omitempty"`
}

// WinSWConfig locates the Windows service wrapper.
type WinSWConfig struct {
	// Path is a local WinSW executable. Takes precedence over downloads.
	Path string `json:"path,omitempty"`

	// Version is the WinSW release to download.
	Version string `json:"version,omitempty"`
}

// S3Config is the upload destination for published builds.
type S3Config struct {
	Bucket    string `json:"bucket"`
	Prefix    string `json:"prefix,omitempty"`
	Region    string `json:"region,omitempty"`
	Endpoint  string `json:"endpoint,omitempty"`
	PathStyle bool   `json:"pathStyle,omitempty"`

	// Concurrency is the number of parallel uploads. Zero uses the default.
	Concurrency int `json:"concurrency,omitempty"`
}

// PublishConfig configures where finished builds are uploaded.
type PublishConfig struct {
	S3 *S3Config `json:"s3,omitempty"`
}

// builderSection is the raw `builder` block of package.json.
type builderSection struct {
	Dirs         Dirs          `json:"dirs"`
	Node         string        `json:"node"`
	Entry        string        `json:"entry"`
	Copy         []CopyRule    `json:"copy"`
	Environments []Environment `json:"environments"`
	Docker       *DockerConfig `json:"docker"`
	Service      ServiceConfig `json:"service"`
	WinSW        WinSWConfig   `json:"winsw"`
	Publish      PublishConfig `json:"publish"`
}

type manifest struct {
	Name    string         `json:"name"`
	Version string         `json:"version"`
	Builder builderSection `json:"builder"`
}

// Config is the validated build configuration. It is not modified after Load returns.
type Config struct {
	// Name is the package name as written in package.json.
	Name string

	// Shortcut is the package name without its npm scope.
	Shortcut string

	// Version is the package version.
	Version string

	// Entry is the bundle entry, relative to Dirs.Src.
	Entry string

	// Node is the Node.js version binaries are compiled against.
	Node string

	// Dirs holds absolute directories.
	Dirs Dirs

	// Copy lists auxiliary files copied into every target directory.
	// From is absolute after loading.
	Copy []CopyRule

	// Environments lists the requested targets in declaration order.
	Environments []Environment

	// Docker is nil when the manifest has no docker block.
	Docker *DockerConfig

	Service ServiceConfig
	WinSW   WinSWConfig
	Publish PublishConfig

	path     string
	warnings []string
}

// Load reads package.json from dir.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ManifestFileName))
}

// LoadFile reads, validates and normalizes the manifest at path.
// Nothing is written to disk.
func LoadFile(path string) (*Config, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.New("E100").WithPath(path).Wrap(err)
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E100").
				WithPath(abs).
				WithDetail("No package.json found in " + filepath.Dir(abs))
		}
		return nil, errors.New("E101").WithPath(abs).Wrap(err)
	}

	return Parse(data, filepath.Dir(abs))
}

// Parse validates manifest bytes. Relative paths resolve against projectDir.
func Parse(data []byte, projectDir string) (*Config, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.New("E101").WithDetail(err.Error())
	}
	if err := Validate(raw); err != nil {
		return nil, err
	}

	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.New("E113").Wrap(err)
	}

	cfg := &Config{
		Name:     m.Name,
		Shortcut: Shortcut(m.Name),
		Version:  m.Version,
		Entry:    m.Builder.Entry,
		Node:     m.Builder.Node,
		Docker:   m.Builder.Docker,
		Service:  m.Builder.Service,
		WinSW:    m.Builder.WinSW,
		Publish:  m.Builder.Publish,
		path:     filepath.Join(projectDir, ManifestFileName),
	}

	cfg.Dirs = resolveDirs(projectDir, m.Builder.Dirs)

	for _, env := range m.Builder.Environments {
		if !env.Valid() {
			return nil, errors.New("E110").WithDetail("Got `" + string(env) + "`.")
		}
		if !cfg.HasEnvironment(env) {
			cfg.Environments = append(cfg.Environments, env)
		}
	}

	if cfg.Docker != nil && cfg.Docker.Restart != "" && !cfg.Docker.Restart.Valid() {
		return nil, errors.New("E111").WithDetail("Got `" + string(cfg.Docker.Restart) + "`.")
	}

	for _, rule := range m.Builder.Copy {
		if rule.From == "" || rule.To == "" {
			return nil, errors.New("E112")
		}
		from := rule.From
		if !filepath.IsAbs(from) {
			from = filepath.Join(projectDir, from)
		}
		cfg.Copy = append(cfg.Copy, CopyRule{From: from, To: rule.To})
	}

	if cfg.WinSW.Path != "" && !filepath.IsAbs(cfg.WinSW.Path) {
		cfg.WinSW.Path = filepath.Join(projectDir, cfg.WinSW.Path)
	}
	if cfg.Service.Root == "" {
		cfg.Service.Root = DefaultServiceRoot
	}

	if err := cfg.checkDirs(projectDir); err != nil {
		return nil, err
	}

	cfg.collectWarnings()
	return cfg, nil
}

// Validate checks the required manifest fields in a fixed order and returns
// the first failure.
func Validate(raw map[string]any) error {
	builder, ok := raw["builder"].(map[string]any)
	if !ok {
		return errors.New("E102")
	}
	dirs, ok := builder["dirs"].(map[string]any)
	if !ok {
		return errors.New("E103")
	}

	checks := []struct {
		value any
		code  string
	}{
		{raw["name"], "E104"},
		{raw["version"], "E105"},
		{builder["entry"], "E106"},
		{builder["node"], "E107"},
		{dirs["build"], "E108"},
		{dirs["src"], "E109"},
	}
	for _, c := range checks {
		if isEmptyString(c.value) {
			return errors.New(c.code)
		}
	}
	return nil
}

func isEmptyString(v any) bool {
	s, ok := v.(string)
	return !ok || s == ""
}

// Shortcut strips the npm scope from a package name.
func Shortcut(name string) string {
	if i := strings.Index(name, "/"); i >= 0 {
		return name[i+1:]
	}
	return name
}

func resolveDirs(projectDir string, d Dirs) Dirs {
	abs := func(p string) string {
		if filepath.IsAbs(p) {
			return filepath.Clean(p)
		}
		return filepath.Join(projectDir, p)
	}
	out := Dirs{
		Build: abs(d.Build),
		Src:   abs(d.Src),
	}
	if d.Temp != "" {
		out.Temp = abs(d.Temp)
	} else {
		out.Temp = filepath.Join(out.Build, DefaultTempDir)
	}
	return out
}

// checkDirs rejects layouts where emptying the build directory or removing
// the temp directory would destroy project files.
func (c *Config) checkDirs(projectDir string) error {
	project := filepath.Clean(projectDir)
	if c.Dirs.Build == project || within(project, c.Dirs.Build) {
		return errors.New("E115").WithPath(c.Dirs.Build)
	}
	if c.Dirs.Src == c.Dirs.Build || within(c.Dirs.Src, c.Dirs.Build) {
		return errors.New("E115").WithPath(c.Dirs.Build)
	}
	if c.Dirs.Temp == c.Dirs.Build || c.Dirs.Temp == c.Dirs.Src ||
		c.Dirs.Temp == project || within(c.Dirs.Src, c.Dirs.Temp) || within(project, c.Dirs.Temp) {
		return errors.New("E114").WithPath(c.Dirs.Temp)
	}
	return nil
}

// within reports whether child is inside parent.
func within(child, parent string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (c *Config) collectWarnings() {
	if _, err := semver.NewVersion(c.Version); err != nil {
		c.warnings = append(c.warnings, "`version` \""+c.Version+"\" is not a semantic version")
	}
	if _, err := semver.StrictNewVersion(c.Node); err != nil {
		c.warnings = append(c.warnings, "`builder.node` \""+c.Node+"\" is not a full Node.js version (e.g. 12.18.2); nexe may not find a prebuilt binary")
	}
	if c.HasEnvironment(EnvDocker) && c.Docker == nil {
		c.warnings = append(c.warnings, "`builder.docker` is not set; using image "+DefaultDockerImage)
	}
}

// Warnings returns non-fatal findings about the manifest.
func (c *Config) Warnings() []string {
	return c.warnings
}

// Path returns the manifest path.
func (c *Config) Path() string {
	return c.path
}

// Dir returns the project directory.
func (c *Config) Dir() string {
	if c.path == "" {
		return ""
	}
	return filepath.Dir(c.path)
}

// HasEnvironment reports whether env was requested.
func (c *Config) HasEnvironment(env Environment) bool {
	for _, e := range c.Environments {
		if e == env {
			return true
		}
	}
	return false
}

// BinaryEnvironments returns the requested environments that need a native
// binary, in declaration order.
func (c *Config) BinaryEnvironments() []Environment {
	var envs []Environment
	for _, e := range c.Environments {
		if e != EnvDocker {
			envs = append(envs, e)
		}
	}
	return envs
}

// BundleName is the file name of the JavaScript bundle.
func (c *Config) BundleName() string {
	return c.Shortcut + ".js"
}

// BundlePath is the bundle inside the temp directory.
func (c *Config) BundlePath() string {
	return filepath.Join(c.Dirs.Temp, c.BundleName())
}

// EntryPath is the absolute bundle entry point.
func (c *Config) EntryPath() string {
	return filepath.Join(c.Dirs.Src, c.Entry)
}

// TargetDir returns the output directory for a target inside the build directory.
func (c *Config) TargetDir(name string) string {
	return filepath.Join(c.Dirs.Build, name)
}

// NodeTarget returns the compiler target for env, e.g. "linux-x64-12.18.2".
func (c *Config) NodeTarget(env Environment) string {
	return string(env) + "-" + c.Node
}

// NodeMajor returns the major Node.js version, or 0 if Node does not parse.
func (c *Config) NodeMajor() uint64 {
	v, err := semver.NewVersion(c.Node)
	if err != nil {
		return 0
	}
	return v.Major()
}

// BundleVersion is the VERSION compiled into the bundle: npm_package_version,
// then VERSION from the environment, then the manifest version.
func (c *Config) BundleVersion() string {
	if v := os.Getenv("npm_package_version"); v != "" {
		return v
	}
	if v := os.Getenv("VERSION"); v != "" {
		return v
	}
	return c.Version
}

// DockerSettings returns the docker block with defaults applied.
func (c *Config) DockerSettings() DockerConfig {
	var d DockerConfig
	if c.Docker != nil {
		d = *c.Docker
	}
	if d.Image == "" {
		d.Image = DefaultDockerImage
	}
	if d.Workdir == "" {
		d.Workdir = DefaultDockerWorkdir
	}
	if d.Cmd == "" {
		d.Cmd = `["node","` + c.BundleName() + `"]`
	}
	if d.Restart == "" {
		d.Restart = DefaultDockerRestart
	}
	return d
}

// ServiceDir is the install directory of the Linux service.
func (c *Config) ServiceDir() string {
	return strings.TrimRight(c.Service.Root, "/") + "/" + c.Shortcut
}

// LoadDotEnv loads .env from dir into the process environment without
// overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(dir string) error {
	path := filepath.Join(dir, EnvFileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return errors.New("E101").WithPath(path).Wrap(err)
	}
	return nil
}

// FindProjectRoot walks up from dir looking for package.json.
func FindProjectRoot(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, ManifestFileName)); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("E100").
				WithDetail("Could not find package.json in any parent directory")
		}
		dir = parent
	}
}
