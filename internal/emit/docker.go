package emit

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/nodebuilder-go/nodebuilder/internal/config"
	"github.com/nodebuilder-go/nodebuilder/internal/console"
	"github.com/nodebuilder-go/nodebuilder/internal/errors"
)

const (
	// DockerDir is the target directory name of the image context.
	DockerDir = "docker"

	DockerfileName = "Dockerfile"
	ComposeName    = "docker-compose.yml"

	// ComposeVersion is the compose file format version.
	ComposeVersion = "3.7"
)

var dockerfileTmpl = template.Must(template.New("Dockerfile").Funcs(funcs).Parse(
	`FROM {{.Image}}
{{- if .Run}}
RUN {{join .Run " \\\n    && "}}
{{- end}}
WORKDIR "{{.Workdir}}"
COPY . .
{{- range .Ports}}
EXPOSE {{.ContainerPort}}
{{- end}}
CMD {{.Cmd}}
`))

// Dockerfile renders the Dockerfile for cfg.
func Dockerfile(cfg *config.Config) (string, error) {
	return render(dockerfileTmpl, cfg.DockerSettings())
}

// ComposeFile is the generated docker-compose.yml.
type ComposeFile struct {
	Version  string                    `yaml:"version"`
	Services map[string]ComposeService `yaml:"services"`
}

// ComposeService is the single service of the compose file.
type ComposeService struct {
	Build         string   `yaml:"build"`
	Image         string   `yaml:"image"`
	ContainerName string   `yaml:"container_name"`
	Restart       string   `yaml:"restart"`
	Volumes       []string `yaml:"volumes,omitempty"`
	Ports         []string `yaml:"ports,omitempty"`
	ExternalLinks []string `yaml:"external_links,omitempty"`
}

// Compose builds the compose document for cfg.
func Compose(cfg *config.Config) ComposeFile {
	d := cfg.DockerSettings()
	svc := ComposeService{
		Build:         "./",
		Image:         cfg.Shortcut + ":" + cfg.Version,
		ContainerName: cfg.Shortcut,
		Restart:       string(d.Restart),
		ExternalLinks: d.Externals,
	}
	for _, v := range d.Volumes {
		svc.Volumes = append(svc.Volumes, v.HostPath+":"+v.ServicePath)
	}
	for _, p := range d.Ports {
		svc.Ports = append(svc.Ports, fmt.Sprintf("%d:%d", p.HostPort, p.ContainerPort))
	}
	return ComposeFile{
		Version:  ComposeVersion,
		Services: map[string]ComposeService{cfg.Shortcut: svc},
	}
}

// MarshalCompose renders the compose document as YAML.
func MarshalCompose(c ComposeFile) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DockerContext writes <build>/docker: the bundle, the copy rules, a
// Dockerfile and docker-compose.yml.
func DockerContext(ctx context.Context, cfg *config.Config, log *console.Console) (*Output, error) {
	out := &Output{Dir: cfg.TargetDir(DockerDir)}
	if err := copyBundle(ctx, cfg, out.Dir, log, out); err != nil {
		return nil, err
	}

	dockerfile, err := Dockerfile(cfg)
	if err != nil {
		return nil, errors.New("E202").WithPath(DockerfileName).Wrap(err)
	}
	dockerfilePath := filepath.Join(out.Dir, DockerfileName)
	if err := writeArtifact(dockerfilePath, []byte(dockerfile), 0o644); err != nil {
		return nil, err
	}
	log.Info("Dockerfile saved to `%s`.", dockerfilePath)
	out.add(dockerfilePath)

	compose, err := MarshalCompose(Compose(cfg))
	if err != nil {
		return nil, errors.New("E202").WithPath(ComposeName).Wrap(err)
	}
	composePath := filepath.Join(out.Dir, ComposeName)
	if err := writeArtifact(composePath, compose, 0o644); err != nil {
		return nil, err
	}
	log.Info("Docker compose file saved to `%s`.", composePath)
	out.add(composePath)

	return out, nil
}
