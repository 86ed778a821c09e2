package emit

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/nodebuilder-go/nodebuilder/internal/config"
	"github.com/nodebuilder-go/nodebuilder/internal/console"
	"github.com/nodebuilder-go/nodebuilder/internal/errors"
	"github.com/nodebuilder-go/nodebuilder/internal/fsutil"
)

// Output lists what an emitter wrote.
type Output struct {
	// Dir is the target directory.
	Dir string

	// Files are the written paths, in the order they were produced.
	Files []string
}

func (o *Output) add(paths ...string) {
	o.Files = append(o.Files, paths...)
}

var funcs = template.FuncMap{
	"join": strings.Join,
}

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// writeArtifact writes content to path, replacing any previous file.
func writeArtifact(path string, content []byte, perm os.FileMode) error {
	if err := fsutil.WriteFile(path, content, perm); err != nil {
		return errors.New("E202").WithPath(path).Wrap(err)
	}
	return nil
}

// copyBundle copies the bundle into dir and applies the copy rules there.
func copyBundle(ctx context.Context, cfg *config.Config, dir string, log *console.Console, out *Output) error {
	app := filepath.Join(dir, cfg.BundleName())
	if err := fsutil.CopyFile(cfg.BundlePath(), app); err != nil {
		return errors.New("E201").WithPath(cfg.BundlePath()).Wrap(err)
	}
	log.Info("App copied to `%s`.", app)
	out.add(app)

	return copyRules(ctx, cfg, dir, log, out)
}

// copyRules copies the configured auxiliary files into dir.
func copyRules(ctx context.Context, cfg *config.Config, dir string, log *console.Console, out *Output) error {
	copied, err := fsutil.CopyRules(ctx, cfg.Copy, dir, func(c fsutil.Copied) {
		log.Info("File `%s` copied to `%s`.", c.From, c.To)
	})
	if err != nil {
		return err
	}
	for _, c := range copied {
		out.add(c.To)
	}
	return nil
}

// CopyRules applies the configured copy rules to dir, reporting each copy.
// Binary targets use it after compiling.
func CopyRules(ctx context.Context, cfg *config.Config, dir string, log *console.Console) (*Output, error) {
	out := &Output{Dir: dir}
	if err := copyRules(ctx, cfg, dir, log, out); err != nil {
		return nil, err
	}
	return out, nil
}
