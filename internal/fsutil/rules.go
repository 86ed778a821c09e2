package fsutil

import (
	"context"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/nodebuilder-go/nodebuilder/internal/config"
	"github.com/nodebuilder-go/nodebuilder/internal/errors"
)

// Copied describes one completed copy.
type Copied struct {
	From string
	To   string
}

// CopyRules copies every rule whose source exists into targetDir. Missing
// sources are skipped. Copies run concurrently; the first failure cancels
// the remaining ones and is returned. onCopied, if set, may be called from
// several goroutines.
func CopyRules(ctx context.Context, rules []config.CopyRule, targetDir string, onCopied func(Copied)) ([]Copied, error) {
	var jobs []Copied
	for _, rule := range rules {
		ok, err := Exists(rule.From)
		if err != nil {
			return nil, errors.New("E201").WithPath(rule.From).Wrap(err)
		}
		if !ok {
			continue
		}
		jobs = append(jobs, Copied{From: rule.From, To: filepath.Join(targetDir, rule.To)})
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, job := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := Copy(gctx, job.From, job.To); err != nil {
				return errors.New("E201").WithPath(job.From).Wrap(err)
			}
			if onCopied != nil {
				onCopied(job)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return jobs, nil
}
