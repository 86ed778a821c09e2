package emit

import (
	"context"

	"github.com/nodebuilder-go/nodebuilder/internal/config"
	"github.com/nodebuilder-go/nodebuilder/internal/console"
)

// NodeDir is the target directory name of the plain Node.js package.
const NodeDir = "node"

// NodePackage writes <build>/node: the bundle plus the copy rules.
func NodePackage(ctx context.Context, cfg *config.Config, log *console.Console) (*Output, error) {
	out := &Output{Dir: cfg.TargetDir(NodeDir)}
	if err := copyBundle(ctx, cfg, out.Dir, log, out); err != nil {
		return nil, err
	}
	return out, nil
}
