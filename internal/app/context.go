package app

import (
	"context"
	"time"

	"github.com/elishasistemas/elisha-sub002/internal/config"
	"github.com/elishasistemas/elisha-sub002/internal/repo"
)

// ResolveConfig loads the workspace config, falling back to the embedded
// default catalog when elisha.yml is absent, and ensures the company row
// exists in the database.
func ResolveConfig(ctx context.Context, workspace, empresaOverride string, r repo.Repo) (*config.Config, error) {
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		empresaID := empresaOverride
		if empresaID == "" {
			empresaID = "empresa-local"
		}
		cfg = config.Default(empresaID)
	}
	if empresaOverride != "" {
		cfg.Empresa.ID = empresaOverride
	}

	now := time.Now().UTC().Format(time.RFC3339)
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	if err := r.EnsureEmpresa(ctx, tx, cfg.Empresa.ID, cfg.Empresa.Nome, now); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return cfg, nil
}
