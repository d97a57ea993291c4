package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/arogya-labs/rxguard/internal/engine"
	"github.com/arogya-labs/rxguard/internal/kb"
	"github.com/arogya-labs/rxguard/pkg/claude"
	"github.com/arogya-labs/rxguard/pkg/openfda"
)

// checkEnv bundles the store and engine a command needs, with a single
// Close for teardown.
type checkEnv struct {
	Store  kb.Store
	Engine *engine.Engine
}

func (e *checkEnv) Close() {
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("close store", zap.Error(err))
	}
}

// openStore opens the configured knowledge base backend and applies
// migrations.
func openStore(ctx context.Context) (kb.Store, error) {
	var (
		store kb.Store
		err   error
	)
	switch cfg.Store.Driver {
	case "sqlite":
		store, err = kb.NewSQLite(cfg.Store.Path)
	case "postgres":
		store, err = kb.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

// initEngine builds the knowledge cascade and the engine on top of it.
func initEngine(ctx context.Context) (*checkEnv, error) {
	store, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	var remotes []kb.Source
	if cfg.OpenFDA.Enabled {
		remotes = append(remotes, openfda.NewClient(
			openfda.WithBaseURL(cfg.OpenFDA.BaseURL),
			openfda.WithAPIKey(cfg.OpenFDA.Key),
			openfda.WithRateLimit(cfg.OpenFDA.RequestsPerMinute),
		))
	}
	if cfg.Anthropic.Enabled && cfg.Anthropic.Key != "" {
		remotes = append(remotes, claude.NewSource(
			claude.NewMessenger(cfg.Anthropic.Key, claude.WithModel(cfg.Anthropic.Model)),
		))
	}

	cascade := kb.NewCascade(kb.NewStoreSource(store), remotes,
		kb.WithLookupCache(store,
			time.Duration(cfg.Cache.TTLHours)*time.Hour,
			time.Duration(cfg.Cache.NegativeTTLHours)*time.Hour,
		),
	)

	return &checkEnv{
		Store:  store,
		Engine: engine.New(cascade, engine.WithConcurrency(cfg.Resolver.Concurrency)),
	}, nil
}
