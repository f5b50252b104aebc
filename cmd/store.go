package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/spear-sync/internal/fetcher"
	"github.com/sells-group/spear-sync/internal/store"
	"github.com/sells-group/spear-sync/pkg/spear"
)

// initStore opens the configured store and brings its schema up to date.
func initStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}

	var st store.Store
	switch cfg.Store.Driver {
	case "sqlite":
		s, err := store.NewSQLite(cfg.Store.DatabaseURL)
		if err != nil {
			return nil, err
		}
		st = s
	case "postgres":
		s, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
		if err != nil {
			return nil, err
		}
		st = s
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}

	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

// newSpearClient builds a rate-limited SPEAR client from config.
func newSpearClient() spear.Client {
	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent: cfg.Spear.UserAgent,
		Timeout:   time.Duration(cfg.Spear.TimeoutSecs) * time.Second,
		Rate:      rate.Limit(cfg.Spear.RatePerSec),
		Burst:     cfg.Spear.Burst,
	})

	return spear.NewClient(f,
		spear.WithBaseURL(cfg.Spear.BaseURL),
		spear.WithInfoBaseURL(cfg.Spear.InfoBaseURL),
		spear.WithCredentials(spear.Credentials{
			Username:  cfg.Spear.Username,
			ClientID:  cfg.Spear.ClientID,
			Scope:     cfg.Spear.Scope,
			BasicAuth: cfg.Spear.BasicAuth,
		}),
	)
}
