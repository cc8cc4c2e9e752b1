package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/synastry-app/synastry-api/internal/icebreaker"
	"github.com/synastry-app/synastry-api/internal/match"
	"github.com/synastry-app/synastry-api/internal/ranking"
	"github.com/synastry-app/synastry-api/internal/rectify"
	"github.com/synastry-app/synastry-api/internal/store"
	"github.com/synastry-app/synastry-api/pkg/astro"
)

// env holds the initialized store, clients and domain services shared by the
// serve and matchrun commands.
type env struct {
	Store   store.Store
	Astro   astro.Client
	Rectify *rectify.Service
	Actions *match.Actions
	Runner  *match.Runner
	Ranking *ranking.Refresher
}

// Close releases resources held by the environment.
func (e *env) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "synastry.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initEnv sets up the store, the astro client and the domain services.
// Callers should defer env.Close().
func initEnv(ctx context.Context) (*env, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	astroOpts := []astro.Option{
		astro.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Astro.TimeoutSecs) * time.Second}),
	}
	if cfg.Astro.RateLimitRPS > 0 {
		astroOpts = append(astroOpts, astro.WithRateLimit(cfg.Astro.RateLimitRPS))
	}
	astroClient := astro.NewClient(cfg.Astro.BaseURL, astroOpts...)

	var opener match.Icebreaker
	if cfg.Icebreaker.Enabled && cfg.Icebreaker.AnthropicKey != "" {
		opener = icebreaker.New(cfg.Icebreaker.AnthropicKey, cfg.Icebreaker.Model)
		zap.L().Info("icebreaker generation enabled", zap.String("model", cfg.Icebreaker.Model))
	} else {
		zap.L().Debug("icebreaker generation disabled")
	}

	refresher := ranking.NewRefresher(st, astroClient, ranking.Options{
		TTL:               time.Duration(cfg.Ranking.TTLHours) * time.Hour,
		BatchSize:         cfg.Ranking.BatchSize,
		CallTimeout:       time.Duration(cfg.Ranking.CallTimeoutSecs) * time.Second,
		RecomputeCooldown: time.Duration(cfg.Ranking.RecomputeCooldownMin) * time.Minute,
	})

	return &env{
		Store:   st,
		Astro:   astroClient,
		Rectify: rectify.NewService(st, astroClient),
		Actions: match.NewActions(st, opener),
		Runner:  match.NewRunner(st, astroClient, cfg.Match.TopK),
		Ranking: refresher,
	}, nil
}
