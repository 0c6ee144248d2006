package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/grantbridge/vetting-cli/internal/matcher"
	"github.com/grantbridge/vetting-cli/internal/profile"
	"github.com/grantbridge/vetting-cli/internal/store"
	"github.com/grantbridge/vetting-cli/internal/vetting"
	"github.com/grantbridge/vetting-cli/pkg/courtlistener"
	"github.com/grantbridge/vetting-cli/pkg/propublica"
)

// vetter is the pipeline surface the vet, batch, and serve commands use.
type vetter interface {
	Vet(ctx context.Context, ein string, opts vetting.VetOptions) (*vetting.VetOutcome, error)
}

// vetEnv holds the initialized store and pipeline the vetting commands
// share.
type vetEnv struct {
	Store    store.Store
	Pipeline *vetting.Pipeline
}

// Close releases resources held by the environment.
func (e *vetEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore opens the configured database backend.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.Store.SQLitePath
		if path == "" {
			path = "vetting.db"
		}
		return store.NewSQLite(path)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initVetting sets up the store, the sanctions matcher, the API clients,
// and the decision pipeline. Callers should defer env.Close().
func initVetting(ctx context.Context) (*vetEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	sanctions, err := st.AllSanctions(ctx)
	if err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "load sanctions snapshot")
	}
	m := matcher.New(sanctions)
	if m.Size() == 0 {
		zap.L().Warn("sanctions list is empty, run `vetting-cli ingest sanctions` first")
	} else {
		zap.L().Info("sanctions matcher ready",
			zap.Int("entities", len(sanctions)),
			zap.Int("name_forms", m.Size()),
		)
	}

	var policy *vetting.PortfolioPolicy
	if cfg.Portfolio.Enabled {
		policy, err = vetting.LoadPolicy(cfg.Portfolio.PolicyPath)
		if err != nil {
			_ = st.Close()
			return nil, eris.Wrap(err, "load portfolio policy")
		}
	}

	// Court-records search is optional; without a token the red-flag rule
	// is skipped.
	var courts vetting.CourtRecordsLookup
	if cfg.CourtListener.Token != "" {
		courts = profile.NewCourtRecords(courtlistener.NewClient(
			cfg.CourtListener.Token,
			courtlistener.WithBaseURL(cfg.CourtListener.BaseURL),
		))
		zap.L().Info("court records search enabled")
	} else {
		zap.L().Debug("VETTING_COURTLISTENER_TOKEN not set, court records rule disabled")
	}

	gates := vetting.NewGateEngine(cfg.Screening, st, m, policy, cfg.Portfolio.Enabled)
	scoring := vetting.NewScoringEngine(cfg.Scoring)
	flags := vetting.NewRedFlagDetector(cfg.RedFlags, m, courts)

	registry := propublica.NewClient(propublica.WithBaseURL(cfg.ProPublica.BaseURL))
	builder := profile.NewBuilder(registry)

	return &vetEnv{
		Store:    st,
		Pipeline: vetting.NewPipeline(builder, st, gates, scoring, flags, cfg.Cache),
	}, nil
}
