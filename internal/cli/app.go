/*
Package cli implements the planning-agent commands.

Every command wires the same stack: configuration, the SQLite store, the
policy engine, and the feedback coordinator. serve additionally runs the
REST API with graceful shutdown.
*/
package cli

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/epmlabs/planning-agent/internal/config"
	"github.com/epmlabs/planning-agent/internal/feedback"
	"github.com/epmlabs/planning-agent/internal/policy"
	"github.com/epmlabs/planning-agent/internal/reward"
	"github.com/epmlabs/planning-agent/internal/storage"
)

// app bundles the wired components a command operates on.
type app struct {
	cfg         *config.Config
	log         *zap.Logger
	store       *storage.SQLiteStore
	engine      *policy.Engine
	coordinator *feedback.Coordinator
}

// newApp loads configuration and wires the full component stack. Callers
// must invoke close when done.
func newApp(configPath string, verbose bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logCfg := zap.NewProductionConfig()
	if verbose {
		logCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	log, err := logCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}

	store, err := storage.Open(cfg.Database.Path, log.Named("storage"))
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	engine, err := policy.NewEngine(store, policy.Config{
		Enabled:         cfg.RL.Enabled,
		LearningRate:    cfg.RL.LearningRate,
		DiscountFactor:  cfg.RL.DiscountFactor,
		ExplorationRate: cfg.RL.ExplorationRate,
		MinSamples:      cfg.RL.MinSamples,
	}, log.Named("policy"))
	if err != nil {
		store.Close()
		log.Sync()
		return nil, err
	}

	calc := reward.NewCalculator(reward.DefaultWeights())
	coordinator := feedback.NewCoordinator(store, calc, engine, log.Named("feedback"))

	return &app{
		cfg:         cfg,
		log:         log,
		store:       store,
		engine:      engine,
		coordinator: coordinator,
	}, nil
}

// close releases the app's resources.
func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.log.Warn("closing storage", zap.Error(err))
	}
	a.log.Sync()
}
