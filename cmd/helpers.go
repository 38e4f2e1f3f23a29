package cmd

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mellobo05/Ai-Assisted-Debug/internal/analysis"
	"github.com/mellobo05/Ai-Assisted-Debug/internal/config"
	"github.com/mellobo05/Ai-Assisted-Debug/internal/db"
	"github.com/mellobo05/Ai-Assisted-Debug/internal/embeddings"
	"github.com/mellobo05/Ai-Assisted-Debug/internal/external"
	"github.com/mellobo05/Ai-Assisted-Debug/internal/issues"
	"github.com/mellobo05/Ai-Assisted-Debug/internal/logging"
	"github.com/mellobo05/Ai-Assisted-Debug/internal/orchestrator"
	"github.com/mellobo05/Ai-Assisted-Debug/internal/runs"
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `aidebug init` to create a config file", err)
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgFile, err)
	}
	return cfg, nil
}

// app holds the collaborators shared by the commands.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	db       *db.DB
	issues   *issues.Store
	runs     *runs.Store
	embedder *embeddings.Service
}

func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Log, nil)
	if err != nil {
		return nil, err
	}
	database, err := db.Open(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", cfg.DatabasePath, err)
	}
	embedder, err := embeddings.NewServiceFromConfig(cfg.Embedding, logger)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	return &app{
		cfg:      cfg,
		logger:   logger,
		db:       database,
		issues:   issues.NewStore(database),
		runs:     runs.NewStore(database),
		embedder: embedder,
	}, nil
}

// pipeline builds the analysis orchestrator. The external client is always
// attached so a request can opt in even when the config default is off.
func (a *app) pipeline() (*orchestrator.Orchestrator, error) {
	return orchestrator.New(a.cfg.Pipeline, orchestrator.Deps{
		Issues:   a.issues,
		Embedder: a.embedder,
		External: external.NewClient(a.cfg.Pipeline.ExternalBaseURL, a.cfg.Pipeline.ExternalTimeout, a.logger),
		Renderer: analysis.NewRenderer(a.cfg.LLM, a.logger),
		Runs:     a.runs,
		Logger:   a.logger,
	})
}

func (a *app) Close() {
	_ = a.logger.Sync()
	a.db.Close()
}
