// Package app wires configuration into the running components shared by
// the CLI, the worker and the HTTP server.
package app

import (
	"context"
	"fmt"

	"github.com/OFFIS-RIT/kgops/internal/config"
	"github.com/OFFIS-RIT/kgops/internal/db"
	"github.com/OFFIS-RIT/kgops/internal/storage"
	"github.com/OFFIS-RIT/kgops/pkg/ai"
	oai "github.com/OFFIS-RIT/kgops/pkg/ai/ollama"
	gai "github.com/OFFIS-RIT/kgops/pkg/ai/openai"
	"github.com/OFFIS-RIT/kgops/pkg/analytics"
	"github.com/OFFIS-RIT/kgops/pkg/finetune"
	"github.com/OFFIS-RIT/kgops/pkg/graph"
	"github.com/OFFIS-RIT/kgops/pkg/leaselock"
	"github.com/OFFIS-RIT/kgops/pkg/logger"
	"github.com/OFFIS-RIT/kgops/pkg/logger/console"
	"github.com/OFFIS-RIT/kgops/pkg/migration"
	"github.com/OFFIS-RIT/kgops/pkg/store"
	pgxstore "github.com/OFFIS-RIT/kgops/pkg/store/pgx"
	"github.com/OFFIS-RIT/kgops/pkg/training"
	"github.com/OFFIS-RIT/kgops/pkg/transfer"
	"github.com/OFFIS-RIT/kgops/pkg/validation"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type App struct {
	Config config.Config

	Pool      *pgxpool.Pool
	Store     *pgxstore.Storage
	Artifacts store.ArtifactStore
	Locks     *leaselock.Client

	AI    ai.GraphAIClient
	Graph *graph.GraphClient

	Migration  *migration.Engine
	Analytics  *analytics.Service
	Training   *training.Collector
	FineTune   *finetune.Controller
	Validation *validation.Reporter
	Transfer   *transfer.Service
}

// InitLogger installs the console logger configured by cfg.
func InitLogger(cfg config.Config) {
	format := "text"
	if cfg.JSONLogs {
		format = "json"
	}
	logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug:  cfg.Debug,
		Format: format,
	}))
}

// NewAIClient builds the extraction backend selected by cfg.AI.Adapter.
func NewAIClient(cfg config.AIConfig) (ai.GraphAIClient, error) {
	switch cfg.Adapter {
	case "ollama":
		client, err := oai.NewGraphOllamaClient(oai.NewGraphOllamaClientParams{
			DescriptionModel:      cfg.DescriptionModel,
			ExtractionModel:       cfg.ExtractionModel,
			BaseURL:               cfg.ChatURL,
			ApiKey:                cfg.ChatKey,
			MaxConcurrentRequests: int64(cfg.ParallelRequests),
		})
		if err != nil {
			return nil, fmt.Errorf("could not create Ollama client: %w", err)
		}
		return client, nil
	default:
		return gai.NewGraphOpenAIClient(gai.NewGraphOpenAIClientParams{
			DescriptionModel: cfg.DescriptionModel,
			ExtractionModel:  cfg.ExtractionModel,
			ChatURL:          cfg.ChatURL,
			ChatKey:          cfg.ChatKey,
		}), nil
	}
}

// New connects to Postgres and S3 and builds every service.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	pool, err := db.Connect(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		return nil, err
	}
	artifacts, err := storage.NewS3Store(ctx, cfg.S3)
	if err != nil {
		pool.Close()
		return nil, err
	}
	aiClient, err := NewAIClient(cfg.AI)
	if err != nil {
		pool.Close()
		return nil, err
	}

	a, err := build(cfg, pool, pgxstore.NewStorage(pool), artifacts, aiClient)
	if err != nil {
		pool.Close()
		return nil, err
	}
	a.Locks = leaselock.New(pool)
	return a, nil
}

func build(cfg config.Config, pool *pgxpool.Pool, st *pgxstore.Storage, artifacts store.ArtifactStore, aiClient ai.GraphAIClient) (*App, error) {
	graphClient, err := graph.NewGraphClient(graph.NewGraphClientParams{
		MaxTokens:             cfg.AI.MaxTokens,
		ParallelAiRequests:    cfg.AI.ParallelRequests,
		MaxRetries:            cfg.AI.MaxRetries,
		EntityTypes:           cfg.AI.EntityTypes,
		SummarizeDescriptions: cfg.AI.Summarize,
		AIClient:              aiClient,
		Store:                 st,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create graph client: %w", err)
	}

	parallel := 1
	if cfg.Migration.Parallel {
		parallel = cfg.Migration.Workers
	}

	collector := training.NewCollector(training.NewCollectorParams{
		Interactions: st,
		Graphs:       st,
		Artifacts:    artifacts,
		Defaults:     cfg.Training,
		NewID:        uuid.NewString,
	})

	fineTuneKey := cfg.AI.FineTuneKey
	if fineTuneKey == "" {
		fineTuneKey = cfg.AI.ChatKey
	}
	provider := gai.NewFineTuneProvider(gai.NewFineTuneProviderParams{
		URL:             cfg.AI.FineTuneURL,
		Key:             fineTuneKey,
		BaseModel:       cfg.AI.FineTuneBaseModel,
		EvalConcurrency: cfg.FineTune.EvalConcurrency,
	})

	return &App{
		Config:    cfg,
		Pool:      pool,
		Store:     st,
		Artifacts: artifacts,
		AI:        aiClient,
		Graph:     graphClient,
		Migration: migration.NewEngine(migration.NewEngineParams{
			Documents:   st,
			Extractor:   graphClient,
			Parallel:    parallel,
			StaleAfter:  cfg.Migration.StaleAfter.Std(),
			ItemTimeout: cfg.Migration.ItemTimeout.Std(),
		}),
		Analytics: analytics.NewService(st),
		Training:  collector,
		FineTune: finetune.NewController(finetune.NewControllerParams{
			Provider:    provider,
			Jobs:        st,
			Artifacts:   artifacts,
			Collector:   collector,
			EvalSamples: cfg.FineTune.EvalSamples,
		}),
		Validation: validation.NewReporter(st, st),
		Transfer:   transfer.NewService(st, st),
	}, nil
}

// PipelineConfig returns the configured gates with the job defaults filled
// in from the fine-tune section.
func (a *App) PipelineConfig() finetune.PipelineConfig {
	p := a.Config.FineTune.Pipeline
	p.Training = a.Config.Training
	if p.Submit.BaseModel == "" {
		p.Submit.BaseModel = a.Config.AI.FineTuneBaseModel
	}
	if p.Submit.Epochs == 0 {
		p.Submit.Epochs = a.Config.FineTune.Epochs
	}
	if p.Submit.LearningRate == 0 {
		p.Submit.LearningRate = a.Config.FineTune.LearningRate
	}
	return p
}

func (a *App) Close() {
	if a.Graph != nil {
		if err := a.Graph.Close(); err != nil {
			logger.Warn("Failed to close graph client", "err", err)
		}
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
}
