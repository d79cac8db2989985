// internal/app/app.go
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/oselabs/paperbase/internal/config"
	db "github.com/oselabs/paperbase/internal/core/database"
	"github.com/oselabs/paperbase/internal/core/ingestion_engine"
	"github.com/oselabs/paperbase/internal/core/llm"
	objectclient "github.com/oselabs/paperbase/internal/core/object-client"
	"github.com/oselabs/paperbase/internal/core/vectorindex"
	"github.com/oselabs/paperbase/internal/services"
)

type App struct {
	DBClient   *db.DatabaseClient
	Embedder   *llm.GeminiEmbedder
	Pipeline   *ingestion_engine.Pipeline
	Dispatcher *ingestion_engine.Dispatcher
	Server     *Server
	Logger     *slog.Logger
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	dbClient, err := db.NewDatabaseClient(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("database initialized and ready")

	objClient, err := objectclient.NewS3Client(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("object client initialized and ready")

	geminiEmbedder, err := llm.NewGeminiEmbedder(appCtx, cfg.AIAPIKey, cfg.EmbedModel)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the embedder, %w", err)
	}

	useReadability := false
	documentExtractor := ingestion_engine.NewDocconvExtractor(useReadability)

	index := vectorindex.NewPgVectorIndex(dbClient.DB())

	ingCfg := &ingestion_engine.IngestConfig{
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
		BatchSize:    cfg.EmbedBatchSize,
		Concurrency:  cfg.EmbedConcurrency,
		MaxRetries:   cfg.EmbedMaxRetries,
	}

	pipeline := ingestion_engine.NewPipeline(dbClient, objClient, geminiEmbedder, documentExtractor, index, ingCfg, logger)

	dispatcher, err := ingestion_engine.NewDispatcher(dbClient, pipeline, cfg.QueueSize, cfg.WorkerCount, logger)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the dispatcher, %w", err)
	}

	userService := services.NewUserService(dbClient, objClient, pipeline)
	docService := services.NewDocumentService(dbClient, objClient, pipeline, dispatcher)

	server := NewServer(cfg, userService, docService, pipeline)

	return &App{
		DBClient:   dbClient,
		Embedder:   geminiEmbedder,
		Pipeline:   pipeline,
		Dispatcher: dispatcher,
		Server:     server,
		Logger:     logger,
	}, nil
}

func (a *App) Close() {
	if a.Dispatcher != nil {
		a.Dispatcher.Release()
	}
	if a.Embedder != nil {
		_ = a.Embedder.Close()
	}
	if a.DBClient != nil {
		_ = a.DBClient.Close()
	}
}
