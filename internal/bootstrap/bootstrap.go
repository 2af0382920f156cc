package bootstrap

import (
	"context"
	"fmt"

	"github.com/kirillkom/archive-assistant/internal/config"
	"github.com/kirillkom/archive-assistant/internal/core/ports"
	"github.com/kirillkom/archive-assistant/internal/core/usecase"
	"github.com/kirillkom/archive-assistant/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/archive-assistant/internal/infrastructure/ocr/httpocr"
	"github.com/kirillkom/archive-assistant/internal/infrastructure/preflight"
	"github.com/kirillkom/archive-assistant/internal/infrastructure/queue/nats"
	"github.com/kirillkom/archive-assistant/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/archive-assistant/internal/infrastructure/resilience"
	"github.com/kirillkom/archive-assistant/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/archive-assistant/internal/infrastructure/translate/libretranslate"
	"github.com/kirillkom/archive-assistant/internal/infrastructure/vector/qdrant"
	"github.com/kirillkom/archive-assistant/internal/observability/metrics"
)

type App struct {
	Config  config.Config
	Lookups config.Lookups

	Queue   *nats.Queue
	Jobs    ports.IngestJobStore
	Tokens  *postgres.TokenRepository
	History ports.ConversationHistory
	Storage ports.ObjectStorage
	Signer  *localfs.URLSigner

	IngestUC  ports.DocumentIngestor
	Workflow  ports.IngestJobRunner
	QueryUC   ports.QueryService
	Resolver  ports.ReferenceResolver
	Analytics ports.AnalyticsRecorder

	HTTPMetrics   *metrics.HTTPServerMetrics
	WorkerMetrics *metrics.WorkerMetrics

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, service string) (*App, error) {
	lookups, err := config.LoadLookups(cfg.LookupsPath)
	if err != nil {
		return nil, fmt.Errorf("load lookups: %w", err)
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	jobs := postgres.NewJobRepository(db)
	tokens := postgres.NewTokenRepository(db)
	turns := postgres.NewConversationRepository(db)
	analytics := postgres.NewAnalyticsRepository(db)

	signer := localfs.NewURLSigner(cfg.PublicBaseURL, cfg.SignedURLSecret)
	storage, err := localfs.New(cfg.StoragePath, signer)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultPolicy())

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	ocrClient := httpocr.New(cfg.OCRURL, httpocr.Options{
		APIKey:             cfg.OCRAPIKey,
		ResilienceExecutor: executor,
	})
	translator := libretranslate.New(cfg.TranslateURL, libretranslate.Options{
		APIKey:             cfg.TranslateAPIKey,
		ResilienceExecutor: executor,
	})

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel)
	embedder := ollama.NewEmbedder(ollamaClient)
	generator := ollama.NewGenerator(ollamaClient)

	vectorClient := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection)
	retriever := qdrant.NewRetriever(embedder, vectorClient)

	inspector := preflight.NewPDFInspector()

	httpMetrics := metrics.NewHTTPServerMetrics(service)
	workerMetrics := metrics.NewWorkerMetrics(service)

	ingestUC := usecase.NewIngestDocumentUseCase(jobs, storage, queue, inspector)
	extractUC := usecase.NewExtractResultUseCase(ocrClient, storage)
	workflow := usecase.NewOCRWorkflow(
		jobs,
		ocrClient,
		extractUC,
		workerMetrics.IngestObserverFor(service),
		cfg.OCRPollInterval,
		cfg.OCRJobDeadline,
	)

	vault := usecase.NewReferenceVault(tokens, storage, cfg.TokenTTL, cfg.AccessURLTTL)
	normalizer := usecase.NewLanguageNormalizer(translator, cfg.CanonicalLanguage)
	queryUC := usecase.NewQueryPipeline(
		usecase.NewDeduplicator(cfg.DedupWindow),
		normalizer,
		retriever,
		generator,
		vault,
		turns,
		analytics,
		lookups,
		httpMetrics.QueryObserverFor(service),
		usecase.QueryPipelineConfig{
			RetrievalTopK:        cfg.RetrievalTopK,
			MaxChunksPerDocument: cfg.MaxChunksPerDocument,
			MinCitedSources:      cfg.MinCitedSources,
		},
	)

	return &App{
		Config:  cfg,
		Lookups: lookups,

		Queue:   queue,
		Jobs:    jobs,
		Tokens:  tokens,
		History: turns,
		Storage: storage,
		Signer:  signer,

		IngestUC:  ingestUC,
		Workflow:  workflow,
		QueryUC:   queryUC,
		Resolver:  vault,
		Analytics: analytics,

		HTTPMetrics:   httpMetrics,
		WorkerMetrics: workerMetrics,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

// JobReader narrows the job repository for the read-only HTTP endpoint.
func (a *App) JobReader() ports.IngestJobReader {
	return a.Jobs
}
