package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"maps"

	queueadapter "github.com/kirillkom/notice-extractor/internal/adapters/queue"
	"github.com/kirillkom/notice-extractor/internal/config"
	"github.com/kirillkom/notice-extractor/internal/core/domain"
	"github.com/kirillkom/notice-extractor/internal/core/ports"
	"github.com/kirillkom/notice-extractor/internal/core/usecase"
	"github.com/kirillkom/notice-extractor/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/notice-extractor/internal/infrastructure/queue/nats"
	"github.com/kirillkom/notice-extractor/internal/infrastructure/repository/postgres"
	redisrepo "github.com/kirillkom/notice-extractor/internal/infrastructure/repository/redis"
	"github.com/kirillkom/notice-extractor/internal/infrastructure/resilience"
	"github.com/kirillkom/notice-extractor/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/notice-extractor/internal/infrastructure/vector/qdrant"
	"github.com/kirillkom/notice-extractor/internal/observability/tracing"
)

const (
	IndexBackendSnapshot = "snapshot"
	IndexBackendQdrant   = "qdrant"

	ConversationBackendPostgres = "postgres"
	ConversationBackendRedis    = "redis"
	ConversationBackendNone     = "none"

	ExtractionModeInline = "inline"
	ExtractionModeQueue  = "queue"
)

type Options struct {
	Service string
	// ConnectQueue opens the NATS connection; the worker always needs it,
	// the API only in queue extraction mode.
	ConnectQueue bool
	Observer     usecase.StateObserver
}

type App struct {
	Config    config.Config
	Questions domain.QuestionSet

	Engine   *usecase.ExtractionEngine
	Builder  *usecase.IndexBuilder
	Queue    *nats.Queue
	Embedder *ollama.Embedder

	adapterExecutor *resilience.Executor
	queueExecutor   *resilience.Executor

	closers []func()
}

func New(ctx context.Context, cfg config.Config, opts Options) (_ *App, err error) {
	app := &App{Config: cfg}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	shutdownTracing, err := tracing.Init(ctx, tracing.Config{
		ServiceName: "notice-extractor-" + opts.Service,
		Endpoint:    cfg.TracingEndpoint,
		SampleRate:  cfg.TracingSampleRate,
		Enabled:     cfg.TracingEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	app.addCloser(func() {
		if err := shutdownTracing(context.Background()); err != nil {
			slog.Warn("tracing_shutdown_failed", "error", err.Error())
		}
	})

	questions, err := config.LoadQuestions(cfg.QuestionsFile)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	app.Questions = questions

	// Adapter calls are single-shot behind a breaker; retrying is the
	// worker's decision.
	app.adapterExecutor = resilience.NewExecutor(resilience.DefaultConfig().NoRetry())

	ollamaClient := ollama.New(
		cfg.OllamaURL,
		cfg.OllamaGenModel,
		cfg.OllamaEmbedModel,
		ollama.WithExecutor(app.adapterExecutor),
	)
	app.Embedder = ollama.NewEmbedder(ollamaClient)
	generator := ollama.NewGenerator(ollamaClient)

	loader, writer, err := newIndexBackend(cfg, app.adapterExecutor)
	if err != nil {
		return nil, err
	}

	conversations, err := app.newConversationStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app.Engine = usecase.NewExtractionEngine(
		loader,
		app.Embedder,
		generator,
		conversations,
		questions,
		usecase.ExtractionLimits{
			RetrievalK:        cfg.RetrievalK,
			CandidateFactor:   cfg.CandidateMultiplier,
			DiversityWeight:   &cfg.DiversityWeight,
			HistoryTurns:      cfg.HistoryTurns,
			RetrievalTimeout:  cfg.RetrievalTimeout,
			GenerationTimeout: cfg.GenerationTimeout,
		},
	)
	if opts.Observer != nil {
		app.Engine.SetObserver(opts.Observer)
	}
	app.Builder = usecase.NewIndexBuilder(app.Embedder, writer)

	if opts.ConnectQueue {
		app.queueExecutor = resilience.NewExecutor(resilience.DefaultConfig())
		queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ResilienceExecutor: app.queueExecutor,
		})
		if err != nil {
			return nil, fmt.Errorf("init message queue: %w", err)
		}
		app.Queue = queue
		app.addCloser(queue.Close)
	}

	slog.Info("bootstrap_ready",
		"service", opts.Service,
		"index_backend", cfg.IndexBackend,
		"conversation_backend", cfg.ConversationBackend,
		"questions", len(questions),
		"queue", opts.ConnectQueue,
	)
	return app, nil
}

type indexBackend interface {
	ports.IndexLoader
	ports.IndexWriter
}

func newIndexBackend(cfg config.Config, executor *resilience.Executor) (ports.IndexLoader, ports.IndexWriter, error) {
	switch cfg.IndexBackend {
	case IndexBackendSnapshot, "":
		store, err := localfs.New(cfg.SnapshotPath)
		if err != nil {
			return nil, nil, fmt.Errorf("init snapshot store: %w", err)
		}
		return usecase.NewSnapshotIndexLoader(store), store, nil
	case IndexBackendQdrant:
		var client indexBackend = qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, executor)
		return client, client, nil
	default:
		return nil, nil, fmt.Errorf("unknown index backend %q", cfg.IndexBackend)
	}
}

func (a *App) newConversationStore(ctx context.Context, cfg config.Config) (ports.ConversationStore, error) {
	switch cfg.ConversationBackend {
	case ConversationBackendPostgres, "":
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		a.addCloser(func() { _ = db.Close() })
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		return postgres.NewConversationRepository(db), nil
	case ConversationBackendRedis:
		rdb, err := redisrepo.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.addCloser(func() { _ = rdb.Close() })
		return redisrepo.NewConversationRepository(rdb, cfg.ConversationPrefix, cfg.ConversationTTL), nil
	case ConversationBackendNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown conversation backend %q", cfg.ConversationBackend)
	}
}

// Extractor is what the HTTP edge should call: the engine itself, or a
// forwarder to the workers in queue mode.
func (a *App) Extractor() ports.DocumentExtractor {
	if a.Config.ExtractionMode == ExtractionModeQueue && a.Queue != nil {
		return queueadapter.NewExtractor(a.Queue, a.Questions)
	}
	return a.Engine
}

// BreakerStates merges the breaker states of every executor for /healthz.
func (a *App) BreakerStates() map[string]string {
	states := make(map[string]string)
	if a.adapterExecutor != nil {
		maps.Copy(states, a.adapterExecutor.BreakerStates())
	}
	if a.queueExecutor != nil {
		maps.Copy(states, a.queueExecutor.BreakerStates())
	}
	return states
}

func (a *App) addCloser(fn func()) {
	a.closers = append(a.closers, fn)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
