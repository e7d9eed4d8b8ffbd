package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"ai-quiz-service/internal/app"
	"ai-quiz-service/internal/config"
	"ai-quiz-service/internal/infra/llm"
	"ai-quiz-service/internal/infra/memory"
	"ai-quiz-service/internal/infra/pdftext"
	"ai-quiz-service/internal/infra/postgres"
	redisstore "ai-quiz-service/internal/infra/redis"
	"ai-quiz-service/internal/logger"
	transport "ai-quiz-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pool.Close()
	}

	llmClient := llm.NewClient(llm.Options{
		BaseURL:    cfg.LLM.BaseURL,
		APIKey:     cfg.LLM.APIKey,
		Model:      cfg.LLM.Model,
		Timeout:    config.TTLDuration(cfg.LLM.Timeout, 60*time.Second),
		MaxRetries: cfg.LLM.MaxRetries,
	}, log.With("component", "llm"))

	source, err := buildQuestionSource(cfg, llmClient, pool, log)
	if err != nil {
		return err
	}
	if cacheTTL := config.TTLDuration(cfg.Quiz.CacheTTL, 0); cacheTTL > 0 {
		if redisClient != nil {
			source = redisstore.NewQuestionCache(redisClient, source, cacheTTL, log.With("component", "question_cache"))
		} else {
			source = memory.NewQuestionCache(source, cacheTTL)
		}
	}

	var (
		sessions app.SessionRepository
		docStore app.DocumentStore
	)
	docTTL := config.TTLDuration(cfg.Documents.TTL, time.Hour)
	if redisClient != nil {
		redisSessions := redisstore.NewSessionStore(redisClient, redisTTL)
		if live, err := redisSessions.Live(ctx); err != nil {
			log.Warn("count live sessions failed", "error", err.Error())
		} else {
			log.Info("redis session store ready", "live_sessions", live)
		}
		sessions = redisSessions
		docStore = redisstore.NewDocumentStore(redisClient, docTTL)
	} else {
		sessions = memory.NewSessionStore()
		docStore = memory.NewDocumentStore(docTTL)
	}

	quizService := app.NewQuizService(sessions, source,
		app.WithLogger(log.With("component", "quiz")),
		app.WithGenerateTimeout(config.TTLDuration(cfg.Quiz.GenerateTimeout, 90*time.Second)),
		app.WithBaseContext(ctx),
	)
	documentService := app.NewDocumentService(
		pdftext.NewExtractor(cfg.Documents.MaxUploadBytes),
		llm.NewDocumentAssistant(llmClient, cfg.Documents.MaxChars),
		docStore,
		log.With("component", "documents"),
	)

	router := transport.NewRouter(
		transport.NewWSHandler(quizService, log.With("component", "ws")),
		transport.NewDocumentHandler(documentService, cfg.Documents.MaxUploadBytes, log),
		log,
	)

	// No read/write timeouts: websocket connections and completion calls are long lived.
	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting quiz service", "port", finalPort, "source", cfg.Quiz.Source, "model", llmClient.Model())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// buildQuestionSource picks the configured question source. The LLM source
// needs a server-held key; without one the sample sets are served instead.
func buildQuestionSource(cfg config.Config, client *llm.Client, pool *pgxpool.Pool, log *logger.Logger) (app.QuestionSource, error) {
	switch cfg.Quiz.Source {
	case config.SourceBank:
		if pool == nil {
			return nil, fmt.Errorf("question bank requires postgres")
		}
		return postgres.NewQuestionBank(pool), nil
	case config.SourceStatic:
		return memory.NewStaticQuestionSource(memory.SampleQuestionSets()), nil
	default:
		if !client.HasKey() {
			log.Warn("no LLM api key configured, serving sample question sets")
			return memory.NewStaticQuestionSource(memory.SampleQuestionSets()), nil
		}
		source, err := llm.NewQuestionSource(client, cfg.LLM.APIKey)
		if err != nil {
			return nil, err
		}
		return source, nil
	}
}
