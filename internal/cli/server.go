package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"exam-session-service/internal/app"
	"exam-session-service/internal/config"
	"exam-session-service/internal/domain"
	"exam-session-service/internal/events"
	"exam-session-service/internal/infra/memory"
	pgstore "exam-session-service/internal/infra/postgres"
	redisstore "exam-session-service/internal/infra/redis"
	"exam-session-service/internal/logger"
	"exam-session-service/internal/metrics"
	transport "exam-session-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the exam session server",
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
	log := logger.Setup(cfg.Log.Level, cfg.Log.Format)

	if cfg.Postgres.URL != "" {
		if err := runMigrations(ctx, cfg, log); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
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
			return err
		}
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var loader memory.ExamLoader = memory.NewStaticExamLoader(sampleExams())
	if pool != nil {
		loader = pgstore.NewExamStore(pool)
	}

	examTTL := config.TTLDuration(cfg.Exam.TTL, 10*time.Minute)
	sessionTTL := config.TTLDuration(cfg.Redis.TTL, 3*time.Hour)
	resultTTL := config.TTLDuration(cfg.Results.TTL, 30*time.Minute)

	var (
		exams      app.ExamRepository
		sessions   app.SessionRepository
		results    app.ResultStore
		redisStore *redisstore.SessionStore
	)
	if redisClient != nil {
		exams = redisstore.NewExamRepository(redisClient, loader, examTTL, log)
		redisStore = redisstore.NewSessionStore(redisClient, sessionTTL, log)
		sessions = redisStore
		results = redisstore.NewResultStore(redisClient, resultTTL)
	} else {
		exams = memory.NewExamRepository(loader, examTTL)
		sessions = memory.NewSessionStore()
		results = memory.NewResultStore(resultTTL)
	}

	m := metrics.New()
	opts := []app.Option{
		app.WithLogger(log),
		app.WithMetrics(m),
		app.WithTickInterval(config.TTLDuration(cfg.Exam.Tick, time.Second)),
	}
	if cfg.Events.Enabled {
		publisher, err := events.NewResultPublisher(events.PublisherConfig{
			KafkaBrokers: cfg.BrokerList(),
			Topic:        cfg.Events.Topic,
			Logger:       log,
		})
		if err != nil {
			return err
		}
		defer publisher.Close()
		opts = append(opts, app.WithPublisher(publisher))
	}
	service := app.NewExamSessionService(exams, sessions, results, opts...)

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     transport.NewRouter(service, m, log),
		ReadTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Bool("redis", redisClient != nil).Bool("postgres", pool != nil).
			Bool("events", cfg.Events.Enabled).Msg("starting exam session service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info().Msg("shutting down server")
	case <-ctx.Done():
		log.Info().Msg("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logLiveSessions(shutdownCtx, redisStore, log)
	return server.Shutdown(shutdownCtx)
}

func logLiveSessions(ctx context.Context, store *redisstore.SessionStore, log zerolog.Logger) {
	if store == nil {
		return
	}
	live, err := store.LiveCount(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("count live sessions")
		return
	}
	log.Info().Int("live_sessions", live).Msg("sessions still in progress")
}

// sampleExams backs the server when no Postgres is configured.
func sampleExams() map[string]domain.Exam {
	return map[string]domain.Exam{
		"exam-1": {
			ID:               "exam-1",
			Title:            "General knowledge",
			TimeLimitMinutes: 10,
			Questions: []domain.Question{
				{
					ID:   "q1",
					Type: domain.MultipleChoice,
					Text: "What is 2 + 2?",
					Options: []domain.Option{
						{ID: "o1", Text: "3"},
						{ID: "o2", Text: "4"},
						{ID: "o3", Text: "5"},
					},
					CorrectAnswer: "o2",
				},
				{
					ID:   "q2",
					Type: domain.TrueFalse,
					Text: "The sun rises in the west.",
					Options: []domain.Option{
						{ID: "true", Text: "True"},
						{ID: "false", Text: "False"},
					},
					CorrectAnswer: "false",
					Explanation:   "It rises in the east.",
				},
				{
					ID:            "q3",
					Type:          domain.ShortAnswer,
					Text:          "Name the largest planet in the solar system.",
					CorrectAnswer: "Jupiter",
				},
			},
		},
	}
}
