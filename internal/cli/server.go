package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"prepquiz-service/internal/app"
	"prepquiz-service/internal/config"
	"prepquiz-service/internal/domain"
	"prepquiz-service/internal/infra/memory"
	pgcatalog "prepquiz-service/internal/infra/postgres"
	redisinfra "prepquiz-service/internal/infra/redis"
	transport "prepquiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz session server",
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

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
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
	}
	sessionTTL := config.TTLDuration(cfg.Redis.TTL, time.Hour)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.CatalogLoader = memory.NewStaticCatalogLoader(sampleQuizzes(), sampleQuestions())
	if pool != nil {
		loader = pgcatalog.NewCatalogLoader(pool)
	}

	catalogTTL := config.TTLDuration(cfg.Catalog.TTL, 10*time.Minute)
	var catalog app.Catalog
	if redisClient != nil {
		catalog = redisinfra.NewCatalog(redisClient, loader, catalogTTL)
	} else {
		catalog = memory.NewCatalog(loader, catalogTTL)
	}

	var sessions app.SessionStore
	if redisClient != nil {
		sessions = redisinfra.NewSessionStore(redisClient, sessionTTL)
	} else {
		sessions = memory.NewSessionStore()
	}

	// The engine mutates user progression records owned upstream; this
	// in-memory store stands in for the profile service.
	progress := memory.NewProgressionStore()
	for _, p := range sampleProgressions() {
		_ = progress.Put(ctx, p)
	}

	service := app.NewSessionService(catalog, sessions, progress)
	apiHandler := transport.NewAPIHandler(service)
	wsHandler := transport.NewWSHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	apiHandler.Register(mux)
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	// Expiry sweep: sessions never expire inline with user requests; this
	// ticker is the sweep the engine delegates to.
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go runSweep(sweepCtx, service, config.TTLDuration(cfg.Sweep.Interval, 30*time.Second))

	go func() {
		log.Printf("starting prepquiz service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func runSweep(ctx context.Context, service *app.SessionService, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			n, err := service.ExpireDue(ctx)
			if err != nil {
				log.Printf("expiry sweep failed: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("expired %d overdue sessions", n)
			}
		case <-ctx.Done():
			return
		}
	}
}

// sampleQuizzes provides a minimal catalog for running without Postgres; swap
// the loader with the Postgres-backed one in production.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:    "quiz-1",
			Title: "General Knowledge Warm-up",
			Questions: []domain.QuestionRef{
				{QuestionID: "q1", OrderNumber: 1},
				{QuestionID: "q2", OrderNumber: 2},
			},
			TimeLimitMinutes: 5,
			TotalQuestions:   2,
			PassingScore:     50,
		},
	}
}

func sampleQuestions() map[string]domain.Question {
	return map[string]domain.Question{
		"q1": {
			ID:          "q1",
			Text:        "What is 2 + 2?",
			OptionA:     "3",
			OptionB:     "4",
			OptionC:     "5",
			OptionD:     "6",
			Correct:     domain.OptionB,
			Explanation: "Basic arithmetic.",
			Difficulty:  domain.DifficultyBasic,
			SubjectID:   "math",
			SubjectName: "Mathematics",
			TopicID:     "arithmetic",
		},
		"q2": {
			ID:          "q2",
			Text:        "Water boils at which temperature at sea level?",
			OptionA:     "90C",
			OptionB:     "95C",
			OptionC:     "100C",
			OptionD:     "105C",
			Correct:     domain.OptionC,
			Explanation: "100 degrees Celsius at standard pressure.",
			Difficulty:  domain.DifficultyBasic,
			SubjectID:   "science",
			SubjectName: "Science",
			TopicID:     "physics",
		},
	}
}

func sampleProgressions() []domain.Progression {
	return []domain.Progression{
		{UserID: "u1", Level: 1},
		{UserID: "u2", Level: 1},
	}
}
