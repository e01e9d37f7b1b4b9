package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"prepquiz-service/internal/app"
	"prepquiz-service/internal/domain"
	"prepquiz-service/internal/infra/memory"
	pgcatalog "prepquiz-service/internal/infra/postgres"
	redisinfra "prepquiz-service/internal/infra/redis"
	pgmigrations "prepquiz-service/internal/infra/postgres/migrations"
)

func TestQuizSessionEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedCatalog(t, ctx, pgURL, sampleQuiz(), sampleQuestions())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}

	catalog := redisinfra.NewCatalog(redisClient, pgcatalog.NewCatalogLoader(pool), 5*time.Minute)
	sessions := redisinfra.NewSessionStore(redisClient, 5*time.Minute)
	progress := memory.NewProgressionStore()
	if err := progress.Put(ctx, domain.Progression{UserID: "u1", Level: 1}); err != nil {
		t.Fatalf("seed progression: %v", err)
	}
	service := app.NewSessionService(catalog, sessions, progress)

	started, err := service.Start(ctx, "u1", "quiz-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if started.FirstQuestion == nil || started.FirstQuestion.ID != "q1" {
		t.Fatalf("expected first question q1 from pg-backed catalog, got %+v", started.FirstQuestion)
	}

	// Concurrent start is blocked by the redis guard.
	if _, err := service.Start(ctx, "u1", "quiz-1"); err != domain.ErrActiveSessionExists {
		t.Fatalf("expected active session conflict, got %v", err)
	}

	result, err := service.SubmitAnswer(ctx, started.SessionID, "u1", app.AnswerSubmission{QuestionID: "q1", SelectedAnswer: "B", TimeTakenSeconds: 8})
	if err != nil {
		t.Fatalf("answer 1: %v", err)
	}
	if !result.IsCorrect || result.PointsEarned != 10 {
		t.Fatalf("expected correct answer worth 10, got %+v", result)
	}

	result, err = service.SubmitAnswer(ctx, started.SessionID, "u1", app.AnswerSubmission{QuestionID: "q2", SelectedAnswer: "A"})
	if err != nil {
		t.Fatalf("answer 2: %v", err)
	}
	if !result.IsCompleted {
		t.Fatalf("expected completion after last answer, got %+v", result)
	}

	report, err := service.Results(ctx, started.SessionID, "u1")
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if report.SessionSummary.FinalScore != 10 || len(report.QuestionAnalysis) != 2 {
		t.Fatalf("unexpected report: %+v", report.SessionSummary)
	}

	prog, err := progress.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("progression: %v", err)
	}
	// 50 base + 10 for the one correct answer.
	if prog.ExperiencePoints != 60 || prog.DailyStreak != 1 {
		t.Fatalf("unexpected progression: %+v", prog)
	}

	// The slot is free again for a retake.
	if _, err := service.Start(ctx, "u1", "quiz-1"); err != nil {
		t.Fatalf("restart after completion: %v", err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func seedCatalog(t *testing.T, ctx context.Context, dsn string, quiz domain.Quiz, questions []domain.Question) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	data, err := json.Marshal(quiz)
	if err != nil {
		t.Fatalf("marshal quiz: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO quizzes (id, data) VALUES (?, ?::jsonb) ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data`, quiz.ID, string(data)); err != nil {
		t.Fatalf("insert quiz: %v", err)
	}
	for _, q := range questions {
		data, err := json.Marshal(q)
		if err != nil {
			t.Fatalf("marshal question: %v", err)
		}
		if _, err := db.ExecContext(ctx, `INSERT INTO questions (id, data) VALUES (?, ?::jsonb) ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data`, q.ID, string(data)); err != nil {
			t.Fatalf("insert question: %v", err)
		}
	}
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:    "quiz-1",
		Title: "General Knowledge",
		Questions: []domain.QuestionRef{
			{QuestionID: "q1", OrderNumber: 1},
			{QuestionID: "q2", OrderNumber: 2},
		},
		TotalQuestions: 2,
		PassingScore:   50,
	}
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{ID: "q1", Text: "What is 2 + 2?", OptionA: "3", OptionB: "4", OptionC: "5", OptionD: "6", Correct: domain.OptionB, Explanation: "Basic arithmetic.", Difficulty: domain.DifficultyBasic, SubjectID: "math", SubjectName: "Mathematics"},
		{ID: "q2", Text: "Water boils at?", OptionA: "90C", OptionB: "95C", OptionC: "100C", OptionD: "105C", Correct: domain.OptionC, Explanation: "At sea level.", Difficulty: domain.DifficultyBasic, SubjectID: "science", SubjectName: "Science"},
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
