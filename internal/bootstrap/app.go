package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"clinix-backend/internal/appointments"
	"clinix-backend/internal/documents"
	"clinix-backend/internal/extract"
	"clinix-backend/internal/intake"
	"clinix-backend/internal/llm"
	"clinix-backend/internal/llm/gemini"
	"clinix-backend/internal/llm/groq"
	"clinix-backend/internal/queue"
	"clinix-backend/internal/services/health"
	"clinix-backend/internal/shared/config"
	"clinix-backend/internal/shared/lock"
	"clinix-backend/internal/shared/server"
	"clinix-backend/internal/shared/server/middleware"
	"clinix-backend/internal/shared/storage/db"
	"clinix-backend/internal/shared/storage/object"
	localstore "clinix-backend/internal/shared/storage/object/local"
	s3store "clinix-backend/internal/shared/storage/object/s3"
	"clinix-backend/internal/shared/telemetry"
)

// App holds shared dependencies.
type App struct {
	Config              config.Config
	Router              *gin.Engine
	DB                  *sql.DB
	Redis               *redis.Client
	Store               object.ObjectStore
	Queue               queue.Client
	AppointmentsRepo    appointments.Repo
	Analyzer            *intake.Analyzer
	DocumentProcessor   *documents.Processor
	AppointmentsService *appointments.Service
	IntakeHandler       *intake.Handler
	AppointmentHandler  *appointments.Handler
	Health              *health.Service

	gemini *gemini.Client
}

// Options tweaks Build for callers that do not serve HTTP.
type Options struct {
	// SkipRouter leaves App.Router nil.
	SkipRouter bool
	// SkipMigrations does not apply embedded migrations on connect.
	SkipMigrations bool
	// DB overrides the server pool defaults.
	DB *db.Options
	// SharedDB reuses the process-wide pool across Lambda invocations.
	SharedDB bool
}

// Build prepares shared dependencies and the router.
func Build(cfg config.Config) (*App, error) {
	return BuildWithOptions(context.Background(), cfg, Options{})
}

// BuildWithOptions prepares shared dependencies.
func BuildWithOptions(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}

	sqlDB, err := buildDB(ctx, cfg, opts)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	queueClient, err := buildQueue(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Redis:  buildRedis(cfg),
		Store:  store,
		Queue:  queueClient,
	}

	if err := buildServices(app); err != nil {
		return nil, err
	}

	if !opts.SkipRouter {
		app.Router = server.NewRouter(server.RouterDeps{
			Config:             app.Config,
			IntakeHandler:      app.IntakeHandler,
			AppointmentHandler: app.AppointmentHandler,
			Health:             app.Health,
			RateLimiter:        middleware.NewRateLimiter(nil),
		})
	}

	return app, nil
}

// Close releases network clients held by the app.
func (a *App) Close() error {
	var errs []error
	if a.AppointmentsService != nil {
		a.AppointmentsService.Wait()
	}
	if a.gemini != nil {
		errs = append(errs, a.gemini.Close())
	}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}

func buildDB(ctx context.Context, cfg config.Config, opts Options) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.memory_repositories", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	poolOpts := db.Preset(db.PoolServer)
	if opts.DB != nil {
		poolOpts = *opts.DB
	}
	connect := db.Connect
	if opts.SharedDB {
		connect = db.GetSingleton
	}
	sqlDB, err := connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(poolOpts))
	if err == nil && !opts.SkipMigrations {
		if err = db.RunMigrations(ctx, sqlDB); err != nil {
			_ = sqlDB.Close()
			err = fmt.Errorf("run migrations: %w", err)
		}
	}
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.memory_repositories", map[string]any{"reason": err.Error()})
			return nil, nil
		}
		return nil, err
	}

	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildQueue(ctx context.Context, cfg config.Config) (queue.Client, error) {
	if cfg.DocumentProcessing != config.ProcessingQueue {
		return nil, nil
	}
	if strings.TrimSpace(cfg.SQSQueueURL) == "" {
		return nil, fmt.Errorf("DOCUMENT_PROCESSING=queue requires SQS_QUEUE_URL")
	}
	return queue.NewSQSClient(ctx, cfg.AWSRegion, cfg.SQSQueueURL)
}

func buildRedis(cfg config.Config) *redis.Client {
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}

func buildServices(app *App) error {
	cfg := app.Config

	var repo appointments.Repo
	if app.DB != nil {
		repo = &appointments.PGRepo{DB: app.DB}
	} else {
		repo = appointments.NewMemoryRepo()
	}

	geminiClient := gemini.NewClient(llm.EnvKey("GEMINI_API_KEY"), cfg.GeminiModel)
	groqIntake, err := groq.NewClient(llm.EnvKey("GROQ_API_KEY"), cfg.GroqModel, cfg.ProviderTimeout)
	if err != nil {
		return err
	}
	groqSummary, err := groq.NewClient(llm.EnvKey("GROQ_API_KEY"), cfg.SummaryModel, cfg.ProviderTimeout)
	if err != nil {
		return err
	}

	analyzer := intake.NewAnalyzer(cfg.ProviderTimeout, cfg.MinIntakeLength,
		intake.NewLLMProvider(gemini.ProviderName, intake.SourceProviderA, geminiClient, nil),
		intake.NewLLMProvider(groq.ProviderName, intake.SourceProviderB, groqIntake, llm.Float32(0.2)),
	)

	processor := &documents.Processor{
		Store:      app.Store,
		Extractor:  extract.New(extract.NewTesseractCLI(cfg.OCRLanguage), cfg.MinExtractedChars),
		Summarizer: documents.NewSummarizer(groq.ProviderName, groqSummary),
		Records:    repo,
		MinChars:   cfg.MinExtractedChars,
	}

	var locker lock.Locker = lock.Noop{}
	if app.Redis != nil {
		locker = lock.NewRedisLocker(app.Redis, cfg.LockTTL)
	}

	svc := appointments.NewService(repo, analyzer, processor)
	svc.Conflicts = appointments.NewConflictChecker(repo, cfg.ConflictWindow)
	svc.Locker = locker
	svc.Queue = app.Queue
	svc.Processing = cfg.DocumentProcessing

	app.AppointmentsRepo = repo
	app.Analyzer = analyzer
	app.DocumentProcessor = processor
	app.AppointmentsService = svc
	app.IntakeHandler = intake.NewHandler(analyzer)
	app.AppointmentHandler = appointments.NewHandler(svc, cfg.MaxUploadBytes)
	app.Health = health.NewService(app.DB, app.Redis)
	app.gemini = geminiClient

	if app.IntakeHandler == nil || app.AppointmentHandler == nil {
		return errors.New("failed to initialize handlers")
	}
	return nil
}
