package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	fiberSwagger "github.com/gofiber/swagger"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/aldoetobex/claims-backend/internal/auth"
	"github.com/aldoetobex/claims-backend/internal/claims"
	"github.com/aldoetobex/claims-backend/internal/config"
	"github.com/aldoetobex/claims-backend/internal/documents"
	"github.com/aldoetobex/claims-backend/internal/drafts"
	"github.com/aldoetobex/claims-backend/internal/jobs"
	"github.com/aldoetobex/claims-backend/internal/policies"
	"github.com/aldoetobex/claims-backend/internal/query"
	"github.com/aldoetobex/claims-backend/internal/review"
	"github.com/aldoetobex/claims-backend/internal/storage"
	"github.com/aldoetobex/claims-backend/pkg/database"
	"github.com/aldoetobex/claims-backend/pkg/models"
)

var serveMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, db, err := setup()
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		if serveMigrate {
			if err := database.Migrate(db); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
		}
		return serve(cmd.Context(), cfg, log, db)
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", true, "apply pending migrations before serving")
}

func newBlobStore(ctx context.Context, cfg config.StorageConfig) (storage.Blob, error) {
	switch cfg.Backend {
	case "supabase":
		return storage.NewSupabase(storage.SupabaseConfig{
			URL:        cfg.SupabaseURL,
			ServiceKey: cfg.SupabaseKey,
			Bucket:     cfg.SupabaseBucket,
			BearerAuth: cfg.SupabaseBearer,
		}), nil
	case "s3":
		s3, err := storage.NewS3(ctx, storage.S3Config{
			Bucket:   cfg.S3Bucket,
			Region:   cfg.AWSRegion,
			Endpoint: cfg.AWSEndpoint,
		})
		if err != nil {
			return nil, err
		}
		return s3, nil
	case "memory":
		return storage.NewMemory(), nil
	}
	return nil, fmt.Errorf("unknown STORAGE_BACKEND %q", cfg.Backend)
}

func newCountsCache(ctx context.Context, cfg config.RedisConfig, log *slog.Logger) (query.Cache, func(), error) {
	if cfg.URL == "" {
		log.Info("REDIS_URL not set, counts cached in process")
		return query.NewMemoryCache(), func() {}, nil
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	return query.NewRedisCache(client), func() { _ = client.Close() }, nil
}

type handlers struct {
	auth    *auth.Handler
	drafts  *drafts.Handler
	docs    *documents.Handler
	query   *query.Handler
	review  *review.Handler
	tokens  *auth.Tokens
	limiter *auth.RateLimiter
}

func serve(ctx context.Context, cfg *config.Config, log *slog.Logger, db *gorm.DB) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	blobs, err := newBlobStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	cache, closeCache, err := newCountsCache(ctx, cfg.Redis, log)
	if err != nil {
		return err
	}
	defer closeCache()

	store := claims.NewGormStore(db)
	engine := claims.NewEngine(store, log)
	reads := query.NewService(store, cache, cfg.Redis.CountTTL, log)
	engine.Subscribe(reads.Invalidate)

	docs := documents.NewService(store, blobs, documents.Limits{
		MaxFileBytes: cfg.Documents.MaxFileBytes,
		MaxFiles:     cfg.Documents.MaxFilesPerClaim,
	}, log)
	builder := drafts.NewBuilder(engine, docs, policies.NewGormLookup(db), log)
	tokens := auth.NewTokens(cfg.JWT.Secret, time.Duration(cfg.JWT.Expiration)*time.Hour)

	h := handlers{
		auth:   auth.NewHandler(db, tokens),
		drafts: drafts.NewHandler(builder),
		docs:   documents.NewHandler(docs, cfg.Storage.SignedURLTTL),
		query:  query.NewHandler(reads),
		review: review.NewHandler(review.NewProcessor(engine)),
		tokens: tokens,
	}
	if cfg.SubmitRatePerMinute > 0 {
		h.limiter = auth.NewRateLimiter(cfg.SubmitRatePerMinute)
		defer h.limiter.Stop()
	}

	scheduler := gocron.NewScheduler(time.UTC)
	reminder := jobs.NewDocumentsReminder(store, cfg.Jobs.StaleAfter, log)
	if _, err := reminder.Schedule(scheduler, cfg.Jobs.ReminderEvery); err != nil {
		return fmt.Errorf("schedule documents reminder: %w", err)
	}
	scheduler.StartAsync()
	defer scheduler.Stop()

	app := newApp(cfg, db, h)

	errCh := make(chan error, 1)
	go func() {
		log.Info("server running", "port", cfg.Server.Port, "storage", cfg.Storage.Backend)
		errCh <- app.Listen(":" + cfg.Server.Port)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")
	return app.ShutdownWithTimeout(15 * time.Second)
}

func newApp(cfg *config.Config, db *gorm.DB, h handlers) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: auth.ErrorHandler,
		BodyLimit:    cfg.Server.BodyLimitMB << 20,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	})
	app.Use(recover.New())
	app.Use(logger.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.UserContext())
		}
		if err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded"})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/swagger/*", fiberSwagger.HandlerDefault)

	api := app.Group("/api")
	authed := h.tokens.RequireAuth()
	client := auth.RequireRole(models.RoleClient)
	limit := func(c *fiber.Ctx) error { return c.Next() }
	if h.limiter != nil {
		limit = h.limiter.Middleware()
	}

	// Auth
	api.Post("/signup", h.auth.Signup)
	api.Post("/login", h.auth.Login)
	api.Get("/me", authed, h.auth.Me)

	// Client: drafts and submission
	api.Post("/drafts/validate", authed, client, h.drafts.ValidateStep)
	api.Post("/drafts/advance", authed, client, h.drafts.Advance)
	api.Post("/claims", authed, client, limit, h.drafts.Submit)
	api.Get("/claims/mine", authed, client, h.query.ListMine)
	api.Get("/claims/mine/counts", authed, client, h.query.CountsMine)

	// Owner or staff
	api.Get("/claims/:id", authed, h.query.Detail)
	api.Get("/claims/:id/history", authed, h.query.History)
	api.Post("/claims/:id/documents", authed, limit, h.docs.Upload)
	api.Get("/claims/:id/documents", authed, h.docs.List)
	api.Get("/documents/:docID/signed-url", authed, h.docs.SignedDownloadURL)

	// Staff
	admin := api.Group("/admin", authed, auth.RequireRole(models.RoleStaff))
	admin.Get("/claims", h.query.ListAll)
	admin.Get("/claims/counts", h.query.CountsAll)
	admin.Get("/claims/:id", h.query.Detail)
	admin.Post("/claims/:id/decisions", h.review.Decide)
	admin.Put("/claims/:id/priority", h.review.SetPriority)

	return app
}
