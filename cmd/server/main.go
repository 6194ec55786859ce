package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	config "github.com/maheshrc27/postqueue/configs"
	"github.com/maheshrc27/postqueue/internal/api/handlers"
	"github.com/maheshrc27/postqueue/internal/api/middleware"
	"github.com/maheshrc27/postqueue/internal/database"
	job "github.com/maheshrc27/postqueue/internal/jobs"
	"github.com/maheshrc27/postqueue/internal/metrics"
	"github.com/maheshrc27/postqueue/internal/models"
	"github.com/maheshrc27/postqueue/internal/platform"
	"github.com/maheshrc27/postqueue/internal/queue"
	"github.com/maheshrc27/postqueue/internal/repository"
	"github.com/maheshrc27/postqueue/internal/service"
	"github.com/maheshrc27/postqueue/pkg/logger"
	"github.com/mrz1836/postmark"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron"
	"golang.org/x/oauth2"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.New(logger.Config{}).Fatal().Err(err).Msg("failed to load config")
	}

	log := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	if cfg.RunMigrations {
		if err := database.RunMigrations(cfg.PostgresURI); err != nil {
			log.Fatal().Err(err).Msg("failed to migrate database")
		}
	}

	db, err := database.Open(context.Background(), cfg.PostgresURI)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer closeDB(db, log)

	redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
	client := asynq.NewClient(redisConn)
	defer client.Close()
	inspector := asynq.NewInspector(redisConn)
	defer inspector.Close()

	recorder := metrics.NewCollector(prometheus.DefaultRegisterer)
	taskScheduler := queue.NewAsynqScheduler(client, inspector, "default")

	postRepo := repository.NewPostRepository(db)
	queueRepo := repository.NewQueueRepository(db)
	socialAccountRepo := repository.NewSocialAccountRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	var mail service.EmailSender
	if cfg.Postmark.ServerToken != "" {
		mail = postmark.NewClient(cfg.Postmark.ServerToken, cfg.Postmark.AccountToken)
	}

	publishers := []platform.Publisher{
		platform.NewTwitterClient(platform.Options{
			BaseURL:   cfg.Twitter.APIBaseURL,
			RateLimit: cfg.Twitter.RateLimit,
			RateBurst: cfg.Twitter.RateBurst,
		}),
		platform.NewLinkedInClient(platform.Options{
			BaseURL:   cfg.LinkedIn.APIBaseURL,
			RateLimit: cfg.LinkedIn.RateLimit,
			RateBurst: cfg.LinkedIn.RateBurst,
		}),
	}

	connectionService := service.NewConnectionService(socialAccountRepo, cfg.SecretKey)
	conflictService := service.NewConflictService(postRepo, queueRepo)
	notificationService := service.NewNotificationService(notificationRepo, mail, cfg.Postmark.From, cfg.Postmark.AlertTo, log)
	postService := service.NewPostService(postRepo, conflictService, taskScheduler, log)
	queueService := service.NewQueueService(queueRepo, postRepo, conflictService, log)
	publishService := service.NewPublishService(postRepo, connectionService, notificationService, taskScheduler,
		publishers, recorder, cfg.Worker.PublishTimeout, log)

	// background work
	processor := job.NewQueueProcessor(queueRepo, postRepo, taskScheduler, recorder, cfg.Worker.QueueSweepLimit, log)
	worker := queue.NewWorker(publishService, processor, log)

	server := asynq.NewServer(redisConn, asynq.Config{
		Concurrency: cfg.Worker.Concurrency,
		Logger:      log.Asynq(),
	})
	if err := server.Start(worker.Mux()); err != nil {
		log.Fatal().Err(err).Msg("could not start asynq server")
	}

	periodic := asynq.NewScheduler(redisConn, &asynq.SchedulerOpts{Logger: log.Asynq()})
	if _, err := periodic.Register(cfg.Worker.QueueSweepSpec, queue.NewProcessQueuesTask()); err != nil {
		log.Fatal().Err(err).Msg("could not register queue sweep")
	}
	if err := periodic.Start(); err != nil {
		log.Fatal().Err(err).Msg("could not start asynq scheduler")
	}

	refreshTokenJob := job.NewTokenRefreshJob(socialAccountRepo, map[models.Platform]*oauth2.Config{
		models.PlatformTwitter:  job.OAuthConfig(cfg.Twitter.ClientID, cfg.Twitter.ClientSecret, cfg.Twitter.TokenURL),
		models.PlatformLinkedIn: job.OAuthConfig(cfg.LinkedIn.ClientID, cfg.LinkedIn.ClientSecret, cfg.LinkedIn.TokenURL),
	}, cfg.SecretKey, log)

	c := cron.New()
	if err := c.AddFunc(cfg.Worker.TokenRefreshSpec, refreshTokenJob.RefreshTokens); err != nil {
		log.Fatal().Err(err).Msg("invalid token refresh schedule")
	}
	c.Start()

	// http
	app := fiber.New(fiber.Config{
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			if code == fiber.StatusInternalServerError {
				log.Error().Err(err).Str("path", c.Path()).Msg("unhandled error")
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.FrontendURL,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		if err := db.PingContext(c.Context()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "database unreachable"})
		}
		return c.SendStatus(fiber.StatusOK)
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	authMiddleware := middleware.NewAuthMiddleware(*cfg, log)

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	post := handlers.NewPostHandler(postService, log)
	api.Post("/posts", post.CreatePost)
	api.Get("/posts", post.ListPosts)
	api.Get("/posts/:id", post.GetPost)
	api.Put("/posts/:id", post.UpdatePost)
	api.Delete("/posts/:id", post.RemovePost)
	api.Post("/posts/:id/clone", post.ClonePost)

	queues := handlers.NewQueueHandler(queueService, log)
	api.Post("/queues", queues.CreateQueue)
	api.Get("/queues", queues.ListQueues)
	api.Get("/queues/:id", queues.GetQueue)
	api.Get("/queues/:id/posts", queues.QueuePosts)
	api.Post("/queues/:id/pause", queues.PauseQueue)
	api.Post("/queues/:id/resume", queues.ResumeQueue)
	api.Delete("/queues/:id", queues.RemoveQueue)

	conflicts := handlers.NewConflictHandler(conflictService, log)
	api.Get("/conflicts", conflicts.CheckConflicts)

	// social accounts api routes
	accounts := handlers.NewPlatformHandler(connectionService, log)
	api.Post("/accounts", accounts.SaveConnection)
	api.Get("/accounts", accounts.ListSocialAccounts)
	api.Delete("/accounts/:platform", accounts.DeleteSocialAccount)

	go func() {
		if err := app.Listen(cfg.ServerAddr); err != nil {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()
	log.Info().Str("addr", cfg.ServerAddr).Msg("server is running")

	gracefulShutdown(app, log)

	c.Stop()
	periodic.Shutdown()
	server.Shutdown()
	log.Info().Msg("shutdown complete")
}

func closeDB(db *sql.DB, log *logger.Logger) {
	if err := db.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close database")
		return
	}
	log.Info().Msg("database connection closed")
}

func gracefulShutdown(app *fiber.App, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Info().Msg("shutting down server")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error().Err(err).Msg("failed to shut down server")
	}
}
