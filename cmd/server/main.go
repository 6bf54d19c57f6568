package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron"

	config "postqueue/configs"
	"postqueue/internal/api/handlers"
	"postqueue/internal/api/middleware"
	"postqueue/internal/billing"
	"postqueue/internal/events"
	job "postqueue/internal/jobs"
	"postqueue/internal/media"
	"postqueue/internal/models"
	"postqueue/internal/publisher"
	"postqueue/internal/queue"
	"postqueue/internal/quota"
	"postqueue/internal/repository"
	"postqueue/internal/scheduler"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()
	ctx := context.Background()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURI,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("Redis is unreachable: %v", err)
	}
	defer rdb.Close()

	// Posts live in Postgres when configured, otherwise in Redis. The
	// subscription-backed quota plans and the billing webhook need Postgres;
	// without it every user runs on the free plan.
	var (
		db             *sql.DB
		postRepo       repository.PostRepository
		planResolver   quota.PlanResolver = quota.StaticPlanResolver(quota.PlanFree)
		billingService billing.Service
	)
	if cfg.PostgresURI != "" {
		var err error
		db, err = sql.Open("postgres", cfg.PostgresURI)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer closeDB(db)

		if err := db.Ping(); err != nil {
			log.Fatalf("Database is unreachable: %v", err)
		}
		if err := repository.EnsurePostSchema(ctx, db); err != nil {
			log.Fatalf("Failed to prepare post schema: %v", err)
		}
		if err := repository.EnsureSubscriptionSchema(ctx, db); err != nil {
			log.Fatalf("Failed to prepare subscription schema: %v", err)
		}

		postRepo = repository.NewPostgresPostRepository(db)
		subscriptionRepo := repository.NewSubscriptionRepository(db)
		planResolver = quota.NewSubscriptionPlanResolver(subscriptionRepo)
		billingService = billing.NewService(subscriptionRepo)
	} else {
		log.Println("POSTGRES_URI not set, storing posts in Redis")
		postRepo = repository.NewRedisPostRepository(rdb)
	}

	accountRepo := repository.NewRedisAccountRepository(rdb)
	quotaService := quota.NewService(planResolver, quota.NewRedisUsageCounter(rdb))

	redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	asynqClient := asynq.NewClient(redisConn)
	defer asynqClient.Close()
	queueClient := queue.NewClient(asynqClient)

	registry := publisher.NewRegistry(accountRepo, []byte(cfg.SecretKey))
	registry.Register(models.PlatformInstagram, publisher.NewInstagramPublisher(cfg.InstagramAPIBase))
	registry.Register(models.PlatformTikTok, publisher.NewTikTokPublisher(cfg.TiktokAPIBase))
	registry.Register(models.PlatformYouTube, publisher.NewYouTubePublisher())
	registry.Register(models.PlatformWhatsApp, publisher.NewWhatsAppPublisher(cfg.WhatsAppAPIBase))

	var notifier scheduler.Notifier
	if cfg.NatsURI != "" {
		nc, err := nats.Connect(cfg.NatsURI)
		if err != nil {
			log.Printf("Warning: NATS is unreachable, publish events disabled: %v", err)
		} else {
			defer nc.Close()
			notifier = events.NewNatsNotifier(nc)
		}
	}

	schedulerService := scheduler.NewService(postRepo, quotaService, registry, queueClient, notifier, cfg.PublishTimeout)

	uploader, err := media.NewR2Uploader(ctx, media.R2Config{
		AccountID: cfg.R2.AccountID,
		AccessKey: cfg.R2.AccessKey,
		SecretKey: cfg.R2.SecretKey,
		Bucket:    cfg.R2.BucketName,
	})
	if err != nil {
		log.Fatalf("Failed to set up media storage: %v", err)
	}
	mediaService := media.NewService(uploader, cfg.R2.PublicURL)

	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		BodyLimit:    100 * 1024 * 1024, // 100 MB
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOriginsFunc: func(origin string) bool {
			return true
		},
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	// The payment provider is not a logged-in user; its webhook mounts
	// outside the auth group.
	if billingService != nil {
		payment := handlers.NewPaymentHandler(billingService)
		app.Post("/api/webhook/payment", payment.PaymentWebhook)
	}

	authMiddleware := middleware.NewAuthMiddleware(*cfg)

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	post := handlers.NewPostHandler(schedulerService, mediaService)
	api.Post("/posts/schedule", post.SchedulePost)
	api.Post("/posts/schedule/file", post.SchedulePostFile)
	api.Get("/posts", post.ListPosts)
	api.Get("/posts/:id", post.GetPost)
	api.Delete("/posts/:id", post.CancelPost)
	api.Get("/scheduler/stats", post.SchedulerStats)

	dlq := handlers.NewDLQHandler(schedulerService)
	api.Get("/dlq", dlq.ListDLQ)
	api.Get("/dlq/stats", dlq.DLQStats)
	api.Post("/dlq/retry-all", dlq.RetryAllDLQ)
	api.Post("/dlq/delete-all", dlq.DeleteAllDLQ)
	api.Post("/dlq/:id/retry", dlq.RetryDLQPost)
	api.Delete("/dlq/:id", dlq.DeleteDLQPost)

	account := handlers.NewAccountHandler(accountRepo, []byte(cfg.SecretKey))
	api.Post("/accounts/connect", account.ConnectAccount)
	api.Get("/accounts", account.ListAccounts)
	api.Post("/accounts/remove", account.RemoveAccount)

	// cron jobs
	dispatchJob := job.NewDispatchJob(schedulerService)

	c := cron.New()
	c.AddFunc("@every 00h00m30s", dispatchJob.Run)
	c.Start()

	go func() {
		server := asynq.NewServer(redisConn, asynq.Config{
			Concurrency: cfg.QueueConcurrency,
		})

		worker := queue.NewWorker(schedulerService)
		mux := asynq.NewServeMux()
		mux.HandleFunc(queue.TaskTypeDispatchPost, worker.HandleDispatchPostTask)

		log.Println("Starting the Asynq server...")
		if err := server.Run(mux); err != nil {
			log.Fatalf("Could not start Asynq server: %v", err)
		}
	}()

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Printf("Server is running on http://localhost:%s", cfg.Port)

	gracefulShutdown(app)
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}

	log.Println("Server shutdown complete.")
}
