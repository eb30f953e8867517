package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/robfig/cron"
	"github.com/spf13/cobra"

	"github.com/maheshrc27/postflow/internal/api"
	"github.com/maheshrc27/postflow/internal/api/handlers"
	"github.com/maheshrc27/postflow/internal/api/middleware"
	"github.com/maheshrc27/postflow/internal/queue"
)

var (
	serveNoCron   bool
	serveNoWorker bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, scheduler and task worker",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&serveNoCron, "no-cron", false, "Do not start the per-minute scheduler")
	serveCmd.Flags().BoolVar(&serveNoWorker, "no-worker", false, "Do not start the exact-time task worker")
}

func runServe(cmd *cobra.Command, args []string) error {
	p, err := buildPipeline(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	var tasks queue.Enqueuer
	var worker *asynq.Server
	if cfg.RedisURI != "" {
		redisConn, err := redisOpt(cfg.RedisURI)
		if err != nil {
			return err
		}
		client := asynq.NewClient(redisConn)
		defer client.Close()
		tasks = client

		if !serveNoWorker {
			worker = asynq.NewServer(redisConn, asynq.Config{Concurrency: cfg.Scheduler.BatchSize})
			mux := asynq.NewServeMux()
			mux.HandleFunc(queue.TaskTypeSchedulePost, queue.NewQueue(p.posts, p.processor).HandleSchedulePostTask)

			slog.Info("starting the asynq server")
			if err := worker.Start(mux); err != nil {
				return err
			}
		}
	} else {
		slog.Warn("REDIS_URI not set; posts are published by the scheduler only")
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		BodyLimit:    100 * 1024 * 1024, // 100 MB
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			slog.Error("request failed", "path", c.Path(), "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.FrontendURL,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	if cfg.CronSecret == "" {
		if cfg.Environment == "production" {
			slog.Warn("CRON_SECRET not set; the on-demand publish endpoint is disabled", "path", api.PublishScheduledPath)
		} else {
			slog.Warn("CRON_SECRET not set; the on-demand publish endpoint is unauthenticated", "path", api.PublishScheduledPath)
		}
	}

	api.Register(app, api.Routes{
		Auth:  middleware.NewAuthMiddleware(*cfg),
		Cron:  handlers.NewCronHandler(p.publisher),
		Posts: handlers.NewPostHandler(p.postSvc, tasks),
	})

	c := cron.New()
	if !serveNoCron {
		if err := c.AddFunc(cfg.Scheduler.Cron, p.publisher.PublishDuePosts); err != nil {
			return err
		}
		c.Start()
		slog.Info("scheduler started", "schedule", cfg.Scheduler.Cron, "batch_size", cfg.Scheduler.BatchSize)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(cfg.ListenAddr)
	}()
	slog.Info("server is running", "addr", cfg.ListenAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	c.Stop()
	if worker != nil {
		worker.Shutdown()
	}
	if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
		slog.Error("failed to shut down server", "error", err)
	}
	slog.Info("server shutdown complete")
	return nil
}
