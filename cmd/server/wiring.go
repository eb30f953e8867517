package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	config "github.com/maheshrc27/postflow/configs"
	job "github.com/maheshrc27/postflow/internal/jobs"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/maheshrc27/postflow/internal/service"
)

// pipeline holds the publishing components shared by the commands.
type pipeline struct {
	db        *sqlx.DB
	posts     repository.PostRepository
	postSvc   service.PostService
	processor *service.PostProcessor
	publisher *job.PublishJob
}

func buildPipeline(ctx context.Context, cfg *config.Config) (*pipeline, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.PostgresURI)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	r2, err := service.NewR2Service(ctx, *cfg)
	if err != nil {
		db.Close()
		return nil, err
	}
	if !cfg.R2Enabled() {
		slog.Warn("R2 is not configured; only http(s) image urls can be published")
	}

	postRepo := repository.NewPostRepository(db)
	accountRepo := repository.NewSocialAccountRepository(db.DB)
	attemptRepo := repository.NewPublishAttemptRepository(db.DB)

	opts := service.ClientOptionsFromConfig(cfg.Platforms)
	dispatcher := service.NewDispatcher(r2,
		service.NewFacebookService(cfg.Platforms.GraphBaseURL, opts),
		service.NewInstagramService(cfg.Platforms.GraphBaseURL, opts, cfg.Platforms.PollInterval, cfg.Platforms.PollMaxAttempts),
		service.NewTiktokService(cfg.Platforms, opts),
	)

	processor := service.NewPostProcessor(postRepo,
		service.NewAccountService(accountRepo, cfg.SecretKey),
		dispatcher,
		service.WithAttemptRecorder(attemptRepo),
		service.WithPartialStatus(cfg.Scheduler.PartialStatus),
		service.WithProcessTimeout(cfg.Scheduler.ProcessTimeout),
	)

	return &pipeline{
		db:        db,
		posts:     postRepo,
		postSvc:   service.NewPostService(postRepo, attemptRepo, r2, supportedPlatforms(dispatcher)),
		processor: processor,
		publisher: job.NewPublishJob(postRepo, processor, cfg.Scheduler),
	}, nil
}

func (p *pipeline) Close() {
	slog.Info("closing database connection")
	if err := p.db.Close(); err != nil {
		slog.Error("failed to close database", "error", err)
	}
}

func supportedPlatforms(d *service.Dispatcher) []string {
	var out []string
	for _, p := range []string{models.PlatformFacebook, models.PlatformInstagram, models.PlatformTiktok} {
		if d.Supports(p) {
			out = append(out, p)
		}
	}
	return out
}

// redisOpt accepts either a bare host:port or a redis:// URI.
func redisOpt(uri string) (asynq.RedisConnOpt, error) {
	if strings.Contains(uri, "://") {
		return asynq.ParseRedisURI(uri)
	}
	return asynq.RedisClientOpt{Addr: uri}, nil
}
