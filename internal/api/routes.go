package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/maheshrc27/postflow/internal/api/handlers"
	"github.com/maheshrc27/postflow/internal/api/middleware"
)

const PublishScheduledPath = "/api/cron/publish-scheduled"

type Routes struct {
	Auth  *middleware.AuthMiddleware
	Cron  *handlers.CronHandler
	Posts *handlers.PostHandler
}

func Register(app *fiber.App, r Routes) {
	app.Get("/healthz", handlers.Health)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.All(PublishScheduledPath,
		handlers.AllowMethods(fiber.MethodPost),
		r.Auth.CronAuth(),
		r.Cron.PublishScheduled,
	)

	api := app.Group("/api/posts", r.Auth.AuthMiddleware())
	api.Post("/", r.Posts.CreatePost)
	api.Get("/:id", r.Posts.GetPost)
}
