package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime/multipart"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/maheshrc27/postflow/internal/api/middleware"
	"github.com/maheshrc27/postflow/internal/queue"
	"github.com/maheshrc27/postflow/internal/service"
	"github.com/maheshrc27/postflow/internal/transfer"
)

type PostHandler struct {
	s     service.PostService
	tasks queue.Enqueuer
}

// NewPostHandler returns a PostHandler. tasks may be nil, in which case posts
// are picked up by the cron scheduler only.
func NewPostHandler(service service.PostService, tasks queue.Enqueuer) *PostHandler {
	return &PostHandler{s: service, tasks: tasks}
}

// CreatePost accepts either a JSON body or a multipart form with the JSON in
// a "payload" field and image files under "images".
func (h *PostHandler) CreatePost(c *fiber.Ctx) error {
	ownerID := middleware.OwnerID(c)

	var pc transfer.PostCreation
	var files []*multipart.FileHeader

	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		form, err := c.MultipartForm()
		if err != nil {
			slog.Error(err.Error())
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Unable to parse form",
			})
		}
		if err := json.Unmarshal([]byte(c.FormValue("payload")), &pc); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid payload field",
			})
		}
		files = form.File["images"]
	} else if err := c.BodyParser(&pc); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	post, delay, err := h.s.CreatePost(c.UserContext(), ownerID, &pc, files)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		slog.Error("create post failed", "owner_id", ownerID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to create post",
		})
	}

	if h.tasks != nil {
		// The cron scheduler still picks the post up if this fails.
		if err := queue.EnqueuePost(context.WithoutCancel(c.UserContext()), h.tasks, post.ID, delay); err != nil {
			slog.Warn("error scheduling publish task", "post_id", post.ID, "error", err)
		}
	}

	return c.Status(fiber.StatusCreated).JSON(post)
}

func (h *PostHandler) GetPost(c *fiber.Ctx) error {
	post, attempts, err := h.s.PostInfo(c.UserContext(), middleware.OwnerID(c), c.Params("id"))
	switch {
	case errors.Is(err, service.ErrPostNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Post not found",
		})
	case errors.Is(err, service.ErrValidation):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	case err != nil:
		slog.Error("get post failed", "post_id", c.Params("id"), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to load post",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"post":     post,
		"attempts": attempts,
	})
}
