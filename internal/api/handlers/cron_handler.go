package handlers

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	job "github.com/maheshrc27/postflow/internal/jobs"
)

type DueRunner interface {
	RunDue(ctx context.Context) (*job.RunSummary, error)
}

type CronHandler struct {
	runner DueRunner
}

func NewCronHandler(runner DueRunner) *CronHandler {
	return &CronHandler{runner: runner}
}

// PublishScheduled runs one scheduler batch on demand and reports the counts.
func (h *CronHandler) PublishScheduled(c *fiber.Ctx) error {
	summary, err := h.runner.RunDue(c.UserContext())
	if err != nil {
		slog.Error("on-demand publish run failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Failed to publish scheduled posts",
			"details": err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message":   "Scheduled posts processed",
		"run_id":    summary.RunID,
		"total":     summary.Total,
		"processed": summary.Processed,
		"failed":    summary.Failed,
		"skipped":   summary.Skipped,
	})
}
