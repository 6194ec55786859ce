package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/postqueue/internal/models"
	"github.com/maheshrc27/postqueue/internal/service"
	"github.com/maheshrc27/postqueue/pkg/logger"
)

type ConflictHandler struct {
	s   service.ConflictService
	log *logger.Logger
}

func NewConflictHandler(service service.ConflictService, log *logger.Logger) *ConflictHandler {
	return &ConflictHandler{s: service, log: log.WithComponent("conflict-handler")}
}

// CheckConflicts answers GET /api/conflicts?platform=twitter&time=<RFC3339>.
func (h *ConflictHandler) CheckConflicts(c *fiber.Ctx) error {
	p := models.Platform(c.Query("platform"))
	if !p.Valid() {
		return badRequest(c, "Unknown platform")
	}
	at, err := time.Parse(time.RFC3339, c.Query("time"))
	if err != nil {
		return badRequest(c, "time must be an RFC3339 timestamp")
	}

	report, err := h.s.Check(c.Context(), service.ConflictCheck{
		UserID:         GetUserID(c),
		Platform:       p,
		At:             at,
		ExcludePostID:  c.Query("exclude_post"),
		ExcludeQueueID: c.Query("exclude_queue"),
	})
	if err != nil {
		return sendError(c, h.log, err, nil)
	}

	return c.Status(fiber.StatusOK).JSON(report)
}
