package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/postqueue/internal/models"
	"github.com/maheshrc27/postqueue/internal/service"
	"github.com/maheshrc27/postqueue/internal/transfer"
	"github.com/maheshrc27/postqueue/pkg/logger"
)

type QueueHandler struct {
	s   service.QueueService
	log *logger.Logger
}

func NewQueueHandler(service service.QueueService, log *logger.Logger) *QueueHandler {
	return &QueueHandler{s: service, log: log.WithComponent("queue-handler")}
}

func (h *QueueHandler) CreateQueue(c *fiber.Ctx) error {
	var req transfer.QueueCreation
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Unable to parse request body")
	}

	q, report, err := h.s.Create(c.Context(), GetUserID(c), &req)
	if err != nil {
		return sendError(c, h.log, err, conflictsField(report))
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"queue":     q,
		"conflicts": report,
	})
}

func (h *QueueHandler) ListQueues(c *fiber.Ctx) error {
	queues, err := h.s.List(c.Context(), GetUserID(c))
	if err != nil {
		return sendError(c, h.log, err, nil)
	}
	if queues == nil {
		queues = []*models.Queue{}
	}
	return c.Status(fiber.StatusOK).JSON(queues)
}

func (h *QueueHandler) GetQueue(c *fiber.Ctx) error {
	q, err := h.s.Get(c.Context(), GetUserID(c), c.Params("id"))
	if err != nil {
		return sendError(c, h.log, err, nil)
	}
	return c.Status(fiber.StatusOK).JSON(q)
}

func (h *QueueHandler) QueuePosts(c *fiber.Ctx) error {
	posts, err := h.s.Posts(c.Context(), GetUserID(c), c.Params("id"))
	if err != nil {
		return sendError(c, h.log, err, nil)
	}
	return c.Status(fiber.StatusOK).JSON(transfer.NewPostResponses(posts))
}

func (h *QueueHandler) PauseQueue(c *fiber.Ctx) error {
	q, err := h.s.Pause(c.Context(), GetUserID(c), c.Params("id"))
	if err != nil {
		return sendError(c, h.log, err, nil)
	}
	return c.Status(fiber.StatusOK).JSON(q)
}

func (h *QueueHandler) ResumeQueue(c *fiber.Ctx) error {
	q, err := h.s.Resume(c.Context(), GetUserID(c), c.Params("id"))
	if err != nil {
		return sendError(c, h.log, err, nil)
	}
	return c.Status(fiber.StatusOK).JSON(q)
}

func (h *QueueHandler) RemoveQueue(c *fiber.Ctx) error {
	if err := h.s.Remove(c.Context(), GetUserID(c), c.Params("id")); err != nil {
		return sendError(c, h.log, err, nil)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
