package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/postqueue/internal/models"
	"github.com/maheshrc27/postqueue/internal/service"
	"github.com/maheshrc27/postqueue/internal/transfer"
	"github.com/maheshrc27/postqueue/pkg/logger"
)

type PostHandler struct {
	s   service.PostService
	log *logger.Logger
}

func NewPostHandler(service service.PostService, log *logger.Logger) *PostHandler {
	return &PostHandler{s: service, log: log.WithComponent("post-handler")}
}

func (h *PostHandler) CreatePost(c *fiber.Ctx) error {
	var req transfer.PostRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Unable to parse request body")
	}

	post, report, err := h.s.Create(c.Context(), GetUserID(c), &req)
	if err != nil {
		return sendError(c, h.log, err, conflictsField(report))
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"post":      transfer.NewPostResponse(post),
		"conflicts": report,
	})
}

func (h *PostHandler) ListPosts(c *fiber.Ctx) error {
	status := models.PostStatus(c.Query("status"))
	switch status {
	case "", models.PostStatusScheduled, models.PostStatusPublishing, models.PostStatusPublished, models.PostStatusFailed:
	default:
		return badRequest(c, "Unknown status filter")
	}

	posts, err := h.s.List(c.Context(), GetUserID(c), status)
	if err != nil {
		return sendError(c, h.log, err, nil)
	}

	return c.Status(fiber.StatusOK).JSON(transfer.NewPostResponses(posts))
}

func (h *PostHandler) GetPost(c *fiber.Ctx) error {
	post, err := h.s.Get(c.Context(), GetUserID(c), c.Params("id"))
	if err != nil {
		return sendError(c, h.log, err, nil)
	}

	return c.Status(fiber.StatusOK).JSON(transfer.NewPostResponse(post))
}

func (h *PostHandler) UpdatePost(c *fiber.Ctx) error {
	var req transfer.PostRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Unable to parse request body")
	}

	post, report, err := h.s.Update(c.Context(), GetUserID(c), c.Params("id"), &req)
	if err != nil {
		return sendError(c, h.log, err, conflictsField(report))
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"post":      transfer.NewPostResponse(post),
		"conflicts": report,
	})
}

func (h *PostHandler) ClonePost(c *fiber.Ctx) error {
	var req transfer.CloneRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Unable to parse request body")
	}

	post, report, err := h.s.Clone(c.Context(), GetUserID(c), c.Params("id"), &req)
	if err != nil {
		return sendError(c, h.log, err, conflictsField(report))
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"post":      transfer.NewPostResponse(post),
		"conflicts": report,
	})
}

func (h *PostHandler) RemovePost(c *fiber.Ctx) error {
	if err := h.s.Remove(c.Context(), GetUserID(c), c.Params("id")); err != nil {
		return sendError(c, h.log, err, nil)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func conflictsField(report *service.ConflictReport) fiber.Map {
	if report == nil {
		return nil
	}
	return fiber.Map{"conflicts": report}
}
