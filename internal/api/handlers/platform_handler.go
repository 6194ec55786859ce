package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/postqueue/internal/models"
	"github.com/maheshrc27/postqueue/internal/service"
	"github.com/maheshrc27/postqueue/internal/transfer"
	"github.com/maheshrc27/postqueue/pkg/logger"
)

// PlatformHandler stores the OAuth tokens the login flow hands back for each
// connected platform.
type PlatformHandler struct {
	cs  service.ConnectionService
	log *logger.Logger
}

func NewPlatformHandler(cs service.ConnectionService, log *logger.Logger) *PlatformHandler {
	return &PlatformHandler{cs: cs, log: log.WithComponent("platform-handler")}
}

func (h *PlatformHandler) SaveConnection(c *fiber.Ctx) error {
	var req transfer.ConnectionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Unable to parse request body")
	}

	err := h.cs.Save(c.Context(), &models.Connection{
		UserID:       GetUserID(c),
		Platform:     models.Platform(req.Platform),
		AccountID:    req.AccountID,
		AccessToken:  req.AccessToken,
		RefreshToken: req.RefreshToken,
		ExpiresAt:    req.ExpiresAt,
	}, req.AccountUsername)
	if err != nil {
		return sendError(c, h.log, err, nil)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *PlatformHandler) ListSocialAccounts(c *fiber.Ctx) error {
	accounts, err := h.cs.List(c.Context(), GetUserID(c))
	if err != nil {
		return sendError(c, h.log, err, nil)
	}
	if accounts == nil {
		accounts = []*models.SocialAccount{}
	}

	return c.Status(fiber.StatusOK).JSON(accounts)
}

func (h *PlatformHandler) DeleteSocialAccount(c *fiber.Ctx) error {
	err := h.cs.Remove(c.Context(), GetUserID(c), models.Platform(c.Params("platform")))
	if err != nil {
		return sendError(c, h.log, err, nil)
	}

	return c.SendStatus(fiber.StatusNoContent)
}
