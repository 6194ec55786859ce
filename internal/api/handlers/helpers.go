package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/postqueue/internal/service"
	"github.com/maheshrc27/postqueue/pkg/logger"
)

// UserIDKey is the fiber local the auth middleware stores the caller under.
const UserIDKey = "user_id"

func GetUserID(c *fiber.Ctx) string {
	userID, _ := c.Locals(UserIDKey).(string)
	return userID
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidPost),
		errors.Is(err, service.ErrInvalidQueue),
		errors.Is(err, service.ErrInvalidConnection):
		return fiber.StatusBadRequest
	case errors.Is(err, service.ErrPostNotFound),
		errors.Is(err, service.ErrQueueNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, service.ErrScheduleConflict),
		errors.Is(err, service.ErrDuplicateQueue),
		errors.Is(err, service.ErrPostNotEditable),
		errors.Is(err, service.ErrPostPublishing),
		errors.Is(err, service.ErrQueueState):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// sendError writes err as a JSON body. Internal errors are logged and
// replaced by a generic message.
func sendError(c *fiber.Ctx, log *logger.Logger, err error, extra fiber.Map) error {
	status := errorStatus(err)
	body := fiber.Map{"error": err.Error()}
	if status == fiber.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
		body["error"] = "Something went wrong"
	}
	for k, v := range extra {
		body[k] = v
	}
	return c.Status(status).JSON(body)
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": msg,
	})
}
