package handler

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/cambohq/marketplace-api/internal/middleware"
	"github.com/cambohq/marketplace-api/internal/service"
)

// parseQueryInt reports whether the parameter was present so callers can
// tell an explicit zero apart from an omitted parameter.
func parseQueryInt(c *fiber.Ctx, key string) (int, bool, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, false, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, false, err
	}
	return parsed, true, nil
}

func parseParamUint(c *fiber.Ctx, key string) (uint, error) {
	value := strings.TrimSpace(c.Params(key))
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(parsed), nil
}

func userIDFromContext(c *fiber.Ctx) uint {
	if v := c.Locals("user_id"); v != nil {
		switch id := v.(type) {
		case uint:
			return id
		case int:
			if id < 0 {
				return 0
			}
			return uint(id)
		case float64:
			if id < 0 {
				return 0
			}
			return uint(id)
		}
	}
	return 0
}

// requestContext derives the context handed to services, carrying the
// request's correlation identifier.
func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
}

// statusForError maps service failures onto HTTP status codes.
func statusForError(err error) int {
	switch {
	case service.IsNotFound(err):
		return fiber.StatusNotFound
	case errors.Is(err, service.ErrInvalidParticipants),
		errors.Is(err, service.ErrOwnershipMismatch),
		errors.Is(err, service.ErrImageTooLarge),
		errors.Is(err, service.ErrImageTypeNotAllowed),
		isValidationError(err):
		return fiber.StatusBadRequest
	case errors.Is(err, service.ErrUsernameTaken):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

func isValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}
