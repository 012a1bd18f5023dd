package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/account-service/internal/api/validation"
	"github.com/spec-kit/account-service/internal/auth"
	"github.com/spec-kit/account-service/internal/events"
	apperrors "github.com/spec-kit/account-service/pkg/util/errorutil"
)

var errInvalidBody = apperrors.NewValidationError("invalid request body", nil)

// bind decodes the JSON body into req and validates it.
func bind(c *fiber.Ctx, v *validation.Validator, req any) error {
	if err := c.BodyParser(req); err != nil {
		return errInvalidBody
	}
	return v.Struct(req)
}

func requestMeta(c *fiber.Ctx) events.RequestMeta {
	return events.RequestMeta{
		IPAddress: c.IP(),
		UserAgent: c.Get(fiber.HeaderUserAgent),
	}
}

// identity returns the verified caller. Routes behind the auth middleware
// always have one; the check keeps a misrouted handler from running anonymous.
func identity(c *fiber.Ctx) (*auth.Identity, error) {
	id, ok := auth.IdentityFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return id, nil
}
