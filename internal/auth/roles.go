package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/account-service/internal/domain"
	apperrors "github.com/spec-kit/account-service/pkg/util/errorutil"
)

// CheckPurpose fails unless the identity carries a token of the given purpose.
func CheckPurpose(identity *Identity, purpose domain.TokenPurpose) error {
	if identity == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	if identity.Purpose != purpose {
		return apperrors.NewWrongTokenPurpose("token is not valid for this operation")
	}
	return nil
}

// CheckRole fails unless the identity's role is one of allowed.
func CheckRole(identity *Identity, allowed ...domain.Role) error {
	if identity == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	for _, role := range allowed {
		if identity.Role == role {
			return nil
		}
	}
	return apperrors.NewForbidden("insufficient role")
}

// CheckSelf fails unless the identity owns targetID.
func CheckSelf(identity *Identity, targetID string) error {
	if identity == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	if targetID == "" || identity.UserID != targetID {
		return apperrors.NewForbidden("you can only modify your own account")
	}
	return nil
}

// RequireAuthenticated ensures a verified identity is present.
func RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := IdentityFromContext(c); !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		return c.Next()
	}
}

// RequirePurpose rejects tokens issued for another purpose.
func RequirePurpose(purpose domain.TokenPurpose) fiber.Handler {
	return guard(func(c *fiber.Ctx, identity *Identity) error {
		return CheckPurpose(identity, purpose)
	})
}

// RequireRole ensures the caller has one of the allowed roles.
func RequireRole(allowed ...domain.Role) fiber.Handler {
	return guard(func(c *fiber.Ctx, identity *Identity) error {
		return CheckRole(identity, allowed...)
	})
}

// RequireSelf ensures the caller is the account addressed by the path parameter.
func RequireSelf(param string) fiber.Handler {
	return guard(func(c *fiber.Ctx, identity *Identity) error {
		return CheckSelf(identity, c.Params(param))
	})
}

func guard(check func(c *fiber.Ctx, identity *Identity) error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.UserContext().Err() != nil {
			return apperrors.NewUnauthorized("request cancelled")
		}
		identity, _ := IdentityFromContext(c)
		if err := check(c, identity); err != nil {
			return err
		}
		return c.Next()
	}
}
