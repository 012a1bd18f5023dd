package http

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/account-service/internal/api/dto"
	"github.com/spec-kit/account-service/internal/observability"
	apperrors "github.com/spec-kit/account-service/pkg/util/errorutil"
)

// RegisterMiddlewares attaches global middlewares such as error handling and logging.
func RegisterMiddlewares(app *fiber.App, logger *zap.Logger, metrics *observability.Metrics, timeout time.Duration, production bool) {
	app.Use(observability.RequestLogger(logger, metrics))
	if timeout > 0 {
		app.Use(requestTimeoutMiddleware(timeout))
	}
	app.Use(errorHandlingMiddleware(logger, metrics, production))
}

func requestTimeoutMiddleware(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

// errorHandlingMiddleware renders every error as the response envelope.
// It is the only place an error becomes a response body.
func errorHandlingMiddleware(logger *zap.Logger, metrics *observability.Metrics, production bool) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
				err = apperrors.NewInternalError(fmt.Errorf("panic: %v", r))
			}
			if err == nil {
				return
			}

			domainErr := toDomainError(err)
			metrics.RecordError(c.Path(), c.Method(), domainErr.Code)

			body := dto.Envelope{
				Code:    domainErr.HTTPStatus,
				Message: domainErr.Message,
				Errors:  domainErr.Fields,
			}
			if domainErr.HTTPStatus >= fiber.StatusInternalServerError {
				logger.Error("request failed",
					zap.String("method", c.Method()),
					zap.String("path", c.Path()),
					zap.Error(domainErr),
				)
				if !production && domainErr.Err != nil {
					body.Debug = domainErr.Err.Error()
				}
			}
			err = c.Status(domainErr.HTTPStatus).JSON(body)
		}()
		return c.Next()
	}
}

// toDomainError also understands the framework's own errors (unknown
// route, malformed body, method not allowed).
func toDomainError(err error) *apperrors.DomainError {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code := apperrors.CodeInternal
		switch {
		case fe.Code == fiber.StatusNotFound:
			code = apperrors.CodeNotFound
		case fe.Code == fiber.StatusUnauthorized:
			code = apperrors.CodeUnauthorized
		case fe.Code == fiber.StatusForbidden:
			code = apperrors.CodeForbidden
		case fe.Code == fiber.StatusTooManyRequests:
			code = apperrors.CodeRateLimited
		case fe.Code < fiber.StatusInternalServerError:
			code = apperrors.CodeValidation
		}
		return apperrors.NewDomainError(code, fe.Message, fe.Code, nil)
	}
	return apperrors.ToDomainError(err)
}

