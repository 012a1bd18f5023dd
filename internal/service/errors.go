package service

import (
	"errors"
	"fmt"

	"github.com/spec-kit/account-service/internal/auth"
	"github.com/spec-kit/account-service/internal/repository"
	apperrors "github.com/spec-kit/account-service/pkg/util/errorutil"
)

// mapStoreError converts credential store failures into domain errors.
// Uniqueness conflicts keep the field name so clients can point at it.
func mapStoreError(err error) error {
	if err == nil {
		return nil
	}
	var dke *repository.DuplicateKeyError
	switch {
	case errors.As(err, &dke):
		if dke.Field == "" {
			return apperrors.NewConflict("", "account already exists")
		}
		return apperrors.NewConflict(dke.Field, fmt.Sprintf("%s is already in use", dke.Field))
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound("user")
	case errors.Is(err, repository.ErrInvalidID):
		return apperrors.NewValidationError("invalid user id", []apperrors.FieldError{
			{Field: "id", Message: "must be a valid user id"},
		})
	}
	var de *apperrors.DomainError
	if errors.As(err, &de) {
		return err
	}
	return apperrors.NewInternalError(err)
}

// mapTokenError collapses every verification failure into one 401.
// Anything else (a denylist outage) stays an internal error.
func mapTokenError(err error) error {
	switch {
	case errors.Is(err, auth.ErrMalformedToken),
		errors.Is(err, auth.ErrSignatureInvalid),
		errors.Is(err, auth.ErrTokenExpired),
		errors.Is(err, auth.ErrTokenRevoked):
		return apperrors.NewUnauthorized("invalid token")
	}
	return apperrors.NewInternalError(err)
}
