package services

import (
	"errors"
	"fmt"
	"strings"

	"storefront/internal/repositories"
	"storefront/pkg/apperrors"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// fromRepo translates a repository error into an application error. The message is
// only shown for not-found and conflict errors; anything else stays internal.
func fromRepo(err error, format string, args ...any) error {
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		return apperrors.Wrap(apperrors.KindNotFound, err, format, args...)
	case errors.Is(err, repositories.ErrDuplicate), errors.Is(err, repositories.ErrInsufficientStock):
		return apperrors.Wrap(apperrors.KindConflict, err, format, args...)
	default:
		return apperrors.Wrap(apperrors.KindInternal, err, "Internal server error")
	}
}

// validateStruct runs the validator tags of v and reports failures as one validation error.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperrors.Wrap(apperrors.KindValidation, err, "Validation failed")
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, e := range fieldErrs {
		msgs = append(msgs, fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag()))
	}
	return apperrors.Validation("Validation failed: %s", strings.Join(msgs, "; "))
}
