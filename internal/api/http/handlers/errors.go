package handlers

import (
	"errors"

	"github.com/sellerdesk/ozon-support/internal/auth"
	"github.com/sellerdesk/ozon-support/internal/ozon"
	"github.com/sellerdesk/ozon-support/internal/repository"
	"github.com/sellerdesk/ozon-support/internal/service"
	apperrors "github.com/sellerdesk/ozon-support/pkg/util/errorutil"
)

// mapServiceError turns service and adapter errors into DomainErrors the
// error middleware renders.
func mapServiceError(err error, resource string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound(resource, nil)
	case errors.Is(err, ozon.ErrUnknownToken):
		return apperrors.NewNotFound("token", nil)
	case errors.Is(err, service.ErrEmptyReply),
		errors.Is(err, service.ErrNotChat),
		errors.Is(err, service.ErrInvalidNotice),
		errors.Is(err, ozon.ErrInvalidArgument),
		errors.Is(err, auth.ErrWeakPassword):
		return apperrors.NewValidationError(err.Error(), nil)
	case errors.Is(err, service.ErrTicketBusy):
		return apperrors.NewConflict(err.Error(), nil)
	case errors.Is(err, service.ErrInvalidCredentials):
		return apperrors.NewUnauthorized(err.Error())
	case errors.Is(err, service.ErrOperatorInactive):
		return apperrors.NewForbidden(err.Error())
	case errors.Is(err, ozon.ErrTransient), errors.Is(err, ozon.ErrPlanRestricted):
		return apperrors.NewUpstreamError(err)
	}
	return apperrors.MapError(err)
}
