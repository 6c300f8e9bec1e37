package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/forgo/marquee/api/internal/middleware"
	"github.com/forgo/marquee/api/internal/model"
	"github.com/forgo/marquee/api/internal/service"
	"github.com/forgo/marquee/api/internal/validation"
)

// MapServiceError converts a service error to a ProblemDetails response.
// Errors it does not recognize become a generic 500.
func MapServiceError(err error) *model.ProblemDetails {
	if err == nil {
		return nil
	}

	var verr *validation.Error
	if errors.As(err, &verr) {
		return model.NewValidationError(verr.Fields)
	}

	switch {
	// ===== Authentication Errors → 401 =====
	case errors.Is(err, service.ErrInvalidCredentials):
		return model.NewUnauthorizedError("invalid email or password")
	case errors.Is(err, service.ErrInvalidRefreshToken),
		errors.Is(err, service.ErrRefreshTokenExpired),
		errors.Is(err, service.ErrRefreshTokenRevoked):
		return model.NewUnauthorizedError("invalid or expired refresh token")

	// ===== Authorization Errors → 403 =====
	case errors.Is(err, service.ErrAccountDisabled):
		return model.NewAccountDisabledError(err.Error())
	case errors.Is(err, service.ErrNotEventOwner),
		errors.Is(err, service.ErrNotTicketOwner):
		return model.NewNotOwnerError(err.Error())
	case errors.Is(err, service.ErrForbidden),
		errors.Is(err, service.ErrSeedingDisabled):
		return model.NewForbiddenError(err.Error())

	// ===== Not Found Errors → 404 =====
	case errors.Is(err, service.ErrUserNotFound):
		return model.NewNotFoundError("user")
	case errors.Is(err, service.ErrEventNotFound):
		return model.NewNotFoundError("event")
	case errors.Is(err, service.ErrTicketNotFound):
		return model.NewNotFoundError("ticket")
	case errors.Is(err, service.ErrImageNotFound):
		return model.NewNotFoundError("image")

	// ===== Duplicates → 400 =====
	case errors.Is(err, service.ErrEmailAlreadyExists):
		return model.NewAlreadyExistsError(err.Error())

	// ===== Capacity → 400 =====
	case errors.Is(err, service.ErrTierSoldOut):
		return model.NewSoldOutError(err.Error())

	// ===== Field validation → 400 =====
	case errors.Is(err, service.ErrPasswordRequired),
		errors.Is(err, service.ErrPasswordTooShort),
		errors.Is(err, service.ErrPasswordTooLong),
		errors.Is(err, service.ErrPasswordNeedsDigit):
		return fieldError("password", err)
	case errors.Is(err, service.ErrInvalidCurrentPassword):
		return fieldError("current_password", err)
	case errors.Is(err, service.ErrInvalidRole):
		return fieldError("role", err)
	case errors.Is(err, service.ErrInvalidEventStatus),
		errors.Is(err, service.ErrInvalidUserStatus),
		errors.Is(err, service.ErrInvalidTicketStatus):
		return fieldError("status", err)
	case errors.Is(err, service.ErrInvalidEventCategory):
		return fieldError("category", err)
	case errors.Is(err, service.ErrTierNotFound):
		return fieldError("tier", err)
	case errors.Is(err, service.ErrInvalidTicketQuantity):
		return fieldError("quantity", err)
	case errors.Is(err, service.ErrTooManyImages),
		errors.Is(err, service.ErrImageRequired),
		errors.Is(err, service.ErrImageTooLarge),
		errors.Is(err, service.ErrUnsupportedImageType):
		return fieldError("images", err)

	// ===== State Errors → 400 =====
	case errors.Is(err, service.ErrEventNotOnSale),
		errors.Is(err, service.ErrTicketNotCancellable),
		errors.Is(err, service.ErrNoChanges),
		errors.Is(err, service.ErrCannotDeleteSelf),
		errors.Is(err, service.ErrEventBusy),
		errors.Is(err, service.ErrTicketStatusChanged):
		return model.NewBadRequestError(err.Error())

	// ===== External services → 500 =====
	case errors.Is(err, service.ErrPaymentFailed),
		errors.Is(err, service.ErrImageStoreUnavailable):
		return model.NewExternalServiceError(err.Error())

	default:
		return model.NewInternalError("")
	}
}

// writeServiceError maps err and writes it. Server errors are logged with
// the request id before responding.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	problem := MapServiceError(err)
	if problem.Status >= http.StatusInternalServerError {
		slog.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("request_id", middleware.GetRequestID(r.Context())),
			slog.String("error", err.Error()),
		)
	}
	WriteError(w, problem)
}

func fieldError(field string, err error) *model.ProblemDetails {
	return model.NewValidationError([]model.FieldError{{Field: field, Message: err.Error()}})
}
