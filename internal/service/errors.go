package service

import "errors"

// Centralized service layer errors.
// All errors returned by service methods are defined here for consistency
// and to make error handling in handlers predictable.

// ===== Authentication Errors =====
var (
	ErrInvalidCredentials     = errors.New("invalid email or password")
	ErrEmailAlreadyExists     = errors.New("email already registered")
	ErrUserNotFound           = errors.New("user not found")
	ErrPasswordRequired       = errors.New("password is required")
	ErrPasswordTooShort       = errors.New("password must be at least 6 characters")
	ErrPasswordTooLong        = errors.New("password must be at most 128 characters")
	ErrPasswordNeedsDigit     = errors.New("password must contain a number")
	ErrInvalidRole            = errors.New("role must be attendee or organizer")
	ErrAccountDisabled        = errors.New("account is suspended or banned")
	ErrInvalidCurrentPassword = errors.New("current password is incorrect")
)

// ===== Token Errors =====
var (
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
	ErrRefreshTokenRevoked = errors.New("refresh token revoked")
)

// ===== Authorization Errors =====
var (
	ErrForbidden        = errors.New("not permitted for this role")
	ErrNotEventOwner    = errors.New("not the organizer of this event")
	ErrNotTicketOwner   = errors.New("not the holder of this ticket")
	ErrCannotDeleteSelf = errors.New("admins cannot delete their own account")
)

// ===== Event Errors =====
var (
	ErrEventNotFound        = errors.New("event not found")
	ErrEventNotOnSale       = errors.New("event is not published or has already taken place")
	ErrTierNotFound         = errors.New("ticket tier not found")
	ErrTierSoldOut          = errors.New("not enough tickets left in this tier")
	ErrNoChanges            = errors.New("no fields to update")
	ErrTooManyImages        = errors.New("too many images for this event")
	ErrEventBusy            = errors.New("event changed while updating, please retry")
	ErrInvalidEventStatus   = errors.New("invalid event status")
	ErrInvalidEventCategory = errors.New("invalid event category")
)

// ===== Ticket Errors =====
var (
	ErrTicketNotFound        = errors.New("ticket not found")
	ErrTicketNotCancellable  = errors.New("only valid tickets of upcoming events can be cancelled")
	ErrInvalidTicketStatus   = errors.New("invalid ticket status")
	ErrTicketStatusChanged   = errors.New("ticket status changed, please retry")
	ErrInvalidTicketQuantity = errors.New("quantity must be between 1 and 10")
	ErrPaymentFailed         = errors.New("payment could not be processed")
)

// ===== Image Errors =====
var (
	ErrImageNotFound         = errors.New("image not found")
	ErrImageRequired         = errors.New("an image file is required")
	ErrImageTooLarge         = errors.New("image exceeds the maximum upload size")
	ErrUnsupportedImageType  = errors.New("only JPEG, PNG, GIF and WebP images are allowed")
	ErrImageStoreUnavailable = errors.New("image storage is temporarily unavailable")
)

// ===== Admin Errors =====
var (
	ErrInvalidUserStatus = errors.New("invalid user status")
	ErrSeedingDisabled   = errors.New("seeding is disabled in production")
)
