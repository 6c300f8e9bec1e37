package handler

import (
	"context"
	"net/http"

	"github.com/forgo/marquee/api/internal/middleware"
	"github.com/forgo/marquee/api/internal/model"
	"github.com/forgo/marquee/api/internal/service"
)

// AuthService is the account and token workflow behind /api/auth
type AuthService interface {
	Signup(ctx context.Context, req model.SignupRequest) (*service.AuthResult, error)
	Login(ctx context.Context, req model.LoginRequest) (*service.AuthResult, error)
	GetUserByID(ctx context.Context, userID string) (*model.User, error)
	RefreshTokens(ctx context.Context, refreshToken string) (*service.TokenPair, error)
	Logout(ctx context.Context, userID string) error
}

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService AuthService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// RefreshRequest represents the refresh endpoint request body
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

var authLinks = map[string]string{
	"self":    "/api/auth/me",
	"profile": "/api/users/profile",
}

// Signup handles POST /api/auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req model.SignupRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}

	result, err := h.authService.Signup(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	WriteData(w, http.StatusCreated, result, authLinks)
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}

	result, err := h.authService.Login(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	WriteData(w, http.StatusOK, result, authLinks)
}

// Me handles GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	user := middleware.GetUser(r.Context())
	if user == nil {
		var err error
		if user, err = h.authService.GetUserByID(r.Context(), actor.UserID); err != nil {
			writeServiceError(w, r, err)
			return
		}
	}

	WriteData(w, http.StatusOK, user, map[string]string{"self": "/api/auth/me"})
}

// Refresh handles POST /api/auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}

	if req.RefreshToken == "" {
		WriteError(w, model.NewValidationError([]model.FieldError{
			{Field: "refresh_token", Message: "is required"},
		}))
		return
	}

	tokenPair, err := h.authService.RefreshTokens(r.Context(), req.RefreshToken)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	WriteData(w, http.StatusOK, tokenPair, nil)
}

// Logout handles POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	if err := h.authService.Logout(r.Context(), actor.UserID); err != nil {
		writeServiceError(w, r, err)
		return
	}

	WriteNoContent(w)
}
