package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/forgo/marquee/api/internal/model"
	"github.com/forgo/marquee/api/pkg/jwt"
)

// AuthService defines the interface for token validation
type AuthService interface {
	ValidateAccessToken(token string) (*jwt.Claims, error)
}

// AccountLookup loads the account behind a token. Returns nil, nil when the
// account no longer exists.
type AccountLookup interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
}

// ActivityRecorder notes that an authenticated user made a request
type ActivityRecorder interface {
	Record(ctx context.Context, userID string)
}

const (
	// ClaimsKey is the context key for JWT claims
	ClaimsKey contextKey = "claims"
	// UserEmailKey is the context key for user email
	UserEmailKey contextKey = "userEmail"
	// UserRoleKey is the context key for the account role
	UserRoleKey contextKey = "userRole"
	// UserKey is the context key for the loaded account
	UserKey contextKey = "user"
)

// Auth returns a middleware that validates JWT tokens.
//
// When accounts is set, the account is reloaded on every request so that a
// deleted account gets 401, a suspended or banned one gets 403, and the role
// in context reflects the database rather than the token. activity may be nil.
func Auth(authService AuthService, accounts AccountLookup, activity ActivityRecorder) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, problem := bearerToken(r)
			if problem != "" {
				model.NewUnauthorizedError(problem).WriteJSON(w)
				return
			}

			claims, err := authService.ValidateAccessToken(token)
			if err != nil {
				switch {
				case errors.Is(err, jwt.ErrTokenExpired):
					model.NewUnauthorizedError("token expired").WriteJSON(w)
				case errors.Is(err, jwt.ErrInvalidSignature):
					model.NewUnauthorizedError("invalid token signature").WriteJSON(w)
				default:
					model.NewUnauthorizedError("invalid token").WriteJSON(w)
				}
				return
			}

			ctx := withClaims(r.Context(), claims)

			if accounts != nil {
				user, err := accounts.GetByID(ctx, claims.UserID)
				if err != nil {
					slog.Error("failed to load authenticated account",
						slog.String("user_id", claims.UserID),
						slog.String("request_id", GetRequestID(ctx)),
						slog.String("error", err.Error()),
					)
					model.NewInternalError("").WriteJSON(w)
					return
				}
				if user == nil {
					model.NewUnauthorizedError("account no longer exists").WriteJSON(w)
					return
				}
				if !user.IsActive() {
					model.NewAccountDisabledError("account is " + string(user.Status)).WriteJSON(w)
					return
				}
				ctx = context.WithValue(ctx, UserRoleKey, string(user.Role))
				ctx = context.WithValue(ctx, UserKey, user)
			}

			if activity != nil {
				activity.Record(ctx, claims.UserID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth is like Auth but doesn't require authentication.
// It will set user info in context if token is present and valid.
func OptionalAuth(authService AuthService) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, problem := bearerToken(r)
			if problem != "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := authService.ValidateAccessToken(token)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
		})
	}
}

// bearerToken extracts the token from the Authorization header. A non-empty
// problem describes why the header was rejected.
func bearerToken(r *http.Request) (token, problem string) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", "missing authorization header"
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", "invalid authorization header format"
	}
	return strings.TrimSpace(parts[1]), ""
}

func withClaims(ctx context.Context, claims *jwt.Claims) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, claims.UserID)
	ctx = context.WithValue(ctx, UserEmailKey, claims.Email)
	ctx = context.WithValue(ctx, UserRoleKey, claims.Role)
	return context.WithValue(ctx, ClaimsKey, claims)
}

// GetUserID extracts the user ID from context
func GetUserID(ctx context.Context) string {
	if id, ok := ctx.Value(UserIDKey).(string); ok {
		return id
	}
	return ""
}

// GetUserEmail extracts the user email from context
func GetUserEmail(ctx context.Context) string {
	if email, ok := ctx.Value(UserEmailKey).(string); ok {
		return email
	}
	return ""
}

// GetUserRole extracts the account role from context
func GetUserRole(ctx context.Context) string {
	if role, ok := ctx.Value(UserRoleKey).(string); ok {
		return role
	}
	return ""
}

// GetUser returns the account loaded by Auth, or nil
func GetUser(ctx context.Context) *model.User {
	if user, ok := ctx.Value(UserKey).(*model.User); ok {
		return user
	}
	return nil
}

// GetClaims extracts the JWT claims from context
func GetClaims(ctx context.Context) *jwt.Claims {
	if claims, ok := ctx.Value(ClaimsKey).(*jwt.Claims); ok {
		return claims
	}
	return nil
}
