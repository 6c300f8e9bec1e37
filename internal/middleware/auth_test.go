package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/forgo/marquee/api/internal/model"
	"github.com/forgo/marquee/api/pkg/jwt"
)

// ============================================================================
// Mocks
// ============================================================================

type mockAuthService struct {
	validateFunc func(token string) (*jwt.Claims, error)
}

func (m *mockAuthService) ValidateAccessToken(token string) (*jwt.Claims, error) {
	return m.validateFunc(token)
}

// successAuthService returns valid claims for any token
func successAuthService(userID, email, role string) *mockAuthService {
	return &mockAuthService{
		validateFunc: func(token string) (*jwt.Claims, error) {
			return &jwt.Claims{UserID: userID, Email: email, Role: role}, nil
		},
	}
}

// errorAuthService returns the specified error
func errorAuthService(err error) *mockAuthService {
	return &mockAuthService{
		validateFunc: func(token string) (*jwt.Claims, error) {
			return nil, err
		},
	}
}

type mockAccounts struct {
	user *model.User
	err  error
}

func (m *mockAccounts) GetByID(ctx context.Context, id string) (*model.User, error) {
	return m.user, m.err
}

type recordingActivity struct {
	mu    sync.Mutex
	users []string
}

func (a *recordingActivity) Record(ctx context.Context, userID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.users = append(a.users, userID)
}

// ============================================================================
// Test Helpers
// ============================================================================

func newTestRequest(authHeader string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	return req
}

// captureHandler captures the request context for inspection
type captureHandler struct {
	called bool
	ctx    context.Context
}

func (h *captureHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.called = true
	h.ctx = r.Context()
	w.WriteHeader(http.StatusOK)
}

// ============================================================================
// Auth() Middleware Tests
// ============================================================================

func TestAuth_RejectsMalformedHeaders(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"missing":        "",
		"wrong scheme":   "Basic sometoken",
		"only bearer":    "Bearer",
		"no space":       "Bearertoken",
		"blank token":    "Bearer    ",
	}

	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			handler := &captureHandler{}
			rr := httptest.NewRecorder()

			Auth(successAuthService("user:123", "a@example.com", "attendee"), nil, nil)(handler).ServeHTTP(rr, newTestRequest(header))

			if rr.Code != http.StatusUnauthorized {
				t.Errorf("expected status %d, got %d", http.StatusUnauthorized, rr.Code)
			}
			if handler.called {
				t.Error("handler should not have been called")
			}
		})
	}
}

func TestAuth_TokenErrors_ReturnUnauthorized(t *testing.T) {
	t.Parallel()

	for _, err := range []error{jwt.ErrTokenExpired, jwt.ErrInvalidSignature, jwt.ErrInvalidToken, errors.New("boom")} {
		handler := &captureHandler{}
		rr := httptest.NewRecorder()

		Auth(errorAuthService(err), nil, nil)(handler).ServeHTTP(rr, newTestRequest("Bearer token"))

		if rr.Code != http.StatusUnauthorized {
			t.Errorf("%v: expected status %d, got %d", err, http.StatusUnauthorized, rr.Code)
		}
		if handler.called {
			t.Errorf("%v: handler should not have been called", err)
		}
	}
}

func TestAuth_ValidToken_SetsContext_CallsNext(t *testing.T) {
	t.Parallel()
	handler := &captureHandler{}
	rr := httptest.NewRecorder()

	Auth(successAuthService("user:123", "test@example.com", "organizer"), nil, nil)(handler).ServeHTTP(rr, newTestRequest("bearer valid-token"))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if GetUserID(handler.ctx) != "user:123" {
		t.Errorf("expected UserID 'user:123', got %q", GetUserID(handler.ctx))
	}
	if GetUserEmail(handler.ctx) != "test@example.com" {
		t.Errorf("expected email 'test@example.com', got %q", GetUserEmail(handler.ctx))
	}
	if GetUserRole(handler.ctx) != "organizer" {
		t.Errorf("expected role 'organizer', got %q", GetUserRole(handler.ctx))
	}
	if claims := GetClaims(handler.ctx); claims == nil || claims.UserID != "user:123" {
		t.Errorf("expected claims for user:123, got %+v", claims)
	}
}

func TestAuth_RoleComesFromAccount(t *testing.T) {
	t.Parallel()
	accounts := &mockAccounts{user: &model.User{ID: "user:123", Role: model.UserRoleAttendee, Status: model.UserStatusActive}}
	handler := &captureHandler{}
	rr := httptest.NewRecorder()

	// The token still claims admin after a demotion
	Auth(successAuthService("user:123", "a@example.com", "admin"), accounts, nil)(handler).ServeHTTP(rr, newTestRequest("Bearer t"))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if GetUserRole(handler.ctx) != "attendee" {
		t.Errorf("expected role 'attendee', got %q", GetUserRole(handler.ctx))
	}
	if GetUser(handler.ctx) != accounts.user {
		t.Error("expected loaded account in context")
	}
}

func TestAuth_AccountStates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		accounts *mockAccounts
		want     int
	}{
		{"deleted", &mockAccounts{}, http.StatusUnauthorized},
		{"suspended", &mockAccounts{user: &model.User{ID: "user:1", Status: model.UserStatusSuspended}}, http.StatusForbidden},
		{"banned", &mockAccounts{user: &model.User{ID: "user:1", Status: model.UserStatusBanned}}, http.StatusForbidden},
		{"lookup failure", &mockAccounts{err: errors.New("db down")}, http.StatusInternalServerError},
		{"active", &mockAccounts{user: &model.User{ID: "user:1", Status: model.UserStatusActive}}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			handler := &captureHandler{}
			rr := httptest.NewRecorder()

			Auth(successAuthService("user:1", "a@example.com", "attendee"), tt.accounts, nil)(handler).ServeHTTP(rr, newTestRequest("Bearer t"))

			if rr.Code != tt.want {
				t.Errorf("expected status %d, got %d", tt.want, rr.Code)
			}
			if handler.called != (tt.want == http.StatusOK) {
				t.Errorf("handler called = %v", handler.called)
			}
		})
	}
}

func TestAuth_RecordsActivity(t *testing.T) {
	t.Parallel()
	activity := &recordingActivity{}
	rr := httptest.NewRecorder()

	Auth(successAuthService("user:9", "a@example.com", "attendee"), nil, activity)(&captureHandler{}).ServeHTTP(rr, newTestRequest("Bearer t"))

	if len(activity.users) != 1 || activity.users[0] != "user:9" {
		t.Errorf("expected activity for user:9, got %v", activity.users)
	}
}

func TestAuth_RejectedRequest_RecordsNoActivity(t *testing.T) {
	t.Parallel()
	activity := &recordingActivity{}
	rr := httptest.NewRecorder()

	Auth(errorAuthService(jwt.ErrInvalidToken), nil, activity)(&captureHandler{}).ServeHTTP(rr, newTestRequest("Bearer t"))

	if len(activity.users) != 0 {
		t.Errorf("expected no activity, got %v", activity.users)
	}
}

// ============================================================================
// OptionalAuth() Tests
// ============================================================================

func TestOptionalAuth_NoOrBadCredentials_Proceeds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		svc    *mockAuthService
		header string
	}{
		{"no header", successAuthService("user:1", "", ""), ""},
		{"bad format", successAuthService("user:1", "", ""), "Token abc"},
		{"invalid token", errorAuthService(jwt.ErrInvalidToken), "Bearer abc"},
		{"expired token", errorAuthService(jwt.ErrTokenExpired), "Bearer abc"},
	}

	for _, tt := range tests {
		handler := &captureHandler{}
		rr := httptest.NewRecorder()

		OptionalAuth(tt.svc)(handler).ServeHTTP(rr, newTestRequest(tt.header))

		if !handler.called {
			t.Errorf("%s: handler should have been called", tt.name)
		}
		if GetUserID(handler.ctx) != "" {
			t.Errorf("%s: expected no user in context", tt.name)
		}
	}
}

func TestOptionalAuth_ValidToken_SetsContext(t *testing.T) {
	t.Parallel()
	handler := &captureHandler{}
	rr := httptest.NewRecorder()

	OptionalAuth(successAuthService("user:5", "e@example.com", "attendee"))(handler).ServeHTTP(rr, newTestRequest("Bearer abc"))

	if GetUserID(handler.ctx) != "user:5" {
		t.Errorf("expected user:5, got %q", GetUserID(handler.ctx))
	}
}

// ============================================================================
// Context Getter Tests
// ============================================================================

func TestContextGetters_MissingOrWrongType(t *testing.T) {
	t.Parallel()
	ctx := context.WithValue(context.Background(), UserIDKey, 42)
	ctx = context.WithValue(ctx, ClaimsKey, "not claims")

	if GetUserID(ctx) != "" {
		t.Error("expected empty user id for wrong type")
	}
	if GetUserEmail(ctx) != "" {
		t.Error("expected empty email")
	}
	if GetUserRole(ctx) != "" {
		t.Error("expected empty role")
	}
	if GetClaims(ctx) != nil {
		t.Error("expected nil claims for wrong type")
	}
	if GetUser(ctx) != nil {
		t.Error("expected nil user")
	}
}

// ============================================================================
// Authorize() Tests
// ============================================================================

type roleChecker map[string]bool

func (c roleChecker) Can(role, resource, action string) bool {
	return c[role+"/"+resource+"/"+action]
}

func TestAuthorize(t *testing.T) {
	t.Parallel()
	checker := roleChecker{"organizer/events/write": true}

	tests := []struct {
		name   string
		userID string
		role   string
		want   int
	}{
		{"unauthenticated", "", "", http.StatusUnauthorized},
		{"denied role", "user:1", "attendee", http.StatusForbidden},
		{"allowed role", "user:1", "organizer", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			if tt.userID != "" {
				ctx = context.WithValue(ctx, UserIDKey, tt.userID)
				ctx = context.WithValue(ctx, UserRoleKey, tt.role)
			}
			req := newTestRequest("").WithContext(ctx)
			rr := httptest.NewRecorder()

			Authorize(checker, "events", "write")(&captureHandler{}).ServeHTTP(rr, req)

			if rr.Code != tt.want {
				t.Errorf("expected status %d, got %d", tt.want, rr.Code)
			}
		})
	}
}
