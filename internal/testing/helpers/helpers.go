package helpers

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/goccy/go-json"

	"github.com/forgo/marquee/api/internal/database"
	"github.com/forgo/marquee/api/internal/model"
	"github.com/forgo/marquee/api/pkg/jwt"
)

// TestJWTSecret signs every token minted by JWTHelper
const TestJWTSecret = "marquee-test-secret-0123456789abcdef"

// TestJWTIssuer is the issuer used by NewTestJWTService
const TestJWTIssuer = "marquee-test"

// ============================================================================
// JWT Helpers
// ============================================================================

// JWTHelper provides JWT token generation for tests
type JWTHelper struct {
	t   *testing.T
	svc *jwt.Service
}

// NewJWTHelper creates a JWT helper sharing the NewTestJWTService secret
func NewJWTHelper(t *testing.T) *JWTHelper {
	t.Helper()
	return &JWTHelper{t: t, svc: NewTestJWTService(t)}
}

// Service returns the signing service, for wiring the auth middleware
func (h *JWTHelper) Service() *jwt.Service {
	return h.svc
}

// GenerateToken creates a valid access token for user
func (h *JWTHelper) GenerateToken(user *model.User) string {
	h.t.Helper()
	return h.sign(claimsFor(user))
}

// GenerateExpiredToken creates an access token that expired an hour ago
func (h *JWTHelper) GenerateExpiredToken(user *model.User) string {
	h.t.Helper()
	claims := claimsFor(user)
	claims.ExpiresAt = gojwt.NewNumericDate(time.Now().Add(-1 * time.Hour))
	return h.sign(claims)
}

func (h *JWTHelper) sign(claims jwt.Claims) string {
	h.t.Helper()
	token, err := h.svc.Sign(claims)
	if err != nil {
		h.t.Fatalf("helpers: failed to sign token: %v", err)
	}
	return token
}

func claimsFor(user *model.User) jwt.Claims {
	return jwt.Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   string(user.Role),
	}
}

// NewTestJWTService creates an HS256 service with the shared test secret
func NewTestJWTService(t *testing.T) *jwt.Service {
	t.Helper()

	svc, err := jwt.NewService(jwt.Config{
		Secret:         TestJWTSecret,
		Issuer:         TestJWTIssuer,
		ExpirationMins: 15,
	})
	if err != nil {
		t.Fatalf("helpers: failed to create jwt service: %v", err)
	}
	return svc
}

// ============================================================================
// HTTP Request Helpers
// ============================================================================

// RequestBuilder helps construct HTTP requests for testing
type RequestBuilder struct {
	t          *testing.T
	method     string
	path       string
	body       interface{}
	headers    map[string]string
	pathValues map[string]string
	jwt        *JWTHelper
	user       *model.User
}

// NewRequest creates a new request builder
func NewRequest(t *testing.T, method, path string) *RequestBuilder {
	t.Helper()
	return &RequestBuilder{
		t:          t,
		method:     method,
		path:       path,
		headers:    make(map[string]string),
		pathValues: make(map[string]string),
	}
}

// WithBody sets the request body (will be JSON encoded)
func (rb *RequestBuilder) WithBody(body interface{}) *RequestBuilder {
	rb.body = body
	return rb
}

// WithHeader adds a header to the request
func (rb *RequestBuilder) WithHeader(key, value string) *RequestBuilder {
	rb.headers[key] = value
	return rb
}

// WithPathValue sets a route wildcard for handlers called without a mux
func (rb *RequestBuilder) WithPathValue(name, value string) *RequestBuilder {
	rb.pathValues[name] = value
	return rb
}

// WithIdempotencyKey sets the Idempotency-Key header
func (rb *RequestBuilder) WithIdempotencyKey(key string) *RequestBuilder {
	return rb.WithHeader("Idempotency-Key", key)
}

// WithAuth adds authentication for the given user
func (rb *RequestBuilder) WithAuth(jwt *JWTHelper, user *model.User) *RequestBuilder {
	rb.jwt = jwt
	rb.user = user
	return rb
}

// Build creates the HTTP request
func (rb *RequestBuilder) Build() *http.Request {
	rb.t.Helper()

	var bodyReader io.Reader
	if rb.body != nil {
		bodyBytes, err := json.Marshal(rb.body)
		if err != nil {
			rb.t.Fatalf("helpers: failed to marshal body: %v", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req := httptest.NewRequest(rb.method, rb.path, bodyReader)
	if rb.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range rb.headers {
		req.Header.Set(k, v)
	}
	for k, v := range rb.pathValues {
		req.SetPathValue(k, v)
	}
	if rb.jwt != nil && rb.user != nil {
		req.Header.Set("Authorization", "Bearer "+rb.jwt.GenerateToken(rb.user))
	}

	return req
}

// Do builds the request and serves it through h
func (rb *RequestBuilder) Do(h http.Handler) *httptest.ResponseRecorder {
	rb.t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, rb.Build())
	return rec
}

// ============================================================================
// Response Assertion Helpers
// ============================================================================

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, resp *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if resp.Code != expected {
		t.Errorf("expected status %d, got %d. Body: %s", expected, resp.Code, resp.Body.String())
	}
}

// AssertProblemDetails validates an RFC 9457 Problem Details error response
func AssertProblemDetails(t *testing.T, resp *httptest.ResponseRecorder, expectedStatus int, expectedCode model.ErrorCode) {
	t.Helper()

	AssertStatus(t, resp, expectedStatus)

	if ct := resp.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/problem+json") {
		t.Errorf("expected problem+json content type, got %q", ct)
	}

	var problem model.ProblemDetails
	if err := json.Unmarshal(resp.Body.Bytes(), &problem); err != nil {
		t.Fatalf("failed to decode problem details: %v. Body: %s", err, resp.Body.String())
	}
	if problem.Status != expectedStatus {
		t.Errorf("expected problem.status %d, got %d", expectedStatus, problem.Status)
	}
	if expectedCode != 0 && problem.Code != expectedCode {
		t.Errorf("expected problem.code %d, got %d", expectedCode, problem.Code)
	}
}

// AssertValidationError checks for a validation error on a specific field
func AssertValidationError(t *testing.T, resp *httptest.ResponseRecorder, field string) {
	t.Helper()

	var problem model.ProblemDetails
	if err := json.Unmarshal(resp.Body.Bytes(), &problem); err != nil {
		t.Fatalf("failed to decode problem details: %v", err)
	}

	for _, fe := range problem.Errors {
		if fe.Field == field {
			return
		}
	}
	t.Errorf("expected validation error on field %q, but not found. Errors: %+v", field, problem.Errors)
}

// DecodeResponse decodes the response body into the given struct
func DecodeResponse(t *testing.T, resp *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(resp.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to decode response: %v. Body: %s", err, resp.Body.String())
	}
}

// DecodeData decodes the "data" member of a standard envelope into v
func DecodeData(t *testing.T, resp *httptest.ResponseRecorder, v interface{}) {
	t.Helper()

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	DecodeResponse(t, resp, &envelope)
	if err := json.Unmarshal(envelope.Data, v); err != nil {
		t.Fatalf("failed to decode data: %v. Body: %s", err, resp.Body.String())
	}
}

// ============================================================================
// Database Assertion Helpers
// ============================================================================

// AssertRecordExists checks that a record exists in the database
func AssertRecordExists(t *testing.T, db database.Database, table, id string) {
	t.Helper()
	if !recordExists(t, db, table, id) {
		t.Errorf("expected record %s:%s to exist, but it doesn't", table, bareID(id))
	}
}

// AssertRecordNotExists checks that a record does not exist
func AssertRecordNotExists(t *testing.T, db database.Database, table, id string) {
	t.Helper()
	if recordExists(t, db, table, id) {
		t.Errorf("expected record %s:%s to not exist, but it does", table, bareID(id))
	}
}

// CountRecords returns the number of rows in table matching where.
// An empty where counts the whole table.
func CountRecords(t *testing.T, db database.Database, table, where string, vars map[string]interface{}) int {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	query := "SELECT count() AS total FROM type::table($table)"
	if where != "" {
		query += " WHERE " + where
	}
	query += " GROUP ALL"

	if vars == nil {
		vars = map[string]interface{}{}
	}
	vars["table"] = table

	results, err := db.Query(ctx, query, vars)
	if err != nil {
		t.Fatalf("failed to count %s: %v", table, err)
	}
	row, err := database.FirstRecord(results)
	if err != nil || row == nil {
		return 0
	}
	m, ok := row.(map[string]interface{})
	if !ok {
		return 0
	}
	switch n := m["total"].(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	case uint64:
		return int(n)
	}
	return 0
}

func recordExists(t *testing.T, db database.Database, table, id string) bool {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	results, err := db.Query(ctx, "SELECT * FROM type::record($table, $id)", map[string]interface{}{
		"table": table,
		"id":    bareID(id),
	})
	if err != nil {
		return false
	}
	return hasResults(results)
}

func bareID(id string) string {
	if _, rest, ok := strings.Cut(id, ":"); ok {
		return rest
	}
	return id
}

// hasResults checks if SurrealDB query returned any results
func hasResults(results []interface{}) bool {
	if len(results) == 0 {
		return false
	}

	resp, ok := results[0].(map[string]interface{})
	if !ok {
		return false
	}

	switch v := resp["result"].(type) {
	case []interface{}:
		return len(v) > 0
	case nil:
		return false
	default:
		return true
	}
}

// ============================================================================
// Utility Helpers
// ============================================================================

// StringPtr returns a pointer to the string
func StringPtr(s string) *string {
	return &s
}

// IntPtr returns a pointer to the int
func IntPtr(i int) *int {
	return &i
}

// BoolPtr returns a pointer to the bool
func BoolPtr(b bool) *bool {
	return &b
}

// TimeFromNow returns the current UTC time shifted by d, truncated to seconds
func TimeFromNow(d time.Duration) time.Time {
	return time.Now().UTC().Add(d).Truncate(time.Second)
}
