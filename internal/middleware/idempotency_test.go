package middleware

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// countingHandler answers 201 with a numbered body
type countingHandler struct {
	calls  int32
	status int
}

func (h *countingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n := atomic.AddInt32(&h.calls, 1)
	status := h.status
	if status == 0 {
		status = http.StatusCreated
	}
	w.Header().Set("X-Call", string(rune('0'+n)))
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"call":` + string(rune('0'+n)) + `}`))
}

func keyedRequest(method, path, key, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	req.RemoteAddr = "192.168.1.1:12345"
	return req
}

func serve(mw Middleware, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	mw(h).ServeHTTP(rr, req)
	return rr
}

// ============================================================================
// Store Tests
// ============================================================================

func TestNewIdempotencyStore_DefaultConfig(t *testing.T) {
	t.Parallel()
	store := NewIdempotencyStore(IdempotencyConfig{})
	defer store.Stop()

	if store.ttl != 24*time.Hour {
		t.Errorf("expected TTL 24h, got %v", store.ttl)
	}
	if store.maxBody != 1<<20 {
		t.Errorf("expected max body 1MB, got %d", store.maxBody)
	}
}

func TestIdempotencyStore_Stop_IsIdempotent(t *testing.T) {
	t.Parallel()
	store := NewIdempotencyStore(IdempotencyConfig{Cleanup: time.Millisecond})
	time.Sleep(5 * time.Millisecond)
	store.Stop()
	store.Stop()
}

func TestScopeKey_SeparatesParts(t *testing.T) {
	t.Parallel()
	base := scopeKey("user:1", "k", "POST", "/api/events/1/tickets")

	others := []string{
		scopeKey("user:2", "k", "POST", "/api/events/1/tickets"),
		scopeKey("user:1", "k2", "POST", "/api/events/1/tickets"),
		scopeKey("user:1", "k", "PATCH", "/api/events/1/tickets"),
		scopeKey("user:1", "k", "POST", "/api/events/2/tickets"),
		scopeKey("user:1k", "", "POST", "/api/events/1/tickets"),
	}
	for i, other := range others {
		if other == base {
			t.Errorf("variant %d collided with base key", i)
		}
	}
	if scopeKey("user:1", "k", "POST", "/api/events/1/tickets") != base {
		t.Error("expected stable key")
	}
}

// ============================================================================
// Middleware Tests
// ============================================================================

func TestIdempotency_PassesThroughUnkeyedAndOtherMethods(t *testing.T) {
	t.Parallel()
	store := NewIdempotencyStore(IdempotencyConfig{})
	defer store.Stop()
	h := &countingHandler{}

	serve(Idempotency(store), h, keyedRequest(http.MethodGet, "/a", "k", ""))
	serve(Idempotency(store), h, keyedRequest(http.MethodGet, "/a", "k", ""))
	serve(Idempotency(store), h, keyedRequest(http.MethodDelete, "/a", "k", ""))
	serve(Idempotency(store), h, keyedRequest(http.MethodPost, "/a", "", `{}`))
	serve(Idempotency(store), h, keyedRequest(http.MethodPost, "/a", "", `{}`))

	if h.calls != 5 {
		t.Errorf("expected 5 handler calls, got %d", h.calls)
	}
}

func TestIdempotency_ReplaysStoredResponse(t *testing.T) {
	t.Parallel()
	store := NewIdempotencyStore(IdempotencyConfig{})
	defer store.Stop()
	h := &countingHandler{}

	first := serve(Idempotency(store), h, keyedRequest(http.MethodPost, "/api/events/1/tickets", "buy-1", `{"tier":"VIP"}`))
	second := serve(Idempotency(store), h, keyedRequest(http.MethodPost, "/api/events/1/tickets", "buy-1", `{"tier":"VIP"}`))

	if h.calls != 1 {
		t.Fatalf("expected one handler call, got %d", h.calls)
	}
	if second.Code != http.StatusCreated {
		t.Errorf("expected replayed 201, got %d", second.Code)
	}
	if second.Body.String() != first.Body.String() {
		t.Errorf("expected body %q, got %q", first.Body.String(), second.Body.String())
	}
	if second.Header().Get("X-Call") != "1" {
		t.Errorf("expected original headers, got X-Call=%q", second.Header().Get("X-Call"))
	}
	if second.Header().Get("X-Idempotency-Replayed") != "true" {
		t.Error("expected X-Idempotency-Replayed header")
	}
	if first.Header().Get("X-Idempotency-Replayed") != "" {
		t.Error("first response should not be marked replayed")
	}
}

func TestIdempotency_DifferentBody_Returns422(t *testing.T) {
	t.Parallel()
	store := NewIdempotencyStore(IdempotencyConfig{})
	defer store.Stop()
	h := &countingHandler{}

	serve(Idempotency(store), h, keyedRequest(http.MethodPost, "/p", "k", `{"quantity":1}`))
	rr := serve(Idempotency(store), h, keyedRequest(http.MethodPost, "/p", "k", `{"quantity":2}`))

	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", rr.Code)
	}
	if h.calls != 1 {
		t.Errorf("expected one handler call, got %d", h.calls)
	}
}

func TestIdempotency_ServerError_IsNotStored(t *testing.T) {
	t.Parallel()
	store := NewIdempotencyStore(IdempotencyConfig{})
	defer store.Stop()
	h := &countingHandler{status: http.StatusBadGateway}

	serve(Idempotency(store), h, keyedRequest(http.MethodPost, "/p", "k", `{}`))
	h.status = http.StatusCreated
	rr := serve(Idempotency(store), h, keyedRequest(http.MethodPost, "/p", "k", `{}`))

	if h.calls != 2 {
		t.Errorf("expected retry to reach handler, got %d calls", h.calls)
	}
	if rr.Code != http.StatusCreated {
		t.Errorf("expected 201 on retry, got %d", rr.Code)
	}
}

func TestIdempotency_ClientError_IsStored(t *testing.T) {
	t.Parallel()
	store := NewIdempotencyStore(IdempotencyConfig{})
	defer store.Stop()
	h := &countingHandler{status: http.StatusBadRequest}

	serve(Idempotency(store), h, keyedRequest(http.MethodPost, "/p", "k", `{}`))
	rr := serve(Idempotency(store), h, keyedRequest(http.MethodPost, "/p", "k", `{}`))

	if h.calls != 1 || rr.Code != http.StatusBadRequest {
		t.Errorf("expected stored 400, got %d after %d calls", rr.Code, h.calls)
	}
}

func TestIdempotency_PanicIsNotStored(t *testing.T) {
	t.Parallel()
	store := NewIdempotencyStore(IdempotencyConfig{})
	defer store.Stop()

	panicking := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { panic("boom") })
	serve(Recovery, Idempotency(store)(panicking), keyedRequest(http.MethodPost, "/p", "k", `{}`))

	h := &countingHandler{}
	rr := serve(Idempotency(store), h, keyedRequest(http.MethodPost, "/p", "k", `{}`))
	if h.calls != 1 || rr.Code != http.StatusCreated {
		t.Errorf("expected fresh processing after panic, got %d after %d calls", rr.Code, h.calls)
	}
}

func TestIdempotency_ScopedPerCaller(t *testing.T) {
	t.Parallel()
	store := NewIdempotencyStore(IdempotencyConfig{})
	defer store.Stop()
	h := &countingHandler{}

	for _, user := range []string{"user:1", "user:2"} {
		req := keyedRequest(http.MethodPost, "/p", "same-key", `{}`)
		req = req.WithContext(context.WithValue(req.Context(), UserIDKey, user))
		serve(Idempotency(store), h, req)
	}

	if h.calls != 2 {
		t.Errorf("expected each caller processed once, got %d calls", h.calls)
	}
}

func TestIdempotency_RestoresRequestBody(t *testing.T) {
	t.Parallel()
	store := NewIdempotencyStore(IdempotencyConfig{})
	defer store.Stop()

	var got string
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(r.Body)
		got = buf.String()
		w.WriteHeader(http.StatusOK)
	})

	serve(Idempotency(store), h, keyedRequest(http.MethodPost, "/p", "k", `{"tier":"General"}`))
	if got != `{"tier":"General"}` {
		t.Errorf("expected handler to read original body, got %q", got)
	}
}

func TestIdempotency_OversizedBody_Bypasses(t *testing.T) {
	t.Parallel()
	store := NewIdempotencyStore(IdempotencyConfig{MaxBody: 4})
	defer store.Stop()

	var got string
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(r.Body)
		got = buf.String()
		w.WriteHeader(http.StatusCreated)
	})

	serve(Idempotency(store), h, keyedRequest(http.MethodPost, "/p", "k", "0123456789"))
	if got != "0123456789" {
		t.Errorf("expected full body, got %q", got)
	}
	if len(store.entries) != 0 {
		t.Errorf("expected nothing stored, got %d entries", len(store.entries))
	}
}

func TestIdempotency_ExpiredEntry_ProcessesAgain(t *testing.T) {
	t.Parallel()
	store := NewIdempotencyStore(IdempotencyConfig{TTL: time.Minute})
	defer store.Stop()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	h := &countingHandler{}

	serve(Idempotency(store), h, keyedRequest(http.MethodPost, "/p", "k", `{}`))
	now = now.Add(2 * time.Minute)
	serve(Idempotency(store), h, keyedRequest(http.MethodPost, "/p", "k", `{}`))

	if h.calls != 2 {
		t.Errorf("expected expired key to be processed again, got %d calls", h.calls)
	}
}

func TestIdempotency_InFlight_SecondRequestWaits(t *testing.T) {
	t.Parallel()
	store := NewIdempotencyStore(IdempotencyConfig{})
	defer store.Stop()

	var calls int32
	started := make(chan struct{})
	proceed := make(chan struct{})
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		close(started)
		<-proceed
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result":"done"}`))
	})

	var wg sync.WaitGroup
	results := make([]*httptest.ResponseRecorder, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0] = serve(Idempotency(store), h, keyedRequest(http.MethodPost, "/p", "inflight", `{}`))
	}()
	<-started

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1] = serve(Idempotency(store), h, keyedRequest(http.MethodPost, "/p", "inflight", `{}`))
	}()

	time.Sleep(50 * time.Millisecond)
	close(proceed)
	wg.Wait()

	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("expected handler called once, got %d", calls)
	}
	for i, rr := range results {
		if rr.Code != http.StatusCreated {
			t.Errorf("request %d: expected 201, got %d", i, rr.Code)
		}
	}
	if results[1].Header().Get("X-Idempotency-Replayed") != "true" {
		t.Error("second request should be a replay")
	}
}

func TestIdempotencyStore_Cleanup_RemovesOnlyExpired(t *testing.T) {
	t.Parallel()
	store := NewIdempotencyStore(IdempotencyConfig{TTL: time.Minute, Cleanup: time.Hour})
	defer store.Stop()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	h := &countingHandler{}

	serve(Idempotency(store), h, keyedRequest(http.MethodPost, "/old", "k", `{}`))
	now = now.Add(90 * time.Second)
	serve(Idempotency(store), h, keyedRequest(http.MethodPost, "/new", "k", `{}`))

	store.cleanup()

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.entries) != 1 {
		t.Errorf("expected 1 entry after cleanup, got %d", len(store.entries))
	}
}
