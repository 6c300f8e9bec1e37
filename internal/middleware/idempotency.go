package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/forgo/marquee/api/internal/model"
)

// IdempotencyStore remembers responses to keyed POST/PATCH requests so that a
// retried ticket purchase is replayed instead of charged twice
type IdempotencyStore struct {
	mu       sync.Mutex
	entries  map[string]*idempotencyEntry
	ttl      time.Duration
	maxBody  int64
	now      func() time.Time
	stopChan chan struct{}
	stopOnce sync.Once
}

type idempotencyEntry struct {
	fingerprint string
	status      int
	headers     http.Header
	body        []byte
	expiresAt   time.Time
	done        chan struct{} // closed when the first request finishes
	discarded   bool          // first request failed; waiters retry
}

// IdempotencyConfig holds configuration for idempotency middleware
type IdempotencyConfig struct {
	TTL     time.Duration // How long to keep results (default 24h)
	Cleanup time.Duration // Cleanup interval (default 1h)
	MaxBody int64         // Largest body fingerprinted; larger requests bypass (default 1 MB)
}

// NewIdempotencyStore creates a new idempotency store
func NewIdempotencyStore(cfg IdempotencyConfig) *IdempotencyStore {
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.Cleanup <= 0 {
		cfg.Cleanup = time.Hour
	}
	if cfg.MaxBody <= 0 {
		cfg.MaxBody = 1 << 20
	}

	store := &IdempotencyStore{
		entries:  make(map[string]*idempotencyEntry),
		ttl:      cfg.TTL,
		maxBody:  cfg.MaxBody,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}

	go store.cleanupLoop(cfg.Cleanup)
	return store
}

// Stop stops the cleanup goroutine
func (s *IdempotencyStore) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}

func (s *IdempotencyStore) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopChan:
			return
		}
	}
}

func (s *IdempotencyStore) cleanup() {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, entry := range s.entries {
		if !entry.inFlight() && entry.expiresAt.Before(now) {
			delete(s.entries, key)
		}
	}
}

func (e *idempotencyEntry) inFlight() bool {
	select {
	case <-e.done:
		return false
	default:
		return true
	}
}

// scopeKey identifies a client-supplied key within one caller and route
func scopeKey(caller, idempotencyKey, method, path string) string {
	h := sha256.New()
	for _, part := range []string{caller, idempotencyKey, method, path} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// bodyFingerprint hashes a request body
func bodyFingerprint(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// idempotencyResponseWriter captures the response for caching
type idempotencyResponseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func (w *idempotencyResponseWriter) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.status = status
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(status)
}

func (w *idempotencyResponseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// Idempotency returns middleware that honors the Idempotency-Key header on
// POST and PATCH. Keys are scoped to the caller and route. A replay with the
// same body returns the stored response; a different body gets 422. Server
// errors are not stored so the client can retry with the same key.
func Idempotency(store *IdempotencyStore) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost && r.Method != http.MethodPatch {
				next.ServeHTTP(w, r)
				return
			}

			idempotencyKey := r.Header.Get("Idempotency-Key")
			if idempotencyKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			caller := GetUserID(r.Context())
			if caller == "" {
				caller = r.RemoteAddr
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, store.maxBody+1))
			if err != nil {
				model.NewBadRequestError("could not read request body").WriteJSON(w)
				return
			}
			if int64(len(body)) > store.maxBody {
				// Too large to fingerprint; pass the whole stream through
				r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(body), r.Body))
				next.ServeHTTP(w, r)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			key := scopeKey(caller, idempotencyKey, r.Method, r.URL.Path)
			fingerprint := bodyFingerprint(body)

			for {
				store.mu.Lock()
				entry, exists := store.entries[key]
				if exists && !entry.inFlight() && (entry.discarded || entry.expiresAt.Before(store.now())) {
					delete(store.entries, key)
					exists = false
				}

				if !exists {
					entry = &idempotencyEntry{fingerprint: fingerprint, done: make(chan struct{})}
					store.entries[key] = entry
					store.mu.Unlock()
					store.process(w, r, next, key, entry)
					return
				}
				store.mu.Unlock()

				if entry.fingerprint != fingerprint {
					model.NewIdempotencyKeyReusedError().WriteJSON(w)
					return
				}

				select {
				case <-entry.done:
				case <-r.Context().Done():
					return
				}

				store.mu.Lock()
				discarded := entry.discarded
				store.mu.Unlock()
				if discarded {
					continue
				}

				replay(w, entry)
				return
			}
		})
	}
}

func (s *IdempotencyStore) process(w http.ResponseWriter, r *http.Request, next http.Handler, key string, entry *idempotencyEntry) {
	irw := &idempotencyResponseWriter{ResponseWriter: w, status: http.StatusOK}
	completed := false

	defer func() {
		s.mu.Lock()
		if !completed || irw.status >= http.StatusInternalServerError {
			entry.discarded = true
			if s.entries[key] == entry {
				delete(s.entries, key)
			}
		} else {
			entry.status = irw.status
			entry.headers = irw.Header().Clone()
			entry.body = irw.body.Bytes()
			entry.expiresAt = s.now().Add(s.ttl)
		}
		close(entry.done)
		s.mu.Unlock()
	}()

	next.ServeHTTP(irw, r)
	completed = true
}

func replay(w http.ResponseWriter, entry *idempotencyEntry) {
	for k, v := range entry.headers {
		for _, val := range v {
			w.Header().Add(k, val)
		}
	}
	w.Header().Set("X-Idempotency-Replayed", "true")
	w.WriteHeader(entry.status)
	_, _ = w.Write(entry.body)
}
