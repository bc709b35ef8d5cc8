package middleware

import (
	"net/http"
	"strings"
	"sync"
	"time"
)

// sweepAt is the table size at which expired keys are dropped.
const sweepAt = 256

// Dedup remembers keys for a TTL. It is safe for concurrent use.
type Dedup struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
	now  func() time.Time
}

// NewDedup creates a Dedup that treats a key as a duplicate for ttl after
// it was first recorded.
func NewDedup(ttl time.Duration) *Dedup {
	return &Dedup{
		seen: make(map[string]time.Time),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Seen reports whether key was recorded within the TTL. An unseen or
// expired key is recorded and false is returned.
func (d *Dedup) Seen(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if at, ok := d.seen[key]; ok && now.Sub(at) < d.ttl {
		return true
	}
	if len(d.seen) >= sweepAt {
		d.cleanupLocked(now)
	}
	d.seen[key] = now
	return false
}

// Forget drops key so the next request with it goes through.
func (d *Dedup) Forget(key string) {
	d.mu.Lock()
	delete(d.seen, key)
	d.mu.Unlock()
}

// Len returns the number of remembered keys.
func (d *Dedup) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}

func (d *Dedup) cleanupLocked(now time.Time) {
	for k, at := range d.seen {
		if now.Sub(at) >= d.ttl {
			delete(d.seen, k)
		}
	}
}

// Idempotency answers 409 to a request that repeats the Idempotency-Key of
// an earlier one from the same client. Requests without the header pass.
// A key is released again when the request ended without a submission
// (any status other than 200 or 201), so a corrected retry can reuse it.
func Idempotency(d *Dedup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			key = clientIP(r) + "|" + key
			if d.Seen(key) {
				writeError(w, http.StatusConflict, "duplicate request")
				return
			}

			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)
			if rw.statusCode != http.StatusOK && rw.statusCode != http.StatusCreated {
				d.Forget(key)
			}
		})
	}
}
