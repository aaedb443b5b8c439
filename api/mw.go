/*
mw.go - Rate limiting and read-cache middleware

PURPOSE:
  Two middlewares in front of the API:

  - RateLimit: token-bucket limiter per client IP. Over-limit requests
    get 429 without touching the handlers.
  - CacheGET: short-TTL response cache for GET endpoints. Serves the
    schedule browse traffic (rota and shift listings) without hitting
    the store on every poll. Mutations are never cached.
*/
package api

import (
	"bytes"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// =============================================================================
// RATE LIMITING
// =============================================================================

// ipLimiter hands out one token bucket per client IP. Buckets for idle
// clients are dropped after an hour.
type ipLimiter struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	rps      rate.Limit
	burst    int
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newIPLimiter(rps float64, burst int) *ipLimiter {
	l := &ipLimiter{
		limiters: make(map[string]*limiterEntry),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
	go l.cleanup()
	return l
}

func (l *ipLimiter) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.limiters[ip]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.limiters[ip] = e
	}
	e.lastSeen = time.Now()
	return e.limiter
}

func (l *ipLimiter) cleanup() {
	for range time.Tick(10 * time.Minute) {
		l.mu.Lock()
		for ip, e := range l.limiters {
			if time.Since(e.lastSeen) > time.Hour {
				delete(l.limiters, ip)
			}
		}
		l.mu.Unlock()
	}
}

// RateLimit returns a middleware enforcing rps/burst per client IP.
func RateLimit(rps float64, burst int) func(http.Handler) http.Handler {
	limiter := newIPLimiter(rps, burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr
			}
			if !limiter.get(ip).Allow() {
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// =============================================================================
// GET RESPONSE CACHE
// =============================================================================

type cachedResponse struct {
	status int
	header http.Header
	body   []byte
}

// recorder buffers a response so it can be cached after the handler runs.
type recorder struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
}

func (r *recorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *recorder) Write(b []byte) (int, error) {
	r.buf.Write(b)
	return r.ResponseWriter.Write(b)
}

// CacheGET returns a middleware caching successful GET responses for ttl.
// Keys on method + URL, so per-user views must carry their scope in the
// query string. A zero ttl disables the middleware.
func CacheGET(ttl time.Duration) func(http.Handler) http.Handler {
	if ttl <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	store := cache.New(ttl, 2*ttl)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}

			key := r.URL.String()
			if hit, ok := store.Get(key); ok {
				resp := hit.(cachedResponse)
				for k, vs := range resp.header {
					for _, v := range vs {
						w.Header().Add(k, v)
					}
				}
				w.Header().Set("X-Cache", "hit")
				w.WriteHeader(resp.status)
				w.Write(resp.body)
				return
			}

			rec := &recorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			if rec.status == http.StatusOK {
				store.Set(key, cachedResponse{
					status: rec.status,
					header: w.Header().Clone(),
					body:   rec.buf.Bytes(),
				}, cache.DefaultExpiration)
			}
		})
	}
}
