package middleware

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"
)

// RateLimitRecorder counts refused requests per limiter
type RateLimitRecorder interface {
	RateLimited(limiter string)
}

// RateLimiter applies a per-client token bucket.
// Client identity is RemoteAddr, which chi's RealIP rewrites when running behind the proxy.
type RateLimiter struct {
	clients  map[string]*clientLimit
	recorder RateLimitRecorder
	now      func() time.Time
	stop     chan struct{}
	name     string
	limit    rate.Limit
	window   time.Duration
	burst    int
	mu       sync.Mutex
	stopOnce sync.Once
}

type clientLimit struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows requests per window per client, with the whole allowance available as a burst
func NewRateLimiter(name string, requests int, window time.Duration, recorder RateLimitRecorder) *RateLimiter {
	rl := &RateLimiter{
		clients:  make(map[string]*clientLimit),
		recorder: recorder,
		now:      time.Now,
		stop:     make(chan struct{}),
		name:     name,
		limit:    rate.Limit(float64(requests) / window.Seconds()),
		window:   window,
		burst:    requests,
	}

	go rl.cleanup()

	return rl
}

// Middleware returns a rate limiting middleware
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID := clientIP(r)

		if !rl.allow(clientID) {
			if rl.recorder != nil {
				rl.recorder.RateLimited(rl.name)
			}
			slog.Warn("rate limit exceeded",
				"limiter", rl.name,
				"client", clientID,
				"path", r.URL.Path,
				"request_id", chimw.GetReqID(r.Context()),
			)
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", strconv.Itoa(int(rl.window.Seconds())))
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "Too many requests"})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Close stops the cleanup goroutine
func (rl *RateLimiter) Close() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) allow(clientID string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	client, exists := rl.clients[clientID]
	if !exists {
		client = &clientLimit{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[clientID] = client
	}
	client.lastSeen = now

	return client.limiter.AllowN(now, 1)
}

// cleanup drops clients idle for a full window; their bucket has refilled by then
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.sweep()
		}
	}
}

func (rl *RateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for clientID, client := range rl.clients {
		if now.Sub(client.lastSeen) >= rl.window {
			delete(rl.clients, clientID)
		}
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
