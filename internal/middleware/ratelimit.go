package middleware

import (
	"encoding/json"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig holds the per-client token bucket settings.
type RateLimitConfig struct {
	RPS             float64       // sustained requests per second; <= 0 disables limiting
	Burst           int           // bucket size
	CleanupInterval time.Duration // how often idle clients are forgotten
}

// clientLimiter is one client's bucket plus when it was last used.
type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter keeps one token bucket per client IP.
//
// TOKEN BUCKET (golang.org/x/time/rate):
// Each client gets a bucket of Burst tokens that refills at RPS tokens per
// second. Every request takes a token; an empty bucket means 429. A burst of
// page loads goes through, a script hammering the API does not.
//
// The client key is r.RemoteAddr, so chi's RealIP middleware must run first
// when the server sits behind a proxy.
type RateLimiter struct {
	config RateLimitConfig
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	clients map[string]*clientLimiter

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewRateLimiter creates a RateLimiter and starts its cleanup goroutine.
// Call Stop when the server shuts down.
func NewRateLimiter(config RateLimitConfig, logger *slog.Logger) *RateLimiter {
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 5 * time.Minute
	}
	rl := &RateLimiter{
		config:  config,
		logger:  logger,
		now:     time.Now,
		clients: make(map[string]*clientLimiter),
		stopCh:  make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop ends the cleanup goroutine. Safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// Middleware rejects clients that exceed their bucket with 429 Too Many
// Requests and a Retry-After header.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	if rl.config.RPS <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientKey(r)

		if !rl.limiterFor(key).AllowN(rl.now(), 1) {
			rl.logger.Warn("rate limit exceeded",
				slog.String("client", key),
				slog.String("path", r.URL.Path),
			)
			writeRateLimitResponse(w, rate.Limit(rl.config.RPS))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) limiterFor(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cl, ok := rl.clients[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(rl.config.RPS), rl.config.Burst)}
		rl.clients[key] = cl
	}
	cl.lastAccess = rl.now()
	return cl.limiter
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup forgets clients idle for more than two cleanup intervals. A
// forgotten client starts again with a full bucket, which is what an idle
// client's bucket would have refilled to anyway.
func (rl *RateLimiter) cleanup() {
	ttl := rl.config.CleanupInterval * 2
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, cl := range rl.clients {
		if now.Sub(cl.lastAccess) > ttl {
			delete(rl.clients, key)
		}
	}
}

// clientKey is the client IP without the port.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr // RealIP already stripped the port
	}
	return host
}

// writeRateLimitResponse writes a 429 in the same JSON shape as every other
// API error. Retry-After is the time for one token to refill.
func writeRateLimitResponse(w http.ResponseWriter, limit rate.Limit) {
	retryAfter := int(math.Ceil(1.0 / float64(limit)))
	if retryAfter < 1 {
		retryAfter = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)

	json.NewEncoder(w).Encode(map[string]string{
		"error":   "rate_limited",
		"message": "too many requests, please slow down",
	})
}
