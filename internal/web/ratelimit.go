package web

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/JonMunkholm/tablefix/internal/core"
)

// rateLimiter counts requests per client IP in fixed windows. Counters of
// clients idle for two windows are dropped by a background sweep that runs
// until stop.
type rateLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	clients map[string]*windowCount

	done chan struct{}
	once sync.Once
}

type windowCount struct {
	start time.Time
	n     int
}

// newRateLimiter creates a limiter owned by the server. Shutdown stops it.
func (s *Server) newRateLimiter(limit int, window time.Duration) *rateLimiter {
	rl := &rateLimiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		clients: make(map[string]*windowCount),
		done:    make(chan struct{}),
	}
	s.limiters = append(s.limiters, rl)
	go rl.sweep()
	return rl
}

func (rl *rateLimiter) sweep() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			cutoff := rl.now().Add(-2 * rl.window)
			rl.mu.Lock()
			for ip, c := range rl.clients {
				if c.start.Before(cutoff) {
					delete(rl.clients, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

func (rl *rateLimiter) stop() {
	rl.once.Do(func() { close(rl.done) })
}

// take records one request from ip. It reports whether the request is within
// the limit, how many requests remain and when the window resets.
func (rl *rateLimiter) take(ip string) (ok bool, remaining int, reset time.Time) {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	c := rl.clients[ip]
	if c == nil || now.Sub(c.start) >= rl.window {
		c = &windowCount{start: now}
		rl.clients[ip] = c
	}
	reset = c.start.Add(rl.window)
	if c.n >= rl.limit {
		return false, 0, reset
	}
	c.n++
	return true, rl.limit - c.n, reset
}

func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, remaining, reset := rl.take(clientIP(r))
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if !ok {
			wait := int(math.Ceil(reset.Sub(rl.now()).Seconds()))
			w.Header().Set("Retry-After", strconv.Itoa(max(1, wait)))
			respondErrorJSON(w, core.MapError(errRateLimited), http.StatusTooManyRequests, nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP returns the request's client address without its port.
// TrustedRealIP has already rewritten RemoteAddr for trusted proxies.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
