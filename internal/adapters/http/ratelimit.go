package http

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ClientLimiter gives every client address a token bucket of limit
// attempts refilled over window. Buckets idle for a whole window are full
// again and get dropped.
type ClientLimiter struct {
	mu        sync.Mutex
	clients   map[string]*clientLimiter
	every     rate.Limit
	burst     int
	window    time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func NewClientLimiter(limit int, window time.Duration) *ClientLimiter {
	return &ClientLimiter{
		clients: make(map[string]*clientLimiter),
		every:   rate.Every(window / time.Duration(limit)),
		burst:   limit,
		window:  window,
		now:     time.Now,
	}
}

func (rl *ClientLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.sweep(now)

	c, ok := rl.clients[key]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(rl.every, rl.burst)}
		rl.clients[key] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

func (rl *ClientLimiter) sweep(now time.Time) {
	if now.Sub(rl.lastSweep) < rl.window {
		return
	}
	rl.lastSweep = now
	for key, c := range rl.clients {
		if now.Sub(c.lastSeen) >= rl.window {
			delete(rl.clients, key)
		}
	}
}

func (rl *ClientLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// RateLimit rejects intents from a client address that exceeds rl.
func RateLimit(rl *ClientLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Allow(c.ClientIP()) {
			log.Warn().Str("module", "adapters.http").Str("ip", c.ClientIP()).Str("path", c.FullPath()).Msg("rate limited")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
