package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/matthew-heyner/family-finance/internal/log"
	"github.com/matthew-heyner/family-finance/internal/util"
)

// Limiter is a fixed-window request counter per client IP.
type Limiter struct {
	mu       sync.Mutex
	clients  map[string]*clientWindow
	requests int
	window   time.Duration
	now      func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

type clientWindow struct {
	start time.Time
	count int
}

// NewLimiter allows requests per window for each client. A background
// sweep drops idle clients until Stop is called.
func NewLimiter(requests int, window time.Duration) *Limiter {
	if requests <= 0 {
		requests = 300
	}
	if window <= 0 {
		window = time.Minute
	}
	l := &Limiter{
		clients:  make(map[string]*clientWindow),
		requests: requests,
		window:   window,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	go l.sweep(5 * window)
	return l
}

// Allow records a request from key and reports whether it is within the
// limit, plus how long until the window resets.
func (l *Limiter) Allow(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cw, ok := l.clients[key]
	if !ok || now.Sub(cw.start) >= l.window {
		l.clients[key] = &clientWindow{start: now, count: 1}
		return true, 0
	}
	cw.count++
	if cw.count > l.requests {
		return false, l.window - now.Sub(cw.start)
	}
	return true, 0
}

func (l *Limiter) sweep(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.mu.Lock()
			cutoff := l.now().Add(-l.window)
			for k, cw := range l.clients {
				if cw.start.Before(cutoff) {
					delete(l.clients, k)
				}
			}
			l.mu.Unlock()
		case <-l.stop:
			return
		}
	}
}

func (l *Limiter) ActiveClients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// RateLimit answers 429 with Retry-After once a client exceeds the limit.
func RateLimit(l *Limiter, logger *log.Logger) gin.HandlerFunc {
	logger = logger.WithComponent(log.ComponentRateLimit)
	return func(c *gin.Context) {
		ok, wait := l.Allow(c.ClientIP())
		if !ok {
			secs := int(wait.Seconds())
			if secs < 1 {
				secs = 1
			}
			c.Header("Retry-After", strconv.Itoa(secs))
			logger.WarnContext(c.Request.Context(), "rate limit exceeded", log.FieldClientIP, c.ClientIP())
			util.Error(c, util.TooManyRequests("Too many requests, please try again later"))
			return
		}
		c.Next()
	}
}
