package middleware

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"

	"github.com/menta2k/overlay-editor/internal/response"
)

var (
	ErrTooManyRequests = response.NewError(fiber.StatusTooManyRequests, "too many requests")
)

type rateLimiter struct {
	bucket    map[string]*clientLimiter
	rate      rate.Limit
	burstSize int
	mutex     *sync.RWMutex
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newRateLimiter(reqRate rate.Limit, burstSize int) *rateLimiter {
	return &rateLimiter{
		bucket:    make(map[string]*clientLimiter),
		rate:      reqRate,
		burstSize: burstSize,
		mutex:     &sync.RWMutex{},
	}
}

func (r *rateLimiter) GetLimiterFrom(ip string) *rate.Limiter {
	return r.limiterAt(ip, time.Now())
}

func (r *rateLimiter) limiterAt(ip string, now time.Time) *rate.Limiter {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	entry, exist := r.bucket[ip]
	if !exist {
		entry = &clientLimiter{limiter: rate.NewLimiter(r.rate, r.burstSize)}
		r.bucket[ip] = entry
	}
	entry.lastSeen = now

	return entry.limiter
}

// refillTime is how long an untouched bucket takes to fill up again.
// Past that, a dropped limiter and a fresh one behave the same.
func (r *rateLimiter) refillTime() time.Duration {
	if r.rate == rate.Inf {
		return 0
	}
	if r.rate <= 0 {
		return -1
	}
	return time.Duration(float64(r.burstSize) / float64(r.rate) * float64(time.Second))
}

// Sweep drops the limiters of clients idle for at least the refill time
func (r *rateLimiter) Sweep(now time.Time) int {
	idle := r.refillTime()
	if idle < 0 {
		return 0
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	removed := 0
	for ip, entry := range r.bucket {
		if now.Sub(entry.lastSeen) >= idle {
			delete(r.bucket, ip)
			removed++
		}
	}
	return removed
}

func (r *rateLimiter) Len() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.bucket)
}

func (m *middleware) NewRateLimiter(ctx *fiber.Ctx) error {
	clientIP := ctx.IP()
	limiter := m.rateLimitter.GetLimiterFrom(clientIP)

	if !limiter.Allow() {
		m.log.Warnf("too many requests for IP %s", clientIP)
		return ctx.Status(fiber.StatusTooManyRequests).JSON(response.ErrorResponse{
			Error: ErrTooManyRequests.Error(),
		})
	}

	return ctx.Next()
}

// SweepClients forgets rate limits of clients that have gone quiet
func (m *middleware) SweepClients(now time.Time) int {
	return m.rateLimitter.Sweep(now)
}

// EventLimiter throttles the events of one WebSocket connection
type EventLimiter struct {
	limiter *rate.Limiter
}

func NewEventLimiter(eventsPerSecond float64, burst int) *EventLimiter {
	return &EventLimiter{limiter: rate.NewLimiter(rate.Limit(eventsPerSecond), burst)}
}

// Allow reports whether another event may be processed now
func (l *EventLimiter) Allow() bool {
	return l.limiter.Allow()
}
