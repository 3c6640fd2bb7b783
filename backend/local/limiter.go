package local

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultResetRate allows one reset email per minute per address.
var (
	DefaultResetRate  = rate.Every(time.Minute)
	DefaultResetBurst = 3
)

type emailLimiter struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*addressLimiter
}

type addressLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

func newEmailLimiter(limit rate.Limit, burst int) *emailLimiter {
	return &emailLimiter{
		limit:    limit,
		burst:    burst,
		limiters: make(map[string]*addressLimiter),
	}
}

func (l *emailLimiter) allow(email string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	al, ok := l.limiters[email]
	if !ok {
		al = &addressLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[email] = al
	}
	al.lastAccess = now

	return al.limiter.AllowN(now, 1)
}

// sweep drops limiters idle for longer than idle.
func (l *emailLimiter) sweep(now time.Time, idle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for email, al := range l.limiters {
		if now.Sub(al.lastAccess) > idle {
			delete(l.limiters, email)
			removed++
		}
	}
	return removed
}

func (l *emailLimiter) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}
