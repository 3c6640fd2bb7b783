package local

import (
	"time"

	"github.com/goliatone/go-workshop"
	"golang.org/x/time/rate"
)

// Defaults applied by NewService.
var (
	DefaultTokenTTL         = time.Hour
	DefaultRefreshTTL       = 30 * 24 * time.Hour
	DefaultIssuer           = "workshop"
	DefaultAudience         = "authenticated"
	DefaultMaxLoginAttempts = 5
	DefaultCoolDownPeriod   = 24 * time.Hour
)

// Option customizes a Service.
type Option func(*Service)

func WithLogger(logger workshop.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMailer(mailer Mailer) Option {
	return func(s *Service) {
		if mailer != nil {
			s.mailer = mailer
		}
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		if cost > 0 {
			s.bcryptCost = cost
		}
	}
}

// WithHashid derives account ids from the email address.
func WithHashid(enabled bool) Option {
	return func(s *Service) {
		s.useHashid = enabled
	}
}

func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.tokens.ttl = ttl
		}
	}
}

func WithRefreshTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
	}
}

func WithIssuer(issuer string) Option {
	return func(s *Service) {
		s.tokens.issuer = issuer
	}
}

func WithAudience(audience ...string) Option {
	return func(s *Service) {
		s.tokens.audience = audience
	}
}

// WithLoginThrottle sets how many failed attempts are allowed inside the
// cool down window.
func WithLoginThrottle(maxAttempts int, coolDown time.Duration) Option {
	return func(s *Service) {
		if maxAttempts > 0 {
			s.maxLoginAttempts = maxAttempts
		}
		if coolDown > 0 {
			s.coolDown = coolDown
		}
	}
}

// WithResetRate limits password reset emails per address.
func WithResetRate(limit rate.Limit, burst int) Option {
	return func(s *Service) {
		s.limiter = newEmailLimiter(limit, burst)
	}
}
