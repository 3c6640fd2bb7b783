// Package web serves the workshop pages. Every browser gets its own store,
// kept in a Registry and found through a cookie.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-workshop"
	"github.com/goliatone/go-workshop/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	VisitorCookie = "workshop_visitor"
	TokenCookie   = "workshop_token"

	visitorLocal = "visitor"
)

// Server serves the workshop pages through a go-router fiber adapter.
type Server struct {
	srv       router.Server[*fiber.App]
	visitors  *Registry
	collector *metrics.Collector
	gatherer  prometheus.Gatherer
	logger    workshop.Logger
	tokens    *csrfTokens

	csrfKey        []byte
	csrfTTL        time.Duration
	secureCookies  bool
	cookieDuration time.Duration
}

type Option func(*Server)

func WithLogger(logger workshop.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records request outcomes on collector and serves gatherer
// on /metrics.
func WithMetrics(collector *metrics.Collector, gatherer prometheus.Gatherer) Option {
	return func(s *Server) {
		s.collector = collector
		s.gatherer = gatherer
	}
}

// WithSecureCookies marks cookies Secure. Enable behind TLS.
func WithSecureCookies(secure bool) Option {
	return func(s *Server) {
		s.secureCookies = secure
	}
}

func WithCookieDuration(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.cookieDuration = d
		}
	}
}

// WithCSRFKey signs csrf tokens with key. Without it a random key is used,
// which invalidates tokens on restart.
func WithCSRFKey(key []byte) Option {
	return func(s *Server) {
		s.csrfKey = key
	}
}

func WithCSRFTTL(ttl time.Duration) Option {
	return func(s *Server) {
		s.csrfTTL = ttl
	}
}

func New(visitors *Registry, opts ...Option) (*Server, error) {
	if visitors == nil {
		return nil, goerrors.New("visitor registry is required", goerrors.CategoryBadInput)
	}

	s := &Server{
		visitors:       visitors,
		logger:         workshop.DefaultLogger(),
		cookieDuration: 30 * 24 * time.Hour,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	tokens, err := newCSRFTokens(s.csrfKey, s.csrfTTL)
	if err != nil {
		return nil, err
	}
	s.tokens = tokens

	engine, err := NewViewEngine()
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load views")
	}

	s.srv = router.NewFiberAdapter(func(_ *fiber.App) *fiber.App {
		app := fiber.New(fiber.Config{
			Views:                 engine,
			ErrorHandler:          s.errorHandler,
			DisableStartupMessage: true,
		})

		app.Use(recover.New())
		app.Use(s.recordRequest)

		app.Get("/healthz", s.healthz)
		if s.gatherer != nil {
			app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler(s.gatherer)))
		}

		return app
	})

	s.routes(s.srv.Router())
	s.srv.Init()

	return s, nil
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.srv.WrappedRouter()
}

func (s *Server) Listen(addr string) error {
	return s.srv.Serve(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) routes(r router.Router[*fiber.App]) {
	r.WithLogger(s.logger)

	r.Use(s.visitor)
	r.Use(s.csrf)

	r.Get("/", s.landing).SetName("workshop.landing")
	r.Get("/api/session", s.session).SetName("workshop.session")

	r.Get("/auth", s.authShow).SetName("auth.show")

	auth := r.Group("/auth")
	auth.Get("/csrf", s.csrfToken).SetName("auth.csrf.get")
	auth.Post("/sign-in", s.signIn).SetName("auth.sign_in")
	auth.Post("/sign-up", s.signUp).SetName("auth.sign_up")
	auth.Post("/reset", s.resetPassword).SetName("auth.reset")
	auth.Post("/sign-out", s.signOut).SetName("auth.sign_out")

	r.Get("/portal", s.portal, s.guard).SetName("workshop.portal")
	r.Get("/lobby", s.lobby, s.guard).SetName("workshop.lobby")
}

func (s *Server) recordRequest(c *fiber.Ctx) error {
	err := c.Next()
	if s.collector == nil {
		return err
	}

	status := c.Response().StatusCode()
	if err != nil {
		status = statusFor(err)
	}
	s.collector.RecordRequest(c.Route().Path, status)
	return err
}

// visitor resolves the store for the request, creating one on first visit.
// A remembered access token is handed to the new client so the session can
// be restored.
func (s *Server) visitor(next router.HandlerFunc) router.HandlerFunc {
	return func(ctx router.Context) error {
		if v, ok := s.visitors.Get(ctx.Cookies(VisitorCookie)); ok {
			ctx.Locals(visitorLocal, v)
			return next(ctx)
		}

		v, err := s.visitors.Create(ctx.Context(), ctx.Cookies(TokenCookie))
		if err != nil {
			return err
		}

		s.setCookie(ctx, VisitorCookie, v.ID, s.cookieDuration)
		ctx.Locals(visitorLocal, v)
		return next(ctx)
	}
}

// guard mirrors the portal rules: no page until the store has settled, and
// no page without a live session.
func (s *Server) guard(next router.HandlerFunc) router.HandlerFunc {
	return func(ctx router.Context) error {
		st := currentVisitor(ctx).Store.State()

		if !st.Initialized {
			return ctx.Status(http.StatusServiceUnavailable).Render(viewInitializing, s.page(ctx, st, nil))
		}

		if !st.Authenticated() {
			return ctx.Redirect("/auth", http.StatusFound)
		}

		return next(ctx)
	}
}

func currentVisitor(ctx router.Context) *Visitor {
	v, _ := ctx.Locals(visitorLocal).(*Visitor)
	return v
}

// page builds the view context with the csrf token for forms.
func (s *Server) page(ctx router.Context, st workshop.State, data map[string]any) router.ViewContext {
	out := viewContext(st, data)
	out["csrf_token"] = csrfTokenFrom(ctx)
	out["csrf_field"] = CSRFField
	return out
}

func (s *Server) setCookie(ctx router.Context, name, value string, duration time.Duration) {
	ctx.Cookie(&router.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  time.Now().Add(duration),
		HTTPOnly: true,
		Secure:   s.secureCookies,
		SameSite: "Lax",
	})
}

func (s *Server) clearCookie(ctx router.Context, name string) {
	ctx.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   s.secureCookies,
		SameSite: "Lax",
	})
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	status := statusFor(err)

	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
			WithCode(status)
	}

	s.logger.Error("request failed",
		"path", c.OriginalURL(),
		"status", status,
		"category", richErr.Category,
		"error", err,
	)

	st := workshop.State{}
	if v, ok := c.Locals(visitorLocal).(*Visitor); ok && v != nil {
		st = v.Store.State()
	}

	return c.Status(status).Render(viewError, viewContext(st, map[string]any{
		"status":  status,
		"message": richErr.Message,
	}))
}

// statusFor maps an error to an HTTP status, preferring the rich error code.
func statusFor(err error) int {
	var fiberErr *fiber.Error
	if goerrors.As(err, &fiberErr) {
		return fiberErr.Code
	}

	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return fiber.StatusInternalServerError
	}

	if richErr.Code >= 400 && richErr.Code < 600 {
		return richErr.Code
	}

	switch richErr.Category {
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return fiber.StatusUnprocessableEntity
	case goerrors.CategoryAuth:
		return fiber.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return fiber.StatusForbidden
	case goerrors.CategoryNotFound:
		return fiber.StatusNotFound
	case goerrors.CategoryConflict:
		return fiber.StatusConflict
	case goerrors.CategoryRateLimit:
		return fiber.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}
