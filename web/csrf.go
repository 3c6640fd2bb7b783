package web

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

const (
	CSRFField  = "_token"
	CSRFHeader = "X-CSRF-Token"

	csrfLocal = "csrf_token"

	TextCodeCSRFMissing  = "CSRF_MISSING"
	TextCodeCSRFMismatch = "CSRF_MISMATCH"
	TextCodeCSRFExpired  = "CSRF_EXPIRED"

	DefaultCSRFTTL = 12 * time.Hour
)

var safeMethods = []string{"GET", "HEAD", "OPTIONS", "TRACE"}

// csrfTokens issues stateless tokens signed with key and bound to a visitor.
// A token is base64url("<unix>:<nonce>:<signature>").
type csrfTokens struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

func newCSRFTokens(key []byte, ttl time.Duration) (*csrfTokens, error) {
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := io.ReadFull(rand.Reader, key); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate csrf key")
		}
	}
	if ttl <= 0 {
		ttl = DefaultCSRFTTL
	}
	return &csrfTokens{key: key, ttl: ttl, now: time.Now}, nil
}

func (t *csrfTokens) issue(visitorID string) (string, error) {
	nonce := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate csrf nonce")
	}

	payload := strconv.FormatInt(t.now().UTC().Unix(), 10) + ":" + hex.EncodeToString(nonce)
	token := payload + ":" + t.sign(payload, visitorID)
	return base64.RawURLEncoding.EncodeToString([]byte(token)), nil
}

func (t *csrfTokens) verify(visitorID, token string) error {
	if token == "" {
		return csrfError("csrf token missing", TextCodeCSRFMissing)
	}

	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return csrfError("csrf token mismatch", TextCodeCSRFMismatch)
	}

	parts := strings.Split(string(decoded), ":")
	if len(parts) != 3 {
		return csrfError("csrf token mismatch", TextCodeCSRFMismatch)
	}

	payload := parts[0] + ":" + parts[1]
	if !hmac.Equal([]byte(parts[2]), []byte(t.sign(payload, visitorID))) {
		return csrfError("csrf token mismatch", TextCodeCSRFMismatch)
	}

	issued, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return csrfError("csrf token mismatch", TextCodeCSRFMismatch)
	}
	if t.now().UTC().Sub(time.Unix(issued, 0)) > t.ttl {
		return csrfError("csrf token expired", TextCodeCSRFExpired)
	}

	return nil
}

func (t *csrfTokens) sign(payload, visitorID string) string {
	mac := hmac.New(sha256.New, t.key)
	mac.Write([]byte(payload))
	mac.Write([]byte{':'})
	mac.Write([]byte(visitorID))
	return hex.EncodeToString(mac.Sum(nil))
}

func csrfError(message, textCode string) error {
	return goerrors.New(message, goerrors.CategoryAuthz).
		WithCode(router.StatusForbidden).
		WithTextCode(textCode)
}

// csrf hands every request a token for the visitor and rejects unsafe
// requests that do not echo one back in the form or header.
func (s *Server) csrf(next router.HandlerFunc) router.HandlerFunc {
	return func(ctx router.Context) error {
		v := currentVisitor(ctx)

		token, err := s.tokens.issue(v.ID)
		if err != nil {
			return err
		}
		ctx.Locals(csrfLocal, token)

		if slices.Contains(safeMethods, strings.ToUpper(ctx.Method())) {
			return next(ctx)
		}

		received := ctx.FormValue(CSRFField)
		if received == "" {
			received = ctx.Header(CSRFHeader)
		}

		if err := s.tokens.verify(v.ID, received); err != nil {
			s.logger.Warn("csrf check failed", "path", ctx.OriginalURL(), "error", err)
			return err
		}

		return next(ctx)
	}
}

func (s *Server) csrfToken(ctx router.Context) error {
	token, _ := ctx.Locals(csrfLocal).(string)

	ctx.SetHeader("Cache-Control", "no-store, max-age=0")

	return ctx.JSON(router.StatusOK, map[string]string{
		"token":       token,
		"field_name":  CSRFField,
		"header_name": CSRFHeader,
	})
}

func csrfTokenFrom(ctx router.Context) string {
	token, _ := ctx.Locals(csrfLocal).(string)
	return token
}
