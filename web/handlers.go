package web

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-workshop"
)

const (
	modeSignIn = "signin"
	modeSignUp = "signup"
	modeReset  = "reset"
)

type signInForm struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

type signUpForm struct {
	Name     string `form:"name" json:"name"`
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

type resetForm struct {
	Email string `form:"email" json:"email"`
}

// sessionView is the JSON snapshot of a visitor store. Tokens stay server
// side.
type sessionView struct {
	Initialized   bool               `json:"initialized"`
	Loading       bool               `json:"loading"`
	Authenticated bool               `json:"authenticated"`
	Identity      *workshop.Identity `json:"identity"`
	Profile       *workshop.Profile  `json:"profile"`
	ExpiresAt     *time.Time         `json:"expires_at,omitempty"`
}

func newSessionView(st workshop.State) sessionView {
	view := sessionView{
		Initialized:   st.Initialized,
		Loading:       st.Loading,
		Authenticated: st.Authenticated(),
		Identity:      st.Identity,
		Profile:       st.Profile,
	}
	if st.Session != nil && !st.Session.ExpiresAt.IsZero() {
		expiresAt := st.Session.ExpiresAt
		view.ExpiresAt = &expiresAt
	}
	return view
}

func (s *Server) healthz(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":   "ok",
		"visitors": s.visitors.Len(),
	})
}

func (s *Server) landing(ctx router.Context) error {
	st := currentVisitor(ctx).Store.State()
	return ctx.Render(viewLanding, s.page(ctx, st, nil))
}

func (s *Server) session(ctx router.Context) error {
	return ctx.JSON(router.StatusOK, newSessionView(currentVisitor(ctx).Store.State()))
}

func (s *Server) authShow(ctx router.Context) error {
	st := currentVisitor(ctx).Store.State()
	if st.Authenticated() {
		return ctx.Redirect("/portal", http.StatusFound)
	}

	return ctx.Render(viewAuth, s.page(ctx, st, map[string]any{
		"mode": authMode(ctx.Query("mode")),
	}))
}

func (s *Server) signIn(ctx router.Context) error {
	v := currentVisitor(ctx)

	form := new(signInForm)
	if err := ctx.Bind(form); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse form").
			WithCode(router.StatusBadRequest)
	}

	if err := v.Store.SignIn(ctx.Context(), form.Email, form.Password); err != nil {
		return s.authFailed(ctx, v, modeSignIn, form.Email, err)
	}

	s.rememberToken(ctx, v)
	return ctx.Redirect("/portal", router.StatusSeeOther)
}

// signUp creates the account. When the backend holds the session back until
// the email is confirmed, the visitor store is dropped so nothing of the
// unconfirmed identity survives into the next request.
func (s *Server) signUp(ctx router.Context) error {
	v := currentVisitor(ctx)

	form := new(signUpForm)
	if err := ctx.Bind(form); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse form").
			WithCode(router.StatusBadRequest)
	}

	if err := v.Store.SignUp(ctx.Context(), form.Email, form.Password, form.Name); err != nil {
		return s.authFailed(ctx, v, modeSignUp, form.Email, err)
	}

	if v.Client.AccessToken() == "" {
		s.logger.Info("sign up awaits confirmation", "email", form.Email)
		s.visitors.Remove(v.ID)
		s.clearCookie(ctx, VisitorCookie)
		s.clearCookie(ctx, TokenCookie)

		return ctx.Render(viewAuth, s.page(ctx, workshop.State{Initialized: true}, map[string]any{
			"mode":   modeSignIn,
			"email":  form.Email,
			"notice": "Check your email to confirm the account, then sign in.",
		}))
	}

	s.rememberToken(ctx, v)
	return ctx.Redirect("/portal", router.StatusSeeOther)
}

func (s *Server) resetPassword(ctx router.Context) error {
	v := currentVisitor(ctx)

	form := new(resetForm)
	if err := ctx.Bind(form); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse form").
			WithCode(router.StatusBadRequest)
	}

	if err := v.Store.ResetPassword(ctx.Context(), form.Email); err != nil {
		return s.authFailed(ctx, v, modeReset, form.Email, err)
	}

	return ctx.Render(viewAuth, s.page(ctx, v.Store.State(), map[string]any{
		"mode":   modeSignIn,
		"email":  form.Email,
		"notice": "If an account exists for that email, a reset link is on its way.",
	}))
}

// signOut ends the session and drops the visitor store, so the next request
// starts from a fresh one.
func (s *Server) signOut(ctx router.Context) error {
	v := currentVisitor(ctx)

	v.Store.SignOut(ctx.Context())
	s.visitors.Remove(v.ID)

	s.clearCookie(ctx, TokenCookie)
	s.clearCookie(ctx, VisitorCookie)

	return ctx.Redirect("/", router.StatusSeeOther)
}

func (s *Server) portal(ctx router.Context) error {
	st := currentVisitor(ctx).Store.State()

	engagement := 0
	if st.Profile != nil {
		engagement = int(st.Profile.EngagementStrength)
	}

	return ctx.Render(viewPortal, s.page(ctx, st, map[string]any{
		"prompt":  "Trace the shape of the room",
		"harmony": workshop.WorkshopHarmony(1, engagement),
	}))
}

func (s *Server) lobby(ctx router.Context) error {
	st := currentVisitor(ctx).Store.State()
	return ctx.Render(viewLobby, s.page(ctx, st, map[string]any{
		"zones": lobbyZones(100),
	}))
}

func (s *Server) rememberToken(ctx router.Context, v *Visitor) {
	if token := v.Client.AccessToken(); token != "" {
		s.setCookie(ctx, TokenCookie, token, s.cookieDuration)
	}
}

// authFailed re-renders the form with the failure and the matching status.
func (s *Server) authFailed(ctx router.Context, v *Visitor, mode, email string, err error) error {
	status := statusFor(err)

	message := "Something went wrong, please try again."
	fields := map[string]string{}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		message = richErr.Message
		for _, fe := range richErr.ValidationErrors {
			fields[fe.Field] = fe.Message
		}
	}

	s.logger.Info("auth form rejected", "mode", mode, "status", status, "error", err)

	return ctx.Status(status).Render(viewAuth, s.page(ctx, v.Store.State(), map[string]any{
		"mode":       mode,
		"email":      email,
		"error":      message,
		"validation": fields,
	}))
}

func authMode(mode string) string {
	switch mode {
	case modeSignUp, modeReset:
		return mode
	default:
		return modeSignIn
	}
}
