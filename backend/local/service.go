package local

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-workshop"
	"github.com/goliatone/go-workshop/repository"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Service is the hosted side of the auth and storage contract, running on
// the workshop database.
type Service struct {
	repo    repository.Manager
	tokens  *tokenService
	mailer  Mailer
	limiter *emailLimiter
	logger  workshop.Logger
	now     func() time.Time

	bcryptCost       int
	useHashid        bool
	refreshTTL       time.Duration
	maxLoginAttempts int
	coolDown         time.Duration
}

// NewService builds a Service. signingKey signs access tokens with HS256.
func NewService(repo repository.Manager, signingKey []byte, opts ...Option) (*Service, error) {
	if repo == nil {
		return nil, goerrors.New("local service requires a repository manager", goerrors.CategoryInternal)
	}

	if err := repo.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "invalid repository manager")
	}

	if len(signingKey) == 0 {
		return nil, goerrors.New("local service requires a signing key", goerrors.CategoryValidation).
			WithTextCode("SIGNING_KEY_REQUIRED")
	}

	s := &Service{
		repo:   repo,
		mailer: ConsoleMailer{},
		logger: workshop.DefaultLogger(),
		now:    time.Now,
		tokens: &tokenService{
			signingKey: signingKey,
			ttl:        DefaultTokenTTL,
			issuer:     DefaultIssuer,
			audience:   jwt.ClaimStrings{DefaultAudience},
		},
		limiter:          newEmailLimiter(DefaultResetRate, DefaultResetBurst),
		bcryptCost:       DefaultBcryptCost,
		refreshTTL:       DefaultRefreshTTL,
		maxLoginAttempts: DefaultMaxLoginAttempts,
		coolDown:         DefaultCoolDownPeriod,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	s.tokens.logger = s.logger

	return s, nil
}

// SignInWithPassword verifies the credentials and issues a new session.
// Unknown emails and wrong passwords are indistinguishable to the caller.
func (s *Service) SignInWithPassword(ctx context.Context, email, password string) (*workshop.Grant, error) {
	account, err := s.repo.Accounts().FindByEmail(ctx, email)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, workshop.ErrInvalidCredentials
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account during verification")
	}

	now := s.now()

	if account.LoginAttemptAt != nil && isOutsideThresholdPeriod(*account.LoginAttemptAt, now, s.coolDown) {
		account.LoginAttempts = 0
	}

	if account.LoginAttempts >= s.maxLoginAttempts {
		s.logger.Warn("login attempts exceeded", "account_id", account.ID, "attempts", account.LoginAttempts)
		return nil, workshop.ErrTooManyAttempts
	}

	if err := comparePasswordAndHash(password, account.PasswordHash); err != nil {
		if err2 := s.repo.Accounts().TrackAttemptedLogin(ctx, account); err2 != nil {
			return nil, goerrors.Wrap(err2, goerrors.CategoryInternal, "failed to track login attempt")
		}
		return nil, workshop.ErrInvalidCredentials
	}

	if err := s.repo.Accounts().TrackSuccessfulLogin(ctx, account); err != nil {
		s.logger.Error("failed to track successful login", "account_id", account.ID, "error", err)
	}

	var grant *workshop.Grant
	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		grant, err = s.issueTx(ctx, tx, account)
		return err
	})
	if err != nil {
		return nil, richOrInternal(err, "failed to issue session")
	}

	return grant, nil
}

// SignUp registers a confirmed account and signs it in.
func (s *Service) SignUp(ctx context.Context, email, password string, meta workshop.AccountMetadata) (*workshop.Grant, error) {
	hash, err := hashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	account := &repository.Account{
		Email:         strings.TrimSpace(email),
		PasswordHash:  hash,
		Name:          meta.Name,
		WorkshopRole:  string(meta.WorkshopRole),
		EmailVerified: true,
	}

	if s.useHashid {
		if id, err := hashid.NewUUID(strings.ToLower(account.Email)); err == nil {
			account.ID = id
		}
	}

	var grant *workshop.Grant
	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := s.repo.Accounts().RegisterTx(ctx, tx, account); err != nil {
			if repository.IsUniqueViolation(err) {
				return workshop.ErrAccountExists
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not create account")
		}

		grant, err = s.issueTx(ctx, tx, account)
		return err
	})
	if err != nil {
		return nil, richOrInternal(err, "account registration transaction failed")
	}

	return grant, nil
}

// Refresh exchanges a refresh token for a new token pair. The old pair is
// revoked.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*workshop.Grant, error) {
	if refreshToken == "" {
		return nil, workshop.ErrNoSession
	}

	row, err := s.repo.Sessions().FindByRefreshHash(ctx, hashToken(refreshToken))
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, workshop.ErrSessionExpired
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve session")
	}

	if !row.Refreshable(s.now()) {
		return nil, workshop.ErrSessionExpired
	}

	account, err := s.repo.Accounts().FindByID(ctx, row.AccountID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, workshop.ErrSessionExpired
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account")
	}

	var grant *workshop.Grant
	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := s.repo.Sessions().RevokeTx(ctx, tx, row.ID); err != nil {
			return err
		}
		grant, err = s.issueTx(ctx, tx, account)
		return err
	})
	if err != nil {
		return nil, richOrInternal(err, "failed to rotate session")
	}

	return grant, nil
}

// Revoke ends the session behind accessToken. Expired tokens are accepted.
func (s *Service) Revoke(ctx context.Context, accessToken string) error {
	claims, err := s.tokens.parse(accessToken, s.now(), true)
	if err != nil {
		return err
	}

	sid, err := uuid.Parse(claims.SessionID)
	if err != nil {
		return workshop.ErrNoSession
	}

	if err := s.repo.Sessions().Revoke(ctx, sid); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to revoke session")
	}
	return nil
}

// Authenticate resolves accessToken to its identity and session.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*workshop.Identity, *workshop.Session, error) {
	if accessToken == "" {
		return nil, nil, workshop.ErrNoSession
	}

	claims, err := s.tokens.parse(accessToken, s.now(), false)
	if err != nil {
		return nil, nil, err
	}

	sid, err := uuid.Parse(claims.SessionID)
	if err != nil {
		return nil, nil, workshop.ErrNoSession
	}

	row, err := s.repo.Sessions().FindByID(ctx, sid)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, nil, workshop.ErrSessionExpired
		}
		return nil, nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve session")
	}

	if row.Revoked() {
		return nil, nil, workshop.ErrSessionExpired
	}

	account, err := s.repo.Accounts().FindByID(ctx, row.AccountID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, nil, workshop.ErrSessionExpired
		}
		return nil, nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account")
	}

	session := &workshop.Session{
		AccessToken: accessToken,
		TokenType:   "bearer",
		UserID:      account.ID.String(),
	}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}

	return identityFor(account), session, nil
}

// RequestPasswordReset records a reset and mails the link. Unknown emails
// succeed without doing anything.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	normalized := strings.ToLower(strings.TrimSpace(email))

	if !s.limiter.allow(normalized, s.now()) {
		return workshop.ErrTooManyAttempts
	}

	account, err := s.repo.Accounts().FindByEmail(ctx, normalized)
	if err != nil {
		if repository.IsNotFound(err) {
			s.logger.Debug("password reset for unknown email", "email", normalized)
			return nil
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account for password reset")
	}

	var reset *repository.PasswordReset
	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		reset, err = repository.RequestPasswordResetTx(ctx, s.repo.PasswordResets(), tx, account)
		return err
	})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create password reset record")
	}

	if err := s.mailer.SendPasswordReset(ctx, reset); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryExternal, "failed to send password reset email")
	}

	return nil
}

// SweepLimiters drops reset limiters idle for longer than idle.
func (s *Service) SweepLimiters(idle time.Duration) int {
	return s.limiter.sweep(s.now(), idle)
}

// FindProfile returns the caller's profile. Rows owned by other identities
// are not visible and read as missing.
func (s *Service) FindProfile(ctx context.Context, accessToken, ownerID string) (*workshop.Profile, error) {
	identity, _, err := s.Authenticate(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	if identity.ID != ownerID {
		return nil, workshop.ErrProfileNotFound
	}

	profile, err := s.repo.Profiles().FindByOwner(ctx, ownerID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, workshop.ErrProfileNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve profile")
	}

	return profile, nil
}

// InsertProfile stores profile for the caller.
func (s *Service) InsertProfile(ctx context.Context, accessToken string, profile *workshop.Profile) (*workshop.Profile, error) {
	identity, _, err := s.Authenticate(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	if profile == nil || profile.OwnerID != identity.ID {
		return nil, workshop.ErrForbidden
	}

	if err := goerrors.ValidateWithOzzo(profile.Validate, "invalid profile"); err != nil {
		return nil, err
	}

	created, err := s.repo.Profiles().Insert(ctx, profile)
	if err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, workshop.ErrProfileExists
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to insert profile")
	}

	return created, nil
}

func (s *Service) issueTx(ctx context.Context, tx bun.IDB, account *repository.Account) (*workshop.Grant, error) {
	refresh, err := newRefreshToken()
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	row := &repository.AuthSession{
		ID:               uuid.New(),
		AccountID:        account.ID,
		RefreshTokenHash: hashToken(refresh),
		ExpiresAt:        now.Add(s.tokens.ttl),
		RefreshExpiresAt: now.Add(s.refreshTTL),
	}

	access, expiresAt, err := s.tokens.mint(account, row.ID, now)
	if err != nil {
		return nil, err
	}
	row.ExpiresAt = expiresAt

	if _, err := s.repo.Sessions().IssueTx(ctx, tx, row); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store session")
	}

	return &workshop.Grant{
		Identity: identityFor(account),
		Session: &workshop.Session{
			AccessToken:  access,
			RefreshToken: refresh,
			TokenType:    "bearer",
			ExpiresAt:    expiresAt,
			UserID:       account.ID.String(),
		},
	}, nil
}

func identityFor(account *repository.Account) *workshop.Identity {
	identity := &workshop.Identity{
		ID:    account.ID.String(),
		Email: account.Email,
		Metadata: workshop.AccountMetadata{
			Name:         account.Name,
			WorkshopRole: workshop.ParticipantRole(account.WorkshopRole),
		},
	}
	if account.CreatedAt != nil {
		createdAt := *account.CreatedAt
		identity.CreatedAt = &createdAt
	}
	return identity
}

func richOrInternal(err error, message string) error {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, message)
}
