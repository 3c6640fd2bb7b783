package repository

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Sessions stores issued token pairs.
type Sessions interface {
	Issue(ctx context.Context, session *AuthSession) (*AuthSession, error)
	IssueTx(ctx context.Context, tx bun.IDB, session *AuthSession) (*AuthSession, error)
	FindByID(ctx context.Context, id uuid.UUID) (*AuthSession, error)
	FindByRefreshHash(ctx context.Context, hash string) (*AuthSession, error)
	FindByRefreshHashTx(ctx context.Context, tx bun.IDB, hash string) (*AuthSession, error)
	Revoke(ctx context.Context, id uuid.UUID) error
	RevokeTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
	RevokeAccount(ctx context.Context, accountID uuid.UUID) error
}

type sessions struct {
	db  *bun.DB
	now func() time.Time
}

var _ Sessions = (*sessions)(nil)

// NewSessionsRepository builds the sessions repository.
func NewSessionsRepository(db *bun.DB) Sessions {
	return &sessions{db: db, now: time.Now}
}

func (s *sessions) Issue(ctx context.Context, session *AuthSession) (*AuthSession, error) {
	return s.IssueTx(ctx, s.db, session)
}

func (s *sessions) IssueTx(ctx context.Context, tx bun.IDB, session *AuthSession) (*AuthSession, error) {
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	if _, err := tx.NewInsert().Model(session).Exec(ctx); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *sessions) FindByID(ctx context.Context, id uuid.UUID) (*AuthSession, error) {
	return s.findOne(ctx, s.db, "id", id.String())
}

func (s *sessions) FindByRefreshHash(ctx context.Context, hash string) (*AuthSession, error) {
	return s.FindByRefreshHashTx(ctx, s.db, hash)
}

func (s *sessions) FindByRefreshHashTx(ctx context.Context, tx bun.IDB, hash string) (*AuthSession, error) {
	return s.findOne(ctx, tx, "refresh_token_hash", hash)
}

func (s *sessions) findOne(ctx context.Context, tx bun.IDB, column, value string) (*AuthSession, error) {
	record := &AuthSession{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.? = ?", bun.Ident(column), value).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if IsNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					column: value,
				})
		}
		return nil, err
	}
	return record, nil
}

func (s *sessions) Revoke(ctx context.Context, id uuid.UUID) error {
	return s.RevokeTx(ctx, s.db, id)
}

func (s *sessions) RevokeTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	_, err := tx.NewUpdate().
		Model((*AuthSession)(nil)).
		Set("revoked_at = ?", s.now()).
		Where("id = ?", id.String()).
		Where("revoked_at IS NULL").
		Exec(ctx)
	return err
}

func (s *sessions) RevokeAccount(ctx context.Context, accountID uuid.UUID) error {
	_, err := s.db.NewUpdate().
		Model((*AuthSession)(nil)).
		Set("revoked_at = ?", s.now()).
		Where("account_id = ?", accountID.String()).
		Where("revoked_at IS NULL").
		Exec(ctx)
	return err
}
