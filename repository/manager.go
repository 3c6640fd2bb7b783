package repository

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// Manager exposes every repository behind a single transaction boundary.
type Manager interface {
	repository.Validator
	repository.TransactionManager
	Accounts() Accounts
	Sessions() Sessions
	Profiles() Profiles
	PasswordResets() repository.Repository[*PasswordReset]
}

type mngr struct {
	db             *bun.DB
	accounts       Accounts
	sessions       Sessions
	profiles       Profiles
	passwordResets repository.Repository[*PasswordReset]
}

// NewManager wires all repositories to db.
func NewManager(db *bun.DB) Manager {
	return &mngr{
		db:             db,
		accounts:       NewAccountsRepository(db),
		sessions:       NewSessionsRepository(db),
		profiles:       NewProfilesRepository(db),
		passwordResets: NewPasswordResetsRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.db == nil {
		return errors.New("repository manager requires a database")
	}

	if m.accounts == nil {
		return errors.New("repository accounts should be initialized")
	}

	if m.sessions == nil {
		return errors.New("repository sessions should be initialized")
	}

	if m.profiles == nil {
		return errors.New("repository profiles should be initialized")
	}

	if m.passwordResets == nil {
		return errors.New("repository passwordResets should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Accounts() Accounts {
	return m.accounts
}

func (m mngr) Sessions() Sessions {
	return m.sessions
}

func (m mngr) Profiles() Profiles {
	return m.profiles
}

func (m mngr) PasswordResets() repository.Repository[*PasswordReset] {
	return m.passwordResets
}
