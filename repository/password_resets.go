package repository

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// NewPasswordResetsRepository builds the password resets repository.
func NewPasswordResetsRepository(db *bun.DB) repository.Repository[*PasswordReset] {
	handlers := repository.ModelHandlers[*PasswordReset]{
		NewRecord: func() *PasswordReset {
			return &PasswordReset{}
		},
		GetID: func(record *PasswordReset) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *PasswordReset, id uuid.UUID) {
			record.ID = id
		},
		GetIdentifier: func() string {
			return "email"
		},
	}
	return repository.NewRepository(db, handlers)
}

// RequestPasswordResetTx records a new reset request for account.
func RequestPasswordResetTx(ctx context.Context, resets repository.Repository[*PasswordReset], tx bun.IDB, account *Account) (*PasswordReset, error) {
	reset := &PasswordReset{
		ID:        uuid.New(),
		AccountID: account.ID,
		Email:     account.Email,
		Status:    ResetRequestedStatus,
	}
	return resets.CreateTx(ctx, tx, reset)
}
