package repository

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-workshop"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Profiles stores participant rows.
type Profiles interface {
	repository.Repository[*workshop.Profile]

	FindByOwner(ctx context.Context, ownerID string) (*workshop.Profile, error)
	FindByOwnerTx(ctx context.Context, tx bun.IDB, ownerID string) (*workshop.Profile, error)
	Insert(ctx context.Context, profile *workshop.Profile) (*workshop.Profile, error)
	InsertTx(ctx context.Context, tx bun.IDB, profile *workshop.Profile) (*workshop.Profile, error)
}

type profiles struct {
	repository.Repository[*workshop.Profile]
	db  *bun.DB
	now func() time.Time
}

var _ Profiles = (*profiles)(nil)

// NewProfilesRepository builds the participants repository.
func NewProfilesRepository(db *bun.DB) Profiles {
	repo := repository.NewRepository[*workshop.Profile](db, repository.ModelHandlers[*workshop.Profile]{
		NewRecord: func() *workshop.Profile { return &workshop.Profile{} },
		GetID: func(p *workshop.Profile) uuid.UUID {
			if p == nil {
				return uuid.Nil
			}
			return p.ID
		},
		SetID: func(p *workshop.Profile, id uuid.UUID) {
			if p != nil {
				p.ID = id
			}
		},
		GetIdentifier: func() string {
			return "participant_id"
		},
	})

	return &profiles{
		Repository: repo,
		db:         db,
		now:        time.Now,
	}
}

func (p *profiles) FindByOwner(ctx context.Context, ownerID string) (*workshop.Profile, error) {
	return p.FindByOwnerTx(ctx, p.db, ownerID)
}

func (p *profiles) FindByOwnerTx(ctx context.Context, tx bun.IDB, ownerID string) (*workshop.Profile, error) {
	record := &workshop.Profile{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.participant_id = ?", ownerID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if IsNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"participant_id": ownerID,
				})
		}
		return nil, err
	}
	return record, nil
}

func (p *profiles) Insert(ctx context.Context, profile *workshop.Profile) (*workshop.Profile, error) {
	return p.InsertTx(ctx, p.db, profile)
}

func (p *profiles) InsertTx(ctx context.Context, tx bun.IDB, profile *workshop.Profile) (*workshop.Profile, error) {
	record := profile.Clone()
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	now := p.now().UTC()
	if record.CreatedAt == nil {
		record.CreatedAt = &now
	}
	if record.UpdatedAt == nil {
		record.UpdatedAt = &now
	}

	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, err
	}
	return record, nil
}
