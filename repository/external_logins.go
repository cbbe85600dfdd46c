// Package repository provides the bun-backed persistence for external
// login links.
package repository

import (
	"context"
	"database/sql"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	identity "github.com/ostravan/go-identity"
)

// ExternalLoginModel is the bun model for external login links.
type ExternalLoginModel struct {
	bun.BaseModel `bun:"table:external_logins"`

	ID          uuid.UUID      `bun:"id,pk,nullzero,type:uuid"`
	AccountID   uuid.UUID      `bun:"account_id,notnull,type:uuid"`
	Provider    string         `bun:"provider,notnull"`
	ProviderKey string         `bun:"provider_key,notnull"`
	Email       string         `bun:"email"`
	DisplayName string         `bun:"display_name"`
	ProfileData map[string]any `bun:"profile_data,type:jsonb"`
	CreatedAt   time.Time      `bun:"created_at,default:current_timestamp"`
	UpdatedAt   time.Time      `bun:"updated_at,default:current_timestamp"`
}

// ExternalLoginRepository implements identity.ExternalLogins using bun.
type ExternalLoginRepository struct {
	db *bun.DB
}

var _ identity.ExternalLogins = (*ExternalLoginRepository)(nil)

func NewExternalLoginRepository(db *bun.DB) *ExternalLoginRepository {
	return &ExternalLoginRepository{db: db}
}

// FindByProvider looks up the link for a (provider, provider key) pair.
func (r *ExternalLoginRepository) FindByProvider(ctx context.Context, provider, providerKey string) (*identity.ExternalLogin, error) {
	var model ExternalLoginModel
	err := r.db.NewSelect().
		Model(&model).
		Where("provider = ? AND provider_key = ?", provider, providerKey).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, goerrors.New("external login not found", goerrors.CategoryNotFound).
				WithCode(goerrors.CodeNotFound).
				WithMetadata(map[string]any{"provider": provider})
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load external login")
	}
	return toExternalLogin(&model), nil
}

// FindByAccount lists every link the account holds.
func (r *ExternalLoginRepository) FindByAccount(ctx context.Context, accountID string) ([]*identity.ExternalLogin, error) {
	var models []ExternalLoginModel
	err := r.db.NewSelect().
		Model(&models).
		Where("account_id = ?", accountID).
		Order("provider ASC").
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return []*identity.ExternalLogin{}, nil
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to list external logins")
	}

	logins := make([]*identity.ExternalLogin, len(models))
	for i, m := range models {
		logins[i] = toExternalLogin(&m)
	}
	return logins, nil
}

// Upsert inserts or refreshes a link. The row id is derived from the
// (provider, provider key) pair so replays land on the same record.
func (r *ExternalLoginRepository) Upsert(ctx context.Context, login *identity.ExternalLogin) error {
	return r.UpsertTx(ctx, r.db, login)
}

// UpsertTx is Upsert inside a caller-owned transaction.
func (r *ExternalLoginRepository) UpsertTx(ctx context.Context, tx bun.IDB, login *identity.ExternalLogin) error {
	model, err := fromExternalLogin(login)
	if err != nil {
		return err
	}
	model.UpdatedAt = time.Now()

	_, err = tx.NewInsert().
		Model(model).
		On("CONFLICT (provider, provider_key) DO UPDATE").
		Set("account_id = EXCLUDED.account_id").
		Set("email = EXCLUDED.email").
		Set("display_name = EXCLUDED.display_name").
		Set("profile_data = EXCLUDED.profile_data").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to upsert external login")
	}

	return nil
}

// Delete removes one link for the account.
func (r *ExternalLoginRepository) Delete(ctx context.Context, accountID, provider, providerKey string) error {
	_, err := r.db.NewDelete().
		Model((*ExternalLoginModel)(nil)).
		Where("account_id = ? AND provider = ? AND provider_key = ?", accountID, provider, providerKey).
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete external login")
	}
	return nil
}

func toExternalLogin(m *ExternalLoginModel) *identity.ExternalLogin {
	return &identity.ExternalLogin{
		ID:          m.ID.String(),
		AccountID:   m.AccountID.String(),
		Provider:    m.Provider,
		ProviderKey: m.ProviderKey,
		Email:       m.Email,
		DisplayName: m.DisplayName,
		ProfileData: m.ProfileData,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func fromExternalLogin(l *identity.ExternalLogin) (*ExternalLoginModel, error) {
	accountID, err := uuid.Parse(l.AccountID)
	if err != nil {
		return nil, goerrors.New("external login requires a valid account id", goerrors.CategoryValidation).
			WithMetadata(map[string]any{"account_id": l.AccountID})
	}

	id := uuid.Nil
	if l.ID != "" {
		if parsed, perr := uuid.Parse(l.ID); perr == nil {
			id = parsed
		}
	}
	if id == uuid.Nil {
		if derived, derr := hashid.NewUUID(l.Provider + ":" + l.ProviderKey); derr == nil {
			id = derived
		} else {
			id = uuid.New()
		}
	}

	return &ExternalLoginModel{
		ID:          id,
		AccountID:   accountID,
		Provider:    l.Provider,
		ProviderKey: l.ProviderKey,
		Email:       l.Email,
		DisplayName: l.DisplayName,
		ProfileData: l.ProfileData,
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}, nil
}
