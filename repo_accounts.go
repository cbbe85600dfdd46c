package identity

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ResetAccountPasswordSQL replaces the credential and clears the lockout
// bookkeeping in one statement. Redeeming a reset token proves control of
// the mailbox, so the email gets confirmed along the way.
var ResetAccountPasswordSQL = `UPDATE "accounts" AS "acc"
SET
	"is_email_confirmed" = TRUE,
	"password_hash" = ?,
	"failed_attempts" = 0,
	"lockout_until" = NULL
WHERE
	"acc"."deleted_at" IS NULL
AND (
	"acc"."id" = ?
) RETURNING *;`

type Accounts interface {
	repository.Repository[*Account]

	GetByEmail(ctx context.Context, email string, criteria ...repository.SelectCriteria) (*Account, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string, criteria ...repository.SelectCriteria) (*Account, error)
	EmailInUse(ctx context.Context, email string) (bool, error)

	Register(ctx context.Context, account *Account) (*Account, error)
	RegisterTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error)
	Create(ctx context.Context, record *Account, criteria ...repository.InsertCriteria) (*Account, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *Account, criteria ...repository.InsertCriteria) (*Account, error)

	TrackFailedSignIn(ctx context.Context, account *Account) error
	TrackFailedSignInTx(ctx context.Context, tx bun.IDB, account *Account) error
	TrackSuccessfulSignIn(ctx context.Context, account *Account) error
	TrackSuccessfulSignInTx(ctx context.Context, tx bun.IDB, account *Account) error
	Lock(ctx context.Context, id uuid.UUID, until time.Time) error
	LockTx(ctx context.Context, tx bun.IDB, id uuid.UUID, until time.Time) error

	ResetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	ResetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error
	SetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	ConfirmEmail(ctx context.Context, id uuid.UUID) error
	SetPhone(ctx context.Context, id uuid.UUID, phone string, confirmed bool) error
	SetTwoFactor(ctx context.Context, id uuid.UUID, enabled bool) error
	SetRole(ctx context.Context, id uuid.UUID, role AccountRole) error

	ListAccessible(ctx context.Context, scope TenantScope, offset, pageSize int) ([]*Account, error)
}

type accounts struct {
	repository.Repository[*Account]
	db *bun.DB
}

var (
	_ Accounts                        = (*accounts)(nil)
	_ repository.Repository[*Account] = (*accounts)(nil)
)

func NewAccountsRepository(db *bun.DB) Accounts {
	repo := repository.NewRepository[*Account](db, repository.ModelHandlers[*Account]{
		NewRecord: func() *Account { return &Account{} },
		GetID: func(a *Account) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *Account, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &accounts{
		Repository: repo,
		db:         db,
	}
}

func (a *accounts) GetByEmail(ctx context.Context, email string, criteria ...repository.SelectCriteria) (*Account, error) {
	return a.GetByEmailTx(ctx, a.db, email, criteria...)
}

func (a *accounts) GetByEmailTx(ctx context.Context, tx bun.IDB, email string, criteria ...repository.SelectCriteria) (*Account, error) {
	record := &Account{}
	q := tx.NewSelect().Model(record)

	for _, c := range criteria {
		q.Apply(c)
	}

	err := q.
		Where("LOWER(?TableAlias.email) = LOWER(?)", strings.TrimSpace(email)).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"email": email,
				})
		}
		return nil, err
	}

	return record, nil
}

func (a *accounts) EmailInUse(ctx context.Context, email string) (bool, error) {
	count, err := a.db.NewSelect().
		Model((*Account)(nil)).
		Where("LOWER(?TableAlias.email) = LOWER(?)", strings.TrimSpace(email)).
		Count(ctx)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (a *accounts) Register(ctx context.Context, account *Account) (*Account, error) {
	return a.RegisterTx(ctx, a.db, account)
}

func (a *accounts) RegisterTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error) {
	return a.CreateTx(ctx, tx, account)
}

func (a *accounts) Create(ctx context.Context, record *Account, criteria ...repository.InsertCriteria) (*Account, error) {
	return a.CreateTx(ctx, a.db, record, criteria...)
}

func (a *accounts) CreateTx(ctx context.Context, tx bun.IDB, record *Account, criteria ...repository.InsertCriteria) (*Account, error) {
	prepareAccountDefaults(record)
	return a.Repository.CreateTx(ctx, tx, record, criteria...)
}

func (a *accounts) TrackFailedSignIn(ctx context.Context, account *Account) error {
	return a.TrackFailedSignInTx(ctx, a.db, account)
}

func (a *accounts) TrackFailedSignInTx(ctx context.Context, tx bun.IDB, account *Account) error {
	// Single statement so concurrent failures never lose an increment.
	_, err := tx.NewRaw(`
		UPDATE "accounts" AS "acc"
		SET
			"failed_attempts" = "failed_attempts" + 1,
			"last_attempt_at" = ?
		WHERE
			("acc".id = ?)
			AND "acc"."deleted_at" IS NULL;
	`, time.Now(), account.ID).Exec(ctx)

	return err
}

func (a *accounts) TrackSuccessfulSignIn(ctx context.Context, account *Account) error {
	return a.TrackSuccessfulSignInTx(ctx, a.db, account)
}

func (a *accounts) TrackSuccessfulSignInTx(ctx context.Context, tx bun.IDB, account *Account) error {
	signedInAt := time.Now()
	_, err := tx.NewRaw(`
		UPDATE "accounts" AS "acc"
		SET
			"signedin_at" = ?,
			"last_attempt_at" = NULL,
			"failed_attempts" = 0,
			"lockout_until" = NULL
		WHERE
			("acc".id = ?)
			AND "acc"."deleted_at" IS NULL;
	`, signedInAt, account.ID).Exec(ctx)

	return err
}

func (a *accounts) Lock(ctx context.Context, id uuid.UUID, until time.Time) error {
	return a.LockTx(ctx, a.db, id, until)
}

func (a *accounts) LockTx(ctx context.Context, tx bun.IDB, id uuid.UUID, until time.Time) error {
	_, err := tx.NewRaw(`
		UPDATE "accounts" AS "acc"
		SET "lockout_until" = ?
		WHERE ("acc".id = ?) AND "acc"."deleted_at" IS NULL;
	`, until, id).Exec(ctx)

	return err
}

func (a *accounts) ResetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return a.ResetPasswordTx(ctx, a.db, id, passwordHash)
}

func (a *accounts) ResetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	res, err := a.Repository.RawTx(ctx, tx, ResetAccountPasswordSQL, passwordHash, id.String())
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id.String(),
			})
	}

	return nil
}

func (a *accounts) SetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	_, err := a.db.NewUpdate().
		Model((*Account)(nil)).
		Set("password_hash = ?", passwordHash).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

func (a *accounts) ConfirmEmail(ctx context.Context, id uuid.UUID) error {
	_, err := a.db.NewUpdate().
		Model((*Account)(nil)).
		Set("is_email_confirmed = TRUE").
		Where("id = ?", id).
		Exec(ctx)
	return err
}

func (a *accounts) SetPhone(ctx context.Context, id uuid.UUID, phone string, confirmed bool) error {
	_, err := a.db.NewUpdate().
		Model((*Account)(nil)).
		Set("phone_number = ?", phone).
		Set("is_phone_confirmed = ?", confirmed).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

func (a *accounts) SetTwoFactor(ctx context.Context, id uuid.UUID, enabled bool) error {
	_, err := a.db.NewUpdate().
		Model((*Account)(nil)).
		Set("two_factor_enabled = ?", enabled).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

func (a *accounts) SetRole(ctx context.Context, id uuid.UUID, role AccountRole) error {
	_, err := a.db.NewUpdate().
		Model((*Account)(nil)).
		Set("account_role = ?", role).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// ListAccessible applies the tenant-visibility scope before pagination.
// A denying scope short-circuits to an empty page, never an error.
func (a *accounts) ListAccessible(ctx context.Context, scope TenantScope, offset, pageSize int) ([]*Account, error) {
	if scope.None() {
		return []*Account{}, nil
	}

	if pageSize <= 0 {
		pageSize = 25
	}
	if offset < 0 {
		offset = 0
	}

	var records []*Account
	q := a.db.NewSelect().Model(&records)

	if !scope.All {
		q = q.Where("?TableAlias.tenant_id = ?", scope.TenantID)
	}

	err := q.
		Order("created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	if records == nil {
		records = []*Account{}
	}
	return records, nil
}

func prepareAccountDefaults(record *Account) {
	if record == nil {
		return
	}

	if record.Role == "" {
		record.Role = RoleUser
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}
