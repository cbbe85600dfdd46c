package identity

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RedeemAccountTokenSQL is the atomic check-and-invalidate. The WHERE clause
// only matches a pending, unexpired token, so two concurrent redeemers race
// on the row update and exactly one gets it back.
var RedeemAccountTokenSQL = `UPDATE "account_tokens" AS "tok"
SET
	"status" = 'redeemed',
	"redeemed_at" = ?
WHERE
	"tok"."deleted_at" IS NULL
AND "tok"."id" = ?
AND "tok"."purpose" = ?
AND "tok"."status" = 'pending'
AND "tok"."expires_at" > ?
RETURNING *;`

type AccountTokens interface {
	repository.Repository[*AccountToken]

	Issue(ctx context.Context, account *Account, purpose TokenPurpose, ttl time.Duration) (*AccountToken, error)
	IssueTx(ctx context.Context, tx bun.IDB, account *Account, purpose TokenPurpose, ttl time.Duration) (*AccountToken, error)
	Redeem(ctx context.Context, token string, purpose TokenPurpose) (*AccountToken, error)
	RedeemTx(ctx context.Context, tx bun.IDB, token string, purpose TokenPurpose) (*AccountToken, error)
}

type accountTokens struct {
	repository.Repository[*AccountToken]
	db  *bun.DB
	now Clock
}

var _ AccountTokens = (*accountTokens)(nil)

type AccountTokensOption func(*accountTokens)

// WithTokensClock injects a custom clock (useful for tests).
func WithTokensClock(clock Clock) AccountTokensOption {
	return func(t *accountTokens) {
		if clock != nil {
			t.now = clock
		}
	}
}

func NewAccountTokensRepository(db *bun.DB, opts ...AccountTokensOption) AccountTokens {
	repo := repository.NewRepository[*AccountToken](db, repository.ModelHandlers[*AccountToken]{
		NewRecord: func() *AccountToken { return &AccountToken{} },
		GetID: func(t *AccountToken) uuid.UUID {
			if t == nil {
				return uuid.Nil
			}
			return t.ID
		},
		SetID: func(t *AccountToken, id uuid.UUID) {
			if t != nil {
				t.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	tokens := &accountTokens{
		Repository: repo,
		db:         db,
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(tokens)
		}
	}

	return tokens
}

func (t *accountTokens) Issue(ctx context.Context, account *Account, purpose TokenPurpose, ttl time.Duration) (*AccountToken, error) {
	return t.IssueTx(ctx, t.db, account, purpose, ttl)
}

func (t *accountTokens) IssueTx(ctx context.Context, tx bun.IDB, account *Account, purpose TokenPurpose, ttl time.Duration) (*AccountToken, error) {
	expires := t.now().Add(ttl)

	record := &AccountToken{
		ID:        uuid.New(),
		AccountID: &account.ID,
		Purpose:   purpose,
		Status:    TokenPending,
		Email:     account.Email,
		ExpiresAt: &expires,
	}

	return t.Repository.CreateTx(ctx, tx, record)
}

func (t *accountTokens) Redeem(ctx context.Context, token string, purpose TokenPurpose) (*AccountToken, error) {
	return t.RedeemTx(ctx, t.db, token, purpose)
}

// RedeemTx consumes a single-use token. Missing, expired, replayed and
// wrong-purpose tokens all surface as ErrTokenAlreadyUsed.
func (t *accountTokens) RedeemTx(ctx context.Context, tx bun.IDB, token string, purpose TokenPurpose) (*AccountToken, error) {
	id, err := uuid.Parse(token)
	if err != nil {
		return nil, ErrTokenAlreadyUsed.WithMetadata(map[string]any{
			"reason": "token is not a valid identifier",
		})
	}

	now := t.now()
	res, err := t.Repository.RawTx(ctx, tx, RedeemAccountTokenSQL, now, id.String(), purpose, now)
	if err != nil {
		return nil, err
	}

	if len(res) == 0 {
		return nil, ErrTokenAlreadyUsed.WithMetadata(map[string]any{
			"token":   id.String(),
			"purpose": purpose,
		})
	}

	return res[0], nil
}
