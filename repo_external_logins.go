package identity

import (
	"context"

	"github.com/uptrace/bun"
)

// ExternalLogins manages federated login persistence. The bun-backed
// implementation lives in the repository package.
type ExternalLogins interface {
	FindByProvider(ctx context.Context, provider, providerKey string) (*ExternalLogin, error)
	FindByAccount(ctx context.Context, accountID string) ([]*ExternalLogin, error)
	Upsert(ctx context.Context, login *ExternalLogin) error
	UpsertTx(ctx context.Context, tx bun.IDB, login *ExternalLogin) error
	Delete(ctx context.Context, accountID, provider, providerKey string) error
}
