package identity

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	Validate() error
	MustValidate()
	RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error
	Accounts() Accounts
	Tokens() AccountTokens
	ExternalLogins() ExternalLogins
}

type mngr struct {
	db       *bun.DB
	accounts Accounts
	tokens   AccountTokens
	logins   ExternalLogins
}

type ManagerOption func(*mngr)

// WithExternalLogins wires a federated-login store into the manager.
func WithExternalLogins(logins ExternalLogins) ManagerOption {
	return func(m *mngr) {
		m.logins = logins
	}
}

func NewRepositoryManager(db *bun.DB, opts ...ManagerOption) RepositoryManager {
	m := &mngr{
		db:       db,
		accounts: NewAccountsRepository(db),
		tokens:   NewAccountTokensRepository(db),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	return m
}

func (m mngr) Validate() error {
	if m.accounts == nil {
		return errors.New("repository accounts should be initialized")
	}

	if m.tokens == nil {
		return errors.New("repository tokens should be initialized")
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

func (m mngr) Tokens() AccountTokens {
	return m.tokens
}

func (m mngr) ExternalLogins() ExternalLogins {
	return m.logins
}
