package identity_test

import (
	"database/sql"
	"regexp"
	"testing"

	identity "github.com/ostravan/go-identity"
	"github.com/ostravan/go-identity/repository"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const (
	sqliteCreateAccounts = `CREATE TABLE accounts (
    id TEXT NOT NULL PRIMARY KEY,
    account_role TEXT NOT NULL,
    first_name TEXT,
    last_name TEXT,
    email TEXT NOT NULL UNIQUE,
    is_email_confirmed BOOLEAN NOT NULL DEFAULT FALSE,
    phone_number TEXT,
    is_phone_confirmed BOOLEAN NOT NULL DEFAULT FALSE,
    password_hash TEXT,
    two_factor_enabled BOOLEAN NOT NULL DEFAULT FALSE,
    tenant_id TEXT,
    failed_attempts INTEGER NOT NULL DEFAULT 0,
    last_attempt_at TIMESTAMP NULL,
    lockout_until TIMESTAMP NULL,
    signedin_at TIMESTAMP NULL,
    metadata TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP,
    deleted_at TIMESTAMP NULL
);`

	sqliteCreateExternalLogins = `CREATE TABLE external_logins (
    id TEXT NOT NULL PRIMARY KEY,
    account_id TEXT NOT NULL,
    provider TEXT NOT NULL,
    provider_key TEXT NOT NULL,
    email TEXT,
    display_name TEXT,
    profile_data TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP,
    CONSTRAINT uq_external_logins_provider_key UNIQUE (provider, provider_key)
);`

	sqliteCreateAccountTokens = `CREATE TABLE account_tokens (
    id TEXT NOT NULL PRIMARY KEY,
    account_id TEXT NOT NULL,
    purpose TEXT NOT NULL,
    status TEXT NOT NULL,
    email TEXT NOT NULL,
    expires_at TIMESTAMP NULL,
    redeemed_at TIMESTAMP NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP,
    deleted_at TIMESTAMP NULL,
    FOREIGN KEY (account_id) REFERENCES accounts (id) ON DELETE CASCADE
);`
)

var uuidPattern = regexp.MustCompile(`[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)

func extractToken(t *testing.T, body string) string {
	t.Helper()
	token := uuidPattern.FindString(body)
	require.NotEmpty(t, token, "no token found in %q", body)
	return token
}

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	db, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	bunDB := bun.NewDB(db, sqlitedialect.New())

	_, err = bunDB.Exec(sqliteCreateAccounts)
	require.NoError(t, err)
	_, err = bunDB.Exec(sqliteCreateAccountTokens)
	require.NoError(t, err)
	_, err = bunDB.Exec(sqliteCreateExternalLogins)
	require.NoError(t, err)

	t.Cleanup(func() { _ = bunDB.Close() })

	return bunDB
}

// testStack wires the whole sign-in pipeline against sqlite and miniredis.
type testStack struct {
	repo     identity.RepositoryManager
	lifctl   *identity.Lifecycle
	manager  *identity.AccountManager
	tokens   *identity.TokenService
	notifier *captureNotifier
	sink     *memorySink
	devices  identity.RememberedDevices
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()

	db := newTestDB(t)
	client := newTestRedis(t)
	notifier := &captureNotifier{}
	sink := &memorySink{}

	repo := identity.NewRepositoryManager(db,
		identity.WithExternalLogins(repository.NewExternalLoginRepository(db)),
	)
	devices := identity.NewRedisDeviceStore(client)

	verifier := identity.NewCredentialVerifier(repo.Accounts(),
		identity.WithVerifierMaxAttempts(3),
		identity.WithVerifierDevices(devices),
	)

	challenges := identity.NewChallengeManager(
		identity.NewRedisChallengeStore(client),
		devices,
		identity.WithChallengeNotifier(notifier),
		identity.WithChallengeActivitySink(sink),
	)

	tokens := identity.NewTokenService([]byte("test-signing-key"))

	lifctl := identity.NewLifecycle(repo, verifier, challenges, tokens,
		identity.WithLifecycleNotifier(notifier),
		identity.WithLifecycleActivitySink(sink),
	)

	manager := identity.NewAccountManager(repo, challenges,
		identity.WithManagerActivitySink(sink),
	)

	return &testStack{
		repo:     repo,
		lifctl:   lifctl,
		manager:  manager,
		tokens:   tokens,
		notifier: notifier,
		sink:     sink,
		devices:  devices,
	}
}
