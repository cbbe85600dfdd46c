package identity_test

import (
	"context"
	"testing"
	"time"

	identity "github.com/ostravan/go-identity"

	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountsRepository(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := identity.NewRepositoryManager(db)

	t.Run("register fills defaults", func(t *testing.T) {
		account, err := repo.Accounts().Register(ctx, &identity.Account{
			Email:        "defaults@example.com",
			PasswordHash: "x",
		})
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, account.ID)
		assert.Equal(t, identity.RoleUser, account.Role)
	})

	t.Run("lookup is case-insensitive", func(t *testing.T) {
		account, err := repo.Accounts().GetByEmail(ctx, "DEFAULTS@example.com")
		require.NoError(t, err)
		assert.Equal(t, "defaults@example.com", account.Email)

		taken, err := repo.Accounts().EmailInUse(ctx, "Defaults@Example.com")
		require.NoError(t, err)
		assert.True(t, taken)
	})

	t.Run("missing account reads as not found", func(t *testing.T) {
		_, err := repo.Accounts().GetByEmail(ctx, "nobody@example.com")
		assert.True(t, errors.IsNotFound(err))
	})

	t.Run("failed sign-ins accumulate and success clears them", func(t *testing.T) {
		account := seedAccount(t, repo, "attempts@example.com")

		require.NoError(t, repo.Accounts().TrackFailedSignIn(ctx, account))
		require.NoError(t, repo.Accounts().TrackFailedSignIn(ctx, account))

		reloaded, err := repo.Accounts().GetByEmail(ctx, "attempts@example.com")
		require.NoError(t, err)
		assert.Equal(t, 2, reloaded.FailedAttempts)
		assert.NotNil(t, reloaded.LastAttemptAt)

		require.NoError(t, repo.Accounts().TrackSuccessfulSignIn(ctx, account))

		reloaded, err = repo.Accounts().GetByEmail(ctx, "attempts@example.com")
		require.NoError(t, err)
		assert.Equal(t, 0, reloaded.FailedAttempts)
		assert.Nil(t, reloaded.LastAttemptAt)
		assert.NotNil(t, reloaded.SignedInAt)
	})

	t.Run("lock opens the lockout window", func(t *testing.T) {
		account := seedAccount(t, repo, "locked@example.com")

		until := time.Now().Add(15 * time.Minute)
		require.NoError(t, repo.Accounts().Lock(ctx, account.ID, until))

		reloaded, err := repo.Accounts().GetByEmail(ctx, "locked@example.com")
		require.NoError(t, err)
		assert.True(t, reloaded.IsLockedOut(time.Now()))
		assert.False(t, reloaded.IsLockedOut(until.Add(time.Second)))
	})

	t.Run("password reset clears lockout and confirms the email", func(t *testing.T) {
		account := seedAccount(t, repo, "resetrepo@example.com")

		require.NoError(t, repo.Accounts().TrackFailedSignIn(ctx, account))
		require.NoError(t, repo.Accounts().Lock(ctx, account.ID, time.Now().Add(time.Hour)))

		require.NoError(t, repo.Accounts().ResetPassword(ctx, account.ID, "new-hash"))

		reloaded, err := repo.Accounts().GetByEmail(ctx, "resetrepo@example.com")
		require.NoError(t, err)
		assert.Equal(t, "new-hash", reloaded.PasswordHash)
		assert.Equal(t, 0, reloaded.FailedAttempts)
		assert.Nil(t, reloaded.LockoutUntil)
		assert.True(t, reloaded.EmailConfirmed)
	})

	t.Run("password reset for a missing account fails", func(t *testing.T) {
		err := repo.Accounts().ResetPassword(ctx, uuid.New(), "hash")
		assert.True(t, errors.IsNotFound(err))
	})

	t.Run("phone and two-factor setters stick", func(t *testing.T) {
		account := seedAccount(t, repo, "setters@example.com")

		require.NoError(t, repo.Accounts().SetPhone(ctx, account.ID, "+15550100200", true))
		require.NoError(t, repo.Accounts().SetTwoFactor(ctx, account.ID, true))

		reloaded, err := repo.Accounts().GetByEmail(ctx, "setters@example.com")
		require.NoError(t, err)
		assert.Equal(t, "+15550100200", reloaded.Phone)
		assert.True(t, reloaded.PhoneConfirmed)
		assert.True(t, reloaded.TwoFactor)
	})
}

func TestAccountsListAccessible(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := identity.NewRepositoryManager(db)

	tenantA := uuid.New()
	tenantB := uuid.New()

	seed := func(email string, tenant *uuid.UUID) {
		_, err := repo.Accounts().Register(ctx, &identity.Account{
			Email:        email,
			PasswordHash: "x",
			TenantID:     tenant,
		})
		require.NoError(t, err)
	}

	seed("a1@example.com", &tenantA)
	seed("a2@example.com", &tenantA)
	seed("b1@example.com", &tenantB)
	seed("none@example.com", nil)

	t.Run("admin scope sees everything", func(t *testing.T) {
		records, err := repo.Accounts().ListAccessible(ctx, identity.TenantScope{All: true}, 0, 25)
		require.NoError(t, err)
		assert.Len(t, records, 4)
	})

	t.Run("tenant scope sees its tenant only", func(t *testing.T) {
		records, err := repo.Accounts().ListAccessible(ctx, identity.TenantScope{TenantID: tenantA.String()}, 0, 25)
		require.NoError(t, err)
		require.Len(t, records, 2)
		for _, r := range records {
			require.NotNil(t, r.TenantID)
			assert.Equal(t, tenantA, *r.TenantID)
		}
	})

	t.Run("empty scope denies", func(t *testing.T) {
		records, err := repo.Accounts().ListAccessible(ctx, identity.TenantScope{}, 0, 25)
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("pagination bounds the page", func(t *testing.T) {
		page, err := repo.Accounts().ListAccessible(ctx, identity.TenantScope{All: true}, 0, 2)
		require.NoError(t, err)
		assert.Len(t, page, 2)

		rest, err := repo.Accounts().ListAccessible(ctx, identity.TenantScope{All: true}, 2, 2)
		require.NoError(t, err)
		assert.Len(t, rest, 2)
	})
}
