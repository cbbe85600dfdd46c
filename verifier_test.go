package identity_test

import (
	"context"
	"testing"
	"time"

	identity "github.com/ostravan/go-identity"

	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestCredentialVerifierVerify(t *testing.T) {
	ctx := context.Background()

	newAccount := func(password string) *identity.Account {
		hash, err := identity.HashPassword(password)
		if err != nil {
			t.Fatalf("hash password: %v", err)
		}
		return &identity.Account{
			ID:           uuid.New(),
			Email:        "test@example.com",
			PasswordHash: hash,
			Role:         identity.RoleUser,
		}
	}

	t.Run("successful verification", func(t *testing.T) {
		tracker := new(MockAccountTracker)
		verifier := identity.NewCredentialVerifier(tracker)

		account := newAccount("password123")

		tracker.On("GetByEmail", ctx, "test@example.com").Return(account, nil).Once()
		tracker.On("TrackSuccessfulSignIn", ctx, account).Return(nil).Once()

		res, err := verifier.Verify(ctx, "test@example.com", "password123", "")

		assert.NoError(t, err)
		assert.Equal(t, identity.SignInSuccess, res.Status)
		assert.Equal(t, account, res.Account)

		tracker.AssertExpectations(t)
	})

	t.Run("wrong password", func(t *testing.T) {
		tracker := new(MockAccountTracker)
		verifier := identity.NewCredentialVerifier(tracker)

		account := newAccount("correct_password")

		tracker.On("GetByEmail", ctx, "test@example.com").Return(account, nil).Once()
		tracker.On("TrackFailedSignIn", ctx, account).Return(nil).Once()

		res, err := verifier.Verify(ctx, "test@example.com", "wrong_password", "")

		assert.NoError(t, err)
		assert.Equal(t, identity.SignInFailure, res.Status)
		assert.Nil(t, res.Account)

		tracker.AssertExpectations(t)
	})

	t.Run("unknown account reads as failure", func(t *testing.T) {
		tracker := new(MockAccountTracker)
		verifier := identity.NewCredentialVerifier(tracker)

		tracker.On("GetByEmail", ctx, "nobody@example.com").
			Return(nil, errors.New("not found", errors.CategoryNotFound).WithCode(errors.CodeNotFound)).Once()

		res, err := verifier.Verify(ctx, "nobody@example.com", "password123", "")

		assert.NoError(t, err)
		assert.Equal(t, identity.SignInFailure, res.Status)
		assert.Nil(t, res.Account)

		tracker.AssertExpectations(t)
	})

	t.Run("locked account rejected before password check", func(t *testing.T) {
		tracker := new(MockAccountTracker)
		verifier := identity.NewCredentialVerifier(tracker)

		account := newAccount("password123")
		until := time.Now().Add(10 * time.Minute)
		account.LockoutUntil = &until

		tracker.On("GetByEmail", ctx, "test@example.com").Return(account, nil).Once()

		res, err := verifier.Verify(ctx, "test@example.com", "password123", "")

		assert.NoError(t, err)
		assert.Equal(t, identity.SignInLockedOut, res.Status)

		tracker.AssertExpectations(t)
	})

	t.Run("expired lockout lets the account back in", func(t *testing.T) {
		tracker := new(MockAccountTracker)
		verifier := identity.NewCredentialVerifier(tracker)

		account := newAccount("password123")
		until := time.Now().Add(-time.Minute)
		account.LockoutUntil = &until

		tracker.On("GetByEmail", ctx, "test@example.com").Return(account, nil).Once()
		tracker.On("TrackSuccessfulSignIn", ctx, account).Return(nil).Once()

		res, err := verifier.Verify(ctx, "test@example.com", "password123", "")

		assert.NoError(t, err)
		assert.Equal(t, identity.SignInSuccess, res.Status)

		tracker.AssertExpectations(t)
	})

	t.Run("final failed attempt locks the account", func(t *testing.T) {
		tracker := new(MockAccountTracker)
		verifier := identity.NewCredentialVerifier(tracker, identity.WithVerifierMaxAttempts(3))

		account := newAccount("correct_password")
		lastAttempt := time.Now().Add(-time.Minute)
		account.FailedAttempts = 2
		account.LastAttemptAt = &lastAttempt

		tracker.On("GetByEmail", ctx, "test@example.com").Return(account, nil).Once()
		tracker.On("TrackFailedSignIn", ctx, account).Return(nil).Once()
		tracker.On("Lock", ctx, account.ID, mock.AnythingOfType("time.Time")).Return(nil).Once()

		res, err := verifier.Verify(ctx, "test@example.com", "wrong_password", "")

		assert.NoError(t, err)
		assert.Equal(t, identity.SignInLockedOut, res.Status)

		tracker.AssertExpectations(t)
	})

	t.Run("stale attempts do not count toward lockout", func(t *testing.T) {
		tracker := new(MockAccountTracker)
		verifier := identity.NewCredentialVerifier(tracker,
			identity.WithVerifierMaxAttempts(3),
			identity.WithVerifierAttemptWindow("24h"),
		)

		account := newAccount("correct_password")
		lastAttempt := time.Now().Add(-48 * time.Hour)
		account.FailedAttempts = 2
		account.LastAttemptAt = &lastAttempt

		tracker.On("GetByEmail", ctx, "test@example.com").Return(account, nil).Once()
		tracker.On("TrackFailedSignIn", ctx, account).Return(nil).Once()

		res, err := verifier.Verify(ctx, "test@example.com", "wrong_password", "")

		assert.NoError(t, err)
		assert.Equal(t, identity.SignInFailure, res.Status)

		tracker.AssertNotCalled(t, "Lock", mock.Anything, mock.Anything, mock.Anything)
		tracker.AssertExpectations(t)
	})

	t.Run("two-factor account requires verification", func(t *testing.T) {
		tracker := new(MockAccountTracker)
		verifier := identity.NewCredentialVerifier(tracker)

		account := newAccount("password123")
		account.TwoFactor = true

		tracker.On("GetByEmail", ctx, "test@example.com").Return(account, nil).Once()
		tracker.On("TrackSuccessfulSignIn", ctx, account).Return(nil).Once()

		res, err := verifier.Verify(ctx, "test@example.com", "password123", "")

		assert.NoError(t, err)
		assert.Equal(t, identity.SignInRequiresVerification, res.Status)
		assert.Equal(t, account, res.Account)

		tracker.AssertExpectations(t)
	})

	t.Run("remembered device skips the challenge", func(t *testing.T) {
		tracker := new(MockAccountTracker)
		devices := new(MockRememberedDevices)
		verifier := identity.NewCredentialVerifier(tracker, identity.WithVerifierDevices(devices))

		account := newAccount("password123")
		account.TwoFactor = true

		tracker.On("GetByEmail", ctx, "test@example.com").Return(account, nil).Once()
		tracker.On("TrackSuccessfulSignIn", ctx, account).Return(nil).Once()
		devices.On("IsRemembered", ctx, account.ID.String(), "device-1").Return(true, nil).Once()

		res, err := verifier.Verify(ctx, "test@example.com", "password123", "device-1")

		assert.NoError(t, err)
		assert.Equal(t, identity.SignInSuccess, res.Status)

		tracker.AssertExpectations(t)
		devices.AssertExpectations(t)
	})

	t.Run("device store failure still challenges", func(t *testing.T) {
		tracker := new(MockAccountTracker)
		devices := new(MockRememberedDevices)
		verifier := identity.NewCredentialVerifier(tracker, identity.WithVerifierDevices(devices))

		account := newAccount("password123")
		account.TwoFactor = true

		tracker.On("GetByEmail", ctx, "test@example.com").Return(account, nil).Once()
		tracker.On("TrackSuccessfulSignIn", ctx, account).Return(nil).Once()
		devices.On("IsRemembered", ctx, account.ID.String(), "device-1").
			Return(false, errors.New("redis unreachable", errors.CategoryInternal)).Once()

		res, err := verifier.Verify(ctx, "test@example.com", "password123", "device-1")

		assert.NoError(t, err)
		assert.Equal(t, identity.SignInRequiresVerification, res.Status)

		tracker.AssertExpectations(t)
		devices.AssertExpectations(t)
	})

	t.Run("store failure surfaces as error", func(t *testing.T) {
		tracker := new(MockAccountTracker)
		verifier := identity.NewCredentialVerifier(tracker)

		tracker.On("GetByEmail", ctx, "test@example.com").
			Return(nil, errors.New("connection refused", errors.CategoryInternal)).Once()

		res, err := verifier.Verify(ctx, "test@example.com", "password123", "")

		assert.Error(t, err)
		assert.Nil(t, res)

		tracker.AssertExpectations(t)
	})
}
