package identity

import (
	"context"
	"time"

	"github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// DefaultMaxFailedAttempts is the number of consecutive credential failures
// an account gets before the lockout window opens.
var DefaultMaxFailedAttempts = 5

// DefaultLockoutWindow is how long a locked account stays locked.
var DefaultLockoutWindow = 15 * time.Minute

// DefaultAttemptWindow is how far back failed attempts still count toward
// the lockout threshold.
var DefaultAttemptWindow = "24h"

// AccountTracker is the slice of the accounts store the verifier needs.
type AccountTracker interface {
	GetByEmail(ctx context.Context, email string, criteria ...repository.SelectCriteria) (*Account, error)
	TrackFailedSignIn(ctx context.Context, account *Account) error
	TrackSuccessfulSignIn(ctx context.Context, account *Account) error
	Lock(ctx context.Context, id uuid.UUID, until time.Time) error
}

// SignInResult carries the verifier outcome plus the matched account.
// Account is nil on Failure so callers cannot leak existence.
type SignInResult struct {
	Status  SignInStatus
	Account *Account
}

// CredentialVerifier validates primary credentials against the account
// store, keeping the failed-attempt counter and lockout timestamp honest.
type CredentialVerifier struct {
	store         AccountTracker
	devices       RememberedDevices
	maxAttempts   int
	lockout       time.Duration
	attemptWindow string
	now           Clock
	logger        Logger
}

type VerifierOption func(*CredentialVerifier)

// WithVerifierMaxAttempts overrides the failure threshold.
func WithVerifierMaxAttempts(n int) VerifierOption {
	return func(v *CredentialVerifier) {
		if n > 0 {
			v.maxAttempts = n
		}
	}
}

// WithVerifierLockoutWindow overrides the lockout duration.
func WithVerifierLockoutWindow(d time.Duration) VerifierOption {
	return func(v *CredentialVerifier) {
		if d > 0 {
			v.lockout = d
		}
	}
}

// WithVerifierAttemptWindow sets how far back failed attempts count,
// using a time.ParseDuration pattern like "24h".
func WithVerifierAttemptWindow(pattern string) VerifierOption {
	return func(v *CredentialVerifier) {
		if pattern != "" {
			v.attemptWindow = pattern
		}
	}
}

// WithVerifierClock injects a custom clock (useful for tests).
func WithVerifierClock(clock Clock) VerifierOption {
	return func(v *CredentialVerifier) {
		if clock != nil {
			v.now = clock
		}
	}
}

// WithVerifierDevices wires the remembered-device store. Without it every
// two-factor account is challenged on every sign-in.
func WithVerifierDevices(devices RememberedDevices) VerifierOption {
	return func(v *CredentialVerifier) {
		v.devices = devices
	}
}

func (v *CredentialVerifier) WithLogger(l Logger) *CredentialVerifier {
	if l != nil {
		v.logger = l
	}
	return v
}

func NewCredentialVerifier(store AccountTracker, opts ...VerifierOption) *CredentialVerifier {
	v := &CredentialVerifier{
		store:         store,
		maxAttempts:   DefaultMaxFailedAttempts,
		lockout:       DefaultLockoutWindow,
		attemptWindow: DefaultAttemptWindow,
		now:           time.Now,
		logger:        defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}

	return v
}

// Verify checks identifier+secret and reports one of Success, LockedOut,
// RequiresVerification or Failure. A missing account and a wrong secret are
// the same Failure; lockout is reported before the secret is even checked.
func (v *CredentialVerifier) Verify(ctx context.Context, identifier, secret, deviceID string) (*SignInResult, error) {
	account, err := v.store.GetByEmail(ctx, identifier)
	if err != nil {
		if errors.IsNotFound(err) {
			// Burn a comparison so the miss takes as long as a mismatch.
			_ = ComparePasswordAndHash(secret, dummyPasswordHash())
			return &SignInResult{Status: SignInFailure}, nil
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve account during verification")
	}

	now := v.now()

	if account.IsLockedOut(now) {
		return &SignInResult{Status: SignInLockedOut}, nil
	}

	if err := ComparePasswordAndHash(secret, account.PasswordHash); err != nil {
		if err2 := v.store.TrackFailedSignIn(ctx, account); err2 != nil {
			return nil, errors.Wrap(err2, errors.CategoryInternal, "failed to track sign-in attempt")
		}

		// Attempts older than the window no longer count toward lockout.
		attempts := account.FailedAttempts
		if account.LastAttemptAt != nil {
			if stale, terr := IsOutsideThresholdPeriod(*account.LastAttemptAt, v.attemptWindow); terr == nil && stale {
				attempts = 0
			}
		}

		if attempts+1 >= v.maxAttempts {
			until := now.Add(v.lockout)
			if err2 := v.store.Lock(ctx, account.ID, until); err2 != nil {
				return nil, errors.Wrap(err2, errors.CategoryInternal, "failed to lock account")
			}
			return &SignInResult{Status: SignInLockedOut}, nil
		}

		return &SignInResult{Status: SignInFailure}, nil
	}

	if err := v.store.TrackSuccessfulSignIn(ctx, account); err != nil {
		v.logger.Error("failed to track successful sign-in", "error", err)
	}

	if account.TwoFactor && !v.deviceRemembered(ctx, account, deviceID) {
		return &SignInResult{Status: SignInRequiresVerification, Account: account}, nil
	}

	return &SignInResult{Status: SignInSuccess, Account: account}, nil
}

func (v *CredentialVerifier) deviceRemembered(ctx context.Context, account *Account, deviceID string) bool {
	if v.devices == nil || deviceID == "" {
		return false
	}

	remembered, err := v.devices.IsRemembered(ctx, account.ID.String(), deviceID)
	if err != nil {
		// Fail closed: an unreachable device store means we challenge.
		v.logger.Warn("remembered-device lookup failed", "error", err)
		return false
	}
	return remembered
}
