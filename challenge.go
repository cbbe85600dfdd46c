package identity

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/goliatone/go-errors"
)

// DefaultChallengeTTL is how long a one-time code stays redeemable.
var DefaultChallengeTTL = 5 * time.Minute

// DefaultChallengeAttempts is how many wrong codes a single challenge
// absorbs before it is invalidated.
var DefaultChallengeAttempts = 3

// DefaultChallengeDigits is the one-time code length.
var DefaultChallengeDigits = 6

// ChallengeManager issues and verifies two-factor one-time codes. Issuing a
// new challenge replaces any outstanding one for the same account and
// provider, so at most one code is ever live.
type ChallengeManager struct {
	store       ChallengeStore
	devices     RememberedDevices
	notifier    Notifier
	activity    ActivitySink
	ttl         time.Duration
	maxAttempts int
	digits      int
	deviceTTL   time.Duration
	now         Clock
	logger      Logger
}

type ChallengeOption func(*ChallengeManager)

func WithChallengeTTL(d time.Duration) ChallengeOption {
	return func(m *ChallengeManager) {
		if d > 0 {
			m.ttl = d
		}
	}
}

func WithChallengeAttempts(n int) ChallengeOption {
	return func(m *ChallengeManager) {
		if n > 0 {
			m.maxAttempts = n
		}
	}
}

func WithChallengeDigits(n int) ChallengeOption {
	return func(m *ChallengeManager) {
		if n > 0 {
			m.digits = n
		}
	}
}

func WithChallengeDeviceTTL(d time.Duration) ChallengeOption {
	return func(m *ChallengeManager) {
		if d > 0 {
			m.deviceTTL = d
		}
	}
}

func WithChallengeNotifier(n Notifier) ChallengeOption {
	return func(m *ChallengeManager) {
		m.notifier = normalizeNotifier(n)
	}
}

func WithChallengeActivitySink(sink ActivitySink) ChallengeOption {
	return func(m *ChallengeManager) {
		m.activity = normalizeActivitySink(sink)
	}
}

func WithChallengeManagerClock(clock Clock) ChallengeOption {
	return func(m *ChallengeManager) {
		if clock != nil {
			m.now = clock
		}
	}
}

func (m *ChallengeManager) WithLogger(l Logger) *ChallengeManager {
	if l != nil {
		m.logger = l
	}
	return m
}

func NewChallengeManager(store ChallengeStore, devices RememberedDevices, opts ...ChallengeOption) *ChallengeManager {
	m := &ChallengeManager{
		store:       store,
		devices:     devices,
		notifier:    noopNotifier{},
		activity:    noopActivitySink{},
		ttl:         DefaultChallengeTTL,
		maxAttempts: DefaultChallengeAttempts,
		digits:      DefaultChallengeDigits,
		deviceTTL:   DefaultRememberDeviceTTL,
		now:         time.Now,
		logger:      defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	return m
}

// ChooseProvider picks the delivery channel for an account: SMS when a
// confirmed phone is on file, email otherwise.
func ChooseProvider(account *Account) TwoFactorProvider {
	if account.Phone != "" && account.PhoneConfirmed {
		return ProviderSMS
	}
	return ProviderEmail
}

// Issue generates a fresh one-time code, stores its digest and delivers the
// plain code over the chosen channel. Any previous challenge for the same
// account and provider is overwritten.
func (m *ChallengeManager) Issue(ctx context.Context, account *Account, provider TwoFactorProvider) error {
	if account == nil {
		return errors.New("account is required", errors.CategoryBadInput)
	}

	code, err := GenerateCode(m.digits)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to generate verification code")
	}

	record := &ChallengeRecord{
		AccountID: account.ID.String(),
		Provider:  provider,
		CodeHash:  HashChallengeCode(code),
		ExpiresAt: m.now().Add(m.ttl).Unix(),
	}

	if err := m.store.Put(ctx, record, m.ttl); err != nil {
		return err
	}

	if err := m.deliver(ctx, account, provider, code); err != nil {
		return err
	}

	m.activity.Record(ctx, ActivityEvent{
		EventType: ActivityEventChallengeIssued,
		AccountID: account.ID.String(),
		Metadata: map[string]any{
			"provider": string(provider),
		},
		OccurredAt: m.now(),
	})

	return nil
}

// Verify redeems a one-time code. A correct code removes the challenge; a
// wrong one burns an attempt, and the last wrong attempt invalidates the
// whole challenge. With rememberDevice set the device skips future
// challenges until its record expires.
func (m *ChallengeManager) Verify(ctx context.Context, account *Account, provider TwoFactorProvider, code string, rememberDevice bool, deviceID string) error {
	if account == nil {
		return errors.New("account is required", errors.CategoryBadInput)
	}

	accountID := account.ID.String()

	record, err := m.store.Get(ctx, accountID, provider)
	if err != nil {
		return err
	}

	given := HashChallengeCode(code)
	if subtle.ConstantTimeCompare([]byte(given), []byte(record.CodeHash)) != 1 {
		exhausted, ferr := m.store.RecordFailure(ctx, accountID, provider, m.maxAttempts)
		if ferr != nil && !errors.Is(ferr, ErrChallengeExpired) && !errors.Is(ferr, ErrChallengeNotFound) {
			return ferr
		}

		m.activity.Record(ctx, ActivityEvent{
			EventType:  ActivityEventChallengeFailure,
			AccountID:  accountID,
			OccurredAt: m.now(),
		})

		if exhausted {
			return ErrChallengeExhausted
		}
		return errors.New("verification code does not match", errors.CategoryAuth).
			WithTextCode(TextCodeInvalidVerificationCode)
	}

	if err := m.store.Delete(ctx, accountID, provider); err != nil {
		m.logger.Warn("failed to clear redeemed challenge", "error", err)
	}

	if rememberDevice && deviceID != "" && m.devices != nil {
		if err := m.devices.Remember(ctx, accountID, deviceID, m.deviceTTL); err != nil {
			m.logger.Warn("failed to remember device", "error", err)
		}
	}

	m.activity.Record(ctx, ActivityEvent{
		EventType:  ActivityEventChallengeSuccess,
		AccountID:  accountID,
		OccurredAt: m.now(),
	})

	return nil
}

func (m *ChallengeManager) deliver(ctx context.Context, account *Account, provider TwoFactorProvider, code string) error {
	switch provider {
	case ProviderSMS:
		if account.Phone == "" {
			return errors.New("account has no phone number on file", errors.CategoryValidation)
		}
		msg := fmt.Sprintf("Your verification code is %s", code)
		if err := m.notifier.SendSMS(ctx, account.Phone, msg); err != nil {
			return errors.Wrap(err, errors.CategoryOperation, "failed to deliver verification code")
		}
	default:
		body := fmt.Sprintf("Your verification code is %s. It expires in %d minutes.", code, int(m.ttl.Minutes()))
		if err := m.notifier.SendEmail(ctx, account.Email, "Your verification code", body); err != nil {
			return errors.Wrap(err, errors.CategoryOperation, "failed to deliver verification code")
		}
	}

	return nil
}
