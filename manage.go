package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// AccountManager covers self-service account maintenance for a signed-in
// principal: password changes, phone numbers and the two-factor toggle.
// It speaks the same Status vocabulary as the lifecycle.
type AccountManager struct {
	repo       RepositoryManager
	challenges *ChallengeManager
	activity   ActivitySink
	now        Clock
	logger     Logger
}

type AccountManagerOption func(*AccountManager)

func WithManagerActivitySink(sink ActivitySink) AccountManagerOption {
	return func(m *AccountManager) {
		m.activity = normalizeActivitySink(sink)
	}
}

func WithManagerClock(clock Clock) AccountManagerOption {
	return func(m *AccountManager) {
		if clock != nil {
			m.now = clock
		}
	}
}

func (m *AccountManager) WithLogger(l Logger) *AccountManager {
	if l != nil {
		m.logger = l
	}
	return m
}

func NewAccountManager(repo RepositoryManager, challenges *ChallengeManager, opts ...AccountManagerOption) *AccountManager {
	m := &AccountManager{
		repo:       repo,
		challenges: challenges,
		activity:   noopActivitySink{},
		now:        time.Now,
		logger:     defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	return m
}

// ChangePassword swaps the current password for a new one. The old password
// must match.
func (m *AccountManager) ChangePassword(ctx context.Context, accountID, oldPassword, newPassword string) (*Result, error) {
	account, err := m.repo.Accounts().GetByID(ctx, accountID)
	if err != nil {
		return m.operationFailed(ctx, "change_password", err)
	}

	if err := ComparePasswordAndHash(oldPassword, account.PasswordHash); err != nil {
		return &Result{Status: StatusIncorrectPassword}, nil
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return &Result{Status: StatusInvalidArguments}, nil
	}

	if err := m.repo.Accounts().SetPassword(ctx, account.ID, hash); err != nil {
		return m.operationFailed(ctx, "change_password", err)
	}

	m.record(ctx, ActivityEventPasswordChanged, accountID, nil)

	return &Result{Status: StatusOk, AccountID: accountID}, nil
}

// SetPassword gives a password to an account that signs in externally.
// Accounts that already hold a hash must use ChangePassword.
func (m *AccountManager) SetPassword(ctx context.Context, accountID, newPassword string) (*Result, error) {
	account, err := m.repo.Accounts().GetByID(ctx, accountID)
	if err != nil {
		return m.operationFailed(ctx, "set_password", err)
	}

	if account.HasPassword() {
		return &Result{Status: StatusUserAlreadyHasPassword}, nil
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return &Result{Status: StatusInvalidArguments}, nil
	}

	if err := m.repo.Accounts().SetPassword(ctx, account.ID, hash); err != nil {
		return m.operationFailed(ctx, "set_password", err)
	}

	m.record(ctx, ActivityEventPasswordChanged, accountID, map[string]any{"initial": true})

	return &Result{Status: StatusOk, AccountID: accountID}, nil
}

// AddPhoneNumber stores a normalized phone number unconfirmed and sends a
// verification code to it.
func (m *AccountManager) AddPhoneNumber(ctx context.Context, accountID, phone string) (*Result, error) {
	normalized, err := NormalizePhone(phone)
	if err != nil {
		return &Result{Status: StatusInvalidArguments}, nil
	}

	account, err := m.repo.Accounts().GetByID(ctx, accountID)
	if err != nil {
		return m.operationFailed(ctx, "add_phone", err)
	}

	if err := m.repo.Accounts().SetPhone(ctx, account.ID, normalized, false); err != nil {
		return m.operationFailed(ctx, "add_phone", err)
	}

	account.Phone = normalized
	if err := m.challenges.Issue(ctx, account, ProviderSMS); err != nil {
		return m.operationFailed(ctx, "add_phone.challenge", err)
	}

	return &Result{Status: StatusOk, AccountID: accountID, Provider: ProviderSMS}, nil
}

// VerifyPhoneNumber confirms the pending phone number with the code that
// was sent to it.
func (m *AccountManager) VerifyPhoneNumber(ctx context.Context, accountID, code string) (*Result, error) {
	account, err := m.repo.Accounts().GetByID(ctx, accountID)
	if err != nil {
		return m.operationFailed(ctx, "verify_phone", err)
	}

	if account.Phone == "" {
		return &Result{Status: StatusInvalidArguments}, nil
	}

	if err := m.challenges.Verify(ctx, account, ProviderSMS, code, false, ""); err != nil {
		if goerrors.Is(err, ErrChallengeExhausted) {
			return &Result{Status: StatusAccountLockedOut}, nil
		}

		var rich *goerrors.Error
		if goerrors.Is(err, ErrChallengeNotFound) || goerrors.Is(err, ErrChallengeExpired) ||
			(goerrors.As(err, &rich) && rich.TextCode == TextCodeInvalidVerificationCode) {
			return &Result{Status: StatusInvalidVerificationCode}, nil
		}

		return m.operationFailed(ctx, "verify_phone", err)
	}

	if err := m.repo.Accounts().SetPhone(ctx, account.ID, account.Phone, true); err != nil {
		return m.operationFailed(ctx, "verify_phone", err)
	}

	return &Result{Status: StatusOk, AccountID: accountID}, nil
}

// RemovePhoneNumber clears the phone number and its confirmation flag.
func (m *AccountManager) RemovePhoneNumber(ctx context.Context, accountID string) (*Result, error) {
	account, err := m.repo.Accounts().GetByID(ctx, accountID)
	if err != nil {
		return m.operationFailed(ctx, "remove_phone", err)
	}

	if err := m.repo.Accounts().SetPhone(ctx, account.ID, "", false); err != nil {
		return m.operationFailed(ctx, "remove_phone", err)
	}

	return &Result{Status: StatusOk, AccountID: accountID}, nil
}

// EnableTwoFactor turns on challenge-gated sign-in for the account.
func (m *AccountManager) EnableTwoFactor(ctx context.Context, accountID string) (*Result, error) {
	return m.setTwoFactor(ctx, accountID, true)
}

// DisableTwoFactor turns challenge-gated sign-in back off.
func (m *AccountManager) DisableTwoFactor(ctx context.Context, accountID string) (*Result, error) {
	return m.setTwoFactor(ctx, accountID, false)
}

func (m *AccountManager) setTwoFactor(ctx context.Context, accountID string, enabled bool) (*Result, error) {
	account, err := m.repo.Accounts().GetByID(ctx, accountID)
	if err != nil {
		return m.operationFailed(ctx, "set_twofactor", err)
	}

	if err := m.repo.Accounts().SetTwoFactor(ctx, account.ID, enabled); err != nil {
		return m.operationFailed(ctx, "set_twofactor", err)
	}

	return &Result{Status: StatusOk, AccountID: accountID}, nil
}

// AdminAccountInput describes an account provisioned on behalf of another
// principal.
type AdminAccountInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      AccountRole
	TenantID  string
}

// CreateAccount provisions an account for an administrator or tenant
// admin. The requested role passes through SanitizeRoles, so the caller
// can never hand out a role it does not manage; anything clamped away
// lands on the plain user role. Tenant admins always create into their
// own tenant.
func (m *AccountManager) CreateAccount(ctx context.Context, principal Principal, input AdminAccountInput) (*Result, error) {
	scope := AccessibleScope(principal)
	if scope.None() {
		return &Result{Status: StatusAuthorizationFailure}, nil
	}

	taken, err := m.repo.Accounts().EmailInUse(ctx, input.Email)
	if err != nil {
		return m.operationFailed(ctx, "create_account", err)
	}
	if taken {
		return &Result{Status: StatusEmailAlreadyUsed}, nil
	}

	role := RoleUser
	if granted := SanitizeRoles(principal, []AccountRole{input.Role}); len(granted) == 1 {
		role = granted[0]
	}

	account := &Account{
		Email:     input.Email,
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Role:      role,
	}

	if input.Password != "" {
		hash, err := HashPassword(input.Password)
		if err != nil {
			return &Result{Status: StatusInvalidArguments}, nil
		}
		account.PasswordHash = hash
	}

	tenant := input.TenantID
	if !scope.All {
		tenant = scope.TenantID
	}
	if tenant != "" {
		tid, err := uuid.Parse(tenant)
		if err != nil {
			return &Result{Status: StatusInvalidArguments}, nil
		}
		account.TenantID = &tid
	}

	account, err = m.repo.Accounts().Register(ctx, account)
	if err != nil {
		return m.operationFailed(ctx, "create_account", err)
	}

	m.record(ctx, ActivityEventAccountRegistered, account.ID.String(), map[string]any{"created_by": principal.ID()})

	return &Result{Status: StatusOk, AccountID: account.ID.String()}, nil
}

// UpdateAccountRole changes another account's role. The requested role
// passes through SanitizeRoles first and the target must sit inside the
// principal's tenant scope; a role the principal cannot manage refuses
// outright instead of clamping, since a silent downgrade on an explicit
// assignment would surprise the caller.
func (m *AccountManager) UpdateAccountRole(ctx context.Context, principal Principal, accountID string, role AccountRole) (*Result, error) {
	granted := SanitizeRoles(principal, []AccountRole{role})
	if len(granted) == 0 {
		return &Result{Status: StatusAuthorizationFailure}, nil
	}

	account, err := m.repo.Accounts().GetByID(ctx, accountID)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return &Result{Status: StatusInvalidArguments}, nil
		}
		return m.operationFailed(ctx, "update_role", err)
	}

	scope := AccessibleScope(principal)
	if scope.None() || (!scope.All && account.TenantKey() != scope.TenantID) {
		return &Result{Status: StatusAuthorizationFailure}, nil
	}

	if err := m.repo.Accounts().SetRole(ctx, account.ID, granted[0]); err != nil {
		return m.operationFailed(ctx, "update_role", err)
	}

	m.record(ctx, ActivityEventRoleChanged, accountID, map[string]any{
		"role":       granted[0],
		"changed_by": principal.ID(),
	})

	return &Result{Status: StatusOk, AccountID: accountID}, nil
}

func (m *AccountManager) operationFailed(ctx context.Context, op string, err error) (*Result, error) {
	m.logger.Error("account operation failed", "op", op, "error", err)
	m.record(ctx, ActivityEventOperationalError, "", map[string]any{"op": op, "error": err.Error()})
	return &Result{Status: StatusOperationFailed}, err
}

func (m *AccountManager) record(ctx context.Context, event ActivityEventType, accountID string, meta map[string]any) {
	evt := ActivityEvent{
		EventType:  event,
		AccountID:  accountID,
		Metadata:   meta,
		OccurredAt: m.now(),
	}
	if err := m.activity.Record(ctx, evt); err != nil {
		m.logger.Warn("activity sink rejected event", "event", string(event), "error", err)
	}
}
