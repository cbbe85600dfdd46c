package identity

import (
	"context"
	"fmt"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// SessionState tracks where a sign-in attempt sits in the lifecycle.
type SessionState string

const (
	StateAnonymous            SessionState = "anonymous"
	StateCredentialsSubmitted SessionState = "credentials_submitted"
	StateTwoFactorPending     SessionState = "twofactor_pending"
	StateExternalPending      SessionState = "external_pending"
	StateAuthenticated        SessionState = "authenticated"
	StateLockedOut            SessionState = "locked_out"
	StateRejected             SessionState = "rejected"
)

var sessionTransitions = map[SessionState][]SessionState{
	StateAnonymous:            {StateCredentialsSubmitted, StateExternalPending},
	StateCredentialsSubmitted: {StateAuthenticated, StateTwoFactorPending, StateLockedOut, StateRejected},
	StateTwoFactorPending:     {StateAuthenticated, StateLockedOut, StateRejected},
	StateExternalPending:      {StateAuthenticated, StateRejected},
}

// CanTransition reports whether the lifecycle allows moving between two
// states. Authenticated, LockedOut and Rejected are terminal.
func CanTransition(from, to SessionState) bool {
	for _, next := range sessionTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Result is what every lifecycle operation hands back to the transport
// layer. Status is the only vocabulary that crosses the boundary; State and
// the optional fields give the caller enough to drive the next step.
type Result struct {
	Status    Status            `json:"status"`
	State     SessionState      `json:"state,omitempty"`
	Token     string            `json:"token,omitempty"`
	AccountID string            `json:"account_id,omitempty"`
	Provider  TwoFactorProvider `json:"provider,omitempty"`
}

// LoginInput carries primary credentials plus session preferences.
type LoginInput struct {
	Email      string
	Password   string
	Persistent bool
	DeviceID   string
}

// VerifyCodeInput completes a pending two-factor challenge.
type VerifyCodeInput struct {
	Email          string
	Provider       TwoFactorProvider
	Code           string
	RememberDevice bool
	Persistent     bool
	DeviceID       string
}

// RegisterInput creates a new account with primary credentials.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
}

// ExternalIdentity is a provider-asserted identity, already validated by the
// external token verifier.
type ExternalIdentity struct {
	Provider    string
	ProviderKey string
	Email       string
	DisplayName string
	ProfileData map[string]any
}

// DefaultPasswordResetTTL bounds how long a reset token stays redeemable.
var DefaultPasswordResetTTL = 2 * time.Hour

// DefaultEmailConfirmTTL bounds how long a confirmation token stays
// redeemable.
var DefaultEmailConfirmTTL = 72 * time.Hour

// Lifecycle drives accounts through sign-in, registration, recovery and
// external-login linking. Every operation resolves to a Status; transport
// and infrastructure failures fold into OperationFailed with the cause in
// the error return.
type Lifecycle struct {
	repo       RepositoryManager
	verifier   *CredentialVerifier
	challenges *ChallengeManager
	sessions   SessionIssuer
	notifier   Notifier
	activity   ActivitySink
	resetTTL   time.Duration
	confirmTTL time.Duration
	now        Clock
	logger     Logger
}

type LifecycleOption func(*Lifecycle)

func WithLifecycleNotifier(n Notifier) LifecycleOption {
	return func(l *Lifecycle) {
		l.notifier = normalizeNotifier(n)
	}
}

func WithLifecycleActivitySink(sink ActivitySink) LifecycleOption {
	return func(l *Lifecycle) {
		l.activity = normalizeActivitySink(sink)
	}
}

func WithPasswordResetTTL(d time.Duration) LifecycleOption {
	return func(l *Lifecycle) {
		if d > 0 {
			l.resetTTL = d
		}
	}
}

func WithEmailConfirmTTL(d time.Duration) LifecycleOption {
	return func(l *Lifecycle) {
		if d > 0 {
			l.confirmTTL = d
		}
	}
}

func WithLifecycleClock(clock Clock) LifecycleOption {
	return func(l *Lifecycle) {
		if clock != nil {
			l.now = clock
		}
	}
}

func (l *Lifecycle) WithLogger(logger Logger) *Lifecycle {
	if logger != nil {
		l.logger = logger
	}
	return l
}

func NewLifecycle(
	repo RepositoryManager,
	verifier *CredentialVerifier,
	challenges *ChallengeManager,
	sessions SessionIssuer,
	opts ...LifecycleOption,
) *Lifecycle {
	l := &Lifecycle{
		repo:       repo,
		verifier:   verifier,
		challenges: challenges,
		sessions:   sessions,
		notifier:   noopNotifier{},
		activity:   noopActivitySink{},
		resetTTL:   DefaultPasswordResetTTL,
		confirmTTL: DefaultEmailConfirmTTL,
		now:        time.Now,
		logger:     defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}

	return l
}

// Login checks primary credentials. Success mints a session token; a
// two-factor account gets a challenge on its default channel instead.
func (l *Lifecycle) Login(ctx context.Context, input LoginInput) (*Result, error) {
	res, err := l.verifier.Verify(ctx, input.Email, input.Password, input.DeviceID)
	if err != nil {
		return l.operationFailed(ctx, "login", err)
	}

	switch res.Status {
	case SignInLockedOut:
		l.record(ctx, ActivityEventLoginFailure, "", map[string]any{"reason": "locked_out"})
		return &Result{Status: StatusAccountLockedOut, State: StateLockedOut}, nil

	case SignInFailure:
		l.record(ctx, ActivityEventLoginFailure, "", map[string]any{"reason": "invalid_credentials"})
		return &Result{Status: StatusAuthorizationFailure, State: StateRejected}, nil

	case SignInRequiresVerification:
		provider := ChooseProvider(res.Account)
		if err := l.challenges.Issue(ctx, res.Account, provider); err != nil {
			return l.operationFailed(ctx, "login.challenge", err)
		}
		return &Result{
			Status:    StatusAccountRequiresVerification,
			State:     StateTwoFactorPending,
			AccountID: res.Account.ID.String(),
			Provider:  provider,
		}, nil
	}

	token, err := l.sessions.SignIn(ctx, res.Account, input.Persistent)
	if err != nil {
		return l.operationFailed(ctx, "login.session", err)
	}

	l.record(ctx, ActivityEventLoginSuccess, res.Account.ID.String(), nil)

	return &Result{
		Status:    StatusOk,
		State:     StateAuthenticated,
		Token:     token,
		AccountID: res.Account.ID.String(),
	}, nil
}

// VerifyCode completes the two-factor leg of a sign-in.
func (l *Lifecycle) VerifyCode(ctx context.Context, input VerifyCodeInput) (*Result, error) {
	account, err := l.repo.Accounts().GetByEmail(ctx, input.Email)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return &Result{Status: StatusInvalidVerificationCode, State: StateRejected}, nil
		}
		return l.operationFailed(ctx, "verify_code", err)
	}

	// A lockout opened after the challenge was issued still blocks it.
	if account.IsLockedOut(l.now()) {
		return &Result{Status: StatusAccountLockedOut, State: StateLockedOut}, nil
	}

	err = l.challenges.Verify(ctx, account, input.Provider, input.Code, input.RememberDevice, input.DeviceID)
	if err != nil {
		if goerrors.Is(err, ErrChallengeExhausted) {
			return &Result{Status: StatusAccountLockedOut, State: StateLockedOut}, nil
		}
		if goerrors.Is(err, ErrChallengeNotFound) || goerrors.Is(err, ErrChallengeExpired) {
			return &Result{Status: StatusInvalidVerificationCode, State: StateRejected}, nil
		}

		var rich *goerrors.Error
		if goerrors.As(err, &rich) && rich.TextCode == TextCodeInvalidVerificationCode {
			return &Result{Status: StatusInvalidVerificationCode, State: StateTwoFactorPending}, nil
		}

		return l.operationFailed(ctx, "verify_code", err)
	}

	token, err := l.sessions.SignIn(ctx, account, input.Persistent)
	if err != nil {
		return l.operationFailed(ctx, "verify_code.session", err)
	}

	l.record(ctx, ActivityEventLoginSuccess, account.ID.String(), map[string]any{"twofactor": true})

	return &Result{
		Status:    StatusOk,
		State:     StateAuthenticated,
		Token:     token,
		AccountID: account.ID.String(),
	}, nil
}

// SendCode re-issues a challenge on the chosen channel for an account with a
// pending two-factor sign-in.
func (l *Lifecycle) SendCode(ctx context.Context, email string, provider TwoFactorProvider) (*Result, error) {
	if provider != ProviderEmail && provider != ProviderSMS {
		return &Result{Status: StatusInvalidArguments}, nil
	}

	account, err := l.repo.Accounts().GetByEmail(ctx, email)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return &Result{Status: StatusOperationFailed, State: StateRejected}, nil
		}
		return l.operationFailed(ctx, "send_code", err)
	}

	if !account.TwoFactor {
		return &Result{Status: StatusOperationFailed, State: StateRejected}, nil
	}

	if err := l.challenges.Issue(ctx, account, provider); err != nil {
		return l.operationFailed(ctx, "send_code.challenge", err)
	}

	return &Result{
		Status:    StatusOk,
		State:     StateTwoFactorPending,
		AccountID: account.ID.String(),
		Provider:  provider,
	}, nil
}

// Register creates an account, queues an email-confirmation token and signs
// the new account in. Unconfirmed accounts may sign in; confirmation gates
// recovery, not access.
func (l *Lifecycle) Register(ctx context.Context, input RegisterInput) (*Result, error) {
	taken, err := l.repo.Accounts().EmailInUse(ctx, input.Email)
	if err != nil {
		return l.operationFailed(ctx, "register", err)
	}
	if taken {
		return &Result{Status: StatusEmailAlreadyUsed}, nil
	}

	hash, err := HashPassword(input.Password)
	if err != nil {
		return l.operationFailed(ctx, "register.hash", err)
	}

	account := &Account{
		Email:        input.Email,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		PasswordHash: hash,
		Role:         RoleUser,
	}

	if input.Phone != "" {
		normalized, err := NormalizePhone(input.Phone)
		if err != nil {
			return &Result{Status: StatusInvalidArguments}, nil
		}
		account.Phone = normalized
	}

	account, err = l.repo.Accounts().Register(ctx, account)
	if err != nil {
		l.record(ctx, ActivityEventOperationalError, "", map[string]any{"op": "register", "error": err.Error()})
		return &Result{Status: StatusRegistrationFailed}, err
	}

	l.record(ctx, ActivityEventAccountRegistered, account.ID.String(), nil)

	// Delivery failures never fail registration.
	if err := l.sendEmailConfirmation(ctx, account); err != nil {
		l.logger.Error("failed to send confirmation email", "error", err, "account_id", account.ID.String())
	}

	token, err := l.sessions.SignIn(ctx, account, false)
	if err != nil {
		return l.operationFailed(ctx, "register.session", err)
	}

	return &Result{
		Status:    StatusOk,
		State:     StateAuthenticated,
		Token:     token,
		AccountID: account.ID.String(),
	}, nil
}

// ConfirmEmail redeems a single-use confirmation token.
func (l *Lifecycle) ConfirmEmail(ctx context.Context, token string) (*Result, error) {
	record, err := l.repo.Tokens().Redeem(ctx, token, PurposeEmailConfirm)
	if err != nil {
		if goerrors.Is(err, ErrTokenAlreadyUsed) || goerrors.Is(err, ErrTokenExpired) {
			return &Result{Status: StatusInvalidToken}, nil
		}
		return l.operationFailed(ctx, "confirm_email", err)
	}

	if record.AccountID == nil {
		return &Result{Status: StatusInvalidToken}, nil
	}

	if err := l.repo.Accounts().ConfirmEmail(ctx, *record.AccountID); err != nil {
		return l.operationFailed(ctx, "confirm_email", err)
	}

	l.record(ctx, ActivityEventEmailConfirmed, record.AccountID.String(), nil)

	return &Result{Status: StatusOk, AccountID: record.AccountID.String()}, nil
}

// RequestPasswordReset always reports Ok so callers cannot enumerate
// which emails exist. Eligible accounts get a reset token delivered.
func (l *Lifecycle) RequestPasswordReset(ctx context.Context, email string) (*Result, error) {
	account, err := l.repo.Accounts().GetByEmail(ctx, email)
	if err != nil {
		if !goerrors.IsNotFound(err) {
			l.logger.Error("password reset lookup failed", "error", err)
		}
		return &Result{Status: StatusOk}, nil
	}

	if !account.EmailConfirmed {
		return &Result{Status: StatusOk}, nil
	}

	record, err := l.repo.Tokens().Issue(ctx, account, PurposePasswordReset, l.resetTTL)
	if err != nil {
		l.logger.Error("failed to issue reset token", "error", err, "account_id", account.ID.String())
		return &Result{Status: StatusOk}, nil
	}

	body := fmt.Sprintf("Use this code to reset your password: %s. It expires in %d minutes.",
		record.ID.String(), int(l.resetTTL.Minutes()))
	if err := l.notifier.SendEmail(ctx, account.Email, "Password reset", body); err != nil {
		l.logger.Error("failed to deliver reset email", "error", err, "account_id", account.ID.String())
	}

	l.record(ctx, ActivityEventPasswordResetRequest, account.ID.String(), nil)

	return &Result{Status: StatusOk}, nil
}

// RedeemPasswordReset consumes a reset token and replaces the password
// hash. Redemption is atomic; a replayed or raced token loses. The reset
// clears the failed-attempt counter and any lockout.
func (l *Lifecycle) RedeemPasswordReset(ctx context.Context, token, newPassword string) (*Result, error) {
	hash, err := HashPassword(newPassword)
	if err != nil {
		return &Result{Status: StatusInvalidArguments}, nil
	}

	record, err := l.repo.Tokens().Redeem(ctx, token, PurposePasswordReset)
	if err != nil {
		if goerrors.Is(err, ErrTokenAlreadyUsed) || goerrors.Is(err, ErrTokenExpired) {
			return &Result{Status: StatusInvalidToken}, nil
		}
		return l.operationFailed(ctx, "redeem_reset", err)
	}

	if record.AccountID == nil {
		return &Result{Status: StatusInvalidToken}, nil
	}

	if err := l.repo.Accounts().ResetPassword(ctx, *record.AccountID, hash); err != nil {
		return l.operationFailed(ctx, "redeem_reset", err)
	}

	l.record(ctx, ActivityEventPasswordResetSuccess, record.AccountID.String(), nil)

	return &Result{Status: StatusOk, AccountID: record.AccountID.String()}, nil
}

// ExternalLoginCallback resolves a provider-asserted identity. A known
// link signs in directly; an unknown one moves to the confirmation step.
func (l *Lifecycle) ExternalLoginCallback(ctx context.Context, ident ExternalIdentity, persistent bool) (*Result, error) {
	logins := l.repo.ExternalLogins()
	if logins == nil {
		return l.operationFailed(ctx, "external_callback", goerrors.New("external logins repository not configured", goerrors.CategoryOperation))
	}

	link, err := logins.FindByProvider(ctx, ident.Provider, ident.ProviderKey)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return &Result{Status: StatusOk, State: StateExternalPending}, nil
		}
		return l.operationFailed(ctx, "external_callback", err)
	}

	account, err := l.repo.Accounts().GetByID(ctx, link.AccountID)
	if err != nil {
		return l.operationFailed(ctx, "external_callback", err)
	}

	if account.IsLockedOut(l.now()) {
		return &Result{Status: StatusAccountLockedOut, State: StateLockedOut}, nil
	}

	token, err := l.sessions.SignIn(ctx, account, persistent)
	if err != nil {
		return l.operationFailed(ctx, "external_callback.session", err)
	}

	l.record(ctx, ActivityEventLoginSuccess, account.ID.String(), map[string]any{"provider": ident.Provider})

	return &Result{
		Status:    StatusOk,
		State:     StateAuthenticated,
		Token:     token,
		AccountID: account.ID.String(),
	}, nil
}

// ExternalLoginConfirmation claims an email for a provider identity,
// creating the account and its external-login link in one transaction.
func (l *Lifecycle) ExternalLoginConfirmation(ctx context.Context, ident ExternalIdentity, email string) (*Result, error) {
	logins := l.repo.ExternalLogins()
	if logins == nil {
		return l.operationFailed(ctx, "external_confirm", goerrors.New("external logins repository not configured", goerrors.CategoryOperation))
	}

	if _, err := logins.FindByProvider(ctx, ident.Provider, ident.ProviderKey); err == nil {
		return &Result{Status: StatusLoginAlreadyAssociated}, nil
	} else if !goerrors.IsNotFound(err) {
		return l.operationFailed(ctx, "external_confirm", err)
	}

	taken, err := l.repo.Accounts().EmailInUse(ctx, email)
	if err != nil {
		return l.operationFailed(ctx, "external_confirm", err)
	}
	if taken {
		return &Result{Status: StatusEmailAlreadyUsed}, nil
	}

	account := &Account{
		Email: email,
		Role:  RoleUser,
		// Provider-verified addresses skip the confirmation loop.
		EmailConfirmed: email == ident.Email && ident.Email != "",
		FirstName:      ident.DisplayName,
	}

	// The account and its link land together or not at all; an account
	// without a password and without a link has no way back in.
	err = l.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		created, err := l.repo.Accounts().RegisterTx(ctx, tx, account)
		if err != nil {
			return err
		}
		account = created

		return logins.UpsertTx(ctx, tx, &ExternalLogin{
			AccountID:   created.ID.String(),
			Provider:    ident.Provider,
			ProviderKey: ident.ProviderKey,
			Email:       ident.Email,
			DisplayName: ident.DisplayName,
			ProfileData: ident.ProfileData,
		})
	})
	if err != nil {
		return &Result{Status: StatusRegistrationFailed}, err
	}

	l.record(ctx, ActivityEventExternalLinked, account.ID.String(), map[string]any{"provider": ident.Provider})

	token, err := l.sessions.SignIn(ctx, account, false)
	if err != nil {
		return l.operationFailed(ctx, "external_confirm.session", err)
	}

	return &Result{
		Status:    StatusOk,
		State:     StateAuthenticated,
		Token:     token,
		AccountID: account.ID.String(),
	}, nil
}

// AddLogin links a provider identity to an existing, signed-in account.
func (l *Lifecycle) AddLogin(ctx context.Context, accountID string, ident ExternalIdentity) (*Result, error) {
	logins := l.repo.ExternalLogins()
	if logins == nil {
		return l.operationFailed(ctx, "add_login", goerrors.New("external logins repository not configured", goerrors.CategoryOperation))
	}

	existing, err := logins.FindByProvider(ctx, ident.Provider, ident.ProviderKey)
	if err != nil && !goerrors.IsNotFound(err) {
		return l.operationFailed(ctx, "add_login", err)
	}
	if existing != nil && existing.AccountID != accountID {
		return &Result{Status: StatusLoginAlreadyAssociated}, nil
	}

	account, err := l.repo.Accounts().GetByID(ctx, accountID)
	if err != nil {
		return l.operationFailed(ctx, "add_login", err)
	}

	if err := logins.Upsert(ctx, &ExternalLogin{
		AccountID:   account.ID.String(),
		Provider:    ident.Provider,
		ProviderKey: ident.ProviderKey,
		Email:       ident.Email,
		DisplayName: ident.DisplayName,
		ProfileData: ident.ProfileData,
	}); err != nil {
		return l.operationFailed(ctx, "add_login", err)
	}

	l.record(ctx, ActivityEventExternalLinked, accountID, map[string]any{"provider": ident.Provider})

	return &Result{Status: StatusOk, AccountID: accountID}, nil
}

// RemoveLogin unlinks a provider identity, refusing to strand the account
// without any way back in.
func (l *Lifecycle) RemoveLogin(ctx context.Context, accountID, provider, providerKey string) (*Result, error) {
	logins := l.repo.ExternalLogins()
	if logins == nil {
		return l.operationFailed(ctx, "remove_login", goerrors.New("external logins repository not configured", goerrors.CategoryOperation))
	}

	account, err := l.repo.Accounts().GetByID(ctx, accountID)
	if err != nil {
		return l.operationFailed(ctx, "remove_login", err)
	}

	linked, err := logins.FindByAccount(ctx, account.ID.String())
	if err != nil {
		return l.operationFailed(ctx, "remove_login", err)
	}

	if !account.HasPassword() && len(linked) <= 1 {
		return &Result{Status: StatusRemoveLoginError}, ErrLastLoginMethod
	}

	if err := logins.Delete(ctx, account.ID.String(), provider, providerKey); err != nil {
		return l.operationFailed(ctx, "remove_login", err)
	}

	l.record(ctx, ActivityEventExternalUnlinked, accountID, map[string]any{"provider": provider})

	return &Result{Status: StatusOk, AccountID: accountID}, nil
}

// Logout invalidates the account session through the SessionIssuer.
func (l *Lifecycle) Logout(ctx context.Context, accountID string) (*Result, error) {
	if err := l.sessions.SignOut(ctx, accountID); err != nil {
		return l.operationFailed(ctx, "logout", err)
	}
	return &Result{Status: StatusOk, State: StateAnonymous}, nil
}

func (l *Lifecycle) sendEmailConfirmation(ctx context.Context, account *Account) error {
	record, err := l.repo.Tokens().Issue(ctx, account, PurposeEmailConfirm, l.confirmTTL)
	if err != nil {
		return err
	}

	body := fmt.Sprintf("Confirm your email address with this code: %s", record.ID.String())
	return l.notifier.SendEmail(ctx, account.Email, "Confirm your email", body)
}

func (l *Lifecycle) operationFailed(ctx context.Context, op string, err error) (*Result, error) {
	l.logger.Error("lifecycle operation failed", "op", op, "error", err)
	l.record(ctx, ActivityEventOperationalError, "", map[string]any{"op": op, "error": err.Error()})
	return &Result{Status: StatusOperationFailed}, err
}

func (l *Lifecycle) record(ctx context.Context, event ActivityEventType, accountID string, meta map[string]any) {
	evt := ActivityEvent{
		EventType:  event,
		AccountID:  accountID,
		Metadata:   meta,
		OccurredAt: l.now(),
	}
	if err := l.activity.Record(ctx, evt); err != nil {
		l.logger.Warn("activity sink rejected event", "event", string(event), "error", err)
	}
}
