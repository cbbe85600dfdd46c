package identity

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AccountRole is the account's role
type AccountRole = string

const (
	// RoleUser is a plain account with no administrative reach
	RoleUser AccountRole = "user"
	// RoleTenantAdmin administers accounts inside its own tenant
	RoleTenantAdmin AccountRole = "tenant_admin"
	// RoleAdministrator administers every account
	RoleAdministrator AccountRole = "administrator"
)

// TwoFactorProvider names a delivery channel for one-time codes.
type TwoFactorProvider = string

const (
	ProviderEmail TwoFactorProvider = "email"
	ProviderSMS   TwoFactorProvider = "sms"
)

// Account is the persisted user record.
type Account struct {
	bun.BaseModel  `bun:"table:accounts,alias:acc"`
	ID             uuid.UUID      `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Role           AccountRole    `bun:"account_role,notnull" json:"account_role,omitempty"`
	FirstName      string         `bun:"first_name" json:"first_name,omitempty"`
	LastName       string         `bun:"last_name" json:"last_name,omitempty"`
	Email          string         `bun:"email,notnull,unique" json:"email,omitempty"`
	EmailConfirmed bool           `bun:"is_email_confirmed" json:"is_email_confirmed,omitempty"`
	Phone          string         `bun:"phone_number" json:"phone_number,omitempty"`
	PhoneConfirmed bool           `bun:"is_phone_confirmed" json:"is_phone_confirmed,omitempty"`
	PasswordHash   string         `bun:"password_hash" json:"-"`
	TwoFactor      bool           `bun:"two_factor_enabled" json:"two_factor_enabled,omitempty"`
	TenantID       *uuid.UUID     `bun:"tenant_id,nullzero,type:uuid" json:"tenant_id,omitempty"`
	FailedAttempts int            `bun:"failed_attempts" json:"failed_attempts,omitempty"`
	LastAttemptAt  *time.Time     `bun:"last_attempt_at,nullzero" json:"last_attempt_at,omitempty"`
	LockoutUntil   *time.Time     `bun:"lockout_until,nullzero" json:"lockout_until,omitempty"`
	SignedInAt     *time.Time     `bun:"signedin_at,nullzero" json:"signedin_at,omitempty"`
	Metadata       map[string]any `bun:"metadata" json:"metadata,omitempty"`
	CreatedAt      *time.Time     `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time     `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt      *time.Time     `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// HasPassword reports whether the account carries a local credential.
func (a *Account) HasPassword() bool {
	return a != nil && a.PasswordHash != ""
}

// IsLockedOut reports whether the lockout window is still open at now.
func (a *Account) IsLockedOut(now time.Time) bool {
	return a != nil && a.LockoutUntil != nil && a.LockoutUntil.After(now)
}

// TenantKey returns the tenant id as a string, empty when unassigned.
func (a *Account) TenantKey() string {
	if a == nil || a.TenantID == nil {
		return ""
	}
	return a.TenantID.String()
}

// AddMetadata will append information to a metadata attribute
func (a *Account) AddMetadata(key string, val any) *Account {
	if a.Metadata == nil {
		a.Metadata = make(map[string]any)
	}
	a.Metadata[key] = val
	return a
}

// TokenPurpose tags what a single-use token may be redeemed for.
type TokenPurpose = string

const (
	// PurposePasswordReset allows one password replacement
	PurposePasswordReset TokenPurpose = "password_reset"
	// PurposeEmailConfirm allows one email confirmation
	PurposeEmailConfirm TokenPurpose = "email_confirm"
)

const (
	// TokenPending means the token has not been redeemed yet
	TokenPending = "pending"
	// TokenRedeemed means the token was consumed, it can never succeed again
	TokenRedeemed = "redeemed"
)

// AccountToken is a single-use, time-limited token bound to an account and a
// purpose. The token value handed to the user is the record's id; redemption
// is a conditional update so concurrent redeemers get exactly one winner.
type AccountToken struct {
	bun.BaseModel `bun:"table:account_tokens,alias:tok"`
	ID            uuid.UUID    `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	AccountID     *uuid.UUID   `bun:"account_id,notnull,type:uuid" json:"account_id,omitempty"`
	Account       *Account     `bun:"rel:has-one,join:account_id=id" json:"account,omitempty"`
	Purpose       TokenPurpose `bun:"purpose,notnull" json:"purpose,omitempty"`
	Status        string       `bun:"status,notnull" json:"status,omitempty"`
	Email         string       `bun:"email,notnull" json:"email,omitempty"`
	ExpiresAt     *time.Time   `bun:"expires_at,nullzero" json:"expires_at,omitempty"`
	RedeemedAt    *time.Time   `bun:"redeemed_at,nullzero" json:"redeemed_at,omitempty"`
	CreatedAt     *time.Time   `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time   `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt     *time.Time   `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// ExternalLogin is a federated (provider, provider key) credential linked to
// an account. Unique on the pair.
type ExternalLogin struct {
	ID          string         `json:"id"`
	AccountID   string         `json:"account_id"`
	Provider    string         `json:"provider"`
	ProviderKey string         `json:"provider_key"`
	Email       string         `json:"email,omitempty"`
	DisplayName string         `json:"display_name,omitempty"`
	ProfileData map[string]any `json:"profile_data,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}
