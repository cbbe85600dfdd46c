package identity

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Principal is the authenticated caller as seen by authorization code.
type Principal interface {
	ID() string
	Role() string
	TenantID() string
}

// SessionIssuer hands out and revokes transport-level sessions. The core
// never inspects what a session physically is (cookie, bearer token, etc).
type SessionIssuer interface {
	SignIn(ctx context.Context, account *Account, persistent bool) (string, error)
	SignOut(ctx context.Context, accountID string) error
}

// Notifier delivers out-of-band messages. Delivery failures are logged by
// callers, never surfaced as authentication errors.
type Notifier interface {
	SendEmail(ctx context.Context, address, subject, body string) error
	SendSMS(ctx context.Context, number, text string) error
}

// PasswordHasher authenticates passwords
type PasswordHasher interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

// Clock lets tests pin time.
type Clock func() time.Time

// DefaultLogger returns the fallback stdout logger used when no Logger is
// provided.
func DefaultLogger() Logger {
	return defLogger{}
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] IDENTITY "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] IDENTITY "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] IDENTITY "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] IDENTITY "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
