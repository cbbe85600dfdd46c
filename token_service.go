package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// DefaultSessionTTL is the lifetime of a regular session token.
var DefaultSessionTTL = 12 * time.Hour

// DefaultPersistentSessionTTL is the lifetime of a "remember me" session.
var DefaultPersistentSessionTTL = 30 * 24 * time.Hour

// ErrTokenMalformed means the session token failed signature or structural
// validation.
var ErrTokenMalformed = errors.New("session token is malformed", errors.CategoryAuth).
	WithTextCode("TOKEN_MALFORMED")

// ErrUnableToDecodeSession means the token parsed but its claims could not
// be recovered.
var ErrUnableToDecodeSession = errors.New("unable to decode session claims", errors.CategoryAuth).
	WithTextCode("SESSION_DECODE_FAILED")

// TokenService issues and validates signed session tokens. It implements
// SessionIssuer for the account lifecycle.
type TokenService struct {
	signingKey    []byte
	sessionTTL    time.Duration
	persistentTTL time.Duration
	issuer        string
	audience      jwt.ClaimStrings
	logger        Logger
}

type TokenServiceOption func(*TokenService)

func WithSessionTTL(d time.Duration) TokenServiceOption {
	return func(ts *TokenService) {
		if d > 0 {
			ts.sessionTTL = d
		}
	}
}

func WithPersistentSessionTTL(d time.Duration) TokenServiceOption {
	return func(ts *TokenService) {
		if d > 0 {
			ts.persistentTTL = d
		}
	}
}

func WithTokenIssuer(issuer string) TokenServiceOption {
	return func(ts *TokenService) {
		ts.issuer = issuer
	}
}

func WithTokenAudience(audience ...string) TokenServiceOption {
	return func(ts *TokenService) {
		ts.audience = jwt.ClaimStrings(audience)
	}
}

func (ts *TokenService) WithLogger(l Logger) *TokenService {
	if l != nil {
		ts.logger = l
	}
	return ts
}

func NewTokenService(signingKey []byte, opts ...TokenServiceOption) *TokenService {
	ts := &TokenService{
		signingKey:    signingKey,
		sessionTTL:    DefaultSessionTTL,
		persistentTTL: DefaultPersistentSessionTTL,
		logger:        defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(ts)
		}
	}

	return ts
}

var _ SessionIssuer = (*TokenService)(nil)

// SignIn mints a session token for the account. Persistent sessions get the
// longer TTL.
func (ts *TokenService) SignIn(ctx context.Context, account *Account, persistent bool) (string, error) {
	if account == nil {
		return "", errors.New("account must not be nil", errors.CategoryInternal)
	}

	ttl := ts.sessionTTL
	if persistent {
		ttl = ts.persistentTTL
	}

	now := time.Now()
	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    ts.issuer,
			Subject:   account.ID.String(),
			Audience:  ts.audience,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UID:        account.ID.String(),
		UserRole:   account.Role,
		Tenant:     account.TenantKey(),
		Persistent: persistent,
	}

	return ts.SignClaims(claims)
}

// SignOut is a no-op for stateless tokens; they age out through their
// expiry claim.
func (ts *TokenService) SignOut(ctx context.Context, accountID string) error {
	ts.logger.Debug("session sign-out", "account_id", accountID)
	return nil
}

// SignClaims signs arbitrary session claims with the configured key.
func (ts *TokenService) SignClaims(claims *SessionClaims) (string, error) {
	if claims == nil {
		return "", errors.New("claims must not be nil", errors.CategoryInternal)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign session token")
	}

	return signed, nil
}

// Validate parses a token string and returns its claims.
func (ts *TokenService) Validate(tokenString string) (*SessionClaims, error) {
	parserOptions := make([]jwt.ParserOption, 0, 2)
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("TokenService validate encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, errors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).WithTextCode(ErrTokenMalformed.TextCode)
	}

	if claims, ok := token.Claims.(*SessionClaims); ok && token.Valid {
		return claims, nil
	}

	ts.logger.Error("TokenService validate could not decode or validate claims")
	return nil, ErrUnableToDecodeSession
}
