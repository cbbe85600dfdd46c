// Package external validates provider-issued identity tokens. Each
// configured provider gets a JWKS-backed key set with background refresh;
// a validated token becomes an ExternalIdentity the account lifecycle can
// link or sign in.
package external

import (
	"context"
	"fmt"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"

	identity "github.com/ostravan/go-identity"
)

// ErrUnknownProvider is returned for provider names nothing was
// configured for.
var ErrUnknownProvider = errors.New("unknown external provider", errors.CategoryNotFound).
	WithTextCode("EXTERNAL_PROVIDER_UNKNOWN").
	WithCode(errors.CodeNotFound)

// ErrInvalidProviderToken covers signature, issuer, audience and expiry
// failures on a provider token.
var ErrInvalidProviderToken = errors.New("external provider token is invalid", errors.CategoryAuth).
	WithTextCode("EXTERNAL_TOKEN_INVALID")

// ProviderConfig describes one identity provider.
type ProviderConfig struct {
	// Name is the key the lifecycle stores on ExternalLogin rows.
	Name string
	// JWKSetURL is where the provider publishes its signing keys.
	JWKSetURL string
	// Issuer must match the token's iss claim.
	Issuer string
	// Audience values accepted for the aud claim, usually the client id.
	Audience []string
}

type providerEntry struct {
	config ProviderConfig
	jwks   *keyfunc.JWKS
}

// Verifier resolves provider tokens into external identities.
type Verifier struct {
	providers map[string]*providerEntry
	logger    identity.Logger
}

type Option func(*Verifier)

func WithLogger(l identity.Logger) Option {
	return func(v *Verifier) {
		if l != nil {
			v.logger = l
		}
	}
}

// NewVerifier fetches each provider's JWK set and keeps it refreshed in
// the background until Close is called.
func NewVerifier(ctx context.Context, configs []ProviderConfig, opts ...Option) (*Verifier, error) {
	v := &Verifier{
		providers: make(map[string]*providerEntry, len(configs)),
		logger:    identity.DefaultLogger(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}

	for _, cfg := range configs {
		if cfg.Name == "" || cfg.JWKSetURL == "" {
			return nil, errors.New("provider config requires a name and JWK set URL", errors.CategoryValidation)
		}

		jwks, err := keyfunc.Get(cfg.JWKSetURL, keyfunc.Options{
			Ctx: ctx,
			RefreshErrorHandler: func(err error) {
				v.logger.Warn("background JWKS refresh failed", "provider", cfg.Name, "error", err)
			},
			RefreshInterval:   time.Hour,
			RefreshRateLimit:  5 * time.Minute,
			RefreshTimeout:    10 * time.Second,
			RefreshUnknownKID: true,
		})
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryOperation, fmt.Sprintf("failed to load JWK set for provider %q", cfg.Name))
		}

		v.providers[cfg.Name] = &providerEntry{config: cfg, jwks: jwks}
	}

	return v, nil
}

// Close stops the background JWKS refresh goroutines.
func (v *Verifier) Close() {
	for _, entry := range v.providers {
		entry.jwks.EndBackground()
	}
}

type providerClaims struct {
	jwt.RegisteredClaims
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
	Name          string `json:"name,omitempty"`
	Picture       string `json:"picture,omitempty"`
}

// Verify validates a provider token and returns the identity it asserts.
// Unverified provider emails are dropped so the lifecycle never trusts
// them for confirmation shortcuts.
func (v *Verifier) Verify(ctx context.Context, provider, rawToken string) (identity.ExternalIdentity, error) {
	entry, ok := v.providers[provider]
	if !ok {
		return identity.ExternalIdentity{}, ErrUnknownProvider
	}

	parserOptions := []jwt.ParserOption{jwt.WithExpirationRequired()}
	if entry.config.Issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(entry.config.Issuer))
	}
	if len(entry.config.Audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(entry.config.Audience...))
	}

	token, err := jwt.ParseWithClaims(rawToken, &providerClaims{}, entry.jwks.Keyfunc, parserOptions...)
	if err != nil {
		return identity.ExternalIdentity{}, errors.Wrap(err, ErrInvalidProviderToken.Category, ErrInvalidProviderToken.Message).
			WithTextCode(ErrInvalidProviderToken.TextCode)
	}

	claims, ok := token.Claims.(*providerClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return identity.ExternalIdentity{}, ErrInvalidProviderToken
	}

	email := ""
	if claims.EmailVerified {
		email = claims.Email
	}

	return identity.ExternalIdentity{
		Provider:    provider,
		ProviderKey: claims.Subject,
		Email:       email,
		DisplayName: claims.Name,
		ProfileData: map[string]any{
			"email":          claims.Email,
			"email_verified": claims.EmailVerified,
			"name":           claims.Name,
			"picture":        claims.Picture,
		},
	}, nil
}
