package external_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ostravan/go-identity/external"
)

const testKID = "test-key-1"

type jwksFixture struct {
	key    *rsa.PrivateKey
	server *httptest.Server
}

func newJWKSFixture(t *testing.T) *jwksFixture {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	jwks := map[string]any{
		"keys": []map[string]any{{
			"kty": "RSA",
			"use": "sig",
			"alg": "RS256",
			"kid": testKID,
			"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		}},
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(jwks)
	}))
	t.Cleanup(server.Close)

	return &jwksFixture{key: key, server: server}
}

func (f *jwksFixture) sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testKID

	signed, err := token.SignedString(f.key)
	require.NoError(t, err)
	return signed
}

func newVerifier(t *testing.T, fixture *jwksFixture) *external.Verifier {
	t.Helper()

	v, err := external.NewVerifier(context.Background(), []external.ProviderConfig{{
		Name:      "accountkit",
		JWKSetURL: fixture.server.URL,
		Issuer:    "https://accountkit.example.com",
		Audience:  []string{"client-1"},
	}})
	require.NoError(t, err)
	t.Cleanup(v.Close)

	return v
}

func TestVerifierVerify(t *testing.T) {
	ctx := context.Background()
	fixture := newJWKSFixture(t)
	verifier := newVerifier(t, fixture)

	baseClaims := func() jwt.MapClaims {
		return jwt.MapClaims{
			"iss":            "https://accountkit.example.com",
			"aud":            "client-1",
			"sub":            "provider-user-1",
			"exp":            time.Now().Add(time.Hour).Unix(),
			"email":          "user@example.com",
			"email_verified": true,
			"name":           "Provider User",
		}
	}

	t.Run("valid token yields the asserted identity", func(t *testing.T) {
		ident, err := verifier.Verify(ctx, "accountkit", fixture.sign(t, baseClaims()))
		require.NoError(t, err)

		assert.Equal(t, "accountkit", ident.Provider)
		assert.Equal(t, "provider-user-1", ident.ProviderKey)
		assert.Equal(t, "user@example.com", ident.Email)
		assert.Equal(t, "Provider User", ident.DisplayName)
		assert.Equal(t, true, ident.ProfileData["email_verified"])
	})

	t.Run("unverified email is dropped", func(t *testing.T) {
		claims := baseClaims()
		claims["email_verified"] = false

		ident, err := verifier.Verify(ctx, "accountkit", fixture.sign(t, claims))
		require.NoError(t, err)

		assert.Empty(t, ident.Email)
		assert.Equal(t, "user@example.com", ident.ProfileData["email"])
	})

	t.Run("unknown provider is rejected", func(t *testing.T) {
		_, err := verifier.Verify(ctx, "elsewhere", fixture.sign(t, baseClaims()))
		assert.True(t, goerrors.Is(err, external.ErrUnknownProvider))
	})

	t.Run("expired token is rejected", func(t *testing.T) {
		claims := baseClaims()
		claims["exp"] = time.Now().Add(-time.Hour).Unix()

		_, err := verifier.Verify(ctx, "accountkit", fixture.sign(t, claims))
		assert.Error(t, err)
	})

	t.Run("token without expiry is rejected", func(t *testing.T) {
		claims := baseClaims()
		delete(claims, "exp")

		_, err := verifier.Verify(ctx, "accountkit", fixture.sign(t, claims))
		assert.Error(t, err)
	})

	t.Run("wrong issuer is rejected", func(t *testing.T) {
		claims := baseClaims()
		claims["iss"] = "https://somewhere-else.example.com"

		_, err := verifier.Verify(ctx, "accountkit", fixture.sign(t, claims))
		assert.Error(t, err)
	})

	t.Run("wrong audience is rejected", func(t *testing.T) {
		claims := baseClaims()
		claims["aud"] = "client-2"

		_, err := verifier.Verify(ctx, "accountkit", fixture.sign(t, claims))
		assert.Error(t, err)
	})

	t.Run("missing subject is rejected", func(t *testing.T) {
		claims := baseClaims()
		delete(claims, "sub")

		_, err := verifier.Verify(ctx, "accountkit", fixture.sign(t, claims))
		assert.True(t, goerrors.Is(err, external.ErrInvalidProviderToken))
	})

	t.Run("token signed by another key is rejected", func(t *testing.T) {
		other, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)

		token := jwt.NewWithClaims(jwt.SigningMethodRS256, baseClaims())
		token.Header["kid"] = testKID
		forged, err := token.SignedString(other)
		require.NoError(t, err)

		_, verr := verifier.Verify(ctx, "accountkit", forged)
		assert.Error(t, verr)
	})
}

func TestVerifierConfigValidation(t *testing.T) {
	_, err := external.NewVerifier(context.Background(), []external.ProviderConfig{{
		Name: "nameless",
	}})
	assert.Error(t, err)
}
