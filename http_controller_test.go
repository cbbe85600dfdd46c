package identity_test

import (
	"net/http"
	"testing"

	identity "github.com/ostravan/go-identity"

	"github.com/stretchr/testify/assert"
)

func TestLoginPayloadValidate(t *testing.T) {
	t.Run("valid payload", func(t *testing.T) {
		p := identity.LoginPayload{Email: "user@example.com", Password: "secret"}
		assert.NoError(t, p.Validate())
	})

	t.Run("missing credentials", func(t *testing.T) {
		assert.Error(t, identity.LoginPayload{Email: "user@example.com"}.Validate())
		assert.Error(t, identity.LoginPayload{Password: "secret"}.Validate())
	})

	t.Run("malformed email", func(t *testing.T) {
		p := identity.LoginPayload{Email: "not-an-email", Password: "secret"}
		assert.Error(t, p.Validate())
	})
}

func TestVerifyCodePayloadValidate(t *testing.T) {
	valid := identity.VerifyCodePayload{
		Email:    "user@example.com",
		Provider: identity.ProviderEmail,
		Code:     "123456",
	}

	t.Run("valid payload", func(t *testing.T) {
		assert.NoError(t, valid.Validate())
	})

	t.Run("unknown provider", func(t *testing.T) {
		p := valid
		p.Provider = "carrier-pigeon"
		assert.Error(t, p.Validate())
	})

	t.Run("non-numeric code", func(t *testing.T) {
		p := valid
		p.Code = "abc123"
		assert.Error(t, p.Validate())
	})
}

func TestRegisterPayloadValidate(t *testing.T) {
	valid := identity.RegisterPayload{
		FirstName:       "Test",
		LastName:        "User",
		Email:           "user@example.com",
		Password:        "longenoughpassword",
		ConfirmPassword: "longenoughpassword",
	}

	t.Run("valid payload", func(t *testing.T) {
		assert.NoError(t, valid.Validate())
	})

	t.Run("password confirmation must match", func(t *testing.T) {
		p := valid
		p.ConfirmPassword = "somethingelse1234"
		assert.Error(t, p.Validate())
	})

	t.Run("short password", func(t *testing.T) {
		p := valid
		p.Password = "short"
		p.ConfirmPassword = "short"
		assert.Error(t, p.Validate())
	})

	t.Run("names are required", func(t *testing.T) {
		p := valid
		p.FirstName = ""
		assert.Error(t, p.Validate())
	})
}

func TestTokenPayloadValidate(t *testing.T) {
	t.Run("uuid token", func(t *testing.T) {
		p := identity.TokenPayload{Token: "0d5dcf85-c61c-4354-9f2d-2a2f53de2840"}
		assert.NoError(t, p.Validate())
	})

	t.Run("non-uuid token", func(t *testing.T) {
		p := identity.TokenPayload{Token: "hello"}
		assert.Error(t, p.Validate())
	})
}

func TestStatusHTTPStatus(t *testing.T) {
	cases := map[identity.Status]int{
		identity.StatusOk:                          http.StatusOK,
		identity.StatusInvalidArguments:            http.StatusBadRequest,
		identity.StatusAuthorizationFailure:        http.StatusUnauthorized,
		identity.StatusInvalidVerificationCode:     http.StatusUnauthorized,
		identity.StatusIncorrectPassword:           http.StatusUnauthorized,
		identity.StatusAccountLockedOut:            http.StatusForbidden,
		identity.StatusLoginNotAllowed:             http.StatusForbidden,
		identity.StatusAccountRequiresVerification: http.StatusAccepted,
		identity.StatusEmailAlreadyUsed:            http.StatusConflict,
		identity.StatusLoginAlreadyAssociated:      http.StatusConflict,
		identity.StatusUserAlreadyHasPassword:      http.StatusConflict,
		identity.StatusRemoveLoginError:            http.StatusConflict,
		identity.StatusInvalidToken:                http.StatusGone,
		identity.StatusRegistrationFailed:          http.StatusUnprocessableEntity,
		identity.StatusOperationFailed:             http.StatusInternalServerError,
	}

	for status, want := range cases {
		assert.Equal(t, want, status.HTTPStatus(), string(status))
	}
}

func TestAdminCreatePayloadValidate(t *testing.T) {
	t.Run("valid payload", func(t *testing.T) {
		p := identity.AdminCreatePayload{
			Email:    "new@example.com",
			Role:     identity.RoleTenantAdmin,
			TenantID: "0d5dcf85-c61c-4354-9f2d-2a2f53de2840",
		}
		assert.NoError(t, p.Validate())
	})

	t.Run("email is required", func(t *testing.T) {
		assert.Error(t, identity.AdminCreatePayload{Role: identity.RoleUser}.Validate())
	})

	t.Run("unknown role is rejected", func(t *testing.T) {
		p := identity.AdminCreatePayload{Email: "new@example.com", Role: "superuser"}
		assert.Error(t, p.Validate())
	})

	t.Run("short password is rejected", func(t *testing.T) {
		p := identity.AdminCreatePayload{Email: "new@example.com", Password: "short"}
		assert.Error(t, p.Validate())
	})

	t.Run("malformed tenant id is rejected", func(t *testing.T) {
		p := identity.AdminCreatePayload{Email: "new@example.com", TenantID: "not-a-uuid"}
		assert.Error(t, p.Validate())
	})
}

func TestRolePayloadValidate(t *testing.T) {
	assert.NoError(t, identity.RolePayload{Role: identity.RoleAdministrator}.Validate())
	assert.Error(t, identity.RolePayload{}.Validate())
	assert.Error(t, identity.RolePayload{Role: "superuser"}.Validate())
}
