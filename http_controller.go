package identity

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// RouteRegistrar captures the router methods used by the controller.
type RouteRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Delete(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

// ExternalVerifier resolves a provider-issued token into an asserted
// identity. The external package provides the JWKS-backed implementation.
type ExternalVerifier interface {
	Verify(ctx context.Context, provider, rawToken string) (ExternalIdentity, error)
}

// PrincipalResolver extracts the authenticated principal from a request.
type PrincipalResolver func(router.Context) (Principal, error)

// ErrNoSession is returned when a protected endpoint is hit without a
// valid session token.
var ErrNoSession = goerrors.New("no session present", goerrors.CategoryAuth).
	WithTextCode("NO_SESSION")

// HTTPController exposes the account lifecycle as a JSON API.
type HTTPController struct {
	Debug     bool
	Logger    Logger
	Lifecycle *Lifecycle
	Manager   *AccountManager
	Repo      RepositoryManager
	Tokens    *TokenService
	External  ExternalVerifier
	Principal PrincipalResolver
}

type HTTPControllerOption func(*HTTPController) *HTTPController

func WithControllerLogger(l Logger) HTTPControllerOption {
	return func(c *HTTPController) *HTTPController {
		if l != nil {
			c.Logger = l
		}
		return c
	}
}

func WithControllerDebug(debug bool) HTTPControllerOption {
	return func(c *HTTPController) *HTTPController {
		c.Debug = debug
		return c
	}
}

func WithExternalVerifier(v ExternalVerifier) HTTPControllerOption {
	return func(c *HTTPController) *HTTPController {
		c.External = v
		return c
	}
}

func WithPrincipalResolver(r PrincipalResolver) HTTPControllerOption {
	return func(c *HTTPController) *HTTPController {
		if r != nil {
			c.Principal = r
		}
		return c
	}
}

func NewHTTPController(lifecycle *Lifecycle, manager *AccountManager, repo RepositoryManager, tokens *TokenService, opts ...HTTPControllerOption) *HTTPController {
	c := &HTTPController{
		Logger:    defLogger{},
		Lifecycle: lifecycle,
		Manager:   manager,
		Repo:      repo,
		Tokens:    tokens,
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Lifecycle == nil {
		panic("Missing Lifecycle in identity controller...")
	}

	if c.Principal == nil {
		c.Principal = c.bearerPrincipal
	}

	return c
}

// RegisterRoutes mounts the JSON API.
func (c *HTTPController) RegisterRoutes(group RouteRegistrar) {
	group.Post("/auth/login", c.Login)
	group.Post("/auth/two-factor/verify", c.VerifyCode)
	group.Post("/auth/two-factor/send", c.SendCode)
	group.Post("/auth/register", c.Register)
	group.Post("/auth/email/confirm", c.ConfirmEmail)
	group.Post("/auth/password-reset", c.RequestPasswordReset)
	group.Post("/auth/password-reset/redeem", c.RedeemPasswordReset)
	group.Post("/auth/external/:provider/callback", c.ExternalCallback)
	group.Post("/auth/external/:provider/confirm", c.ExternalConfirm)
	group.Post("/auth/logout", c.Logout)

	group.Post("/account/password/change", c.ChangePassword)
	group.Post("/account/password", c.SetPassword)
	group.Post("/account/phone", c.AddPhone)
	group.Post("/account/phone/verify", c.VerifyPhone)
	group.Delete("/account/phone", c.RemovePhone)
	group.Post("/account/two-factor/enable", c.EnableTwoFactor)
	group.Post("/account/two-factor/disable", c.DisableTwoFactor)
	group.Post("/account/logins", c.AddLogin)
	group.Delete("/account/logins/:provider/:key", c.RemoveLogin)

	group.Get("/accounts", c.ListAccounts)
	group.Post("/accounts", c.CreateAccount)
	group.Post("/accounts/:id/role", c.UpdateAccountRole)
}

func (c *HTTPController) bearerPrincipal(ctx router.Context) (Principal, error) {
	if c.Tokens == nil {
		return nil, ErrNoSession
	}

	raw := ctx.GetString(router.HeaderAuthorization, "")
	const scheme = "Bearer"
	if len(raw) <= len(scheme)+1 || !strings.EqualFold(raw[:len(scheme)], scheme) {
		return nil, ErrNoSession
	}

	claims, err := c.Tokens.Validate(strings.TrimSpace(raw[len(scheme):]))
	if err != nil {
		return nil, err
	}

	return claims, nil
}

func (c *HTTPController) respond(ctx router.Context, result *Result) error {
	return ctx.JSON(result.Status.HTTPStatus(), result)
}

func (c *HTTPController) fail(ctx router.Context, result *Result, err error) error {
	if result == nil {
		result = &Result{Status: StatusOperationFailed}
	}
	if err != nil {
		c.Logger.Error("identity request failed", "error", err)
	}
	return c.respond(ctx, result)
}

func (c *HTTPController) invalid(ctx router.Context, err error) error {
	return ctx.JSON(router.StatusBadRequest, map[string]any{
		"status": StatusInvalidArguments,
		"errors": err.Error(),
	})
}

func (c *HTTPController) debugPayload(label string, payload any) {
	if !c.Debug {
		return
	}
	fmt.Println("======= " + label + " ======")
	fmt.Println(print.MaybePrettyJSON(payload))
	fmt.Println("=========================")
}

// LoginPayload carries primary credentials.
type LoginPayload struct {
	Email      string `form:"email" json:"email"`
	Password   string `form:"password" json:"password"`
	RememberMe bool   `form:"remember_me" json:"remember_me"`
	DeviceID   string `form:"device_id" json:"device_id"`
}

func (p LoginPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Email, validation.Required, is.Email),
		validation.Field(&p.Password, validation.Required),
	)
}

func (c *HTTPController) Login(ctx router.Context) error {
	payload := new(LoginPayload)
	if err := ctx.Bind(payload); err != nil {
		return c.invalid(ctx, err)
	}
	if err := payload.Validate(); err != nil {
		return c.invalid(ctx, err)
	}

	c.debugPayload("AUTH LOGIN", payload)

	result, err := c.Lifecycle.Login(ctx.Context(), LoginInput{
		Email:      payload.Email,
		Password:   payload.Password,
		Persistent: payload.RememberMe,
		DeviceID:   payload.DeviceID,
	})
	if err != nil {
		return c.fail(ctx, result, err)
	}

	return c.respond(ctx, result)
}

// VerifyCodePayload completes a pending challenge.
type VerifyCodePayload struct {
	Email          string `form:"email" json:"email"`
	Provider       string `form:"provider" json:"provider"`
	Code           string `form:"code" json:"code"`
	RememberDevice bool   `form:"remember_device" json:"remember_device"`
	RememberMe     bool   `form:"remember_me" json:"remember_me"`
	DeviceID       string `form:"device_id" json:"device_id"`
}

func (p VerifyCodePayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Email, validation.Required, is.Email),
		validation.Field(&p.Provider, validation.Required, validation.In(string(ProviderEmail), string(ProviderSMS))),
		validation.Field(&p.Code, validation.Required, is.Digit),
	)
}

func (c *HTTPController) VerifyCode(ctx router.Context) error {
	payload := new(VerifyCodePayload)
	if err := ctx.Bind(payload); err != nil {
		return c.invalid(ctx, err)
	}
	if err := payload.Validate(); err != nil {
		return c.invalid(ctx, err)
	}

	result, err := c.Lifecycle.VerifyCode(ctx.Context(), VerifyCodeInput{
		Email:          payload.Email,
		Provider:       TwoFactorProvider(payload.Provider),
		Code:           payload.Code,
		RememberDevice: payload.RememberDevice,
		Persistent:     payload.RememberMe,
		DeviceID:       payload.DeviceID,
	})
	if err != nil {
		return c.fail(ctx, result, err)
	}

	return c.respond(ctx, result)
}

// SendCodePayload asks for a challenge on a chosen channel.
type SendCodePayload struct {
	Email    string `form:"email" json:"email"`
	Provider string `form:"provider" json:"provider"`
}

func (p SendCodePayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Email, validation.Required, is.Email),
		validation.Field(&p.Provider, validation.Required, validation.In(string(ProviderEmail), string(ProviderSMS))),
	)
}

func (c *HTTPController) SendCode(ctx router.Context) error {
	payload := new(SendCodePayload)
	if err := ctx.Bind(payload); err != nil {
		return c.invalid(ctx, err)
	}
	if err := payload.Validate(); err != nil {
		return c.invalid(ctx, err)
	}

	result, err := c.Lifecycle.SendCode(ctx.Context(), payload.Email, TwoFactorProvider(payload.Provider))
	if err != nil {
		return c.fail(ctx, result, err)
	}

	return c.respond(ctx, result)
}

// RegisterPayload creates a new account.
type RegisterPayload struct {
	FirstName       string `form:"first_name" json:"first_name"`
	LastName        string `form:"last_name" json:"last_name"`
	Email           string `form:"email" json:"email"`
	Phone           string `form:"phone_number" json:"phone_number"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

func (p RegisterPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.FirstName, validation.Required, validation.Length(1, 200)),
		validation.Field(&p.LastName, validation.Required, validation.Length(1, 200)),
		validation.Field(&p.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&p.Password, validation.Required, validation.Length(10, 100)),
		validation.Field(
			&p.ConfirmPassword,
			validation.Required,
			validation.By(func(value any) error {
				if s, _ := value.(string); s != p.Password {
					return fmt.Errorf("passwords do not match")
				}
				return nil
			}),
		),
	)
}

func (c *HTTPController) Register(ctx router.Context) error {
	payload := new(RegisterPayload)
	if err := ctx.Bind(payload); err != nil {
		return c.invalid(ctx, err)
	}
	if err := payload.Validate(); err != nil {
		return c.invalid(ctx, err)
	}

	c.debugPayload("AUTH REGISTER", payload)

	result, err := c.Lifecycle.Register(ctx.Context(), RegisterInput{
		Email:     payload.Email,
		Password:  payload.Password,
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		Phone:     payload.Phone,
	})
	if err != nil {
		return c.fail(ctx, result, err)
	}

	return c.respond(ctx, result)
}

// TokenPayload carries a single-use token.
type TokenPayload struct {
	Token string `form:"token" json:"token"`
}

func (p TokenPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Token, validation.Required, is.UUIDv4),
	)
}

func (c *HTTPController) ConfirmEmail(ctx router.Context) error {
	payload := new(TokenPayload)
	if err := ctx.Bind(payload); err != nil {
		return c.invalid(ctx, err)
	}
	if err := payload.Validate(); err != nil {
		return c.invalid(ctx, err)
	}

	result, err := c.Lifecycle.ConfirmEmail(ctx.Context(), payload.Token)
	if err != nil {
		return c.fail(ctx, result, err)
	}

	return c.respond(ctx, result)
}

// ResetRequestPayload asks for a password reset email.
type ResetRequestPayload struct {
	Email string `form:"email" json:"email"`
}

func (p ResetRequestPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Email, validation.Required, is.Email),
	)
}

func (c *HTTPController) RequestPasswordReset(ctx router.Context) error {
	payload := new(ResetRequestPayload)
	if err := ctx.Bind(payload); err != nil {
		return c.invalid(ctx, err)
	}
	if err := payload.Validate(); err != nil {
		return c.invalid(ctx, err)
	}

	result, err := c.Lifecycle.RequestPasswordReset(ctx.Context(), payload.Email)
	if err != nil {
		return c.fail(ctx, result, err)
	}

	return c.respond(ctx, result)
}

// ResetRedeemPayload consumes a reset token with a replacement password.
type ResetRedeemPayload struct {
	Token           string `form:"token" json:"token"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

func (p ResetRedeemPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Token, validation.Required, is.UUIDv4),
		validation.Field(&p.Password, validation.Required, validation.Length(10, 100)),
		validation.Field(
			&p.ConfirmPassword,
			validation.Required,
			validation.By(func(value any) error {
				if s, _ := value.(string); s != p.Password {
					return fmt.Errorf("passwords do not match")
				}
				return nil
			}),
		),
	)
}

func (c *HTTPController) RedeemPasswordReset(ctx router.Context) error {
	payload := new(ResetRedeemPayload)
	if err := ctx.Bind(payload); err != nil {
		return c.invalid(ctx, err)
	}
	if err := payload.Validate(); err != nil {
		return c.invalid(ctx, err)
	}

	result, err := c.Lifecycle.RedeemPasswordReset(ctx.Context(), payload.Token, payload.Password)
	if err != nil {
		return c.fail(ctx, result, err)
	}

	return c.respond(ctx, result)
}

// ExternalTokenPayload carries a provider-issued identity token.
type ExternalTokenPayload struct {
	IDToken    string `form:"id_token" json:"id_token"`
	RememberMe bool   `form:"remember_me" json:"remember_me"`
	Email      string `form:"email" json:"email"`
}

func (p ExternalTokenPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.IDToken, validation.Required),
	)
}

func (c *HTTPController) ExternalCallback(ctx router.Context) error {
	if c.External == nil {
		return c.respond(ctx, &Result{Status: StatusLoginNotAllowed})
	}

	payload := new(ExternalTokenPayload)
	if err := ctx.Bind(payload); err != nil {
		return c.invalid(ctx, err)
	}
	if err := payload.Validate(); err != nil {
		return c.invalid(ctx, err)
	}

	ident, err := c.External.Verify(ctx.Context(), ctx.Param("provider"), payload.IDToken)
	if err != nil {
		c.Logger.Error("external token rejected", "error", err)
		return c.respond(ctx, &Result{Status: StatusAuthorizationFailure, State: StateRejected})
	}

	result, err := c.Lifecycle.ExternalLoginCallback(ctx.Context(), ident, payload.RememberMe)
	if err != nil {
		return c.fail(ctx, result, err)
	}

	return c.respond(ctx, result)
}

func (c *HTTPController) ExternalConfirm(ctx router.Context) error {
	if c.External == nil {
		return c.respond(ctx, &Result{Status: StatusLoginNotAllowed})
	}

	payload := new(ExternalTokenPayload)
	if err := ctx.Bind(payload); err != nil {
		return c.invalid(ctx, err)
	}

	if err := validation.ValidateStruct(payload,
		validation.Field(&payload.IDToken, validation.Required),
		validation.Field(&payload.Email, validation.Required, is.Email),
	); err != nil {
		return c.invalid(ctx, err)
	}

	ident, err := c.External.Verify(ctx.Context(), ctx.Param("provider"), payload.IDToken)
	if err != nil {
		c.Logger.Error("external token rejected", "error", err)
		return c.respond(ctx, &Result{Status: StatusAuthorizationFailure, State: StateRejected})
	}

	result, err := c.Lifecycle.ExternalLoginConfirmation(ctx.Context(), ident, payload.Email)
	if err != nil {
		return c.fail(ctx, result, err)
	}

	return c.respond(ctx, result)
}

func (c *HTTPController) Logout(ctx router.Context) error {
	principal, err := c.Principal(ctx)
	if err != nil {
		return c.unauthorized(ctx)
	}

	result, err := c.Lifecycle.Logout(ctx.Context(), principal.ID())
	if err != nil {
		return c.fail(ctx, result, err)
	}

	return c.respond(ctx, result)
}

// ChangePasswordPayload swaps an existing password.
type ChangePasswordPayload struct {
	OldPassword string `form:"old_password" json:"old_password"`
	NewPassword string `form:"new_password" json:"new_password"`
}

func (p ChangePasswordPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.OldPassword, validation.Required),
		validation.Field(&p.NewPassword, validation.Required, validation.Length(10, 100)),
	)
}

func (c *HTTPController) ChangePassword(ctx router.Context) error {
	principal, err := c.Principal(ctx)
	if err != nil {
		return c.unauthorized(ctx)
	}

	payload := new(ChangePasswordPayload)
	if err := ctx.Bind(payload); err != nil {
		return c.invalid(ctx, err)
	}
	if err := payload.Validate(); err != nil {
		return c.invalid(ctx, err)
	}

	result, err := c.Manager.ChangePassword(ctx.Context(), principal.ID(), payload.OldPassword, payload.NewPassword)
	if err != nil {
		return c.fail(ctx, result, err)
	}

	return c.respond(ctx, result)
}

// SetPasswordPayload gives a password to an external-login account.
type SetPasswordPayload struct {
	NewPassword string `form:"new_password" json:"new_password"`
}

func (p SetPasswordPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.NewPassword, validation.Required, validation.Length(10, 100)),
	)
}

func (c *HTTPController) SetPassword(ctx router.Context) error {
	principal, err := c.Principal(ctx)
	if err != nil {
		return c.unauthorized(ctx)
	}

	payload := new(SetPasswordPayload)
	if err := ctx.Bind(payload); err != nil {
		return c.invalid(ctx, err)
	}
	if err := payload.Validate(); err != nil {
		return c.invalid(ctx, err)
	}

	result, err := c.Manager.SetPassword(ctx.Context(), principal.ID(), payload.NewPassword)
	if err != nil {
		return c.fail(ctx, result, err)
	}

	return c.respond(ctx, result)
}

// PhonePayload adds a phone number to the account.
type PhonePayload struct {
	Phone string `form:"phone_number" json:"phone_number"`
}

func (p PhonePayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Phone, validation.Required, validation.Length(7, 20)),
	)
}

func (c *HTTPController) AddPhone(ctx router.Context) error {
	principal, err := c.Principal(ctx)
	if err != nil {
		return c.unauthorized(ctx)
	}

	payload := new(PhonePayload)
	if err := ctx.Bind(payload); err != nil {
		return c.invalid(ctx, err)
	}
	if err := payload.Validate(); err != nil {
		return c.invalid(ctx, err)
	}

	result, err := c.Manager.AddPhoneNumber(ctx.Context(), principal.ID(), payload.Phone)
	if err != nil {
		return c.fail(ctx, result, err)
	}

	return c.respond(ctx, result)
}

// CodePayload carries a short numeric verification code.
type CodePayload struct {
	Code string `form:"code" json:"code"`
}

func (p CodePayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Code, validation.Required, is.Digit),
	)
}

func (c *HTTPController) VerifyPhone(ctx router.Context) error {
	principal, err := c.Principal(ctx)
	if err != nil {
		return c.unauthorized(ctx)
	}

	payload := new(CodePayload)
	if err := ctx.Bind(payload); err != nil {
		return c.invalid(ctx, err)
	}
	if err := payload.Validate(); err != nil {
		return c.invalid(ctx, err)
	}

	result, err := c.Manager.VerifyPhoneNumber(ctx.Context(), principal.ID(), payload.Code)
	if err != nil {
		return c.fail(ctx, result, err)
	}

	return c.respond(ctx, result)
}

func (c *HTTPController) RemovePhone(ctx router.Context) error {
	principal, err := c.Principal(ctx)
	if err != nil {
		return c.unauthorized(ctx)
	}

	result, err := c.Manager.RemovePhoneNumber(ctx.Context(), principal.ID())
	if err != nil {
		return c.fail(ctx, result, err)
	}

	return c.respond(ctx, result)
}

func (c *HTTPController) EnableTwoFactor(ctx router.Context) error {
	principal, err := c.Principal(ctx)
	if err != nil {
		return c.unauthorized(ctx)
	}

	result, err := c.Manager.EnableTwoFactor(ctx.Context(), principal.ID())
	if err != nil {
		return c.fail(ctx, result, err)
	}

	return c.respond(ctx, result)
}

func (c *HTTPController) DisableTwoFactor(ctx router.Context) error {
	principal, err := c.Principal(ctx)
	if err != nil {
		return c.unauthorized(ctx)
	}

	result, err := c.Manager.DisableTwoFactor(ctx.Context(), principal.ID())
	if err != nil {
		return c.fail(ctx, result, err)
	}

	return c.respond(ctx, result)
}

func (c *HTTPController) AddLogin(ctx router.Context) error {
	if c.External == nil {
		return c.respond(ctx, &Result{Status: StatusLoginNotAllowed})
	}

	principal, err := c.Principal(ctx)
	if err != nil {
		return c.unauthorized(ctx)
	}

	payload := new(ExternalTokenPayload)
	if err := ctx.Bind(payload); err != nil {
		return c.invalid(ctx, err)
	}
	if err := payload.Validate(); err != nil {
		return c.invalid(ctx, err)
	}

	provider := ctx.Query("provider")
	ident, err := c.External.Verify(ctx.Context(), provider, payload.IDToken)
	if err != nil {
		c.Logger.Error("external token rejected", "error", err)
		return c.respond(ctx, &Result{Status: StatusAuthorizationFailure})
	}

	result, err := c.Lifecycle.AddLogin(ctx.Context(), principal.ID(), ident)
	if err != nil {
		return c.fail(ctx, result, err)
	}

	return c.respond(ctx, result)
}

func (c *HTTPController) RemoveLogin(ctx router.Context) error {
	principal, err := c.Principal(ctx)
	if err != nil {
		return c.unauthorized(ctx)
	}

	result, err := c.Lifecycle.RemoveLogin(ctx.Context(), principal.ID(), ctx.Param("provider"), ctx.Param("key"))
	if err != nil && result != nil && result.Status == StatusRemoveLoginError {
		return c.respond(ctx, result)
	}
	if err != nil {
		return c.fail(ctx, result, err)
	}

	return c.respond(ctx, result)
}

// ListAccounts returns the accounts the principal may see, scoped by
// tenant and paginated.
func (c *HTTPController) ListAccounts(ctx router.Context) error {
	principal, err := c.Principal(ctx)
	if err != nil {
		return c.unauthorized(ctx)
	}

	offset := queryInt(ctx, "offset", 0)
	pageSize := queryInt(ctx, "page_size", 25)

	scope := AccessibleScope(principal)
	accounts, err := c.Repo.Accounts().ListAccessible(ctx.Context(), scope, offset, pageSize)
	if err != nil {
		c.Logger.Error("account listing failed", "error", err)
		return ctx.JSON(router.StatusInternalServerError, map[string]any{
			"status": StatusOperationFailed,
		})
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"status":    StatusOk,
		"accounts":  accounts,
		"offset":    offset,
		"page_size": pageSize,
	})
}

// AdminCreatePayload provisions an account on someone else's behalf.
type AdminCreatePayload struct {
	Email     string `form:"email" json:"email"`
	Password  string `form:"password" json:"password"`
	FirstName string `form:"first_name" json:"first_name"`
	LastName  string `form:"last_name" json:"last_name"`
	Role      string `form:"role" json:"role"`
	TenantID  string `form:"tenant_id" json:"tenant_id"`
}

func (p AdminCreatePayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Email, validation.Required, is.Email),
		validation.Field(&p.Password, validation.Length(10, 100)),
		validation.Field(&p.Role, validation.In(RoleUser, RoleTenantAdmin, RoleAdministrator)),
		validation.Field(&p.TenantID, is.UUID),
	)
}

func (c *HTTPController) CreateAccount(ctx router.Context) error {
	principal, err := c.Principal(ctx)
	if err != nil {
		return c.unauthorized(ctx)
	}

	payload := new(AdminCreatePayload)
	if err := ctx.Bind(payload); err != nil {
		return c.invalid(ctx, err)
	}
	if err := payload.Validate(); err != nil {
		return c.invalid(ctx, err)
	}

	result, err := c.Manager.CreateAccount(ctx.Context(), principal, AdminAccountInput{
		Email:     payload.Email,
		Password:  payload.Password,
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		Role:      AccountRole(payload.Role),
		TenantID:  payload.TenantID,
	})
	if err != nil {
		return c.fail(ctx, result, err)
	}

	return c.respond(ctx, result)
}

// RolePayload assigns a role to an account.
type RolePayload struct {
	Role string `form:"role" json:"role"`
}

func (p RolePayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Role, validation.Required, validation.In(RoleUser, RoleTenantAdmin, RoleAdministrator)),
	)
}

func (c *HTTPController) UpdateAccountRole(ctx router.Context) error {
	principal, err := c.Principal(ctx)
	if err != nil {
		return c.unauthorized(ctx)
	}

	payload := new(RolePayload)
	if err := ctx.Bind(payload); err != nil {
		return c.invalid(ctx, err)
	}
	if err := payload.Validate(); err != nil {
		return c.invalid(ctx, err)
	}

	result, err := c.Manager.UpdateAccountRole(ctx.Context(), principal, ctx.Param("id"), AccountRole(payload.Role))
	if err != nil {
		return c.fail(ctx, result, err)
	}

	return c.respond(ctx, result)
}

func (c *HTTPController) unauthorized(ctx router.Context) error {
	return ctx.JSON(router.StatusUnauthorized, map[string]any{
		"status": StatusAuthorizationFailure,
	})
}

func queryInt(ctx router.Context, name string, def int) int {
	raw := ctx.Query(name, "")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}
