package identity

import "net/http"

// Status is the fixed vocabulary every lifecycle operation answers with.
// Nothing else crosses the module boundary: infrastructure failures collapse
// into StatusOperationFailed and the detail stays in the logs.
type Status string

const (
	StatusOk               Status = "OK"
	StatusOperationFailed  Status = "OPERATION_FAILED"
	StatusInvalidArguments Status = "INVALID_ARGUMENTS"

	StatusAccountLockedOut            Status = "ACCOUNT_LOCKED_OUT"
	StatusAccountRequiresVerification Status = "ACCOUNT_REQUIRES_VERIFICATION"
	StatusAuthorizationFailure        Status = "AUTHORIZATION_FAILURE"
	StatusInvalidVerificationCode     Status = "INVALID_VERIFICATION_CODE"
	StatusRegistrationFailed          Status = "REGISTRATION_FAILED"
	StatusRemoveLoginError            Status = "REMOVE_LOGIN_ERROR"
	StatusLoginNotAllowed             Status = "LOGIN_NOT_ALLOWED"
	StatusUserAlreadyHasPassword      Status = "USER_ALREADY_HAS_PASSWORD"
	StatusInvalidToken                Status = "INVALID_TOKEN"
	StatusIncorrectPassword           Status = "INCORRECT_PASSWORD"
	StatusLoginAlreadyAssociated      Status = "LOGIN_ALREADY_ASSOCIATED"
	StatusEmailAlreadyUsed            Status = "EMAIL_ALREADY_USED"
)

// HTTPStatus maps a domain status to the HTTP code the API surface answers
// with. Security rejections share 401/403 buckets on purpose so callers
// cannot tell which factor failed.
func (s Status) HTTPStatus() int {
	switch s {
	case StatusOk:
		return http.StatusOK
	case StatusInvalidArguments:
		return http.StatusBadRequest
	case StatusAuthorizationFailure, StatusInvalidVerificationCode, StatusIncorrectPassword:
		return http.StatusUnauthorized
	case StatusAccountLockedOut, StatusLoginNotAllowed:
		return http.StatusForbidden
	case StatusAccountRequiresVerification:
		return http.StatusAccepted
	case StatusEmailAlreadyUsed, StatusLoginAlreadyAssociated, StatusUserAlreadyHasPassword, StatusRemoveLoginError:
		return http.StatusConflict
	case StatusInvalidToken:
		return http.StatusGone
	case StatusRegistrationFailed:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// SignInStatus is the verifier-level outcome, folded by the lifecycle
// controller into the public Status vocabulary.
type SignInStatus string

const (
	SignInSuccess              SignInStatus = "success"
	SignInLockedOut            SignInStatus = "locked_out"
	SignInRequiresVerification SignInStatus = "requires_verification"
	SignInFailure              SignInStatus = "failure"
)
