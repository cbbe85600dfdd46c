package identity

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeAccountNotFound         = "ACCOUNT_NOT_FOUND"
	TextCodeAccountLocked           = "ACCOUNT_LOCKED"
	TextCodePasswordMismatch        = "PASSWORD_MISMATCH"
	TextCodeTokenExpired            = "TOKEN_EXPIRED"
	TextCodeTokenAlreadyUsed        = "TOKEN_ALREADY_USED"
	TextCodeChallengeNotFound       = "CHALLENGE_NOT_FOUND"
	TextCodeChallengeExpired        = "CHALLENGE_EXPIRED"
	TextCodeChallengeExhausted      = "CHALLENGE_ATTEMPTS_EXHAUSTED"
	TextCodeInvalidVerificationCode = "INVALID_VERIFICATION_CODE"
	TextCodeLastLoginMethod         = "LAST_LOGIN_METHOD"
	TextCodeInvalidPhoneNumber      = "INVALID_PHONE_NUMBER"
	TextCodeEmailTaken              = "EMAIL_TAKEN"
	TextCodeLoginTaken              = "LOGIN_TAKEN"
)

// ErrAccountNotFound is never shown verbatim to callers; the lifecycle folds
// it into the same Status as a bad password (anti-enumeration).
var ErrAccountNotFound = goerrors.New("account not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeAccountNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrAccountLockedOut means the lockout window has not elapsed yet.
var ErrAccountLockedOut = goerrors.New("account is locked out", goerrors.CategoryAuth).
	WithTextCode(TextCodeAccountLocked)

// ErrMismatchedHashAndPassword is the generic credential failure.
var ErrMismatchedHashAndPassword = goerrors.New("identity auth failed, password mismatch", goerrors.CategoryAuth).
	WithTextCode(TextCodePasswordMismatch)

// ErrNoEmptyString guards hashing helpers.
var ErrNoEmptyString = goerrors.New("value should not be an empty string", goerrors.CategoryValidation)

// ErrTokenExpired is returned for past-expiry single-use tokens.
var ErrTokenExpired = goerrors.New("token has expired", goerrors.CategoryValidation).
	WithTextCode(TextCodeTokenExpired)

// ErrTokenAlreadyUsed is returned for replayed single-use tokens.
var ErrTokenAlreadyUsed = goerrors.New("token has already been redeemed", goerrors.CategoryConflict).
	WithTextCode(TextCodeTokenAlreadyUsed)

// ErrChallengeNotFound covers missing or already-consumed challenge sessions.
var ErrChallengeNotFound = goerrors.New("two-factor challenge not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeChallengeNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrChallengeExpired covers sessions past their absolute expiry.
var ErrChallengeExpired = goerrors.New("two-factor challenge expired", goerrors.CategoryValidation).
	WithTextCode(TextCodeChallengeExpired)

// ErrChallengeExhausted is returned once the attempt budget is burned.
var ErrChallengeExhausted = goerrors.New("two-factor challenge attempts exhausted", goerrors.CategoryAuth).
	WithTextCode(TextCodeChallengeExhausted)

// ErrLastLoginMethod rejects removing the final way into an account.
var ErrLastLoginMethod = goerrors.New("cannot remove the only remaining login method", goerrors.CategoryConflict).
	WithTextCode(TextCodeLastLoginMethod).
	WithCode(goerrors.CodeConflict)

// ErrInvalidPhoneNumber rejects numbers that do not normalize to E.164.
var ErrInvalidPhoneNumber = goerrors.New("phone number is not valid", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidPhoneNumber)
