// Package identity is an account-management core: credential verification
// with lockout, two-factor challenges, session lifecycle orchestration,
// password recovery and external-login linking, plus role-scoped listing.
//
// Sign-in flow:
//   - CredentialVerifier checks identifier+secret against the Accounts
//     repository, tracking failed attempts and opening a lockout window once
//     the threshold is crossed. Accounts with two-factor enabled (and no
//     remembered device) advance to a challenge instead of a session.
//   - ChallengeManager issues one-time codes over email or SMS, stores only
//     their digest in Redis with a TTL, and verifies redemptions with an
//     atomic attempt counter. One challenge per account and provider is live
//     at a time.
//   - Lifecycle stitches the pieces together and answers with the fixed
//     Status vocabulary; infrastructure failures collapse into
//     StatusOperationFailed and the detail stays in logs.
//
// Recovery and linking:
//   - Password reset and email confirmation ride single-use AccountToken
//     rows; redemption is a conditional UPDATE so concurrent redeemers get
//     exactly one winner.
//   - External provider identities link through the ExternalLogins
//     repository; removing the last way into an account is refused.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used across the lifecycle
//     for login, registration, reset and linking events. Sinks run
//     best-effort (errors are logged) so delivery never blocks
//     authentication.
package identity
