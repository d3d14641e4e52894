// Package taskauth is the authentication and session-lifecycle engine of the
// task-management API: JWT access tokens, long-lived opaque refresh tokens,
// one-time password-reset tokens and per-client request admission.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Session model
//
// A principal holds at most one live refresh token. Login returns that token
// unchanged while it is live, and Refresh never rotates it. Logout deletes the
// refresh token but access tokens stay valid until they expire, because
// verification is stateless.
//
// # Architecture boundaries
//
// taskauth is the public surface. It exposes [Engine], [Builder], [Config],
// the error taxonomy and the collaborator interfaces ([PrincipalStore],
// [CredentialVerifier], [EmailSender]). Token lifecycles, admission limiting,
// persistence backends and audit dispatch live under internal/.
//
// # What this package must NOT do
//
//   - Speak HTTP. Routing and status mapping live in internal/httpapi.
//   - Schedule its own background work. Expired-token cleanup runs when the
//     host calls [Engine.PurgeExpired].
//   - Import a concrete storage backend.
package taskauth
