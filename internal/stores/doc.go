// Package stores implements the refresh-token and password-reset token
// lifecycles on top of pluggable repositories.
//
// # Design
//
// Every read-then-write path runs inside a repository transaction. Refresh
// issuance is serialised per principal (WithPrincipalLock), so two concurrent
// logins for one account end up holding the same token. Reset consumption is
// a single conditional update, so a token value can succeed at most once.
//
// # Architecture boundaries
//
// This package owns token lifecycle rules. It does NOT verify passwords,
// hash passwords, send e-mail or make authentication decisions. Those belong
// to the Engine.
//
// # What this package must NOT do
//
//   - Import taskauth or a concrete storage backend.
//   - Log or persist plaintext reset tokens.
package stores
