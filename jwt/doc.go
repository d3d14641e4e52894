// Package jwt issues and verifies signed access tokens.
//
// Tokens are stateless: a token is valid while its signature checks out and
// the current time is before its expiry. There is no revocation list, so a
// logged-out principal keeps a working access token until it expires.
//
// # Architecture boundaries
//
// The Manager owns key material and parser options. Signing keys are checked
// once in NewManager so a misconfigured deployment fails at startup rather
// than on the first request.
//
// # What this package must NOT do
//
//   - Look up principals or refresh tokens.
//   - Cache verification results.
package jwt
