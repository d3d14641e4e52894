// Package middleware exposes the request gate that fronts every route of the
// task API.
//
// # Gate
//
// [Gate] runs three checks in a fixed order:
//
//  1. Rate limiting keyed by client IP. It always runs before token
//     verification, so an attacker cannot spend verification work for free.
//  2. Bearer token verification through the Engine.
//  3. Principal attachment: the verified subject e-mail is stored in the
//     request context and read back with [PrincipalFromContext].
//
// Paths on the public list skip steps 2 and 3.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement authentication logic itself.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Engine).
//   - Hold limiter state (Engine owns the limiter).
package middleware
