// Package internal contains helper utilities that are private to taskauth,
// currently opaque token generation and hashing.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - config: server configuration layering
//   - httpapi, httpx: HTTP surface and error rendering
//   - janitor: periodic purge of expired tokens
//   - logging: zap logger construction
//   - mail: password-reset e-mail delivery
//   - models: persistence records shared by stores and backends
//   - rate: per-key admission limiters
//   - storage: PostgreSQL and in-memory backends
//   - stores: refresh-token and password-reset token lifecycles
//
// # What this package must NOT do
//
//   - Be imported by any package outside the taskauth module.
package internal
