// Package rate provides per-key admission limiters.
//
// # Window semantics
//
// Both implementations grant Capacity units per key and restore the full
// budget once Interval has elapsed since the window opened. MemoryLimiter keeps
// buckets in a sharded map and evicts keys that have been idle for IdleTTL.
// RedisLimiter runs INCR and EXPIRE NX in one transaction, so several
// processes can share one budget. Keys are stored under the "rl:" prefix.
//
// # What this package must NOT do
//
//   - Decide which key identifies a caller (the request gate does that).
//   - Be imported outside the taskauth module.
package rate
