// Package authcore is the authentication trust core of a trading exchange:
// it issues and revokes session credentials and gates login behind an
// optional second factor.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config],
// the durable [Store] and [UserProvider] integration interfaces, and value
// types (SetupResult, TokenPair, AuthResult, etc.). Internal coordination —
// secret encryption, one-time-code verification, backup-code hashing, audit
// dispatch — lives under internal/ and is never exported.
//
// # What this package must NOT do
//
//   - Expose Redis clients, internal stores, or encoding details in its
//     public API.
//   - Perform I/O outside of Engine methods (construction via Builder is
//     allocation-only until Build).
//   - Hash login passwords or deliver email; those belong to the caller.
//
// # Performance contract
//
// Validate is the hot path. It performs signature and claim checks locally
// and at most two Redis round-trips (jti blacklist, user revocation epoch);
// both fail open on backend outage so request handling never stalls on the
// revocation ledger.
package authcore
