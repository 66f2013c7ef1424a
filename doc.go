// Package goSession issues and verifies stateless, XSRF-bound session credentials.
//
// A session is a signed JWT carrying the account id and a random XSRF token. The
// client receives both values separately and must present both on every request:
// the credential alone never authenticates. Passwords are reduced to a deterministic
// Argon2id digest so an [AccountStore] can match them without the engine ever
// holding a user table.
//
// Engine methods are safe to call from multiple goroutines after [Builder.Build].
//
// # Architecture boundaries
//
// goSession is the public surface. It exposes [Engine], [Builder], [Config], and value
// types (IssuedSession, SessionInfo, MetricsSnapshot). Token encoding lives in jwt,
// hashing in password, and Redis access under internal/.
//
// # What this package must NOT do
//
//   - Persist sessions. Verification is pure computation over the credential.
//   - Log. Outcomes leave the engine as audit events and metrics only.
//   - Return credentials, XSRF tokens or digests inside errors.
//
// # Performance contract
//
// Verify is the hot path and performs no I/O. Login pays one Argon2 evaluation and
// one AccountStore lookup, plus throttle round-trips when Redis is configured.
package goSession
