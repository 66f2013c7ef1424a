// Package rate provides the Redis-backed login throttle used by the Engine to bound
// password-guessing against the account store.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key layout:
//   - <prefix>:al:<hash(username)>: login per-user
//   - <prefix>:ali:<hash(ip)>     : login per-IP
//
// # What this package must NOT do
//
//   - Decide whether credentials are valid (the Engine does that).
//   - Be imported outside the goSession module.
package rate
