// Package stores provides the Redis-backed account lookup used by the session Engine.
//
// # Design
//
// Each account is a Redis hash at <prefix>:acct:<id> with fields "username" and
// "digest". A secondary string key <prefix>:uname:<username> maps a username to its id.
// Lookups by credentials resolve the id through the index, load the hash, and compare
// digests in constant time.
//
// # Architecture boundaries
//
// This package owns lookup against Redis only. It does NOT hash passwords, issue
// sessions, or decide what an absent account means for the caller. Put exists so the
// CLI can seed accounts; update and delete are out of scope.
//
// # What this package must NOT do
//
//   - Import goSession or any sibling internal package other than password.
//   - Log or expose password digests.
//   - Use non-constant-time comparisons for digest matching.
package stores
