// Package password implements deterministic password digests with Argon2id.
//
// # Output format
//
// Digests are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// The salt is a deployment-wide value taken from configuration, so [Argon2.Hash]
// returns the same digest for the same password. Account stores match on the
// digest directly; [Equal] compares two digests in constant time.
//
// [Argon2.NeedsUpgrade] reports digests produced with weaker parameters so the
// caller can re-hash on the next successful login.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Length caps and throttling
// are enforced by the Engine.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive digests.
//   - Import any other goSession package.
//   - Log plaintext passwords or hash parameters at runtime.
package password
