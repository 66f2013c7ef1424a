// Package internal contains helper utilities that are intentionally private to goSession:
// anti-forgery token generation, secret generation, and key hashing.
//
// # Sub-packages
//
//   - httpapi: HTTP handlers for the session endpoints and route manifest
//   - config: process configuration loading (env, .env, flags)
//   - rate: Redis-backed login throttle
//   - stores: Redis adapter for the account lookup contract
//
// # What this package must NOT do
//
//   - Export types that appear in the public goSession API.
//   - Be imported by any package outside the goSession module.
package internal
