// Package middleware adapts goSession.Engine verification to net/http.
//
// [Guard] reads the bearer credential and the XSRF header, calls
// Engine.Verify, and injects the verified session into the request context
// where goSession.SessionInfoFromContext finds it. The header parsers and
// error writers are shared with the service's own handlers so every route
// answers with the same bodies.
//
// # What this package must NOT do
//
//   - Parse or sign credentials directly. The Engine does that.
//   - Reveal which verification step failed.
package middleware
