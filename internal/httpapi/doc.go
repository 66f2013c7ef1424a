// Package httpapi is the sessiond HTTP surface: session issue and verify,
// a static route manifest, health and metrics. Handlers translate HTTP into
// goSession.Engine calls and never carry authentication logic of their own.
package httpapi
