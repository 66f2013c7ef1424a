// Package config loads sessiond process settings from a .env file, SESSIOND_*
// environment variables and command-line flags, and turns them into a
// goSession.Config.
package config
