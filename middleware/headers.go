package middleware

import (
	"encoding/base64"
	"errors"
	"net"
	"net/http"
	"strings"
)

// ErrBadAuthorizationHeader reports a missing or malformed Authorization header.
var ErrBadAuthorizationHeader = errors.New("bad authorization header type")

// BearerToken extracts the credential from "Authorization: Bearer <token>".
func BearerToken(r *http.Request) (string, error) {
	token, ok := schemeValue(r.Header.Get("Authorization"), "Bearer")
	if !ok {
		return "", ErrBadAuthorizationHeader
	}
	return token, nil
}

// BasicCredentials extracts username and password from
// "Authorization: Basic base64(username:password)". The password may contain
// colons; the username may not.
func BasicCredentials(r *http.Request) (string, string, error) {
	encoded, ok := schemeValue(r.Header.Get("Authorization"), "Basic")
	if !ok {
		return "", "", ErrBadAuthorizationHeader
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", "", ErrBadAuthorizationHeader
	}
	username, password, ok := strings.Cut(string(raw), ":")
	if !ok {
		return "", "", ErrBadAuthorizationHeader
	}
	return username, password, nil
}

func schemeValue(header, scheme string) (string, bool) {
	kind, value, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || kind != scheme {
		return "", false
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	return value, true
}

// ClientIP returns the host part of r.RemoteAddr.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
