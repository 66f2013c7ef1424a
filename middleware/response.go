package middleware

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Reason  string `json:"reason,omitempty"`
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes an ErrorBody.
func WriteError(w http.ResponseWriter, status int, message, reason string) {
	WriteJSON(w, status, ErrorBody{Status: status, Message: message, Reason: reason})
}

// WriteBadRequest answers a malformed Authorization header.
func WriteBadRequest(w http.ResponseWriter) {
	WriteError(w, http.StatusBadRequest, "E_BAD_REQUEST", "R_BAD_AUTHORIZATION_HEADER_TYPE")
}

// WriteUnauthorized answers any failed authentication.
func WriteUnauthorized(w http.ResponseWriter) {
	WriteError(w, http.StatusUnauthorized, "E_UNAUTHORIZED", "")
}
