package middleware

import (
	"errors"
	"net/http"

	goSession "github.com/MrEthical07/goSession"
)

// Guard verifies the bearer credential and the XSRF header on every request
// and attaches the resulting *goSession.SessionInfo to the request context.
// A malformed Authorization header is answered with 400; any failed check is
// answered with 401 without saying which one.
func Guard(engine *goSession.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				WriteUnauthorized(w)
				return
			}

			token, err := BearerToken(r)
			if err != nil {
				WriteBadRequest(w)
				return
			}

			ctx := goSession.WithClientIP(r.Context(), ClientIP(r))
			info, err := engine.Verify(ctx, token, r.Header.Get(engine.XSRFHeader()))
			if err != nil {
				if errors.Is(err, goSession.ErrUnauthorized) {
					WriteUnauthorized(w)
					return
				}
				WriteError(w, http.StatusInternalServerError, "E_INTERNAL", "")
				return
			}

			next.ServeHTTP(w, r.WithContext(goSession.WithSessionInfo(ctx, info)))
		})
	}
}
