package httpapi

import (
	"errors"
	"net/http"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/middleware"
	"go.uber.org/zap"
)

type issueResponse struct {
	Credential string `json:"credential"`
	XSRF       string `json:"xsrf"`
	ExpiresIn  int    `json:"expiresIn"`
}

type identityView struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type sessionResponse struct {
	Identity  identityView `json:"identity"`
	XSRF      string       `json:"xsrf"`
	IssuedAt  int64        `json:"issuedAt"`
	ExpiresAt int64        `json:"expiresAt"`
	Issuer    string       `json:"issuer"`
	Audience  []string     `json:"audience"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	middleware.WriteJSON(w, status, v)
}

func (s *Server) handleIssue(w http.ResponseWriter, r *http.Request) {
	username, password, err := middleware.BasicCredentials(r)
	if err != nil {
		middleware.WriteBadRequest(w)
		return
	}

	ctx := goSession.WithClientIP(r.Context(), middleware.ClientIP(r))
	issued, err := s.engine.Login(ctx, username, password)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, issueResponse{
		Credential: issued.Credential,
		XSRF:       issued.XSRF,
		ExpiresIn:  issued.ExpiresIn,
	})
}

func (s *Server) verifyHandler() http.Handler {
	return middleware.Guard(s.engine)(http.HandlerFunc(s.handleSession))
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	info, ok := goSession.SessionInfoFromContext(r.Context())
	if !ok {
		middleware.WriteUnauthorized(w)
		return
	}

	account, err := s.engine.LookupAccount(r.Context(), info.Identity.Subject)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		Identity:  identityView{ID: account.ID, Username: account.Username},
		XSRF:      info.XSRF,
		IssuedAt:  info.IssuedAt.Unix(),
		ExpiresAt: info.ExpiresAt.Unix(),
		Issuer:    info.Issuer,
		Audience:  info.Audience,
	})
}

// writeEngineError maps engine failures onto status codes. Unauthorized
// failures share one body; everything else is logged and answered with 500.
func (s *Server) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, goSession.ErrLoginRateLimited):
		middleware.WriteError(w, http.StatusTooManyRequests, goSession.CodeRateLimited, "")
	case errors.Is(err, goSession.ErrUnauthorized):
		middleware.WriteUnauthorized(w)
	default:
		s.logger.Error("session request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("code", goSession.ErrorCode(err)),
			zap.Bool("fatal", goSession.IsFatal(err)),
			zap.Error(err),
		)
		middleware.WriteError(w, http.StatusInternalServerError, goSession.CodeInternal, "")
	}
}
