package goSession

import "context"

type clientIPContextKey struct{}
type sessionInfoContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. The Engine uses it
// for per-IP login throttling and audit records.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithSessionInfo attaches a verified session to ctx.
func WithSessionInfo(ctx context.Context, info *SessionInfo) context.Context {
	return context.WithValue(ctx, sessionInfoContextKey{}, info)
}

// SessionInfoFromContext returns the verified session attached by WithSessionInfo.
func SessionInfoFromContext(ctx context.Context) (*SessionInfo, bool) {
	if ctx == nil {
		return nil, false
	}
	info, ok := ctx.Value(sessionInfoContextKey{}).(*SessionInfo)
	return info, ok && info != nil
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}
