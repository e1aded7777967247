package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/tablefix/internal/core"
	"github.com/JonMunkholm/tablefix/internal/logging"
	webmw "github.com/JonMunkholm/tablefix/internal/web/middleware"
)

// SessionHeader carries the session id on API requests.
const SessionHeader = webmw.SessionHeader

// WithRequestMetadata adds IP and User-Agent to context for the audit trail.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	// RemoteAddr was already rewritten by TrustedRealIP.
	return core.WithClient(ctx, core.Client{IP: clientIP(r), UserAgent: r.UserAgent()})
}

// sessionID reads the session id from the X-Session-ID header, falling back
// to the session_id form or query value.
func sessionID(r *http.Request) string {
	if id := r.Header.Get(SessionHeader); id != "" {
		return id
	}
	return r.FormValue("session_id")
}

// requestContext returns the request context enriched with audit metadata
// and the session id for logging.
func requestContext(r *http.Request, session string) context.Context {
	ctx := WithRequestMetadata(r.Context(), r)
	if session != "" {
		ctx = logging.ContextWithSession(ctx, session)
	}
	return ctx
}
