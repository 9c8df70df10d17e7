package server

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Skufu/excipredict/internal/auth"
)

const (
	sessionKey      = "session"
	defaultRedirect = "/predict"
)

// requireSession guards protected routes. While the startup resolution is pending the
// answer is 503, never a redirect: an unresolved session is not a signed-out one.
func (s *Server) requireSession(page bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		st := s.deps.Auth.Store().Current()
		switch {
		case st.Status == auth.StatusUnknown:
			c.Header("Retry-After", "1")
			abortError(c, http.StatusServiceUnavailable, "resolving", "session resolving")
		case st.Session == nil:
			if page {
				c.Redirect(http.StatusFound, "/login?next="+url.QueryEscape(c.Request.URL.RequestURI()))
				c.Abort()
				return
			}
			abortError(c, http.StatusUnauthorized, "unauthenticated", "authentication required")
		default:
			c.Set(sessionKey, st.Session)
			if page && s.deps.Analytics != nil {
				s.deps.Analytics.RegisterVisitor(c.Request.Context(), st.Session.UserID)
			}
			c.Next()
		}
	}
}

// safeRedirect accepts only same-origin absolute paths.
func safeRedirect(next string) string {
	next = strings.TrimSpace(next)
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, `\`) {
		return defaultRedirect
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return defaultRedirect
	}
	if u.Path == "/login" || u.Path == "/signup" {
		return defaultRedirect
	}
	return next
}
