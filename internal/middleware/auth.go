package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/clipstream/timeline-core/internal/auth"
	"github.com/clipstream/timeline-core/internal/ctxutil"
	"github.com/clipstream/timeline-core/internal/logger"
)

// Auth resolves the Authorization header into a ctxutil.Principal via
// A5's Provider and rejects the request if it can't. Bearer and API-key
// callers are both accepted; which one a given principal is feeds the
// lock-bypass rule downstream in internal/lock, not here.
type Auth struct {
	log      *logger.Logger
	provider *auth.Provider
}

func NewAuth(log *logger.Logger, provider *auth.Provider) *Auth {
	return &Auth{log: log.With("middleware", "Auth"), provider: provider}
}

func (a *Auth) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"code": "UNAUTHORIZED", "message": "missing authorization header"},
			})
			return
		}
		principal, err := a.provider.Authenticate(c.Request.Context(), header)
		if err != nil {
			a.log.Debug("authenticate failed", "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"code": "UNAUTHORIZED", "message": err.Error()},
			})
			return
		}
		ctx := ctxutil.WithPrincipal(c.Request.Context(), principal)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
