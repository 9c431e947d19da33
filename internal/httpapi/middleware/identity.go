package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/derslik/tutor/internal/auth"
	"github.com/derslik/tutor/internal/common"
	"github.com/derslik/tutor/internal/identity"
)

const IdentityKey = "identity"

const sessionCookie = "tutor_session"

// ResolveIdentity maps request credentials to exactly one identity
// variant. A presented-but-invalid token is rejected; absent credentials
// yield a lazily created anonymous session scoped to a cookie.
func ResolveIdentity(secret string, sessionTTL time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if h := c.GetHeader("Authorization"); h != "" {
			parts := strings.SplitN(h, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				common.Fail(c, http.StatusUnauthorized, 40101, "malformed authorization header")
				c.Abort()
				return
			}
			claims, err := auth.ParseToken(strings.TrimSpace(parts[1]), secret)
			if err != nil {
				common.Fail(c, http.StatusUnauthorized, 40102, "invalid or expired token")
				c.Abort()
				return
			}
			if claims.Role == auth.RoleAdmin {
				c.Set(IdentityKey, identity.Admin(claims.Subject))
			} else {
				c.Set(IdentityKey, identity.User(claims.UserID))
			}
			c.Next()
			return
		}

		sid, err := c.Cookie(sessionCookie)
		if err != nil || sid == "" {
			sid = identity.NewSessionID()
			c.SetCookie(sessionCookie, sid, int(sessionTTL.Seconds()), "/", "", false, true)
		}
		c.Set(IdentityKey, identity.Anonymous(sid))
		c.Next()
	}
}

// FromContext returns the identity resolved for this request.
func FromContext(c *gin.Context) (identity.Identity, bool) {
	v, ok := c.Get(IdentityKey)
	if !ok {
		return identity.Identity{}, false
	}
	ident, ok := v.(identity.Identity)
	return ident, ok
}

// AuthRequired admits registered users only.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		ident, ok := FromContext(c)
		if !ok || ident.Kind != identity.KindUser {
			common.Fail(c, http.StatusUnauthorized, 40103, "login required")
			c.Abort()
			return
		}
		c.Next()
	}
}

// AdminRequired admits admin principals only.
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		ident, ok := FromContext(c)
		if !ok || ident.Kind != identity.KindAdmin {
			common.Fail(c, http.StatusForbidden, 40301, "admin token required")
			c.Abort()
			return
		}
		c.Next()
	}
}
