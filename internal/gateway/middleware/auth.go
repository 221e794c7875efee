package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"storefront-system/internal/utils"
)

const (
	scopeKey       = "scope"
	ReferralCookie = "ref"
	ReferralHeader = "X-Affiliate-Ref"
)

// Scope is the caller identity for one request.
type Scope struct {
	UserID string
	Role   string
	// AffiliateID is the caller's own affiliate account, if any.
	AffiliateID string
	// Referral is the affiliate that referred this visit, if any.
	Referral string
}

func (s Scope) IsAdmin() bool {
	return s.Role == utils.RoleAdmin
}

type TokenParser interface {
	ParseToken(tokenStr string) (*utils.Claims, error)
}

func JWTAuth(parser TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			unauthorized(c, "Missing bearer token")
			return
		}

		claims, err := parser.ParseToken(strings.TrimSpace(token))
		if err != nil {
			unauthorized(c, "Invalid or expired token")
			return
		}

		c.Set(scopeKey, Scope{
			UserID:      claims.UserID,
			Role:        claims.Role,
			AffiliateID: claims.AffiliateID,
			Referral:    referral(c),
		})
		c.Next()
	}
}

// RequireRole lets the request through when the caller has one of roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		scope, ok := ScopeFrom(c)
		if !ok {
			unauthorized(c, "Authentication required")
			return
		}
		for _, r := range roles {
			if scope.Role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"success": false,
			"message": "Insufficient permissions",
		})
	}
}

func ScopeFrom(c *gin.Context) (Scope, bool) {
	v, ok := c.Get(scopeKey)
	if !ok {
		return Scope{}, false
	}
	scope, ok := v.(Scope)
	return scope, ok
}

// referral prefers the header over the cookie.
func referral(c *gin.Context) string {
	if ref := strings.TrimSpace(c.GetHeader(ReferralHeader)); ref != "" {
		return ref
	}
	if ref, err := c.Cookie(ReferralCookie); err == nil {
		return strings.TrimSpace(ref)
	}
	return ""
}

func unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"message": message,
	})
}
