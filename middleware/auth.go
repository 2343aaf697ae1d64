package middleware

import (
	"net/http"
	"strings"
	"time"

	"rfp-intake-platform/internal/auth"
	"rfp-intake-platform/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type AuthMiddleware struct {
	config *config.Config
	rdb    *redis.Client
}

func NewAuthMiddleware(cfg *config.Config, rdb *redis.Client) *AuthMiddleware {
	return &AuthMiddleware{
		config: cfg,
		rdb:    rdb,
	}
}

// RequireAuth validates the access token from the Authorization header or
// the access_token cookie. When the access token is expired but a valid
// refresh token cookie exists, it rotates the pair transparently so the
// request still goes through.
func (a *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return gin.HandlerFunc(func(c *gin.Context) {
		tokenString := extractBearer(c.GetHeader("Authorization"))
		if tokenString == "" {
			if cookie, err := c.Cookie("access_token"); err == nil {
				tokenString = cookie
			}
		}

		if tokenString == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error_code": "unauthorized",
				"message":    "Authentication token is required",
			})
			c.Abort()
			return
		}

		claims, err := auth.ValidateAccessToken(tokenString, a.rdb)
		if err != nil {
			claims = a.tryRefresh(c)
			if claims == nil {
				c.JSON(http.StatusUnauthorized, gin.H{
					"error_code": "session_expired",
					"message":    "Your session has expired. Please log in again.",
				})
				c.Abort()
				return
			}
		}

		c.Set("user_id", claims.UserID)
		c.Set("email", claims.Email)
		c.Set("session", claims.Session())

		c.Next()
	})
}

// tryRefresh rotates the token pair off a valid refresh cookie. Returns the
// fresh access claims, or nil when no usable refresh token exists.
func (a *AuthMiddleware) tryRefresh(c *gin.Context) *auth.Claims {
	refreshToken, err := c.Cookie("refresh_token")
	if err != nil || refreshToken == "" {
		return nil
	}

	refreshClaims, err := auth.ValidateRefreshToken(refreshToken, a.rdb)
	if err != nil {
		return nil
	}

	// Old refresh token is single use.
	_ = auth.RevokeToken(refreshClaims.ID, true, a.rdb)

	pair, err := auth.IssueTokenPair(refreshClaims.UserID, refreshClaims.Email, a.rdb)
	if err != nil {
		return nil
	}

	SetSessionCookies(c, a.config, pair)

	claims, err := auth.ValidateAccessToken(pair.AccessToken, a.rdb)
	if err != nil {
		return nil
	}
	return claims
}

// SetSessionCookies writes the access/refresh pair as httpOnly cookies.
func SetSessionCookies(c *gin.Context, cfg *config.Config, pair *auth.TokenPair) {
	secure := cfg.GinMode == "release"
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie("access_token", pair.AccessToken, int(time.Hour.Seconds()), "/", "", secure, true)
	c.SetCookie("refresh_token", pair.RefreshToken, int(7*24*time.Hour.Seconds()), "/", "", secure, true)
}

// ClearSessionCookies expires both session cookies.
func ClearSessionCookies(c *gin.Context, cfg *config.Config) {
	secure := cfg.GinMode == "release"
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie("access_token", "", -1, "/", "", secure, true)
	c.SetCookie("refresh_token", "", -1, "/", "", secure, true)
}

// CurrentSession returns the authenticated session, or nil when the
// request passed through without auth.
func CurrentSession(c *gin.Context) *auth.Session {
	if v, exists := c.Get("session"); exists {
		if s, ok := v.(*auth.Session); ok {
			return s
		}
	}
	return nil
}

func GetUserID(c *gin.Context) string {
	if userID, exists := c.Get("user_id"); exists {
		if id, ok := userID.(string); ok {
			return id
		}
	}
	return ""
}

func extractBearer(header string) string {
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}
