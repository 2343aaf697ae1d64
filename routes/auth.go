package routes

import (
	"errors"
	"net/http"

	"rfp-intake-platform/internal/auth"
	"rfp-intake-platform/internal/config"
	"rfp-intake-platform/middleware"
	"rfp-intake-platform/models"
	"rfp-intake-platform/services"
	"rfp-intake-platform/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func SetupAuthRoutes(router *gin.Engine, cfg *config.Config, authService *services.AuthService, authMW *middleware.AuthMiddleware, rdb *redis.Client) {
	group := router.Group("/auth")

	// Register creates the account but does not establish a session; the
	// client returns to the sign-in form.
	group.POST("/register", func(c *gin.Context) {
		var req models.RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		user, err := authService.SignUp(c.Request.Context(), req.Email, req.Password, req.ConfirmPassword)
		if err != nil {
			respondAuthFailure(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"user":    models.UserInfo{ID: user.ID, Email: user.Email},
			"message": "Account created. Please sign in.",
		})
	})

	group.POST("/login", func(c *gin.Context) {
		var req models.LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		pair, user, err := authService.SignIn(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			respondAuthFailure(c, err)
			return
		}

		middleware.SetSessionCookies(c, cfg, pair)

		c.JSON(http.StatusOK, models.TokenPairResponse{
			AccessToken:  pair.AccessToken,
			RefreshToken: pair.RefreshToken,
			AccessExp:    pair.AccessExp,
			RefreshExp:   pair.RefreshExp,
			User:         models.UserInfo{ID: user.ID, Email: user.Email},
			Next:         services.NavTargetAnalysis,
		})
	})

	group.GET("/session", authMW.RequireAuth(), func(c *gin.Context) {
		sess := middleware.CurrentSession(c)
		c.JSON(http.StatusOK, gin.H{
			"user": models.UserInfo{ID: sess.UserID, Email: sess.Email},
		})
	})

	group.POST("/refresh", func(c *gin.Context) {
		refreshToken, err := c.Cookie("refresh_token")
		if err != nil || refreshToken == "" {
			refreshToken = c.GetHeader("X-Refresh-Token")
		}
		if refreshToken == "" {
			utils.RespondWithUnauthorized(c, "Refresh token is required")
			return
		}

		claims, err := auth.ValidateRefreshToken(refreshToken, rdb)
		if err != nil {
			utils.RespondWithUnauthorized(c, "Your session has expired. Please log in again.")
			return
		}

		// Rotation: old refresh token is dead once used.
		_ = auth.RevokeToken(claims.ID, true, rdb)

		pair, err := auth.IssueTokenPair(claims.UserID, claims.Email, rdb)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to refresh session", nil)
			return
		}

		middleware.SetSessionCookies(c, cfg, pair)

		c.JSON(http.StatusOK, models.TokenPairResponse{
			AccessToken:  pair.AccessToken,
			RefreshToken: pair.RefreshToken,
			AccessExp:    pair.AccessExp,
			RefreshExp:   pair.RefreshExp,
			User:         models.UserInfo{ID: claims.UserID, Email: claims.Email},
		})
	})

	// Logout revokes the current pair; ?all=true revokes every session the
	// user holds across devices.
	group.POST("/logout", func(c *gin.Context) {
		if token, err := c.Cookie("access_token"); err == nil && token != "" {
			if claims, err := auth.ValidateAccessToken(token, rdb); err == nil {
				_ = auth.RevokeToken(claims.ID, false, rdb)
				if c.Query("all") == "true" {
					_ = auth.RevokeAllUserTokens(claims.UserID, rdb)
				}
			}
		}
		if token, err := c.Cookie("refresh_token"); err == nil && token != "" {
			if claims, err := auth.ValidateRefreshToken(token, rdb); err == nil {
				_ = auth.RevokeToken(claims.ID, true, rdb)
			}
		}

		middleware.ClearSessionCookies(c, cfg)
		c.JSON(http.StatusOK, gin.H{"message": "Signed out"})
	})
}

func respondAuthFailure(c *gin.Context, err error) {
	var validationErr *services.ValidationError
	if errors.As(err, &validationErr) {
		utils.RespondWithBadRequest(c, validationErr.Reason, gin.H{"field": validationErr.Field})
		return
	}

	if errors.Is(err, services.ErrEmailTaken) {
		utils.RespondWithError(c, http.StatusConflict, "email_exists", err.Error(), nil)
		return
	}

	var authErr *services.AuthError
	if errors.As(err, &authErr) {
		utils.RespondWithError(c, http.StatusUnauthorized, "invalid_credentials", authErr.Message, nil)
		return
	}

	utils.RespondWithInternalError(c, "Authentication failed", gin.H{"error": err.Error()})
}
