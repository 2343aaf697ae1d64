package routes

import (
	"net/http"
	"strings"

	"rfp-intake-platform/middleware"
	"rfp-intake-platform/models"
	"rfp-intake-platform/services"
	"rfp-intake-platform/utils"

	"github.com/gin-gonic/gin"
)

func SetupSettingsRoutes(router *gin.Engine, settingsService *services.SettingsService, authMW *middleware.AuthMiddleware) {
	group := router.Group("/api/settings")
	group.Use(authMW.RequireAuth())

	// GET returns the saved row, or the documented defaults when nothing
	// has been saved yet. The key itself is never returned.
	group.GET("", func(c *gin.Context) {
		settings, err := settingsService.Get(c.Request.Context())
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to load settings", gin.H{"error": err.Error()})
			return
		}
		if settings == nil {
			settings = models.DefaultAppSettings(middleware.GetUserID(c))
		}
		c.JSON(http.StatusOK, settings)
	})

	group.PUT("", func(c *gin.Context) {
		var update models.SettingsUpdate
		if err := c.ShouldBindJSON(&update); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		if update.OpenAIKey != nil {
			key := strings.TrimSpace(*update.OpenAIKey)
			if key != "" && !strings.HasPrefix(key, "sk-") {
				utils.RespondWithBadRequest(c, "OpenAI API keys start with sk-", gin.H{"field": "openai_api_key"})
				return
			}
			update.OpenAIKey = &key
		}

		settings, err := settingsService.Update(c.Request.Context(), middleware.GetUserID(c), update)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to save settings", gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, settings)
	})
}
