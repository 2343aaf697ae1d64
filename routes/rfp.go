package routes

import (
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"rfp-intake-platform/middleware"
	"rfp-intake-platform/models"
	"rfp-intake-platform/services"
	"rfp-intake-platform/utils"

	"github.com/gin-gonic/gin"
)

func SetupRfpRoutes(router *gin.Engine, intake *services.IntakeService, store *services.RfpStore, authMW *middleware.AuthMiddleware) {
	group := router.Group("/api/rfps")
	group.Use(authMW.RequireAuth())

	// Upload accepts one document per request. Small files come back with a
	// terminal status; larger ones are queued and report a task id.
	group.POST("", func(c *gin.Context) {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			utils.RespondWithBadRequest(c, "No file provided", gin.H{"error": err.Error()})
			return
		}

		file, err := fileHeader.Open()
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to read upload", gin.H{"error": err.Error()})
			return
		}
		defer file.Close()

		req := &services.UploadRequest{
			Filename: fileHeader.Filename,
			MIME:     detectMIME(fileHeader.Filename, fileHeader.Header.Get("Content-Type")),
			Size:     fileHeader.Size,
			Reader:   file,
		}

		result, err := intake.Submit(c.Request.Context(), middleware.CurrentSession(c), req)
		if err != nil {
			respondSubmitFailure(c, err)
			return
		}

		resp := models.UploadResponse{
			ID:       result.Rfp.ID,
			Title:    result.Rfp.Title,
			Filename: result.Rfp.OriginalName,
			Status:   result.Rfp.Status,
			TaskID:   result.TaskID,
			Next:     result.Next,
		}

		if result.State == services.StateDone {
			resp.Message = "RFP uploaded and processed successfully"
			c.JSON(http.StatusCreated, resp)
			return
		}
		resp.Message = "RFP uploaded; processing in background"
		c.JSON(http.StatusAccepted, resp)
	})

	group.GET("/:id", func(c *gin.Context) {
		rfp, err := store.Get(c.Request.Context(), c.Param("id"), middleware.GetUserID(c))
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to load RFP", gin.H{"error": err.Error()})
			return
		}
		if rfp == nil {
			utils.RespondWithNotFound(c, "RFP not found")
			return
		}

		// Large content is stored compressed; restore it for the response.
		content, err := store.LoadContent(rfp)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to load RFP content", gin.H{"error": err.Error()})
			return
		}
		rfp.Content = content

		resp := gin.H{"rfp": rfp}
		if rfp.Status == models.StatusCompleted {
			resp["next"] = services.NavTargetAnalysis
		}
		c.JSON(http.StatusOK, resp)
	})

	group.GET("", func(c *gin.Context) {
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

		rfps, total, err := store.List(c.Request.Context(), middleware.GetUserID(c), page, limit)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to list RFPs", gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"rfps":  rfps,
			"total": total,
			"page":  page,
			"limit": limit,
		})
	})
}

func respondSubmitFailure(c *gin.Context, err error) {
	var validationErr *services.ValidationError
	if errors.As(err, &validationErr) {
		utils.RespondWithBadRequest(c, validationErr.Reason, gin.H{"field": validationErr.Field})
		return
	}

	var typeErr *services.UnsupportedTypeError
	if errors.As(err, &typeErr) {
		utils.RespondWithError(c, http.StatusUnsupportedMediaType, "unsupported_type", typeErr.Error(), gin.H{"file_type": typeErr.FileType})
		return
	}

	switch {
	case errors.Is(err, services.ErrFileTooLarge):
		utils.RespondWithError(c, http.StatusRequestEntityTooLarge, "file_too_large", err.Error(), nil)
	case errors.Is(err, services.ErrMissingCredential):
		utils.RespondWithError(c, http.StatusPreconditionFailed, "missing_api_key", err.Error(), nil)
	case errors.Is(err, services.ErrUnauthenticated):
		utils.RespondWithUnauthorized(c, err.Error())
	case errors.Is(err, services.ErrSubmissionInFlight):
		utils.RespondWithError(c, http.StatusConflict, "upload_in_progress", err.Error(), nil)
	case errors.Is(err, services.ErrProcessingTimeout):
		utils.RespondWithError(c, http.StatusGatewayTimeout, "processing_timeout", err.Error(), nil)
	default:
		var storeErr *services.StoreError
		if errors.As(err, &storeErr) {
			utils.RespondWithError(c, http.StatusBadGateway, "store_error", storeErr.Error(), nil)
			return
		}
		utils.RespondWithInternalError(c, "Upload failed", gin.H{"error": err.Error()})
	}
}

// detectMIME trusts the multipart header when it names a supported type,
// otherwise falls back to the file extension.
func detectMIME(filename, headerType string) string {
	switch headerType {
	case services.MimePDF, services.MimeDocx, services.MimeText:
		return headerType
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return services.MimePDF
	case ".docx":
		return services.MimeDocx
	case ".txt", ".text", ".md":
		return services.MimeText
	}
	if headerType != "" {
		return headerType
	}
	return "application/octet-stream"
}
