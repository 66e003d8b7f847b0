package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"alcyxob/analysis-portal/internal/service"
)

// UploadHandler issues direct-to-store upload and download credentials.
type UploadHandler struct {
	uploads   *service.UploadBroker
	downloads *service.DownloadBroker
}

func NewUploadHandler(uploads *service.UploadBroker, downloads *service.DownloadBroker) *UploadHandler {
	return &UploadHandler{uploads: uploads, downloads: downloads}
}

type PresignUploadRequest struct {
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"contentType" binding:"required"`
}

// DownloadRequest names an object by URL or key. Key wins when both are set.
type DownloadRequest struct {
	S3URL    string `json:"s3Url"`
	S3Key    string `json:"s3Key"`
	Filename string `json:"filename"`
}

// PresignUpload godoc
// @Summary Get a presigned upload URL
// @Description The client PUTs the file body to uploadUrl with the same Content-Type.
// @Tags Files
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param body body PresignUploadRequest true "File description"
// @Success 200 {object} service.UploadCredential
// @Failure 503 {object} ErrorResponse "Object store unavailable"
// @Router /upload/presigned [post]
func (h *UploadHandler) PresignUpload(c *gin.Context) {
	var req PresignUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	cred, err := h.uploads.RequestUploadCredential(c.Request.Context(), callerFromContext(c), req.Filename, req.ContentType)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cred)
}

// DownloadByFileID godoc
// @Summary Presigned download URL for an uploaded file
// @Tags Files
// @Security BearerAuth
// @Produce json
// @Param id path string true "File ID"
// @Success 200 {object} service.DownloadCredential
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /files/{id}/download [get]
func (h *UploadHandler) DownloadByFileID(c *gin.Context) {
	cred, err := h.downloads.DownloadByFileID(c.Request.Context(), callerFromContext(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cred)
}

// DownloadByReference godoc
// @Summary Presigned download URL for a store URL or key
// @Tags Files
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param body body DownloadRequest true "Object reference"
// @Success 200 {object} service.DownloadCredential
// @Failure 400 {object} ErrorResponse
// @Router /download [post]
func (h *UploadHandler) DownloadByReference(c *gin.Context) {
	var req DownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	cred, err := h.downloads.DownloadByReference(c.Request.Context(), callerFromContext(c), service.DownloadReference{
		StoreURL:   req.S3URL,
		StorageKey: req.S3Key,
		Filename:   req.Filename,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cred)
}
