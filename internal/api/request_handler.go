package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"alcyxob/analysis-portal/internal/domain"
	"alcyxob/analysis-portal/internal/service"
)

// RequestHandler serves analysis requests and their files.
type RequestHandler struct {
	requests *service.RequestService
}

func NewRequestHandler(requests *service.RequestService) *RequestHandler {
	return &RequestHandler{requests: requests}
}

// --- Request/Response Structs ---

// Field rules live in the service so the details carry indexed names
// like files[0].s3Url.
type CreateRequestRequest struct {
	Title string                    `json:"title"`
	Memo  *string                   `json:"memo"`
	Files []domain.UploadDescriptor `json:"files"`
}

type ListRequestsQuery struct {
	Status string `form:"status"`
	Page   int    `form:"page" binding:"omitempty,min=1"`
	Limit  int    `form:"limit" binding:"omitempty,min=1"`
}

type UpdateStatusRequest struct {
	Status domain.RequestStatus `json:"status" binding:"required"`
}

type AttachResultRequest struct {
	ResultText    *string `json:"resultText"`
	ResultFileURL *string `json:"resultFileUrl"`
}

type AttachFileResultRequest struct {
	AnalysisResult        *string `json:"analysisResult"`
	AnalysisResultFileURL *string `json:"analysisResultFileUrl"`
}

type DeleteRequestResponse struct {
	Success bool                    `json:"success"`
	Report  *service.DeletionReport `json:"report"`
}

// --- Handler Methods ---

// Create godoc
// @Summary Submit an analysis request
// @Description Registers a request over files already uploaded with presigned URLs.
// @Tags Requests
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param body body CreateRequestRequest true "Request details"
// @Success 201 {object} domain.AnalysisRequest
// @Failure 400 {object} ErrorResponse
// @Router /requests [post]
func (h *RequestHandler) Create(c *gin.Context) {
	var req CreateRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	created, err := h.requests.Create(c.Request.Context(), callerFromContext(c), service.CreateRequestInput{
		Title: req.Title,
		Memo:  req.Memo,
		Files: req.Files,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// List godoc
// @Summary List requests
// @Description Owners see their own requests, reviewers see all. Newest first.
// @Tags Requests
// @Security BearerAuth
// @Produce json
// @Param status query string false "Status filter"
// @Param page query int false "Page (1-based)"
// @Param limit query int false "Page size"
// @Success 200 {object} service.RequestList
// @Router /requests [get]
func (h *RequestHandler) List(c *gin.Context) {
	var q ListRequestsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindError(c, err)
		return
	}

	list, err := h.requests.List(c.Request.Context(), callerFromContext(c), service.ListFilter{
		Status: domain.RequestStatus(q.Status),
		Page:   q.Page,
		Limit:  q.Limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// Stats godoc
// @Summary Request counts by status
// @Tags Requests
// @Security BearerAuth
// @Produce json
// @Success 200 {object} domain.RequestStats
// @Router /requests/stats [get]
func (h *RequestHandler) Stats(c *gin.Context) {
	stats, err := h.requests.Stats(c.Request.Context(), callerFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Get godoc
// @Summary Get one request with its files
// @Tags Requests
// @Security BearerAuth
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} domain.AnalysisRequest
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /requests/{id} [get]
func (h *RequestHandler) Get(c *gin.Context) {
	req, err := h.requests.Get(c.Request.Context(), callerFromContext(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

// UpdateStatus godoc
// @Summary Move a request to another status (reviewer)
// @Tags Requests
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param body body UpdateStatusRequest true "New status"
// @Success 200 {object} domain.AnalysisRequest
// @Router /requests/{id} [patch]
func (h *RequestHandler) UpdateStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	updated, err := h.requests.UpdateStatus(c.Request.Context(), callerFromContext(c), c.Param("id"), req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// AttachResult godoc
// @Summary Attach the analysis result (reviewer)
// @Description Sets the result and marks the request completed. A second call replaces the first.
// @Tags Requests
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param body body AttachResultRequest true "Result"
// @Success 200 {object} domain.AnalysisRequest
// @Router /requests/{id}/result [patch]
func (h *RequestHandler) AttachResult(c *gin.Context) {
	var req AttachResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	updated, err := h.requests.AttachResult(c.Request.Context(), callerFromContext(c), c.Param("id"), service.ResultInput{
		ResultText:    req.ResultText,
		ResultFileURL: req.ResultFileURL,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// Delete godoc
// @Summary Delete a request and its stored files
// @Description Metadata is removed even when some objects could not be; the report lists each object.
// @Tags Requests
// @Security BearerAuth
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} DeleteRequestResponse
// @Router /requests/{id} [delete]
func (h *RequestHandler) Delete(c *gin.Context) {
	report, err := h.requests.Delete(c.Request.Context(), callerFromContext(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, DeleteRequestResponse{Success: true, Report: report})
}

// AttachFileResult godoc
// @Summary Attach a per-file result (reviewer)
// @Tags Files
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "File ID"
// @Param body body AttachFileResultRequest true "Result"
// @Success 200 {object} domain.UploadedFile
// @Router /files/{id}/result [patch]
func (h *RequestHandler) AttachFileResult(c *gin.Context) {
	var req AttachFileResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	file, err := h.requests.AttachFileResult(c.Request.Context(), callerFromContext(c), c.Param("id"), req.AnalysisResult, req.AnalysisResultFileURL)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, file)
}

// VerifyFile godoc
// @Summary Check that an uploaded object exists in the store
// @Tags Files
// @Security BearerAuth
// @Produce json
// @Param id path string true "File ID"
// @Success 200 {object} domain.UploadedFile
// @Router /files/{id}/verify [post]
func (h *RequestHandler) VerifyFile(c *gin.Context) {
	file, err := h.requests.VerifyFile(c.Request.Context(), callerFromContext(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, file)
}
