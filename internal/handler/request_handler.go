package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/reco-letter-api/internal/dto"
	"github.com/noah-isme/reco-letter-api/internal/models"
	"github.com/noah-isme/reco-letter-api/internal/service"
	appErrors "github.com/noah-isme/reco-letter-api/pkg/errors"
	"github.com/noah-isme/reco-letter-api/pkg/response"
)

// RequestHandler exposes the student-facing request lifecycle endpoints.
type RequestHandler struct {
	requests  *service.RequestService
	letters   *service.LetterService
	dashboard *service.DashboardService
}

// NewRequestHandler constructs RequestHandler.
func NewRequestHandler(requests *service.RequestService, letters *service.LetterService, dashboard *service.DashboardService) *RequestHandler {
	return &RequestHandler{requests: requests, letters: letters, dashboard: dashboard}
}

// List godoc
// @Summary List recommendation requests
// @Tags Requests
// @Produce json
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /requests [get]
func (h *RequestHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	filter := models.RequestFilter{
		StudentID: claims.UserID,
		Status:    models.RequestStatus(c.Query("status")),
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	requests, pagination, err := h.requests.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, pagination)
}

// Create godoc
// @Summary Create a draft request
// @Tags Requests
// @Accept json
// @Produce json
// @Param payload body dto.CreateRequestPayload true "Request payload"
// @Success 201 {object} response.Envelope
// @Router /requests [post]
func (h *RequestHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var payload dto.CreateRequestPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req, err := h.requests.Create(c.Request.Context(), claims.UserID, payload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, req)
}

// Get godoc
// @Summary Get request detail with recipient and latest letter
// @Tags Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /requests/{id} [get]
func (h *RequestHandler) Get(c *gin.Context) {
	detail, err := h.requests.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Send godoc
// @Summary Send the request to its recipient
// @Tags Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /requests/{id}/send [post]
func (h *RequestHandler) Send(c *gin.Context) {
	result, err := h.requests.Send(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Cancel godoc
// @Summary Cancel a request
// @Tags Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 204 "No Content"
// @Router /requests/{id} [delete]
func (h *RequestHandler) Cancel(c *gin.Context) {
	if err := h.requests.Cancel(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Letters godoc
// @Summary List all letter versions for a request
// @Tags Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /requests/{id}/letters [get]
func (h *RequestHandler) Letters(c *gin.Context) {
	letters, err := h.requests.ListLetters(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, letters, nil)
}

// Download godoc
// @Summary Get a download link for the latest letter file
// @Tags Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /requests/{id}/letters/download [get]
func (h *RequestHandler) Download(c *gin.Context) {
	detail, err := h.requests.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	target, err := h.letters.ViewTarget(c.Request.Context(), detail.LatestLetter, true)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, target, nil)
}

// Summary godoc
// @Summary Per-student dashboard summary
// @Tags Requests
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /requests/summary [get]
func (h *RequestHandler) Summary(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	summary, err := h.dashboard.Summary(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
