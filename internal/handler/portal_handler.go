package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/reco-letter-api/internal/dto"
	"github.com/noah-isme/reco-letter-api/internal/service"
	appErrors "github.com/noah-isme/reco-letter-api/pkg/errors"
	"github.com/noah-isme/reco-letter-api/pkg/response"
)

// PortalHandler serves the unauthenticated recipient portal. Every route is
// keyed by the secure token; all access failures collapse into a single
// opaque "link invalid" answer.
type PortalHandler struct {
	tokens   *service.TokenService
	requests *service.RequestService
	letters  *service.LetterService
	metrics  *service.MetricsService
}

// NewPortalHandler constructs PortalHandler.
func NewPortalHandler(tokens *service.TokenService, requests *service.RequestService, letters *service.LetterService, metrics *service.MetricsService) *PortalHandler {
	return &PortalHandler{tokens: tokens, requests: requests, letters: letters, metrics: metrics}
}

// View godoc
// @Summary Recipient portal view
// @Tags Portal
// @Produce json
// @Param token path string true "Secure token"
// @Success 200 {object} response.Envelope
// @Router /portal/{token} [get]
func (h *PortalHandler) View(c *gin.Context) {
	view, err := h.letters.PortalView(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.AccessError(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Acknowledge godoc
// @Summary Recipient acknowledges they will write the letter
// @Tags Portal
// @Produce json
// @Param token path string true "Secure token"
// @Success 204 "No Content"
// @Router /portal/{token}/acknowledge [post]
func (h *PortalHandler) Acknowledge(c *gin.Context) {
	req, _, err := h.tokens.Resolve(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.AccessError(c, err)
		return
	}
	if err := h.requests.MarkPending(c.Request.Context(), req.ID); err != nil {
		response.AccessError(c, err)
		return
	}
	response.NoContent(c)
}

// Upload godoc
// @Summary Get a presigned upload target for the letter file
// @Tags Portal
// @Accept json
// @Produce json
// @Param token path string true "Secure token"
// @Param payload body dto.UploadTargetPayload true "File metadata"
// @Success 200 {object} response.Envelope
// @Router /portal/{token}/upload [post]
func (h *PortalHandler) Upload(c *gin.Context) {
	var payload dto.UploadTargetPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	target, err := h.letters.CreateUploadTarget(c.Request.Context(), c.Param("token"), payload)
	if err != nil {
		response.AccessError(c, err)
		return
	}
	response.JSON(c, http.StatusOK, target, nil)
}

// UploadFallback godoc
// @Summary Upload the letter file through the server
// @Tags Portal
// @Accept multipart/form-data
// @Produce json
// @Param token path string true "Secure token"
// @Param file formData file true "Letter file"
// @Success 200 {object} response.Envelope
// @Router /portal/{token}/upload-fallback [post]
func (h *PortalHandler) UploadFallback(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file is required"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to read file"))
		return
	}
	defer file.Close()
	body, err := io.ReadAll(file)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to read file"))
		return
	}

	result, err := h.letters.FallbackUpload(
		c.Request.Context(),
		c.Param("token"),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		body,
	)
	if err != nil {
		response.AccessError(c, err)
		return
	}
	h.metrics.RecordUploadFallback()
	response.JSON(c, http.StatusOK, result, nil)
}

// Submit godoc
// @Summary Submit a letter version
// @Tags Portal
// @Accept json
// @Produce json
// @Param token path string true "Secure token"
// @Param payload body dto.SubmitLetterPayload true "Submission payload"
// @Success 201 {object} response.Envelope
// @Router /portal/{token}/submit [post]
func (h *PortalHandler) Submit(c *gin.Context) {
	var payload dto.SubmitLetterPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	letter, err := h.letters.Submit(c.Request.Context(), c.Param("token"), payload)
	if err != nil {
		response.AccessError(c, err)
		return
	}
	h.metrics.RecordLetterStored(letterKind(payload))
	response.Created(c, letter)
}

// ViewFile godoc
// @Summary Preview the latest uploaded letter file
// @Tags Portal
// @Produce json
// @Param token path string true "Secure token"
// @Success 200 {object} response.Envelope
// @Router /portal/{token}/view [get]
func (h *PortalHandler) ViewFile(c *gin.Context) {
	target, err := h.letters.PortalViewTarget(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.AccessError(c, err)
		return
	}
	response.JSON(c, http.StatusOK, target, nil)
}

func letterKind(payload dto.SubmitLetterPayload) string {
	switch {
	case payload.HasContent() && payload.HasFile():
		return "mixed"
	case payload.HasFile():
		return "file"
	default:
		return "content"
	}
}
