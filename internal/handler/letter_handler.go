package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/reco-letter-api/internal/dto"
	"github.com/noah-isme/reco-letter-api/internal/service"
	appErrors "github.com/noah-isme/reco-letter-api/pkg/errors"
	"github.com/noah-isme/reco-letter-api/pkg/response"
)

// LetterHandler exposes the admin-side letter endpoints.
type LetterHandler struct {
	letters *service.LetterService
}

// NewLetterHandler constructs LetterHandler.
func NewLetterHandler(letters *service.LetterService) *LetterHandler {
	return &LetterHandler{letters: letters}
}

// Verify godoc
// @Summary Verify a submitted letter version
// @Tags Letters
// @Accept json
// @Produce json
// @Param id path string true "Letter ID"
// @Param payload body dto.VerifyLetterPayload true "Verification payload"
// @Success 200 {object} response.Envelope
// @Router /letters/{id}/verify [post]
func (h *LetterHandler) Verify(c *gin.Context) {
	var payload dto.VerifyLetterPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	letter, err := h.letters.Verify(c.Request.Context(), c.Param("id"), claimsFromContext(c), payload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, letter, nil)
}
