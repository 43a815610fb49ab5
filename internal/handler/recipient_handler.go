package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/reco-letter-api/internal/dto"
	"github.com/noah-isme/reco-letter-api/internal/models"
	"github.com/noah-isme/reco-letter-api/internal/service"
	appErrors "github.com/noah-isme/reco-letter-api/pkg/errors"
	"github.com/noah-isme/reco-letter-api/pkg/response"
)

// RecipientHandler exposes the recipient directory endpoints.
type RecipientHandler struct {
	recipients *service.RecipientService
}

// NewRecipientHandler constructs RecipientHandler.
func NewRecipientHandler(recipients *service.RecipientService) *RecipientHandler {
	return &RecipientHandler{recipients: recipients}
}

// List godoc
// @Summary List the caller's recipients
// @Tags Recipients
// @Produce json
// @Param search query string false "Search by name or institution"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /recipients [get]
func (h *RecipientHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	filter := models.RecipientFilter{
		CreatedBy: claims.UserID,
		Search:    strings.TrimSpace(c.Query("search")),
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	recipients, pagination, err := h.recipients.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, recipients, pagination)
}

// Get godoc
// @Summary Get recipient detail
// @Tags Recipients
// @Produce json
// @Param id path string true "Recipient ID"
// @Success 200 {object} response.Envelope
// @Router /recipients/{id} [get]
func (h *RecipientHandler) Get(c *gin.Context) {
	recipient, err := h.recipients.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, recipient, nil)
}

// Create godoc
// @Summary Create recipient
// @Tags Recipients
// @Accept json
// @Produce json
// @Param payload body dto.CreateRecipientPayload true "Recipient payload"
// @Success 201 {object} response.Envelope
// @Router /recipients [post]
func (h *RecipientHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var payload dto.CreateRecipientPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	recipient, err := h.recipients.Create(c.Request.Context(), claims.UserID, payload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, recipient)
}

// Update godoc
// @Summary Update recipient
// @Tags Recipients
// @Accept json
// @Produce json
// @Param id path string true "Recipient ID"
// @Param payload body dto.UpdateRecipientPayload true "Recipient payload"
// @Success 200 {object} response.Envelope
// @Router /recipients/{id} [put]
func (h *RecipientHandler) Update(c *gin.Context) {
	var payload dto.UpdateRecipientPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	recipient, err := h.recipients.Update(c.Request.Context(), c.Param("id"), claimsFromContext(c), payload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, recipient, nil)
}

// Delete godoc
// @Summary Delete recipient
// @Tags Recipients
// @Produce json
// @Param id path string true "Recipient ID"
// @Success 204 "No Content"
// @Router /recipients/{id} [delete]
func (h *RecipientHandler) Delete(c *gin.Context) {
	if err := h.recipients.Delete(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
