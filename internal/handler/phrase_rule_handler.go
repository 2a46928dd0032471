package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/orphanbars/orphanbars-api/internal/models"
	"github.com/orphanbars/orphanbars-api/internal/service"
	appErrors "github.com/orphanbars/orphanbars-api/pkg/errors"
	"github.com/orphanbars/orphanbars-api/pkg/response"
)

// PhraseRuleHandler wires admin phrase-rule endpoints to the service.
type PhraseRuleHandler struct {
	service *service.PhraseRuleService
}

// NewPhraseRuleHandler creates a new handler.
func NewPhraseRuleHandler(svc *service.PhraseRuleService) *PhraseRuleHandler {
	return &PhraseRuleHandler{service: svc}
}

// Create godoc
// @Summary Create a phrase rule
// @Tags Admin
// @Accept json
// @Produce json
// @Param payload body models.PhraseRuleRequest true "Rule payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admin/phrase-rules [post]
func (h *PhraseRuleHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.PhraseRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid rule payload"))
		return
	}

	rule, err := h.service.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, rule)
}

// List godoc
// @Summary List phrase rules in evaluation order
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/phrase-rules [get]
func (h *PhraseRuleHandler) List(c *gin.Context) {
	rules, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, rules, nil)
}

// Update godoc
// @Summary Update a phrase rule
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Rule ID"
// @Param payload body models.PhraseRuleRequest true "Rule payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/phrase-rules/{id} [put]
func (h *PhraseRuleHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.PhraseRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid rule payload"))
		return
	}

	rule, err := h.service.Update(c.Request.Context(), claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, rule, nil)
}

// Delete godoc
// @Summary Delete a phrase rule
// @Tags Admin
// @Produce json
// @Param id path string true "Rule ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/phrase-rules/{id} [delete]
func (h *PhraseRuleHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.Delete(c.Request.Context(), claims.UserID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
