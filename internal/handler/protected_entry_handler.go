package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/orphanbars/orphanbars-api/internal/models"
	"github.com/orphanbars/orphanbars-api/internal/service"
	appErrors "github.com/orphanbars/orphanbars-api/pkg/errors"
	"github.com/orphanbars/orphanbars-api/pkg/response"
)

// ProtectedEntryHandler wires owner backlog endpoints to the service.
type ProtectedEntryHandler struct {
	service *service.ProtectedEntryService
}

// NewProtectedEntryHandler creates a new handler.
func NewProtectedEntryHandler(svc *service.ProtectedEntryService) *ProtectedEntryHandler {
	return &ProtectedEntryHandler{service: svc}
}

// Create godoc
// @Summary Reserve protected content
// @Tags Admin
// @Accept json
// @Produce json
// @Param payload body models.ProtectedEntryRequest true "Entry payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admin/protected-entries [post]
func (h *ProtectedEntryHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.ProtectedEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid entry payload"))
		return
	}

	entry, err := h.service.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, entry)
}

// List godoc
// @Summary List protected entries
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/protected-entries [get]
func (h *ProtectedEntryHandler) List(c *gin.Context) {
	entries, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, entries, nil)
}

// Update godoc
// @Summary Update a protected entry
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Entry ID"
// @Param payload body models.ProtectedEntryRequest true "Entry payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/protected-entries/{id} [put]
func (h *ProtectedEntryHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.ProtectedEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid entry payload"))
		return
	}

	entry, err := h.service.Update(c.Request.Context(), claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, entry, nil)
}

// Delete godoc
// @Summary Delete a protected entry
// @Tags Admin
// @Produce json
// @Param id path string true "Entry ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/protected-entries/{id} [delete]
func (h *ProtectedEntryHandler) Delete(c *gin.Context) {
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
