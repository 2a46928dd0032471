package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/orphanbars/orphanbars-api/internal/service"
	appErrors "github.com/orphanbars/orphanbars-api/pkg/errors"
	"github.com/orphanbars/orphanbars-api/pkg/response"
)

// CertificateHandler wires HTTP endpoints to the certificate service.
type CertificateHandler struct {
	service *service.CertificateService
}

// NewCertificateHandler creates a new handler.
func NewCertificateHandler(svc *service.CertificateService) *CertificateHandler {
	return &CertificateHandler{service: svc}
}

// Lock godoc
// @Summary Lock a submission and issue its certificate
// @Description Irreversibly freezes the content and stamps a sequential certificate
// @Tags Certificates
// @Produce json
// @Param id path string true "Submission ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /submissions/{id}/lock [post]
func (h *CertificateHandler) Lock(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	sub, err := h.service.Lock(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, sub, nil)
}

// Certificate godoc
// @Summary Fetch the certificate of a locked submission
// @Tags Certificates
// @Produce json
// @Param id path string true "Submission ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /submissions/{id}/certificate [get]
func (h *CertificateHandler) Certificate(c *gin.Context) {
	cert, err := h.service.Certificate(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, cert, nil)
}

// Verify godoc
// @Summary Verify a certificate fingerprint
// @Description Recomputes the fingerprint and reports whether it still matches
// @Tags Certificates
// @Produce json
// @Param id path string true "Submission ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /submissions/{id}/certificate/verify [get]
func (h *CertificateHandler) Verify(c *gin.Context) {
	ok, cert, err := h.service.Verify(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"valid": ok, "certificate": cert}, nil)
}

// Export godoc
// @Summary Request a certificate PDF export
// @Description Queues an asynchronous render and returns a signed download URL
// @Tags Certificates
// @Produce json
// @Param id path string true "Submission ID"
// @Success 202 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /submissions/{id}/certificate/export [post]
func (h *CertificateHandler) Export(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	res, err := h.service.RequestExport(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusAccepted, res, nil)
}

// Download godoc
// @Summary Download an exported certificate PDF
// @Tags Certificates
// @Produce application/pdf
// @Param token query string true "Signed download token"
// @Success 200 {file} file
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /certificates/download [get]
func (h *CertificateHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}

	path, err := h.service.ResolveDownload(token)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.FileAttachment(path, "certificate.pdf")
}
