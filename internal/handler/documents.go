package handler

import (
	"net/http"

	"numera/internal/apierror"
	"numera/internal/dto"
	"numera/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type DocumentsHandler struct{ svc service.CertificationService }

func NewDocumentsHandler(svc service.CertificationService) *DocumentsHandler {
	return &DocumentsHandler{svc: svc}
}

// Certify runs a draft through the certification workflow: validation,
// sequence allocation, numbering, fingerprinting and persistence. Side-effect
// warnings ride along in the 201 body — they never fail the request.
func (h *DocumentsHandler) Certify(c *gin.Context) {
	var req dto.CertifyRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Certify(c.Request.Context(), req)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Cancel rectifies a certified document by certifying a corrective document
// (NC, or ND for an NC) and cross-linking the pair.
func (h *DocumentsHandler) Cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid id"))
		return
	}
	var req dto.CancelRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Cancel(c.Request.Context(), id, req)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Liquidate registers a payment against an invoice, certifying a receipt.
func (h *DocumentsHandler) Liquidate(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid id"))
		return
	}
	var req dto.LiquidateRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Liquidate(c.Request.Context(), id, req)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *DocumentsHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid id"))
		return
	}
	resp, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// List returns a paginated, filtered list of documents.
func (h *DocumentsHandler) List(c *gin.Context) {
	var filter dto.DocumentFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
		return
	}
	resp, err := h.svc.List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New("failed to list documents"))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Effects exposes a document's ledger side-effect records so an operator can
// see pending or failed propagation instead of silently drifted ledgers.
func (h *DocumentsHandler) Effects(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid id"))
		return
	}
	resp, err := h.svc.Effects(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New("failed to list effects"))
		return
	}
	c.JSON(http.StatusOK, resp)
}
