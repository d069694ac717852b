package handler

import (
	"net/http"

	"numera/internal/apierror"
	"numera/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type LedgersHandler struct{ svc service.LedgerService }

func NewLedgersHandler(svc service.LedgerService) *LedgersHandler {
	return &LedgersHandler{svc: svc}
}

// RegisterLedger returns a cash register's balance and its full entry list.
func (h *LedgersHandler) RegisterLedger(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid id"))
		return
	}
	resp, err := h.svc.RegisterLedger(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// StockLedger returns the movement history of one product.
func (h *LedgersHandler) StockLedger(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid id"))
		return
	}
	resp, err := h.svc.StockLedger(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New("failed to read stock ledger"))
		return
	}
	c.JSON(http.StatusOK, resp)
}
