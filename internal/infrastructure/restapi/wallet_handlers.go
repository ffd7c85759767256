package restapi

import (
	"errors"
	"net/http"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"

	"github.com/gin-gonic/gin"
)

// AddWalletRequest is the body of POST /api/wallets.
type AddWalletRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Chain   string `json:"chain"`
}

// WalletHandler обрабатывает управление кошельками.
type WalletHandler struct {
	walletService port.WalletService
}

// NewWalletHandler создает новый экземпляр WalletHandler.
func NewWalletHandler(ws port.WalletService) *WalletHandler {
	return &WalletHandler{walletService: ws}
}

// ListHandler serves GET /api/wallets.
func (h *WalletHandler) ListHandler(c *gin.Context) {
	wallets, err := h.walletService.List(c.Request.Context(), entity.DefaultUserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, wallets)
}

// AddHandler serves POST /api/wallets.
func (h *WalletHandler) AddHandler(c *gin.Context) {
	var req AddWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: "Wallet name, address, and chain are required."})
		return
	}

	w, err := h.walletService.Add(c.Request.Context(), entity.DefaultUserID, req.Name, req.Address, req.Chain)
	if err != nil {
		if errors.Is(err, entity.ErrDuplicateKey) {
			c.AbortWithStatusJSON(http.StatusConflict, ErrorResponse{Error: "Wallet already exists."})
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, w)
}

// DeleteHandler serves DELETE /api/wallets/:id.
func (h *WalletHandler) DeleteHandler(c *gin.Context) {
	err := h.walletService.Delete(c.Request.Context(), entity.DefaultUserID, c.Param("id"))
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, ErrorResponse{Error: "Wallet not found."})
			return
		}
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
