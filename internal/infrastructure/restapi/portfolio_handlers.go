package restapi

import (
	"net/http"
	"strconv"
	"strings"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"

	"github.com/gin-gonic/gin"
)

// APIPortfolioResponse определяет структуру ответа для агрегированного портфеля.
type APIPortfolioResponse struct {
	Assets        []entity.Asset          `json:"assets"`
	ServiceErrors []entity.PortfolioError `json:"service_errors,omitempty"`
	StatusMessage string                  `json:"status_message"`
}

// PortfolioHandler обрабатывает HTTP запросы по конкретной сети и адресу.
type PortfolioHandler struct {
	portfolioService port.PortfolioService
}

// NewPortfolioHandler создает новый экземпляр PortfolioHandler.
func NewPortfolioHandler(ps port.PortfolioService) *PortfolioHandler {
	return &PortfolioHandler{portfolioService: ps}
}

// GetAssetsHandler serves GET /:chain/assets/:address.
func (h *PortfolioHandler) GetAssetsHandler(c *gin.Context) {
	assets, err := h.portfolioService.GetAssets(c.Request.Context(), c.Param("chain"), c.Param("address"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, assets)
}

// GetTransactionsHandler serves GET /:chain/transactions/:address?limit=&offset=.
func (h *PortfolioHandler) GetTransactionsHandler(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		writeError(c, err)
		return
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		writeError(c, err)
		return
	}

	txs, err := h.portfolioService.GetTransactions(c.Request.Context(), c.Param("chain"), c.Param("address"), limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, txs)
}

// GetNftsHandler serves GET /:chain/nfts/:address.
func (h *PortfolioHandler) GetNftsHandler(c *gin.Context) {
	nfts, err := h.portfolioService.GetNfts(c.Request.Context(), c.Param("chain"), c.Param("address"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, nfts)
}

// VerifyContractHandler serves GET /:chain/contract/verify/:address.
func (h *PortfolioHandler) VerifyContractHandler(c *gin.Context) {
	res, err := h.portfolioService.VerifyContract(c.Request.Context(), c.Param("chain"), c.Param("address"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GetPortfolioAssetsHandler serves GET /api/portfolio/assets: every registered wallet, summed per asset.
func (h *PortfolioHandler) GetPortfolioAssetsHandler(c *gin.Context) {
	assets, serviceErrors, err := h.portfolioService.GetPortfolioAssets(c.Request.Context(), entity.DefaultUserID)
	if err != nil {
		writeError(c, err)
		return
	}

	response := APIPortfolioResponse{Assets: assets, ServiceErrors: serviceErrors}
	switch {
	case len(serviceErrors) > 0 && len(assets) == 0:
		response.StatusMessage = "Failed to retrieve any assets due to service errors."
	case len(serviceErrors) > 0:
		response.StatusMessage = "Assets retrieved. Some wallets may have encountered errors."
	case len(assets) == 0:
		response.StatusMessage = "No assets found. Add a wallet first."
	default:
		response.StatusMessage = "Assets retrieved successfully."
	}
	c.JSON(http.StatusOK, response)
}

// queryInt reads an optional non-negative integer query parameter; absent means 0.
func queryInt(c *gin.Context, name string) (int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, entity.NewValidationError(name, "must be a non-negative integer")
	}
	return v, nil
}
