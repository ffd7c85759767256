package restapi

import (
	"net/http"
	"strings"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"

	"github.com/gin-gonic/gin"
)

const marketUnavailable = "Market data unavailable"

// HistoryRequest is the body of POST /portfolio/history.
type HistoryRequest struct {
	Assets []entity.HistoryHolding `json:"assets"`
	// Days is accepted both as a JSON number and as a string.
	Days entity.RawJSON `json:"days,omitempty"`
}

func (r HistoryRequest) days() string {
	raw := strings.TrimSpace(string(r.Days))
	if raw == "null" {
		return ""
	}
	return strings.Trim(raw, `"`)
}

// MarketHandler обрабатывает рыночные данные и историю портфеля.
type MarketHandler struct {
	marketService port.MarketService
}

// NewMarketHandler создает новый экземпляр MarketHandler.
func NewMarketHandler(ms port.MarketService) *MarketHandler {
	return &MarketHandler{marketService: ms}
}

// writeDocument responds with an upstream document or 502 when none could be fetched.
func writeDocument(c *gin.Context, doc entity.RawJSON) {
	if doc == nil {
		c.AbortWithStatusJSON(http.StatusBadGateway, ErrorResponse{Error: marketUnavailable})
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", doc)
}

func (h *MarketHandler) CoinDetailsHandler(c *gin.Context) {
	writeDocument(c, h.marketService.CoinDetails(c.Request.Context(), c.Param("coinId")))
}

func (h *MarketHandler) MarketChartHandler(c *gin.Context) {
	chart := h.marketService.MarketChart(c.Request.Context(), c.Param("coinId"), c.Query("days"))
	if chart == nil {
		c.AbortWithStatusJSON(http.StatusBadGateway, ErrorResponse{Error: marketUnavailable})
		return
	}
	c.JSON(http.StatusOK, chart)
}

func (h *MarketHandler) GlobalHandler(c *gin.Context) {
	writeDocument(c, h.marketService.Global(c.Request.Context()))
}

func (h *MarketHandler) CoinsMarketsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, h.marketService.CoinsMarkets(c.Request.Context()))
}

func (h *MarketHandler) TrendingHandler(c *gin.Context) {
	writeDocument(c, h.marketService.Trending(c.Request.Context()))
}

func (h *MarketHandler) TreasuryHandler(c *gin.Context) {
	writeDocument(c, h.marketService.CompanyTreasury(c.Request.Context(), c.Param("coinId")))
}

func (h *MarketHandler) CMCGlobalMetricsHandler(c *gin.Context) {
	writeDocument(c, h.marketService.CMCGlobalMetrics(c.Request.Context()))
}

func (h *MarketHandler) CMCGlobalMetricsHistoricalHandler(c *gin.Context) {
	writeDocument(c, h.marketService.CMCGlobalMetricsHistorical(c.Request.Context()))
}

func (h *MarketHandler) CMCListingsHandler(c *gin.Context) {
	writeDocument(c, h.marketService.CMCListings(c.Request.Context()))
}

// PortfolioHistoryHandler serves POST /portfolio/history.
func (h *MarketHandler) PortfolioHistoryHandler(c *gin.Context) {
	var req HistoryRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Assets) == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid assets array"})
		return
	}
	c.JSON(http.StatusOK, h.marketService.PortfolioHistory(c.Request.Context(), req.Assets, req.days()))
}

// AssetHistoryHandler serves GET /portfolio/asset-history/:coingeckoId.
func (h *MarketHandler) AssetHistoryHandler(c *gin.Context) {
	c.JSON(http.StatusOK, h.marketService.AssetHistory(c.Request.Context(), c.Param("coingeckoId"), c.Query("days")))
}
