package restapi

import (
	"net/http"

	"portfolio_aggregator/internal/infrastructure/configloader"
	"portfolio_aggregator/internal/infrastructure/metrics"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// Handlers groups the route handlers of the API.
type Handlers struct {
	Portfolio *PortfolioHandler
	Wallets   *WalletHandler
	Markets   *MarketHandler
}

// SetupRouter настраивает и возвращает экземпляр Gin роутера.
func SetupRouter(cfg *configloader.Config, h Handlers, m *metrics.Metrics, zapLogger *zap.Logger) *gin.Engine {
	router := gin.New()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Server.CORSAllowedOrigins
	if len(corsConfig.AllowOrigins) == 0 || corsConfig.AllowOrigins[0] == "*" {
		corsConfig.AllowOrigins = nil
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	router.Use(cors.New(corsConfig))

	router.Use(ZapLoggerMiddleware(zapLogger))
	router.Use(MetricsMiddleware(m))
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(m.Handler()))

	api := router.Group("/api")
	{
		wallets := api.Group("/wallets")
		wallets.GET("", h.Wallets.ListHandler)
		wallets.POST("", h.Wallets.AddHandler)
		wallets.DELETE("/:id", h.Wallets.DeleteHandler)

		api.GET("/portfolio/assets", h.Portfolio.GetPortfolioAssetsHandler)

		markets := api.Group("/markets")
		markets.GET("/coin/:coinId", h.Markets.CoinDetailsHandler)
		markets.GET("/coin/:coinId/market-chart", h.Markets.MarketChartHandler)
		markets.GET("/coingecko/global", h.Markets.GlobalHandler)
		markets.GET("/coingecko/coins/markets", h.Markets.CoinsMarketsHandler)
		markets.GET("/coingecko/trending", h.Markets.TrendingHandler)
		markets.GET("/coingecko/treasury/:coinId", h.Markets.TreasuryHandler)
		markets.GET("/cmc/global-metrics", h.Markets.CMCGlobalMetricsHandler)
		markets.GET("/cmc/global-metrics/historical", h.Markets.CMCGlobalMetricsHistoricalHandler)
		markets.GET("/cmc/listings", h.Markets.CMCListingsHandler)
	}

	portfolio := router.Group("/portfolio")
	{
		portfolio.POST("/history", h.Markets.PortfolioHistoryHandler)
		portfolio.GET("/asset-history/:coingeckoId", h.Markets.AssetHistoryHandler)
	}

	if cfg.Swagger.Enabled && cfg.Swagger.SpecPath != "" {
		// Спецификация отдается статическим файлом, swag init не используется
		router.StaticFile("/docs/swagger.yaml", cfg.Swagger.SpecPath)
		router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/docs/swagger.yaml")))
	}

	// /:chain пересекается с /api и /portfolio, статические сегменты имеют приоритет
	chain := router.Group("/:chain")
	{
		chain.GET("/assets/:address", h.Portfolio.GetAssetsHandler)
		chain.GET("/transactions/:address", h.Portfolio.GetTransactionsHandler)
		chain.GET("/nfts/:address", h.Portfolio.GetNftsHandler)
		chain.GET("/contract/verify/:address", h.Portfolio.VerifyContractHandler)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Not found."})
	})
	return router
}
