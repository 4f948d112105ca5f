package router

import (
	"net/http"

	"shopcore/internal/config"
	"shopcore/internal/handler"
	"shopcore/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

type route struct {
	Method  string
	Path    string
	Handler gin.HandlerFunc
}

// Handlers groups the HTTP handlers mounted under /api.
type Handlers struct {
	Product   *handler.ProductHandler
	Stock     *handler.StockHandler
	Cart      *handler.CartHandler
	Promotion *handler.PromotionHandler
	Order     *handler.OrderHandler
}

// New registers middleware and routes on engine.
func New(engine *gin.Engine, cfg *config.Config, h Handlers, gatherer prometheus.Gatherer, logger zerolog.Logger) {
	setupMiddleware(engine, cfg, logger)
	setupRoutes(engine, h, gatherer)
}

func setupMiddleware(engine *gin.Engine, cfg *config.Config, logger zerolog.Logger) {
	// Recovery is outermost so it also covers panics in the other middleware.
	engine.Use(middleware.Recovery(logger))
	engine.Use(middleware.CorrelationID())
	engine.Use(middleware.Tracing(cfg.Tracing.ServiceName))
	engine.Use(middleware.CORS(cfg.CORS))
	engine.Use(middleware.Logging(logger))
}

func setupRoutes(engine *gin.Engine, h Handlers, gatherer prometheus.Gatherer) {
	engine.GET("/health", healthCheck)
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := engine.Group("/api")
	{
		addRoutes(api.Group("/products"), []route{
			{Method: http.MethodGet, Path: "", Handler: h.Product.GetAll},
			{Method: http.MethodGet, Path: "/:id", Handler: h.Product.GetByID},
			{Method: http.MethodPost, Path: "/:id/stock/adjust", Handler: h.Stock.Adjust},
			{Method: http.MethodPut, Path: "/:id/stock", Handler: h.Stock.Set},
			{Method: http.MethodGet, Path: "/:id/ledger", Handler: h.Stock.Ledger},
		})

		addRoutes(api, []route{
			{Method: http.MethodPost, Path: "/stock/bulk", Handler: h.Stock.Bulk},
			{Method: http.MethodPost, Path: "/purchases/import", Handler: h.Stock.Import},
		})

		addRoutes(api.Group("/carts"), []route{
			{Method: http.MethodGet, Path: "/:customerId", Handler: h.Cart.Get},
			{Method: http.MethodDelete, Path: "/:customerId", Handler: h.Cart.Clear},
			{Method: http.MethodPost, Path: "/:customerId/items", Handler: h.Cart.AddItem},
			{Method: http.MethodDelete, Path: "/:customerId/items/:productId", Handler: h.Cart.RemoveItem},
		})

		addRoutes(api.Group("/promotions"), []route{
			{Method: http.MethodPost, Path: "/coupons/validate", Handler: h.Promotion.ValidateCoupon},
			{Method: http.MethodPost, Path: "/deals/:id/validate", Handler: h.Promotion.ValidateDeal},
		})

		addRoutes(api.Group("/orders"), []route{
			{Method: http.MethodPost, Path: "", Handler: h.Order.Create},
			{Method: http.MethodGet, Path: "/:id", Handler: h.Order.GetByID},
			{Method: http.MethodPatch, Path: "/:id/status", Handler: h.Order.UpdateStatus},
			{Method: http.MethodPost, Path: "/:id/cancel", Handler: h.Order.Cancel},
			{Method: http.MethodDelete, Path: "/:id", Handler: h.Order.Delete},
		})
	}
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func addRoutes(g *gin.RouterGroup, rs []route) {
	for _, r := range rs {
		g.Handle(r.Method, r.Path, r.Handler)
	}
}
