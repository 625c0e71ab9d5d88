package router

import (
	"github.com/gin-gonic/gin"
	"github.com/velaro/ordersync/internal/infrastructure/config"
	"github.com/velaro/ordersync/internal/infrastructure/logger"
	"github.com/velaro/ordersync/internal/interfaces/http/handler"
	"github.com/velaro/ordersync/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// Handlers are the handlers served by the engine
type Handlers struct {
	Orders      *handler.OrderHandler
	Conversions *handler.ConversionHandler
	Health      *handler.HealthHandler
}

// EngineOptions configure the middleware chain
type EngineOptions struct {
	HTTP        config.HTTPConfig
	ServiceName string
	Tracing     bool
	// LazyReaper is set when expired queue orders should be reaped after
	// internal requests
	LazyReaper middleware.QueueReaper
}

// NewEngine builds the gin engine with the middleware chain and all routes
func NewEngine(opts EngineOptions, handlers Handlers, log *zap.Logger) (*gin.Engine, error) {
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(opts.HTTP.TrustedProxies); err != nil {
		return nil, err
	}

	engine.Use(logger.Recovery(log))
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: opts.ServiceName,
		Enabled:     opts.Tracing,
	}))
	engine.Use(middleware.SpanErrorMarker())
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.TracingAttributeInjector())
	if opts.HTTP.MaxBodySize > 0 {
		engine.Use(middleware.BodyLimit(opts.HTTP.MaxBodySize))
	}

	engine.GET("/health", handlers.Health.Health)

	r := NewRouter(engine)
	r.Register(InternalRoutes(handlers, opts.LazyReaper))
	r.Setup()

	return engine, nil
}

// InternalRoutes returns the /internal group of the operations API
func InternalRoutes(handlers Handlers, lazyReaper middleware.QueueReaper) *DomainGroup {
	internal := NewDomainGroup("internal", "/internal")
	if lazyReaper != nil {
		internal.Use(middleware.LazyReap(lazyReaper))
	}

	orders := internal.Group("orders", "/orders")
	orders.POST("/reap", handlers.Orders.Reap)
	orders.GET("/:id", handlers.Orders.Get)
	orders.POST("/:id/confirm", handlers.Orders.Confirm)
	orders.POST("/:id/cancel", handlers.Orders.Cancel)
	orders.POST("/:id/uncancel", handlers.Orders.Uncancel)
	orders.POST("/:id/hold", handlers.Orders.Hold)
	orders.POST("/:id/unhold", handlers.Orders.Unhold)
	orders.POST("/:id/resync", handlers.Orders.Resync)
	orders.POST("/:id/finalize", handlers.Orders.Finalize)
	orders.POST("/:id/promote", handlers.Orders.Promote)
	orders.POST("/:id/conversions/purchase", handlers.Conversions.SendPurchase)

	conversions := internal.Group("conversions", "/conversions")
	conversions.POST("/sweep", handlers.Conversions.Sweep)
	conversions.GET("/outbox/stats", handlers.Conversions.GetStats)

	return internal
}
