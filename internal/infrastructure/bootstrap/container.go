// Package bootstrap builds the object graph shared by the HTTP server and
// the syncctl commands.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	conversionapp "github.com/velaro/ordersync/internal/application/conversion"
	fulfillmentapp "github.com/velaro/ordersync/internal/application/fulfillment"
	"github.com/velaro/ordersync/internal/domain/conversion"
	"github.com/velaro/ordersync/internal/domain/integration"
	"github.com/velaro/ordersync/internal/domain/shared"
	"github.com/velaro/ordersync/internal/infrastructure/cache"
	"github.com/velaro/ordersync/internal/infrastructure/config"
	"github.com/velaro/ordersync/internal/infrastructure/event"
	"github.com/velaro/ordersync/internal/infrastructure/helpship"
	"github.com/velaro/ordersync/internal/infrastructure/logger"
	"github.com/velaro/ordersync/internal/infrastructure/messaging"
	"github.com/velaro/ordersync/internal/infrastructure/metacapi"
	"github.com/velaro/ordersync/internal/infrastructure/persistence"
	"github.com/velaro/ordersync/internal/infrastructure/scheduler"
	"github.com/velaro/ordersync/internal/infrastructure/telemetry"
	"github.com/velaro/ordersync/internal/interfaces/http/handler"
	"github.com/velaro/ordersync/internal/interfaces/http/router"
)

// Options adjust what New starts
type Options struct {
	// Version is reported by the health endpoint
	Version string
	// WithScheduler builds the in-process sweep and reap scheduler
	WithScheduler bool
}

// Container holds every long-lived component of the service
type Container struct {
	Config *config.Config
	Logger *zap.Logger

	DB          *persistence.Database
	Idempotency shared.IdempotencyStore
	EventBus    *event.InMemoryEventBus
	NATS        *messaging.NATSClient

	Orders    *fulfillmentapp.OrderService
	Reaper    *fulfillmentapp.QueueReaper
	Purchases *conversionapp.PurchaseService
	Outbox    *conversionapp.RetryScheduler
	Scheduler *scheduler.SyncScheduler

	version string
	tracer  *telemetry.TracerProvider
	meter   *telemetry.MeterProvider
	logs    *telemetry.LoggerProvider
	closers []func(ctx context.Context) error
}

// New wires the service from cfg. On error everything opened so far is closed.
func New(ctx context.Context, cfg *config.Config, opts Options) (c *Container, err error) {
	c = &Container{Config: cfg, version: opts.Version}
	defer func() {
		if err != nil {
			_ = c.Shutdown(context.WithoutCancel(ctx))
			c = nil
		}
	}()

	if err = c.initTelemetry(ctx); err != nil {
		return c, err
	}
	if err = c.initStorage(ctx); err != nil {
		return c, err
	}
	if err = c.initServices(ctx, opts); err != nil {
		return c, err
	}
	return c, nil
}

func (c *Container) initTelemetry(ctx context.Context) error {
	cfg := c.Config
	logCfg := &logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: logger.DefaultTimeFormat,
	}
	bootLog, err := logger.New(logCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	c.Logger = bootLog

	tel := cfg.Telemetry
	c.tracer, err = telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           tel.Enabled,
		CollectorEndpoint: tel.CollectorEndpoint,
		SamplingRatio:     tel.SamplingRatio,
		ServiceName:       tel.ServiceName,
		Insecure:          tel.Insecure,
	}, bootLog)
	if err != nil {
		return fmt.Errorf("failed to initialize tracer provider: %w", err)
	}
	c.closers = append(c.closers, c.tracer.Shutdown)

	c.meter, err = telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           tel.MetricsEnabled,
		CollectorEndpoint: tel.CollectorEndpoint,
		ExportInterval:    tel.MetricsInterval,
		ServiceName:       tel.ServiceName,
		Insecure:          tel.Insecure,
	}, bootLog)
	if err != nil {
		return fmt.Errorf("failed to initialize meter provider: %w", err)
	}
	c.closers = append(c.closers, c.meter.Shutdown)

	c.logs, err = telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           tel.LogsEnabled,
		CollectorEndpoint: tel.CollectorEndpoint,
		ServiceName:       tel.ServiceName,
		Insecure:          tel.Insecure,
		Level:             logger.ParseLevel(tel.LogsLevel),
	}, bootLog)
	if err != nil {
		return fmt.Errorf("failed to initialize logger provider: %w", err)
	}
	c.closers = append(c.closers, c.logs.Shutdown)

	// rebuild the root logger so that it also exports through OTLP
	c.Logger, err = logger.New(logCfg, logger.WithCore(c.logs.Core()), logger.WithName(cfg.App.Name))
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

func (c *Container) initStorage(ctx context.Context) error {
	cfg := c.Config
	log := c.Logger

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level), cfg.Telemetry.DBSlowQueryThresh)
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		return err
	}
	c.DB = db
	c.closers = append(c.closers, func(context.Context) error { return db.Close() })
	log.Info("Database connected successfully")

	tracing := telemetry.DefaultDBTracingConfig()
	tracing.Enabled = cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled
	tracing.LogFullSQL = cfg.Telemetry.DBLogFullSQL
	if cfg.Telemetry.DBSlowQueryThresh > 0 {
		tracing.SlowQueryThresh = cfg.Telemetry.DBSlowQueryThresh
	}
	if err := telemetry.NewDBTracingPlugin(tracing, log).Register(db.DB); err != nil {
		return fmt.Errorf("failed to register database tracing: %w", err)
	}

	sqlDB, err := db.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	unregister, err := telemetry.RegisterPoolMetrics(c.meter.Meter("ordersync/db"), sqlDB.Stats)
	if err != nil {
		return err
	}
	c.closers = append(c.closers, func(context.Context) error { return unregister() })

	c.Idempotency, err = cache.NewIdempotencyStore(ctx, cfg.Redis, cfg.App.Env == "production", log)
	if err != nil {
		return fmt.Errorf("failed to initialize idempotency store: %w", err)
	}
	if closer, ok := c.Idempotency.(interface{ Close() error }); ok {
		c.closers = append(c.closers, func(context.Context) error { return closer.Close() })
	}

	c.NATS, err = messaging.NewNATS(ctx, cfg.NATS)
	if err != nil {
		return err
	}
	if c.NATS != nil {
		nc := c.NATS
		c.closers = append(c.closers, func(context.Context) error { nc.Close(); return nil })
		log.Info("Forwarding order events to NATS", zap.String("stream", cfg.NATS.Stream))
	}
	return nil
}

func (c *Container) initServices(ctx context.Context, opts Options) error {
	cfg := c.Config
	log := c.Logger

	metrics, err := telemetry.NewSyncMetrics(c.meter.Meter("ordersync/sync"))
	if err != nil {
		return err
	}

	orderRepo := persistence.NewGormOrderRepository(c.DB.DB)
	outboxRepo := persistence.NewGormOutboxRepository(c.DB.DB)
	catalog := persistence.NewGormProductCatalog(c.DB.DB)
	pages := persistence.NewGormLandingPageRepository(c.DB.DB)
	stores := persistence.NewGormStoreRepository(c.DB.DB)

	wms, err := c.wmsGateway()
	if err != nil {
		return err
	}
	metaCfg := metaConfig(cfg.Meta)
	capi, err := metacapi.NewClient(metaCfg, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize conversions client: %w", err)
	}

	c.EventBus = event.NewInMemoryEventBus(log.Named("events"))
	if err := c.EventBus.Start(ctx); err != nil {
		return err
	}
	c.closers = append(c.closers, c.EventBus.Stop)

	syncer := fulfillmentapp.NewWMSSyncer(pages, stores, catalog, wms, log)
	syncer.SetMetrics(metrics)
	c.Orders = fulfillmentapp.NewOrderService(orderRepo, syncer, c.Idempotency, c.EventBus, log)
	c.Orders.SetSyncLeaseTTL(syncLeaseTTL(helpshipConfig(cfg.Helpship)))

	c.Reaper = fulfillmentapp.NewQueueReaper(orderRepo, c.Orders, c.Idempotency, cfg.Reaper, log)
	c.Reaper.SetMetrics(metrics)

	policy := retryPolicy(cfg.Outbox)
	resolver := conversionapp.NewCredentialResolver(pages, stores)
	c.Purchases = conversionapp.NewPurchaseService(orderRepo, outboxRepo, resolver, metacapi.NewPurchaseBuilder(metaCfg), capi, policy, log)
	c.Purchases.SetMetrics(metrics)
	c.Outbox = conversionapp.NewRetryScheduler(outboxRepo, orderRepo, resolver, capi, policy, cfg.Outbox.SweepLimit, log)
	c.Outbox.SetMetrics(metrics)
	c.Outbox.SetClaimTimeout(claimTimeout(metaCfg, c.Outbox.Limit()))

	onSync := event.NewIdempotentHandler(
		conversionapp.NewPurchaseOnSyncHandler(c.Purchases, log),
		c.Idempotency,
		log,
	)
	c.EventBus.Subscribe(onSync, onSync.EventTypes()...)
	if c.NATS != nil {
		forwarder := c.NATS.Forwarder(log.Named("nats"))
		c.EventBus.Subscribe(forwarder, forwarder.EventTypes()...)
	}

	if opts.WithScheduler {
		c.Scheduler = scheduler.NewSyncScheduler(cfg.Scheduler, c.Outbox, c.Reaper, c.Idempotency, log.Named("scheduler"))
	}
	return nil
}

// wmsGateway returns the Helpship client. Without credentials outside
// production every sync fails with a not-configured reason instead.
func (c *Container) wmsGateway() (integration.WMSGateway, error) {
	hc := helpshipConfig(c.Config.Helpship)
	client, err := helpship.New(hc)
	switch {
	case err == nil:
		return client, nil
	case c.Config.App.Env != "production" &&
		(errors.Is(err, helpship.ErrConfigMissingClientID) || errors.Is(err, helpship.ErrConfigMissingClientSecret)):
		c.Logger.Warn("Helpship credentials not set, order sync is disabled")
		return helpship.Unconfigured{}, nil
	default:
		return nil, fmt.Errorf("failed to initialize helpship client: %w", err)
	}
}

// Engine builds the HTTP engine with the order, conversion and health handlers
func (c *Container) Engine() (*gin.Engine, error) {
	checks := []handler.HealthCheck{{Name: "database", Check: c.DB.Ping}}
	if pinger, ok := c.Idempotency.(interface{ Ping(context.Context) error }); ok {
		checks = append(checks, handler.HealthCheck{Name: "redis", Check: pinger.Ping})
	}

	handlers := router.Handlers{
		Orders:      handler.NewOrderHandler(c.Orders, c.Reaper),
		Conversions: handler.NewConversionHandler(c.Purchases, c.Outbox),
		Health:      handler.NewHealthHandler(c.version, checks...),
	}
	opts := router.EngineOptions{
		HTTP:        c.Config.HTTP,
		ServiceName: c.Config.Telemetry.ServiceName,
		Tracing:     c.tracer.IsEnabled(),
	}
	if c.Config.Reaper.LazyEnabled {
		opts.LazyReaper = c.Reaper
	}
	return router.NewEngine(opts, handlers, c.Logger)
}

// Shutdown stops background work and closes resources in reverse order of
// creation. Every closer runs; their errors are joined.
func (c *Container) Shutdown(ctx context.Context) error {
	var errs []error
	if c.Scheduler != nil {
		if err := c.Scheduler.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("scheduler: %w", err))
		}
	}
	if c.Reaper != nil {
		c.Reaper.Wait()
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	if c.Logger != nil {
		_ = c.Logger.Sync()
	}
	return errors.Join(errs...)
}

func helpshipConfig(cfg config.HelpshipConfig) *helpship.Config {
	hc := helpship.NewConfig(cfg.ClientID, cfg.ClientSecret)
	if cfg.Environment == string(helpship.EnvironmentDevelopment) {
		hc = helpship.NewDevelopmentConfig(cfg.ClientID, cfg.ClientSecret)
	}
	hc.Scope = cfg.Scope
	if cfg.TokenBaseURL != "" {
		hc.TokenBaseURL = cfg.TokenBaseURL
	}
	if cfg.APIBaseURL != "" {
		hc.APIBaseURL = cfg.APIBaseURL
	}
	if cfg.Currency != "" {
		hc.Currency = cfg.Currency
	}
	if cfg.Country != "" {
		hc.Country = cfg.Country
	}
	if cfg.TimeoutSeconds > 0 {
		hc.TimeoutSeconds = cfg.TimeoutSeconds
	}
	return hc
}

// syncLeaseTTL covers a token fetch and a create call, both at the request timeout
func syncLeaseTTL(hc *helpship.Config) time.Duration {
	return 2*time.Duration(hc.TimeoutSeconds)*time.Second + time.Minute
}

// claimTimeout covers a whole sweep of limit deliveries at the request timeout
func claimTimeout(mc *metacapi.Config, limit int) time.Duration {
	return time.Duration(limit*mc.TimeoutSeconds)*time.Second + time.Minute
}

func metaConfig(cfg config.MetaConfig) *metacapi.Config {
	mc := metacapi.NewConfig()
	if cfg.GraphBaseURL != "" {
		mc.GraphBaseURL = cfg.GraphBaseURL
	}
	if cfg.APIVersion != "" {
		mc.APIVersion = cfg.APIVersion
	}
	if cfg.DefaultRegion != "" {
		mc.DefaultRegion = cfg.DefaultRegion
	}
	if cfg.Currency != "" {
		mc.Currency = cfg.Currency
	}
	if cfg.TimeoutSeconds > 0 {
		mc.TimeoutSeconds = cfg.TimeoutSeconds
	}
	return mc
}

func retryPolicy(cfg config.OutboxConfig) conversion.RetryPolicy {
	policy := conversion.DefaultRetryPolicy()
	if cfg.MaxAttempts > 0 {
		policy.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.BaseDelay > 0 {
		policy.BaseDelay = cfg.BaseDelay
	}
	if cfg.Multiplier > 0 {
		policy.Multiplier = cfg.Multiplier
	}
	return policy
}
