package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/teilehaus/searchsync/internal/availability"
	"github.com/teilehaus/searchsync/internal/catalog"
	"github.com/teilehaus/searchsync/internal/config"
	"github.com/teilehaus/searchsync/internal/event"
	"github.com/teilehaus/searchsync/internal/gateway"
	"github.com/teilehaus/searchsync/internal/gateway/meili"
	"github.com/teilehaus/searchsync/internal/gateway/memory"
	"github.com/teilehaus/searchsync/internal/handler"
	"github.com/teilehaus/searchsync/internal/hierarchy"
	syncpkg "github.com/teilehaus/searchsync/internal/sync"
	"github.com/teilehaus/searchsync/pkg/health"
	"github.com/teilehaus/searchsync/pkg/httpclient"
	"github.com/teilehaus/searchsync/pkg/kafka"
	"github.com/teilehaus/searchsync/pkg/middleware"
)

const shutdownTimeout = 15 * time.Second

// App wires the sync pipeline together and owns its runtime: the HTTP
// server, the event consumers, and the reconciliation schedule.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	gw        gateway.IndexGateway
	rebuilder *syncpkg.Rebuilder
	server    *http.Server
	consumers []*kafka.Consumer
	scheduler *cron.Cron
}

// New constructs the full dependency graph from configuration. Nothing
// touches the network until Run.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	var gw gateway.IndexGateway
	switch cfg.Engine {
	case config.EngineMemory:
		gw = memory.New()
	default:
		gw = meili.New(meili.Config{Host: cfg.MeiliHost, APIKey: cfg.MeiliAPIKey}, logger)
	}

	httpCfg := httpclient.DefaultConfig()
	httpCfg.Timeout = cfg.ExternalCallTimeout

	catalogClient := catalog.NewHTTPClient(cfg.CatalogBaseURL, httpclient.NewCircuitBreakerClient(
		httpclient.New(httpCfg), httpclient.DefaultCircuitBreakerConfig("catalog"), logger))
	inventoryClient := availability.NewHTTPInventoryClient(cfg.InventoryBaseURL, httpclient.NewCircuitBreakerClient(
		httpclient.New(httpCfg), httpclient.DefaultCircuitBreakerConfig("inventory"), logger))

	resolver := hierarchy.NewResolver(catalogClient, cfg.PublicSalesChannelID, cfg.VisibilityPageSize, logger)
	aggregator := availability.NewAggregator(inventoryClient, cfg.PublicSalesChannelID, logger)

	products := syncpkg.NewProductSource(catalogClient, resolver, aggregator, cfg.ProductIndex, logger)
	categories := syncpkg.NewCategorySource(catalogClient, resolver, cfg.CategoryIndex, logger)
	orch := syncpkg.NewOrchestrator(gw, cfg.SyncPageSize, logger)
	rebuilder := syncpkg.NewRebuilder(gw, orch, categories, products, logger)
	reconciler := syncpkg.NewReconciler(catalogClient, orch, products, categories, syncpkg.ReconcilerConfig{
		Window:    cfg.ReconcileWindow,
		ChunkSize: cfg.ReconcileChunkSize,
	}, logger)

	triggers := event.NewTriggers(catalogClient, resolver, orch, products, categories, gw, cfg.EventChunkSize, logger)
	eventHandler := event.NewHandler(triggers, logger)

	var consumers []*kafka.Consumer
	if cfg.KafkaEnabled {
		store := kafka.NewMemoryIdempotencyStore(cfg.IdempotencyTTL)
		handle := kafka.IdempotentHandler(store, eventHandler.Handle, logger)
		for _, topic := range event.Topics() {
			consumers = append(consumers, kafka.NewConsumer(kafka.ConsumerConfig{
				Brokers: cfg.KafkaBrokers,
				GroupID: cfg.KafkaGroupID,
				Topic:   topic,
			}, handle, logger))
		}
	}

	healthHandler := health.NewHandler()
	healthHandler.Register("index", gw.Ping)
	healthHandler.Register("catalog", catalogClient.Ping)
	healthHandler.Register("inventory", inventoryClient.Ping)
	if cfg.KafkaEnabled {
		healthHandler.Register("kafka", func(ctx context.Context) error {
			return kafka.PingBrokers(ctx, cfg.KafkaBrokers)
		})
	}

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.Environment = cfg.Environment

	router := handler.NewRouter(handler.RouterConfig{
		Search:      handler.NewSearchHandler(gw, cfg.ProductIndex, cfg.CategoryIndex, logger),
		Admin:       handler.NewAdminHandler(orch, rebuilder, products, categories, logger),
		Health:      healthHandler,
		Logger:      logger,
		CORS:        corsCfg,
		ServiceName: cfg.ServiceName,
	})

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(fmt.Sprintf("@every %s", cfg.ReconcileInterval), func() {
		reconciler.Run(context.Background())
	}); err != nil {
		return nil, fmt.Errorf("schedule reconciliation: %w", err)
	}

	return &App{
		cfg:       cfg,
		logger:    logger,
		gw:        gw,
		rebuilder: rebuilder,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
		consumers: consumers,
		scheduler: scheduler,
	}, nil
}

// Run starts the HTTP server, the consumers, and the reconciliation
// schedule, then blocks until the context is canceled and everything has
// shut down.
func (a *App) Run(ctx context.Context) error {
	if a.cfg.ReconfigureOnBoot {
		// Index settings are idempotent; a failure here (engine still
		// booting) is recoverable through the admin endpoint.
		if err := a.rebuilder.Reconfigure(ctx); err != nil {
			a.logger.Warn("initial index configuration failed",
				slog.String("error", err.Error()))
		}
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", slog.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	for _, consumer := range a.consumers {
		go func(c *kafka.Consumer) {
			if err := c.Start(ctx); err != nil {
				a.logger.Error("consumer stopped", slog.String("error", err.Error()))
			}
		}(consumer)
	}

	a.scheduler.Start()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	return a.shutdown()
}

func (a *App) shutdown() error {
	a.logger.Info("shutting down")

	stopCtx := a.scheduler.Stop()
	<-stopCtx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}

	// Consumers observe the canceled run context and close their readers on
	// their own; nothing further to do here.
	a.logger.Info("shutdown complete")
	return nil
}
