package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"

	"github.com/joao-fontenele/luvoir-pos/internal/cart"
	"github.com/joao-fontenele/luvoir-pos/internal/catalog"
	"github.com/joao-fontenele/luvoir-pos/internal/config"
	"github.com/joao-fontenele/luvoir-pos/internal/customers"
	"github.com/joao-fontenele/luvoir-pos/internal/messaging"
	"github.com/joao-fontenele/luvoir-pos/internal/orders"
	"github.com/joao-fontenele/luvoir-pos/internal/telemetry"
)

const (
	serviceName    = "pos"
	serviceVersion = "0.1.0"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load("8080")
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	if cfg.OTLPEndpoint != "" {
		shutdownTracer, err := telemetry.InitTracerProvider(ctx, cfg.OTLPEndpoint, serviceName, serviceVersion)
		if err != nil {
			logger.Error("failed to initialize tracer", "error", err)
			os.Exit(1)
		}
		defer func() { _ = shutdownTracer(ctx) }()
	}

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider(serviceName, serviceVersion)
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	cartMetrics, err := telemetry.NewCartMetrics(otel.Meter("pos/cart"))
	if err != nil {
		logger.Error("failed to create cart metrics", "error", err)
		os.Exit(1)
	}

	store := catalog.NewMemoryStore()
	if cfg.PostgresURL != "" {
		if err := importCatalog(ctx, cfg, store, logger); err != nil {
			logger.Error("failed to import catalog", "error", err)
			os.Exit(1)
		}
	}

	history := orders.NewMemoryHistory()
	directory := customers.NewMemoryDirectory()

	engine, err := cart.NewEngine(ctx, store, history,
		cart.WithTaxRate(cfg.TaxRate),
		cart.WithMetrics(cartMetrics),
	)
	if err != nil {
		logger.Error("failed to create cart engine", "error", err)
		os.Exit(1)
	}

	var publisher cart.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		producer := messaging.NewProducer(cfg.KafkaBrokers, cfg.OrderCompletedTopic)
		defer func() { _ = producer.Close() }()
		publisher = producer
	}

	cartHandler := cart.NewHandler(engine, directory, publisher, logger)
	catalogHandler := catalog.NewHandler(store, logger)
	customerHandler := customers.NewHandler(directory, logger)
	orderHandler := orders.NewHandler(history, cfg.RecentOrdersLimit, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /cart", telemetry.WithHTTPRoute(cartHandler.HandleGet))
	mux.HandleFunc("POST /cart/lines", telemetry.WithHTTPRoute(cartHandler.HandleAddLine))
	mux.HandleFunc("DELETE /cart/lines/{productId}", telemetry.WithHTTPRoute(cartHandler.HandleRemoveLine))
	mux.HandleFunc("DELETE /cart", telemetry.WithHTTPRoute(cartHandler.HandleClear))
	mux.HandleFunc("POST /cart/reset", telemetry.WithHTTPRoute(cartHandler.HandleReset))
	mux.HandleFunc("POST /cart/checkout", telemetry.WithHTTPRoute(cartHandler.HandleCheckout))

	mux.HandleFunc("GET /products", telemetry.WithHTTPRoute(catalogHandler.HandleList))
	mux.HandleFunc("GET /products/{id}", telemetry.WithHTTPRoute(catalogHandler.HandleGet))
	mux.HandleFunc("PUT /products/{id}", telemetry.WithHTTPRoute(catalogHandler.HandleUpsert))
	mux.HandleFunc("DELETE /products/{id}", telemetry.WithHTTPRoute(catalogHandler.HandleDelete))

	mux.HandleFunc("GET /customers", telemetry.WithHTTPRoute(customerHandler.HandleList))
	mux.HandleFunc("GET /customers/{id}", telemetry.WithHTTPRoute(customerHandler.HandleGet))
	mux.HandleFunc("PUT /customers/{id}", telemetry.WithHTTPRoute(customerHandler.HandleUpsert))
	mux.HandleFunc("DELETE /customers/{id}", telemetry.WithHTTPRoute(customerHandler.HandleDelete))

	mux.HandleFunc("GET /orders", telemetry.WithHTTPRoute(orderHandler.HandleRecent))
	mux.HandleFunc("GET /orders/{id}", telemetry.WithHTTPRoute(orderHandler.HandleGet))

	mux.Handle("GET /metrics", metricsHandler)

	server := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: otelhttp.NewHandler(mux, serviceName,
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if r.Pattern != "" {
					return r.Pattern
				}
				return r.Method + " " + r.URL.Path
			}),
		),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting pos service", "port", cfg.Port, "tax_rate", cfg.TaxRate.String(), "events", publisher != nil)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}

func importCatalog(ctx context.Context, cfg config.Config, store catalog.Store, logger *slog.Logger) error {
	db, err := telemetry.OpenDB(ctx, "postgres", cfg.PostgresURL)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	loader := catalog.NewPostgresLoader(db, cfg.CatalogSchema)
	n, err := loader.Seed(ctx, store, cfg.CatalogProductIDs...)
	if err != nil {
		return err
	}

	logger.Info("catalog imported", "products", n, "schema", cfg.CatalogSchema)
	return nil
}
