package main

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"checkout-service/internal/config"
	"checkout-service/internal/controllers/http"
	"checkout-service/internal/infra"
	"checkout-service/internal/infra/cache"
	"checkout-service/internal/infra/metrics"
	mmysql "checkout-service/internal/infra/mysql"
	"checkout-service/internal/infra/rabbitmq"
	"checkout-service/internal/pkg/telemetry"
	mysqlrepo "checkout-service/internal/repository/mysql"
	"checkout-service/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const serviceName = "checkout-service"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	telemetry.InitLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.SetupTracer(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		slog.Error("tracer setup failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(sctx); err != nil {
			slog.Warn("tracer shutdown", "error", err)
		}
	}()

	db, err := mmysql.NewMySQL(cfg.MySQL)
	if err != nil {
		slog.Error("db: connect", "error", err)
		os.Exit(1)
	}

	orderRepo := mysqlrepo.NewOrderRepository(db)
	productRepo := mysqlrepo.NewProductRepository(db)
	cartRepo := mysqlrepo.NewCartRepository(db)

	var publisher rabbitmq.PublisherInterface = rabbitmq.LogPublisher{}
	if cfg.RabbitMQURL != "" {
		p, err := rabbitmq.NewPublisher(cfg.RabbitMQURL, cfg.OrderExchange)
		if err != nil {
			slog.Error("failed to init publisher", "error", err)
			os.Exit(1)
		}
		defer p.Close()
		publisher = p
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:         cfg.RedisAddr,
			DB:           0,
			PoolSize:     200,
			MinIdleConns: 20,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			slog.Warn("redis unreachable, continuing without cache", "addr", cfg.RedisAddr, "error", err)
		}
		defer redisClient.Close()
	}
	redisCache := cache.NewRedisCache(redisClient, serviceName)

	m := metrics.New("service")
	clock := services.SystemClock{}
	ledger := services.NewStockLedger(productRepo)

	state := services.NewOrderStateMachine(orderRepo, ledger, publisher, clock)
	state.SetCache(redisCache)
	state.SetMetrics(m)

	checkout := services.NewCheckoutService(services.CheckoutDeps{
		Snapshots: services.NewCartSnapshotter(cartRepo, productRepo, clock),
		Ledger:    ledger,
		Factory:   services.NewOrderFactory(services.NewOrderNumberGenerator(clock, rand.Uint32N(10000)), clock),
		State:     state,
		Orders:    orderRepo,
		Gateway:   infra.NewPaymentGateway(cfg.Gateway),
		Publisher: publisher,
		Guard:     redisCache,
		Metrics:   m,
		Currency:  cfg.Gateway.Currency,
	})

	orders := services.NewOrderService(orderRepo, state)
	orders.SetCache(redisCache)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), otelgin.Middleware(serviceName), http.RequestMetrics(m))
	r.GET("/metrics", gin.WrapH(m.Handler()))
	http.NewHandler(checkout, orders).RegisterRoutes(r)

	srv := &nethttp.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("starting checkout service", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			slog.Error("server run", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		slog.Error("server shutdown", "error", err)
	}
}
