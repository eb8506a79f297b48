package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"checkout-service/apperrors"
	"checkout-service/controllers"
	"checkout-service/database"
	"checkout-service/events"
	"checkout-service/middleware"
	"checkout-service/models"
	"checkout-service/payments"
	aws_pkg "checkout-service/pkg/aws"
	"checkout-service/repository"
	"checkout-service/routes"
	"checkout-service/services"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const serviceName = "checkout-service"

func main() {
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()

	cfg, err := LoadConfig()
	if err != nil {
		logger.Fatal("Config load failed", zap.Error(err))
	}

	if err := database.Connect(cfg.DSN(), logger,
		&models.Order{}, &models.OrderItem{}, &models.Payment{},
		&models.Coupon{}, &models.CouponUsage{},
		&models.InventoryItem{}, &models.StockMovement{},
		&models.SagaLog{},
	); err != nil {
		logger.Fatal("Database setup failed", zap.Error(err))
	}
	defer database.Close()

	redisClient, err := database.NewRedisClient(context.Background(), cfg.RedisURL)
	if err != nil {
		logger.Fatal("Redis setup failed", zap.Error(err))
	}
	defer redisClient.Close()

	// --- AWS (SNS + CloudWatch); both are optional ---
	var snsClient *aws_pkg.SNSClient
	var metricsClient *aws_pkg.MetricsClient
	if awsCfg, err := aws_pkg.LoadAWSConfig(context.Background()); err != nil {
		logger.Warn("AWS config unavailable, SNS and metrics disabled", zap.Error(err))
	} else {
		snsClient = aws_pkg.NewSNSClient(awsCfg)
		metricsClient = aws_pkg.NewMetricsClient(awsCfg)
	}

	// --- Event publishers ---
	var publishers []events.Publisher
	if snsClient != nil && cfg.OrderSNSTopicArn != "" {
		publishers = append(publishers, events.NewSNSPublisher(snsClient, cfg.OrderSNSTopicArn))
	}
	var kafkaPublisher *events.KafkaPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.OrderEventsTopic, logger)
		publishers = append(publishers, kafkaPublisher)
	}
	publisher := events.NewMultiPublisher(logger, publishers...)

	// --- Repositories and collaborators ---
	db := database.DB
	orderRepo := repository.NewGormOrderRepository(db)
	inventoryRepo := repository.NewGormInventoryRepository(db)
	couponRepo := repository.NewGormCouponUsageRepository(db)
	sagaLogRepo := repository.NewGormSagaLogRepository(db)
	cartRepo := repository.NewRedisCartRepository(redisClient, cfg.CartTTL)

	if cfg.StripeSecretKey == "" {
		logger.Warn("STRIPE_SECRET_KEY not set, refunds will fail at the provider")
	}
	paymentService := payments.NewService(
		repository.NewGormPaymentRepository(db),
		payments.NewStripeGateway(cfg.StripeSecretKey),
		logger,
	)

	deps := services.Dependencies{
		Carts:     cartRepo,
		Inventory: inventoryRepo,
		Coupons:   couponRepo,
		Orders:    orderRepo,
		Payments:  paymentService,
		NewTransaction: func() services.TransactionCoordinator {
			return database.NewGormTransactionCoordinator(db, cfg.TxMaxRetries, cfg.TxRetryBackoff, logger)
		},
		Events:  publisher,
		Journal: sagaLogRepo,
		Metrics: metricsClient,
		Logger:  logger,
	}

	orderController := controllers.NewOrderController(
		services.NewCheckoutService(deps),
		services.NewCancellationService(deps),
		services.NewRefundService(deps),
		services.NewOrderService(orderRepo, sagaLogRepo, logger),
	)
	healthController := controllers.NewHealthController(serviceName, map[string]controllers.HealthCheck{
		"postgres": database.Ping,
		"redis": func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		},
	})

	// --- HTTP router ---
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.RateLimitMiddleware(middleware.NewRateLimiter(rate.Every(time.Minute/100), 50, 5*time.Minute)))
	r.Use(middleware.MetricsMiddleware(metricsClient, serviceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(apperrors.ErrorMiddleware())

	routes.RegisterRoutes(r, orderController, healthController, cfg.JWTSecret)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}

	go func() {
		logger.Info("Checkout Service starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down Checkout Service...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	if kafkaPublisher != nil {
		if err := kafkaPublisher.Close(); err != nil {
			logger.Warn("Kafka writer close failed", zap.Error(err))
		}
	}

	logger.Info("Checkout Service stopped")
}
