package main // Entry point package

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/marketplace-checkout/internal/checkout"
	"github.com/iliyamo/marketplace-checkout/internal/config"
	"github.com/iliyamo/marketplace-checkout/internal/database"
	"github.com/iliyamo/marketplace-checkout/internal/handler"
	"github.com/iliyamo/marketplace-checkout/internal/middleware"
	"github.com/iliyamo/marketplace-checkout/internal/payments"
	"github.com/iliyamo/marketplace-checkout/internal/queue"
	"github.com/iliyamo/marketplace-checkout/internal/repository"
	"github.com/iliyamo/marketplace-checkout/internal/router"
	queue_publisher "github.com/iliyamo/marketplace-checkout/internal/service"
	"github.com/iliyamo/marketplace-checkout/internal/sweeper"
)

// notifier adapts the queue publisher functions to the interface the
// checkout service consumes.
type notifier struct{}

func (notifier) OrderPlaced(ctx context.Context, ev queue.OrderPlacedEvent) error {
	return queue_publisher.PublishOrderPlaced(ctx, ev)
}

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient() // nil when redis is unreachable; features degrade

	stockRepo := repository.NewStockRepo(db)
	holdRepo := repository.NewReservationRepo(db, stockRepo)
	cartRepo := repository.NewCartRepo(db)
	couponRepo := repository.NewCouponRepo(db)
	discountRepo := repository.NewBulkDiscountRepo(db)
	orderRepo := repository.NewOrderRepo(db, stockRepo, holdRepo, couponRepo, cartRepo)

	var gateway payments.Gateway
	if cfg.StripeSecretKey != "" {
		gateway = payments.NewStripeClient(cfg.StripeSecretKey)
	} else {
		log.Println("stripe: no secret key configured; orders will commit payment-pending")
	}

	checkoutSvc := checkout.NewService(stockRepo, cartRepo, couponRepo, discountRepo, orderRepo, gateway, notifier{})

	cartHandler := handler.NewCartHandler(cartRepo, stockRepo, holdRepo, cfg.HoldTTL)
	checkoutHandler := handler.NewCheckoutHandler(checkoutSvc)
	orderHandler := handler.NewOrderHandler(orderRepo)
	inventoryHandler := handler.NewVendorInventoryHandler(stockRepo)
	couponHandler := handler.NewCouponHandler(couponRepo)
	webhookHandler := handler.NewWebhookHandler(orderRepo, rdb, cfg.StripeWebhookSecret)

	e := echo.New()
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	router.RegisterRoutes(e)
	router.RegisterPublic(e, checkoutHandler, couponHandler, webhookHandler)
	router.RegisterCustomer(e, cfg.JWTSecret, cartHandler, checkoutHandler, orderHandler)
	router.RegisterVendor(e, cfg.JWTSecret, inventoryHandler, orderHandler)
	router.RegisterAdmin(e, cfg.JWTSecret, couponHandler)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sweeper.New(holdRepo, cfg.SweepInterval).Run(ctx)
	go func() {
		if err := queue.StartOrderConsumer(); err != nil {
			log.Printf("order-consumer: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	go func() {
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
