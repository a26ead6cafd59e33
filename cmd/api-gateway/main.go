package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	_ "github.com/noah-isme/lingua-api/api/swagger"
	"github.com/noah-isme/lingua-api/internal/handler"
	"github.com/noah-isme/lingua-api/internal/repository"
	"github.com/noah-isme/lingua-api/internal/service"
	"github.com/noah-isme/lingua-api/pkg/cache"
	"github.com/noah-isme/lingua-api/pkg/config"
	"github.com/noah-isme/lingua-api/pkg/database"
	"github.com/noah-isme/lingua-api/pkg/events"
	"github.com/noah-isme/lingua-api/pkg/jobs"
	"github.com/noah-isme/lingua-api/pkg/logger"
	"github.com/noah-isme/lingua-api/pkg/mailer"
	"github.com/noah-isme/lingua-api/pkg/payments"
	"github.com/noah-isme/lingua-api/pkg/signing"
)

// @title Lingua API
// @version 1.0.0
// @description Cohort seat holds, checkout and payment settlement for the language school.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server exited with error", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.Stripe.WebhookSecret == "" {
		logr.Warn("STRIPE_WEBHOOK_SECRET is empty; every webhook will be rejected")
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, cohort cache disabled", zap.Error(err))
	}
	cacheRepo := repository.NewCacheRepository(redisClient, "lingua", logr)
	defer cacheRepo.Close() //nolint:errcheck

	metrics := service.NewMetricsService()
	validate := validator.New()

	cohortRepo := repository.NewCohortRepository(db)
	holdRepo := repository.NewHoldRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	purchaseRepo := repository.NewPurchaseRepository(db)
	creditRepo := repository.NewCreditRepository(db)

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Catalog.CacheTTL, logr, redisClient != nil)
	cohortSvc := service.NewCohortService(cohortRepo, cacheSvc, cfg.Catalog.CacheTTL, logr)
	authSvc := service.NewAuthService(service.AuthConfig{
		JWTSecret:   cfg.Auth.JWTSecret,
		Audience:    cfg.Auth.Audience,
		AdminEmails: cfg.Admin.Emails,
	}, logr)

	gateway := payments.NewStripeGateway(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret)
	checkoutSvc := service.NewCheckoutService(holdRepo, gateway, cohortSvc, metrics, validate, logr, service.CheckoutConfig{
		SiteURL:         cfg.SiteURL,
		HoldTTL:         cfg.Checkout.HoldTTL,
		FreeClassPrice:  cfg.Stripe.FreeClassPrice,
		FreeClassCoupon: cfg.Stripe.FreeClassCoupon,
	})

	queue := jobs.NewQueue("notifications", jobs.QueueConfig{
		Workers:    cfg.Email.Workers,
		MaxRetries: cfg.Email.MaxRetries,
		Logger:     logr,
	})
	signer := signing.NewReceiptSigner(cfg.Receipts.LinkSecret, cfg.Receipts.LinkTTL)
	notificationSvc := service.NewNotificationService(queue, newMailer(cfg, logr), signer, metrics, logr, service.NotificationConfig{
		BusinessName:   cfg.Email.FromName,
		ReceiptBaseURL: cfg.Receipts.BaseURL,
	})

	publisher := events.New(cfg.Events.AMQPURL, cfg.Events.Exchange, logr)
	defer publisher.Close() //nolint:errcheck

	settlementSvc := service.NewSettlementService(service.SettlementDeps{
		Parser:       gateway,
		Purchases:    purchaseRepo,
		Credits:      creditRepo,
		Enrollments:  enrollmentRepo,
		Holds:        holdRepo,
		Notifier:     notificationSvc,
		Publisher:    publisher,
		Catalog:      cohortSvc,
		Metrics:      metrics,
		Logger:       logr,
		PriceCredits: cfg.Checkout.PriceCredits,
	})
	learnerSvc := service.NewLearnerService(enrollmentRepo, creditRepo, purchaseRepo, validate, logr)
	adminSvc := service.NewAdminService(purchaseRepo, creditRepo, holdRepo, cohortSvc, metrics, validate, logr)
	receiptSvc := service.NewReceiptService(signer, purchaseRepo, cfg.Checkout.PriceCredits, cfg.Email.FromName, logr)

	queue.Start(ctx)
	defer queue.Stop()
	go service.NewHoldSweeper(adminSvc, cfg.Checkout.HoldSweepInterval, logr).Run(ctx)

	router := newRouter(cfg, logr, routes{
		auth:     authSvc,
		metrics:  metrics,
		checkout: handler.NewCheckoutHandler(checkoutSvc),
		webhook:  handler.NewWebhookHandler(settlementSvc),
		cohorts:  handler.NewCohortHandler(cohortSvc),
		learner:  handler.NewLearnerHandler(learnerSvc),
		admin:    handler.NewAdminHandler(adminSvc),
		receipts: handler.NewReceiptHandler(receiptSvc),
		health:   handler.NewMetricsHandler(metrics, db),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newMailer(cfg *config.Config, logr *zap.Logger) mailer.Mailer {
	if cfg.Email.SendGridAPIKey == "" {
		logr.Info("SENDGRID_API_KEY not set, emails will be logged only")
		return mailer.NewLogMailer(logr)
	}
	return mailer.NewSendGridMailer(cfg.Email.SendGridAPIKey, cfg.Email.FromName, cfg.Email.FromAddress, "")
}
