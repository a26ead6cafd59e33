package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/lingua-api/internal/handler"
	"github.com/noah-isme/lingua-api/internal/middleware"
	"github.com/noah-isme/lingua-api/internal/service"
	"github.com/noah-isme/lingua-api/pkg/config"
	"github.com/noah-isme/lingua-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/lingua-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/lingua-api/pkg/middleware/requestid"
)

type routes struct {
	auth     *service.AuthService
	metrics  *service.MetricsService
	checkout *handler.CheckoutHandler
	webhook  *handler.WebhookHandler
	cohorts  *handler.CohortHandler
	learner  *handler.LearnerHandler
	admin    *handler.AdminHandler
	receipts *handler.ReceiptHandler
	health   *handler.MetricsHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, rt routes) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(rt.metrics))

	r.GET("/health", rt.health.Health)
	r.GET("/ready", rt.health.Ready)
	r.GET("/metrics", rt.health.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/stripe/webhook", rt.webhook.Stripe)
	api.POST("/checkout/session", rt.checkout.Session)
	api.POST("/checkout/price", rt.checkout.Price)
	api.GET("/cohorts", rt.cohorts.List)
	api.GET("/receipts/:token", rt.receipts.Download)

	me := api.Group("/me")
	me.Use(middleware.JWT(rt.auth))
	me.GET("/enrollments", rt.learner.Enrollments)
	me.GET("/credits", rt.learner.Credits)
	me.GET("/purchases", rt.learner.Purchases)
	me.POST("/lessons", rt.learner.BookLesson)

	admin := api.Group("/admin")
	admin.Use(middleware.JWT(rt.auth), middleware.RequireAdmin(rt.auth))
	admin.GET("/purchases", rt.admin.Purchases)
	admin.GET("/purchases/export", middleware.Audit(logr, "purchases.export"), rt.admin.ExportPurchases)
	admin.POST("/credits", middleware.Audit(logr, "credits.adjust"), rt.admin.AdjustCredits)
	admin.POST("/holds/purge", middleware.Audit(logr, "holds.purge"), rt.admin.PurgeHolds)

	return r
}
