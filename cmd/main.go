package main

import (
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/Mohamed-Elfar/LEDGERLY/internal/handler"
	"github.com/Mohamed-Elfar/LEDGERLY/internal/middleware"
	"github.com/Mohamed-Elfar/LEDGERLY/internal/service"
	"github.com/Mohamed-Elfar/LEDGERLY/pkg/config"
	"github.com/Mohamed-Elfar/LEDGERLY/pkg/database"
	"github.com/Mohamed-Elfar/LEDGERLY/pkg/jwtutil"
	"github.com/Mohamed-Elfar/LEDGERLY/pkg/logger"
	"github.com/Mohamed-Elfar/LEDGERLY/pkg/mailer"
	"github.com/Mohamed-Elfar/LEDGERLY/prometheus"
)

func main() {
	// Load configuration from .env file and environment variables
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger with config
	logger.InitLogger(cfg)
	log := logger.GetLogger()
	log.Info("Starting ledgerly service...", zap.String("environment", cfg.Server.Env))

	// Connect to the database; the handle is owned here and injected into
	// every service.
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	log.Info("Database connection established")

	// Initialize JWT utility
	jwtutil.Initialize(&cfg.JWT)
	log.Info("JWT utility initialized")

	// Collaborators and services
	mail := mailer.New(cfg.SMTP, log)
	ledgerSvc := service.NewLedgerService(db, log)
	customerSvc := service.NewCustomerService(db, log, ledgerSvc)
	identitySvc := service.NewIdentityService(db, log, mail, cfg.Auth.RequireEmailConfirm)
	membershipSvc := service.NewMembershipService(db, log, mail)
	orgSvc := service.NewOrganizationService(db, log, identitySvc)

	authHandler := handler.NewAuthHandler(identitySvc, membershipSvc)
	customerHandler := handler.NewCustomerHandler(customerSvc, ledgerSvc)
	transactionHandler := handler.NewTransactionHandler(ledgerSvc)
	membershipHandler := handler.NewMembershipHandler(membershipSvc)
	organizationHandler := handler.NewOrganizationHandler(orgSvc)

	// Initialize Echo framework
	e := echo.New()

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.RequestIDMiddleware)
	e.Use(logger.Middleware(log))
	e.Use(prometheus.MetricsMiddleware())

	// Public routes - no authentication required
	e.GET("/health", handler.HealthCheck)
	e.GET("/metrics", handler.MetricsHandler)

	// Authentication routes
	auth := e.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/confirm", authHandler.Confirm)
	auth.POST("/login", authHandler.Login)

	// API routes - all require authentication
	api := e.Group("/api")
	api.Use(middleware.AuthMiddleware)

	api.GET("/profile", authHandler.GetProfile)
	api.POST("/change-password", authHandler.ChangePassword)

	// Org-scoped operations - require active membership
	org := api.Group("")
	org.Use(middleware.RequireOrgContext)

	org.POST("/customers", customerHandler.Create)
	org.PUT("/customers", customerHandler.Upsert)
	org.GET("/customers", customerHandler.List)
	org.GET("/customers/:id/transactions", customerHandler.History)

	org.POST("/transactions/debt", transactionHandler.ApplyDebt)
	org.POST("/transactions/payment", transactionHandler.ApplyPayment)

	org.GET("/join-requests", membershipHandler.ListPending)
	org.POST("/join-requests/:id/approve", membershipHandler.Approve)
	org.POST("/join-requests/:id/reject", membershipHandler.Reject)

	org.DELETE("/organization", organizationHandler.Delete)

	// Start server
	port := cfg.Server.Port
	log.Info("Starting server", zap.String("port", port))
	if err := e.Start(":" + port); err != nil {
		log.Fatal("Failed to start server", zap.Error(err))
	}
}
