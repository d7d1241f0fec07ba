// Package main runs the wedding RSVP HTTP server with the live feed and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/evermore-events/backend/config"
	"github.com/evermore-events/backend/internal/app"
	"github.com/evermore-events/backend/internal/audit"
	"github.com/evermore-events/backend/internal/auth"
	"github.com/evermore-events/backend/internal/backfill"
	"github.com/evermore-events/backend/internal/dashboard"
	"github.com/evermore-events/backend/internal/events"
	"github.com/evermore-events/backend/internal/guests"
	"github.com/evermore-events/backend/internal/invitations"
	"github.com/evermore-events/backend/internal/metrics"
	"github.com/evermore-events/backend/internal/middleware"
	"github.com/evermore-events/backend/internal/models"
	"github.com/evermore-events/backend/internal/notificationlogs"
	"github.com/evermore-events/backend/internal/notifications"
	"github.com/evermore-events/backend/internal/notifications/whatsapp"
	"github.com/evermore-events/backend/internal/passes"
	"github.com/evermore-events/backend/internal/realtime"
	"github.com/evermore-events/backend/internal/rsvp"
	"github.com/evermore-events/backend/internal/weddingconfig"
	"github.com/evermore-events/backend/internal/weddings"
	"github.com/evermore-events/backend/pkg/database"
	"github.com/evermore-events/backend/pkg/queue"
)

func main() {
	logger := app.NewLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	infra, err := app.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("infrastructure", zap.Error(err))
	}
	defer infra.Close()

	if err := database.Migrate(ctx, infra.Pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	listCache := app.NewCache(cfg, infra.Redis, m, logger)
	auditWriter := audit.NewWriter(audit.NewRepository(infra.Pool), logger)
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	jobQueue := queue.NewQueue(infra.Redis.Client, logger)

	redisPubSub := realtime.NewRedisPubSub(infra.Redis.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)

	// Auth
	authRepo := auth.NewRepository(infra.Pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Weddings and events
	weddingRepo := weddings.NewRepository(infra.Pool)
	weddingHandler := weddings.NewHandler(weddingRepo, authRepo, logger)
	eventHandler := events.NewHandler(events.NewRepository(infra.Pool), logger)

	// Configuration
	configService := weddingconfig.NewService(weddingconfig.NewRepository(infra.Pool), auditWriter, logger)
	configHandler := weddingconfig.NewHandler(configService, logger)

	// Invitations and guests
	invitationRepo := invitations.NewRepository(infra.Pool)
	invitationService := invitations.NewService(invitationRepo, configService, listCache, auditWriter, hub, cfg.Cache.ListTTL, logger)
	invitationHandler := invitations.NewHandler(invitationService, logger)
	guestService := guests.NewService(guests.NewRepository(infra.Pool), invitationService, listCache, auditWriter, cfg.Notify.DefaultCountryCode, cfg.Cache.ListTTL, logger)
	guestHandler := guests.NewHandler(guestService, logger)

	// Notifications
	logRepo := notificationlogs.NewRepository(infra.Pool)
	notifier := app.NewNotifier(ctx, cfg, infra.Redis, app.NotifierDeps{
		Invitations: invitationRepo,
		Configs:     configService,
		Logs:        logRepo,
		Auditor:     auditWriter,
		Metrics:     m,
	}, logger)
	defer notifier.Close()
	notificationHandler := notifications.NewHandler(notifier.Service, jobQueue, logger)
	logHandler := notificationlogs.NewHandler(logRepo)

	// RSVP
	passGenerator := passes.NewGenerator(infra.Objects, cfg.App.PublicURL, logger)
	rsvpService := rsvp.NewService(rsvp.Deps{
		Store:     rsvp.NewRepository(infra.Pool),
		Loader:    invitationRepo,
		Configs:   configService,
		Passes:    passGenerator,
		Confirmer: notifier.Service,
		Auditor:   auditWriter,
		Publisher: hub,
		Cache:     listCache,
		Metrics:   m,
		Logger:    logger,
	})
	rsvpHandler := rsvp.NewHandler(rsvpService, logger)

	// Invite-code backfill
	backfillService := backfill.NewService(backfill.NewRepository(infra.Pool), invitationService.Codes(),
		backfill.NewRedisLocker(infra.Redis.Client), infra.Objects, auditWriter, listCache, cfg.Notify.BackfillLockTTL, logger)
	backfillHandler := backfill.NewHandler(backfillService, jobQueue, logger)

	dashboardHandler := dashboard.NewHandler(dashboard.NewService(dashboard.NewRepository(infra.Pool), logRepo, configService, hub, cfg.Notify.DashboardTimeout, logger))
	auditHandler := audit.NewHandler(auditWriter)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Metrics(m))

	router.GET("/health", app.HealthHandler(infra.HealthChecks()))
	router.GET("/metrics", gin.WrapH(m.Handler()))

	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
		authGroup.GET("/me", middleware.JWT(jwtService), authHandler.Me)
	}

	// Guest-facing, resolved by wedding slug
	public := router.Group("/w/:slug", middleware.ResolveWeddingSlug(weddingRepo))
	{
		public.POST("/rsvp", rsvpHandler.Submit)
		public.GET("/invitations/:token", rsvpHandler.View)
	}

	api := router.Group("", middleware.JWT(jwtService))
	{
		api.GET("/weddings", weddingHandler.ListMine)
		api.POST("/weddings", weddingHandler.Create)
		if notifier.WhatsApp != nil {
			api.GET("/whatsapp/pairing-qr", middleware.RequireRole(models.RoleAdmin), whatsapp.PairingQRHandler(notifier.WhatsApp))
		}
	}

	wedding := api.Group("/weddings/:id", middleware.RequireWeddingAccess(weddingRepo, logger))
	{
		wedding.GET("", weddingHandler.Get)
		wedding.GET("/members", weddingHandler.ListMembers)
		wedding.GET("/events", eventHandler.List)
		wedding.GET("/config", configHandler.Get)
		wedding.GET("/guests", guestHandler.List)
		wedding.GET("/guests/:guestId", guestHandler.Get)
		wedding.GET("/invitations", invitationHandler.List)
		wedding.GET("/invitations/:invitationId", invitationHandler.Get)
		wedding.GET("/notification-logs", logHandler.List)
		wedding.GET("/audit-logs", auditHandler.List)
		wedding.GET("/dashboard", dashboardHandler.Get)
		wedding.GET("/invite-codes/backfill", backfillHandler.Status)
		wedding.GET("/live", realtime.ServeWs(hub, logger))
	}

	editor := wedding.Group("", middleware.RequireWeddingEditor())
	{
		editor.PATCH("", weddingHandler.Update)
		editor.POST("/members", weddingHandler.AddMember)
		editor.POST("/events", eventHandler.Create)

		editor.PATCH("/config", configHandler.Update)
		editor.DELETE("/config", configHandler.Reset)

		editor.POST("/guests", guestHandler.Create)
		editor.POST("/guests/import", guestHandler.Import)
		editor.PUT("/guests/:guestId", guestHandler.Update)
		editor.DELETE("/guests/:guestId", guestHandler.Delete)

		editor.POST("/invitations", invitationHandler.Create)
		editor.POST("/invitations/bulk-delete", invitationHandler.BulkDelete)
		editor.PATCH("/invitations/:invitationId", invitationHandler.Update)
		editor.DELETE("/invitations/:invitationId", invitationHandler.Delete)
		editor.POST("/invitations/:invitationId/token", invitationHandler.RegenerateToken)
		editor.POST("/invitations/:invitationId/send", notificationHandler.Send)
		editor.PATCH("/invitation-events/:eventRowId", invitationHandler.UpdateEvent)
		editor.POST("/invitation-events/:eventRowId/token", invitationHandler.RegenerateEventToken)

		editor.POST("/notifications/bulk", notificationHandler.SendBulk)
		editor.POST("/invite-codes/backfill", backfillHandler.Run)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}
