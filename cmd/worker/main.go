// Package main runs the background job worker (bulk invitation sends, invite-code backfills).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/evermore-events/backend/config"
	"github.com/evermore-events/backend/internal/app"
	"github.com/evermore-events/backend/internal/audit"
	"github.com/evermore-events/backend/internal/backfill"
	"github.com/evermore-events/backend/internal/invitations"
	"github.com/evermore-events/backend/internal/notificationlogs"
	"github.com/evermore-events/backend/internal/weddingconfig"
	"github.com/evermore-events/backend/internal/worker"
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

	// No Prometheus registry here; collectors are nil-safe.
	listCache := app.NewCache(cfg, infra.Redis, nil, logger)
	auditWriter := audit.NewWriter(audit.NewRepository(infra.Pool), logger)
	configService := weddingconfig.NewService(weddingconfig.NewRepository(infra.Pool), auditWriter, logger)
	invitationRepo := invitations.NewRepository(infra.Pool)
	codes := invitations.NewCodeGenerator(invitationRepo, 0)

	notifier := app.NewNotifier(ctx, cfg, infra.Redis, app.NotifierDeps{
		Invitations: invitationRepo,
		Configs:     configService,
		Logs:        notificationlogs.NewRepository(infra.Pool),
		Auditor:     auditWriter,
	}, logger)
	defer notifier.Close()

	backfillService := backfill.NewService(backfill.NewRepository(infra.Pool), codes,
		backfill.NewRedisLocker(infra.Redis.Client), infra.Objects, auditWriter, listCache, cfg.Notify.BackfillLockTTL, logger)

	jobQueue := queue.NewQueue(infra.Redis.Client, logger)
	processor := worker.NewProcessor(jobQueue, notifier.Service, backfillService, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		processor.Run(workerCtx)
		close(done)
	}()
	logger.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		logger.Warn("worker did not stop in time")
	}
	logger.Info("worker stopped")
}
