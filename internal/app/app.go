// Package app opens the shared infrastructure and builds the notification stack used by
// both the HTTP server and the worker.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/evermore-events/backend/config"
	"github.com/evermore-events/backend/internal/audit"
	"github.com/evermore-events/backend/internal/cache"
	"github.com/evermore-events/backend/internal/invitations"
	"github.com/evermore-events/backend/internal/metrics"
	"github.com/evermore-events/backend/internal/notificationlogs"
	"github.com/evermore-events/backend/internal/notifications"
	"github.com/evermore-events/backend/internal/notifications/email"
	"github.com/evermore-events/backend/internal/notifications/sms"
	"github.com/evermore-events/backend/internal/notifications/whatsapp"
	"github.com/evermore-events/backend/internal/ratelimit"
	"github.com/evermore-events/backend/internal/weddingconfig"
	"github.com/evermore-events/backend/pkg/database"
	"github.com/evermore-events/backend/pkg/redis"
	"github.com/evermore-events/backend/pkg/storage"
)

// NewLogger builds the production zap logger.
func NewLogger() *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := cfg.Build()
	return logger
}

// ObjectStore is what passes and backfill exports need from S3.
type ObjectStore interface {
	PutBytes(ctx context.Context, key, contentType string, data []byte) error
	PresignedURL(ctx context.Context, key string) (string, error)
}

// Infra holds the long-lived connections.
type Infra struct {
	Pool  *pgxpool.Pool
	Redis *redis.Client
	// Objects is nil when no bucket is configured.
	Objects ObjectStore
}

// Open connects to Postgres and Redis and, when a bucket is configured, S3.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Infra, error) {
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), database.PoolOptions{
		MaxConns:        int32(cfg.Database.MaxConns),
		MaxConnLifetime: time.Hour,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	rdb, err := redis.NewClient(ctx, redis.Options{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		DialTimeout:  cfg.Redis.Timeout,
		ReadTimeout:  cfg.Redis.Timeout,
		WriteTimeout: cfg.Redis.Timeout,
	}, logger)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("redis: %w", err)
	}
	in := &Infra{Pool: pool, Redis: rdb}
	if cfg.AWS.Bucket != "" {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			Bucket:               cfg.AWS.Bucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		} else {
			in.Objects = s3Client
		}
	} else {
		logger.Info("no bucket configured; passes are not stored and exports are download-only")
	}
	return in, nil
}

// Close releases every connection.
func (i *Infra) Close() {
	_ = i.Redis.Close()
	i.Pool.Close()
}

// NewCache builds the versioned list cache, falling back to a no-op backend when disabled.
func NewCache(cfg *config.Config, rdb *redis.Client, m *metrics.Metrics, logger *zap.Logger) *cache.Cache {
	var backend cache.Backend = cache.NoopBackend{}
	if cfg.Cache.Enabled {
		backend = cache.NewRedisBackend(rdb.Client)
	}
	return cache.New(backend, cache.NewVersionMemo(cfg.Cache.VersionTTL), cfg.Cache.Namespace, logger, m)
}

// Notifier bundles the orchestrator with the WhatsApp device, if one is enabled.
type Notifier struct {
	Service  *notifications.Service
	WhatsApp *whatsapp.Sender
}

// Close disconnects the WhatsApp device.
func (n *Notifier) Close() {
	if n.WhatsApp != nil {
		n.WhatsApp.Disconnect()
	}
}

// NotifierDeps are the services the orchestrator reads from.
type NotifierDeps struct {
	Invitations *invitations.Repository
	Configs     *weddingconfig.Service
	Logs        *notificationlogs.Repository
	Auditor     *audit.Writer
	Metrics     *metrics.Metrics
}

// NewNotifier wires the adapters that are configured. A disabled or failing adapter leaves its
// channel reporting "not configured" instead of stopping startup.
func NewNotifier(ctx context.Context, cfg *config.Config, rdb *redis.Client, d NotifierDeps, logger *zap.Logger) *Notifier {
	deps := notifications.Deps{
		Loader:             d.Invitations,
		Configs:            d.Configs,
		Gate:               ratelimit.NewGate(d.Logs, cfg.Notify.DailyLimit),
		Logs:               d.Logs,
		Auditor:            d.Auditor,
		Metrics:            d.Metrics,
		Links:              notifications.Links{PublicURL: cfg.App.PublicURL},
		DefaultCountryCode: cfg.Notify.DefaultCountryCode,
		Logger:             logger,
	}
	out := &Notifier{}

	if cfg.Email.Enabled() {
		sender, err := email.NewSender(email.Config{
			Host:        cfg.Email.SMTPHost,
			Port:        cfg.Email.SMTPPort,
			Username:    cfg.Email.SMTPUser,
			Password:    cfg.Email.SMTPPass,
			FromAddress: cfg.Email.FromAddress,
			FromName:    cfg.Email.FromName,
			Timeout:     cfg.Email.Timeout,
		}, logger)
		if err != nil {
			logger.Error("email disabled", zap.Error(err))
		} else {
			deps.Email = sender
		}
	}
	if cfg.SMS.Enabled() {
		deps.SMS = sms.NewSender(sms.Config{
			AccountSID: cfg.SMS.AccountSID,
			AuthToken:  cfg.SMS.AuthToken,
			From:       cfg.SMS.From,
		}, logger)
	}
	if cfg.WhatsApp.Enabled {
		if wa := openWhatsApp(ctx, cfg, logger); wa != nil {
			out.WhatsApp = wa
			deps.WhatsApp = wa
		}
	}
	deps.Checker = registrationChecker(cfg, out.WhatsApp, rdb, logger)
	out.Service = notifications.NewService(deps)
	return out
}

// registrationChecker follows the adapter that actually opened: without a WhatsApp device no
// number counts as registered, so phone sends fall back to SMS.
func registrationChecker(cfg *config.Config, wa *whatsapp.Sender, rdb *redis.Client, logger *zap.Logger) notifications.RegistrationChecker {
	switch {
	case wa == nil:
		return notifications.ConfiguredChecker{Configured: false}
	case cfg.WhatsApp.AssumeRegistered || rdb == nil:
		return notifications.ConfiguredChecker{Configured: true}
	default:
		return notifications.NewCachedChecker(wa, notifications.NewRedisRegistrationCache(rdb.Client), cfg.Notify.RegistrationTTL, logger)
	}
}

func openWhatsApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) *whatsapp.Sender {
	templates, err := whatsapp.NewTemplates(nil)
	if err != nil {
		logger.Error("whatsapp templates", zap.Error(err))
		return nil
	}
	wa, err := whatsapp.NewSender(ctx, whatsapp.Config{StoreDir: cfg.WhatsApp.StoreDir}, templates, logger)
	if err != nil {
		logger.Error("whatsapp disabled", zap.Error(err))
		return nil
	}
	if err := wa.Connect(context.WithoutCancel(ctx)); err != nil {
		logger.Error("whatsapp connect", zap.Error(err))
	}
	return wa
}
