package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"collegeportal/internal/cloudinary"
	"collegeportal/internal/config"
	"collegeportal/internal/portal"
	"collegeportal/internal/queue"
	"collegeportal/internal/store"
)

// Worker consumes proof jobs and moves inline proofs to Cloudinary.
func main() {
	log, _ := zap.NewDevelopment()
	cfg := config.Load(log.Warn)
	if cfg.Production() {
		if l, err := zap.NewProduction(); err == nil {
			log = l
		}
	}
	defer func() { _ = log.Sync() }()

	if !cfg.CloudinaryEnabled() {
		log.Fatal("cloudinary is not configured; nothing to offload proofs to")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.NewDB(ctx, cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("db connect failed", zap.Error(err))
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()

	q := queue.NewRedisQueue(redisClient.Client, cfg.QueueKey)
	q.OnError = func(err error) { log.Warn("queue error", zap.Error(err)) }

	cdn := cloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
	svc := portal.NewService(portal.NewRepository(db.Client), cdn, log)

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatal("queue consume init failed", zap.Error(err))
	}

	log.Info("worker started", zap.String("queue", cfg.QueueKey))
	Process(ctx, messages, svc, log)
	log.Info("worker stopped")
}

// Offloader is the part of the portal service the worker drives.
type Offloader interface {
	OffloadProof(ctx context.Context, permissionID int64) (bool, error)
}

// Process handles messages until the channel closes.
func Process(ctx context.Context, messages <-chan queue.Message, svc Offloader, log *zap.Logger) {
	for msg := range messages {
		if msg.Type != queue.TypeProof {
			log.Debug("skipping message", zap.String("type", msg.Type))
			continue
		}
		id, err := msg.PermissionID()
		if err != nil {
			log.Warn("bad proof job", zap.String("body", msg.Body), zap.Error(err))
			continue
		}
		moved, err := svc.OffloadProof(ctx, id)
		if err != nil {
			log.Warn("offload proof failed", zap.Int64("permission_id", id), zap.Error(err))
			continue
		}
		if moved {
			log.Info("proof offloaded", zap.Int64("permission_id", id))
		}
	}
}
