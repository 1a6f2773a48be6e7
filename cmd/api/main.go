package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"collegeportal/internal/auth"
	"collegeportal/internal/cloudinary"
	"collegeportal/internal/config"
	"collegeportal/internal/handler"
	"collegeportal/internal/httpmiddleware"
	"collegeportal/internal/metrics"
	"collegeportal/internal/portal"
	"collegeportal/internal/queue"
	"collegeportal/internal/store"
)

func main() {
	bootLog, _ := zap.NewDevelopment()
	cfg := config.Load(bootLog.Warn)

	log := bootLog
	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
		if l, err := zap.NewProduction(); err == nil {
			log = l
		}
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("http server failed", zap.Error(err))
	}
}

// meteredProofs counts proofs that leave the database.
type meteredProofs struct {
	store   portal.ProofStore
	metrics *metrics.Metrics
}

func (p meteredProofs) StoreProof(ctx context.Context, dataURL string) (string, error) {
	ref, err := p.store.StoreProof(ctx, dataURL)
	if err == nil {
		p.metrics.ProofsUploaded.Inc()
	}
	return ref, err
}

func run(cfg config.App, log *zap.Logger) error {
	ctx := context.Background()

	db, err := store.NewDB(ctx, cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	log.Info("database ready", zap.String("driver", cfg.DBDriver))

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()
	if !redisClient.Healthy(ctx) {
		log.Warn("redis not reachable, logout revocation is best effort", zap.String("addr", cfg.RedisAddr))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	var proofs portal.ProofStore
	if cfg.CloudinaryEnabled() {
		cdn := cloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
		proofs = meteredProofs{store: cdn, metrics: m}
		log.Info("cloudinary configured", zap.String("cloud", cfg.CloudinaryCloudName))
	} else {
		log.Info("cloudinary not configured, proofs are stored inline")
	}

	svc := portal.NewService(portal.NewRepository(db.Client), proofs, log)
	if cfg.QueueProofs() {
		svc.WithProofJobs(queue.NewJobs(queue.NewRedisQueue(redisClient.Client, cfg.QueueKey)))
		log.Info("proofs are offloaded by the worker", zap.String("queue", cfg.QueueKey))
	}
	if cfg.SeedDefaults {
		seeded, err := svc.Seed(ctx)
		if err != nil {
			return err
		}
		if seeded {
			log.Warn("seeded default accounts; change their passwords")
		}
	}

	h := handler.New(svc, handler.Options{
		Issuer:         cfg.JWTIssuer,
		SigningKey:     cfg.JWTSigningKey,
		SessionTTL:     cfg.SessionTTL,
		UploadMaxBytes: cfg.UploadMaxBytes,
		SecureCookie:   cfg.Production(),
	}, redisClient, m, log)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestID())
	r.Use(httpmiddleware.Logger(log, "/healthz", "/metrics"))
	r.Use(m.Middleware())
	r.Use(cors.New(cors.Config{
		AllowOriginFunc:  func(string) bool { return true },
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", httpmiddleware.RequestIDHeader},
		ExposeHeaders:    []string{httpmiddleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           24 * time.Hour,
	}))
	r.Use(httpmiddleware.SecurityHeaders())
	r.Use(httpmiddleware.NewIPLimiter(cfg.RateLimitPerMin).GinMiddleware())
	r.Use(auth.Sessions(cfg.JWTSigningKey, cfg.JWTIssuer, redisClient, log))

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	r.GET("/healthz", func(c *gin.Context) {
		dbHealthy := db.Healthy(c.Request.Context())
		redisHealthy := redisClient.Healthy(c.Request.Context())
		status := http.StatusOK
		if !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"success": dbHealthy, "message": "", "db": dbHealthy, "redis": redisHealthy})
	})
	h.Register(r)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("forced shutdown", zap.Error(err))
	}
	return nil
}
