package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fusionn-seer/internal/client/apprise"
	"github.com/fusionn-seer/internal/client/overseerr"
	"github.com/fusionn-seer/internal/config"
	"github.com/fusionn-seer/internal/handler"
	"github.com/fusionn-seer/internal/scheduler"
	"github.com/fusionn-seer/internal/service/availability"
	"github.com/fusionn-seer/internal/service/tracker"
	"github.com/fusionn-seer/internal/version"
	"github.com/fusionn-seer/pkg/logger"
)

func main() {
	// Console logger until the config says where files go
	isDev := os.Getenv("ENV") != "production"
	logger.Init(isDev)
	defer logger.Sync()

	version.PrintBanner(nil)

	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	logger.Infof("📁 Loading config: %s", configPath)
	cfgMgr, err := config.NewManager(configPath)
	if err != nil {
		logger.Fatalf("❌ Config error: %v", err)
	}
	cfg := cfgMgr.Get()

	if err := logger.InitWithFile(isDev, logger.FileConfig{
		Path:       cfg.Log.Path,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	}); err != nil {
		logger.Fatalf("❌ Log file error: %v", err)
	}
	if cfg.Log.Path != "" {
		logger.Infof("📝 Log file: %s", cfg.Log.Path)
	}

	if cfg.Scheduler.DryRun {
		logger.Warn("⚠️  DRY RUN MODE - No actual requests will be made")
	}

	// Initialize Overseerr client
	logger.Info("🔗 Connecting to Overseerr...")
	overseerrClient := overseerr.NewClient(cfg.Overseerr)
	logger.Info("✅  Overseerr configured")

	// Initialize Apprise client (notifications)
	var appriseClient *apprise.Client
	if cfg.Apprise.Enabled {
		appriseClient = apprise.NewClient(cfg.Apprise)
		logger.Infof("🔔 Notifications: enabled (key=%s, tag=%s)", cfg.Apprise.Key, appriseClient.Tag())
	} else {
		logger.Info("🔔 Notifications: disabled")
	}

	availabilityService := availability.NewService(overseerrClient, cfg.Cache, cfg.Scheduler.DryRun)
	logger.Infof("📦 Cache: ttl=%s size=%d concurrency=%d", cfg.Cache.TTL, cfg.Cache.Size, cfg.Cache.Concurrency)

	store := tracker.NewStore(cfg.Tracker.StateFile)
	trackerService := tracker.NewService(availabilityService, appriseClient, store, cfgMgr)
	if cfg.Tracker.Enabled {
		logger.Infof("👁️  Tracker: enabled (%d shows, state=%s)", len(cfg.Tracker.Shows), cfg.Tracker.StateFile)
	} else {
		logger.Info("👁️  Tracker: disabled")
	}

	// Initialize scheduler
	sched := scheduler.New()
	sched.Register("tracker", scheduler.JobFunc(func(ctx context.Context) error {
		_, err := trackerService.Process(ctx)
		if errors.Is(err, tracker.ErrAlreadyRunning) {
			// a manual run via the API is in flight
			return nil
		}
		return err
	}))
	if err := sched.Start(cfg.Scheduler.Cron); err != nil {
		logger.Fatalf("❌ Scheduler error: %v", err)
	}

	cfgMgr.OnChange(func(old, cur *config.Config) {
		availabilityService.SetDryRun(cur.Scheduler.DryRun)
		if old.Scheduler.Cron != cur.Scheduler.Cron {
			if err := sched.Reschedule(cur.Scheduler.Cron); err != nil {
				logger.Errorf("❌ Reschedule failed, keeping %q: %v", old.Scheduler.Cron, err)
			}
		}
	})

	// Initialize HTTP server
	if !isDev {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger())

	var limiter *handler.IPRateLimiter
	stopSweep := make(chan struct{})
	if cfg.Server.RateLimit > 0 {
		limiter = handler.NewIPRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst)
		go limiter.Run(stopSweep)
		logger.Infof("🚦 Rate limit: %.1f req/s per IP (burst %d)", cfg.Server.RateLimit, cfg.Server.RateBurst)
	}

	h := handler.New(availabilityService, trackerService, sched)
	h.RegisterRoutes(router, limiter)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("❌ Server error: %v", err)
		}
	}()

	logger.Infof("🌐 API server: http://localhost:%d", cfg.Server.Port)
	logger.Info("")
	logger.Info("────────────────────────────────────────────────────────────────")
	logger.Info("✅  Ready! Waiting for scheduled runs...")
	logger.Info("────────────────────────────────────────────────────────────────")

	// Run immediately on startup if configured
	if cfg.Scheduler.RunOnStart {
		logger.Info("")
		logger.Info("🚀 Running initial jobs (run_on_start=true)...")
		sched.RunNow()
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("")
	logger.Info("🛑 Shutting down...")

	sched.Stop()
	close(stopSweep)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("❌ Shutdown error: %v", err)
	}

	logger.Info("👋 Goodbye!")
}

// requestLogger returns a gin middleware for logging HTTP requests
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		// Only log non-health endpoints or errors
		status := c.Writer.Status()
		if path != "/api/v1/health" || status >= 400 {
			latency := time.Since(start)
			if status >= 500 {
				logger.Warnf("HTTP %s %s → %d (%v) %s", c.Request.Method, path, status, latency, c.Errors.String())
				return
			}
			logger.Debugf("HTTP %s %s → %d (%v)", c.Request.Method, path, status, latency)
		}
	}
}
