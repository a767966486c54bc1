package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"attendance-register/internal/attendance"
	"attendance-register/internal/auth"
	"attendance-register/internal/classes"
	"attendance-register/internal/config"
	"attendance-register/internal/httpapi"
	"attendance-register/internal/httpmiddleware"
	"attendance-register/internal/kvstore"
	"attendance-register/internal/metrics"
	"attendance-register/internal/photostore"
	"attendance-register/internal/queue"
	"attendance-register/internal/student"
)

func main() {
	cfg := config.Load()
	log := setupLogger(cfg.Env)

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, log); err != nil {
		log.Error("http server failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func runHTTP(cfg config.App, log *slog.Logger) error {
	kv, redisClient, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer kv.Close()

	var q queue.Queue
	switch {
	case cfg.QueueBackend == "memory" || redisClient == nil:
		q = queue.NewInMemory(64)
	default:
		q = queue.NewRedisQueue(redisClient.Client(), "register:marks")
	}

	students := student.NewService(kv, log)
	cls := classes.NewService(kv, log)
	att := attendance.NewService(kv, log)
	users := auth.NewUsers(kv, log)

	// Cloudinary client (nil when not configured)
	var photos *photostore.Client
	if cfg.CloudinaryCloudName != "" && cfg.CloudinaryAPIKey != "" && cfg.CloudinaryAPISecret != "" {
		photos = photostore.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
		log.Info("cloudinary configured", slog.String("cloud", cfg.CloudinaryCloudName))
	} else {
		log.Info("cloudinary not configured, photo uploads disabled")
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(metrics.GinMiddleware())
	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	h := httpapi.New(cfg, kv, students, cls, att, users, photos, q, log)
	h.Register(r)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server started", slog.String("port", cfg.HTTPPort), slog.String("kv", cfg.KVBackend))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced shutdown", slog.String("error", err.Error()))
	}
	log.Info("server exited")
	return nil
}

// openStore selects the KV backend. The redis client is returned
// separately so the queue can share its connection.
func openStore(cfg config.App, log *slog.Logger) (kvstore.Store, *kvstore.RedisStore, error) {
	switch cfg.KVBackend {
	case "postgres":
		kv, err := kvstore.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return kv, nil, nil
	case "memory":
		log.Warn("using in-memory store, data will not survive restarts")
		return kvstore.NewMemory(), nil, nil
	default:
		kv := kvstore.NewRedis(cfg.RedisAddr)
		return kv, kv, nil
	}
}

func setupLogger(env string) *slog.Logger {
	if env == "production" || env == "prod" {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// CORS middleware for browser requests.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
