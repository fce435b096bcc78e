// Package main runs the stress alerting server: WebSocket fan-out hub, alert
// coordinator, and SMS notification gateway with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/neurometric/backend/config"
	"github.com/neurometric/backend/internal/alerts"
	"github.com/neurometric/backend/internal/auth"
	"github.com/neurometric/backend/internal/inference"
	"github.com/neurometric/backend/internal/middleware"
	"github.com/neurometric/backend/internal/notify"
	"github.com/neurometric/backend/internal/realtime"
	"github.com/neurometric/backend/pkg/redis"
	"github.com/neurometric/backend/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()

	var pub realtime.AlertPublisher
	var sub realtime.AlertSubscriber
	if cfg.Redis.Addr != "" {
		rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
		bridge := realtime.NewRedisPubSub(rdb.Client, logger)
		pub, sub = bridge, bridge
	}

	hub := realtime.NewHub(logger, pub, sub)
	defer hub.Close()

	var notifier notify.Notifier
	if cfg.Twilio.AccountSID != "" && cfg.Twilio.AuthToken != "" {
		notifier = notify.NewTwilioNotifier(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.FromNumber, logger)
	} else {
		logger.Warn("Twilio not configured, SMS delivery disabled")
	}

	alertLog := alerts.NewLog(alerts.DefaultLogCap)
	coordinator := alerts.NewCoordinator(hub, notifier, cfg.Alerts.HRPhone, alertLog, logger)
	alertHandler := alerts.NewHandler(alertLog)
	classifier := inference.NewStubClassifier()

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	jwtValidate := func(token string) (userID, name, role string, err error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return "", "", "", err
		}
		return claims.UserID, claims.Name, claims.Role, nil
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	api := router.Group("/api")
	api.Use(middleware.JWT(jwtService))
	{
		api.GET("/stats", func(c *gin.Context) {
			response.OK(c, gin.H{"connected_clients": hub.ClientCount()})
		})
		api.GET("/alerts/recent", middleware.RequireRole("hr", "admin"), alertHandler.Recent)
		api.PATCH("/alerts/:id/resolve", middleware.RequireRole("hr", "admin"), alertHandler.Resolve)
	}

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws", realtime.ServeWs(hub, logger, jwtValidate, coordinator, classifier))

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

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
