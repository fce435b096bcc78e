// Package main runs the headless monitoring agent: it keeps one channel to
// the alert server, aggregates inbound stress readings, and reports
// qualifying high-stress conditions. Optionally it drives the pipeline with a
// synthetic frame source in place of a real camera.
package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/neurometric/backend/config"
	"github.com/neurometric/backend/internal/auth"
	"github.com/neurometric/backend/internal/models"
	"github.com/neurometric/backend/internal/realtime"
	"github.com/neurometric/backend/internal/stress"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	token, err := jwtService.Generate(cfg.Agent.UserID, cfg.Agent.UserName, "agent")
	if err != nil {
		logger.Fatal("sign connection token", zap.Error(err))
	}

	wsURL, err := connectionURL(cfg.Agent.ServerURL, token)
	if err != nil {
		logger.Fatal("parse server url", zap.Error(err))
	}

	channel := realtime.NewChannel(realtime.ChannelConfig{
		URL: wsURL,
		OnStateChange: func(s realtime.ConnectionState) {
			logger.Info("connection state changed", zap.Stringer("state", s))
		},
	}, logger)

	settings := stress.StaticSettings{
		Enabled: cfg.Alerts.Enabled,
		Phone:   cfg.Alerts.HRPhone,
	}
	aggregator := stress.New(stress.Config{
		Identity: stress.Identity{
			UserID:   cfg.Agent.UserID,
			UserName: cfg.Agent.UserName,
			Source:   cfg.Agent.Source,
		},
		LevelThreshold:      cfg.Alerts.LevelThreshold,
		ConfidenceThreshold: cfg.Alerts.ConfidenceThreshold,
		Debounce:            cfg.Alerts.Debounce,
		Cooldown:            cfg.Alerts.Cooldown,
	}, settings, channel, logger)

	channel.On(models.EventStressUpdate, aggregator.HandleUpdate)
	channel.On(models.EventAdminStressAlert, func(data json.RawMessage) {
		var alert models.StressAlert
		if err := json.Unmarshal(data, &alert); err != nil {
			return
		}
		logger.Info("stress alert broadcast received",
			zap.String("user", alert.UserName),
			zap.Float64("level", alert.Level))
	})
	channel.On(models.EventSMSSent, func(json.RawMessage) {
		logger.Info("SMS delivery confirmed")
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go aggregator.Run(ctx)
	channel.Connect()

	if cfg.Agent.SimulateFrames {
		go simulateFrames(ctx, channel, cfg.Agent.FrameInterval, logger)
	}

	status := time.NewTicker(10 * time.Second)
	defer status.Stop()
	for {
		select {
		case <-ctx.Done():
			channel.Disconnect()
			logger.Info("agent stopped")
			return
		case <-status.C:
			s := aggregator.Snapshot()
			logger.Info("status",
				zap.Stringer("connection", channel.State()),
				zap.Float64("stress_level", s.StressLevel),
				zap.String("emotion", s.DominantEmotion),
				zap.Int("history", aggregator.HistoryLen()))
		}
	}
}

// simulateFrames sends synthetic camera frames at the capture cadence. Sends
// are best-effort: frames raised while disconnected are dropped like any
// other outbound event.
func simulateFrames(ctx context.Context, channel *realtime.Channel, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	frame := make([]byte, 64)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rand.Read(frame)
			dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(frame)
			if err := channel.Emit(models.EventVideoFrame, dataURL); err != nil {
				logger.Debug("frame dropped", zap.Error(err))
			}
		}
	}
}

func connectionURL(serverURL, token string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("server url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
