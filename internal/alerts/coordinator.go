package alerts

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/neurometric/backend/internal/models"
	"github.com/neurometric/backend/internal/notify"
)

// Broadcaster fans events out to connected clients. Satisfied by
// realtime.Hub.
type Broadcaster interface {
	BroadcastAll(event string, payload interface{})
	SendToClient(clientID, event string, payload interface{})
}

// Coordinator multiplexes inbound high-stress reports into a broadcast to all
// connected clients plus at most one notification call per event. It is
// stateless across events: the 30-second cooldown is enforced by the
// reporting client, and nothing is deduplicated here.
type Coordinator struct {
	hub          Broadcaster
	notifier     notify.Notifier
	defaultPhone string
	log          *Log
	logger       *zap.Logger
}

// NewCoordinator creates the coordinator. notifier and log may be nil.
func NewCoordinator(hub Broadcaster, notifier notify.Notifier, defaultPhone string, log *Log, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		hub:          hub,
		notifier:     notifier,
		defaultPhone: defaultPhone,
		log:          log,
		logger:       logger,
	}
}

// HandleReport processes one report_high_stress event. The identical raw
// payload is rebroadcast to every connected client (sender included) before
// anything else; notification-provider failures are logged and swallowed so
// the connection stays healthy and later events keep flowing.
func (c *Coordinator) HandleReport(ctx context.Context, senderID string, payload json.RawMessage) {
	var alert models.StressAlert
	if err := json.Unmarshal(payload, &alert); err != nil {
		c.logger.Warn("malformed stress report", zap.String("sender", senderID), zap.Error(err))
		return
	}

	c.logger.Info("high stress reported",
		zap.String("user", alert.UserName),
		zap.Float64("level", alert.Level),
		zap.String("emotion", alert.DetectedEmotion))

	c.hub.BroadcastAll(models.EventAdminStressAlert, payload)

	if c.log != nil {
		c.log.Add(alert)
	}

	phone := alert.HRPhone
	if phone == "" {
		phone = c.defaultPhone
	}
	if c.notifier == nil || phone == "" {
		c.logger.Info("skipped SMS: no notifier or target phone configured")
		return
	}

	body := fmt.Sprintf(
		"NEUROMETRIC ALERT: %s has detected High Stress levels (%.0f%%). Check dashboard immediately.",
		alert.UserName, alert.Level*100,
	)
	if err := c.notifier.Send(ctx, phone, body); err != nil {
		c.logger.Error("failed to send SMS", zap.String("to", phone), zap.Error(err))
		return
	}
	c.hub.SendToClient(senderID, models.EventSMSSent, models.SMSSent{Success: true})
}
