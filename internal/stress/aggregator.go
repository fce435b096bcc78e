package stress

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/neurometric/backend/internal/models"
)

const (
	defaultLevelThreshold      = 0.7
	defaultConfidenceThreshold = 0.6
	defaultDebounce            = 150 * time.Millisecond
	defaultCooldown            = 30 * time.Second
	updateQueueSize            = 64
)

// Emitter sends named events upstream. Satisfied by realtime.Channel.
type Emitter interface {
	Emit(event string, payload interface{}) error
}

// Identity describes the monitored subject, supplied by the external auth
// collaborator.
type Identity struct {
	UserID   string
	UserName string
	Source   string
}

// Config tunes the aggregator's alert policy. Zero values fall back to the
// production defaults.
type Config struct {
	Identity            Identity
	LevelThreshold      float64
	ConfidenceThreshold float64
	Debounce            time.Duration
	Cooldown            time.Duration
	HistoryCap          int
	Now                 func() time.Time
}

func (c *Config) withDefaults() {
	if c.LevelThreshold <= 0 {
		c.LevelThreshold = defaultLevelThreshold
	}
	if c.ConfidenceThreshold <= 0 {
		c.ConfidenceThreshold = defaultConfidenceThreshold
	}
	if c.Debounce <= 0 {
		c.Debounce = defaultDebounce
	}
	if c.Cooldown <= 0 {
		c.Cooldown = defaultCooldown
	}
	if c.HistoryCap <= 0 {
		c.HistoryCap = HistoryCap
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// State is the UI-facing view derived from the most recent accepted reading.
type State struct {
	StressLevel     float64
	DominantEmotion string
	ModelConfidence float64
	FaceDetected    bool
	LastInference   time.Time
}

// Aggregator turns the raw inbound stress_update stream into bounded state
// plus a rate-limited outbound alert signal. All mutation happens on the Run
// loop; readings are handed over through a queue so handler callbacks never
// block the channel's dispatch goroutine.
type Aggregator struct {
	cfg      Config
	settings Settings
	emitter  Emitter
	logger   *zap.Logger

	updates chan Reading

	mu      sync.RWMutex
	state   State
	history *History

	// lastAlert is touched only by the Run loop. The cooldown is wall-clock
	// based, not acknowledgment based: a dropped emit still arms it.
	lastAlert time.Time
}

// New creates an aggregator. Call Run to start processing.
func New(cfg Config, settings Settings, emitter Emitter, logger *zap.Logger) *Aggregator {
	cfg.withDefaults()
	return &Aggregator{
		cfg:      cfg,
		settings: settings,
		emitter:  emitter,
		logger:   logger,
		updates:  make(chan Reading, updateQueueSize),
		state:    State{DominantEmotion: "No Data"},
		history:  NewHistory(cfg.HistoryCap),
	}
}

// HandleUpdate consumes one raw stress_update payload. Malformed or
// out-of-range readings are discarded silently: no history mutation, no state
// update, no propagation. Matches realtime.Handler.
func (a *Aggregator) HandleUpdate(data json.RawMessage) {
	r, err := parseReading(data, a.cfg.Now())
	if err != nil {
		a.logger.Debug("discarded invalid stress reading", zap.Error(err))
		return
	}
	select {
	case a.updates <- r:
	default:
		a.logger.Warn("reading queue full, dropping update")
	}
}

// Run processes readings and evaluates the alert predicate until ctx is
// cancelled. The debounce timer restarts on every accepted reading, so only
// the most recent reading in any quiet window is evaluated.
func (a *Aggregator) Run(ctx context.Context) {
	timer := time.NewTimer(a.cfg.Debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	pending := false
	for {
		select {
		case <-ctx.Done():
			return
		case r := <-a.updates:
			a.apply(r)
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(a.cfg.Debounce)
			pending = true
		case <-timer.C:
			if pending {
				pending = false
				a.evaluate()
			}
		}
	}
}

func (a *Aggregator) apply(r Reading) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history.Append(r)
	a.state = State{
		StressLevel:     r.Level,
		DominantEmotion: r.Emotion,
		ModelConfidence: r.Confidence,
		FaceDetected:    r.FaceDetected,
		LastInference:   r.CapturedAt,
	}
}

// evaluate fires at most one report per cooldown window. The cooldown arms
// even when the emit is dropped while disconnected: at-most-one-per-window,
// not at-least-once.
func (a *Aggregator) evaluate() {
	a.mu.RLock()
	s := a.state
	a.mu.RUnlock()

	now := a.cfg.Now()
	if !s.FaceDetected ||
		s.StressLevel <= a.cfg.LevelThreshold ||
		s.ModelConfidence <= a.cfg.ConfidenceThreshold ||
		now.Sub(a.lastAlert) <= a.cfg.Cooldown ||
		!a.settings.AlertsEnabled() {
		return
	}

	alert := models.StressAlert{
		UserID:          a.cfg.Identity.UserID,
		UserName:        a.cfg.Identity.UserName,
		Level:           s.StressLevel,
		DetectedEmotion: s.DominantEmotion,
		Confidence:      s.ModelConfidence,
		Timestamp:       now,
		HRPhone:         a.settings.HRPhone(),
		Source:          a.cfg.Identity.Source,
	}
	if err := a.emitter.Emit(models.EventReportHighStress, alert); err != nil {
		a.logger.Warn("high stress report dropped", zap.Error(err))
	} else {
		a.logger.Info("reported high stress",
			zap.Float64("level", s.StressLevel),
			zap.String("emotion", s.DominantEmotion))
	}
	a.lastAlert = now
}

// Snapshot returns the current derived state.
func (a *Aggregator) Snapshot() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// HistorySnapshot returns a copy of the rolling reading window, oldest first.
func (a *Aggregator) HistorySnapshot() []Reading {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.history.Entries()
}

// HistoryLen returns the number of retained readings.
func (a *Aggregator) HistoryLen() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.history.Len()
}
