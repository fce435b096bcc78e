package stress

import (
	"encoding/json"
	"errors"
	"math"
	"time"

	"github.com/neurometric/backend/internal/models"
)

var errInvalidReading = errors.New("invalid stress reading")

// Reading is one validated inference result. CapturedAt is assigned at
// receipt, not by the inference source. Immutable after creation.
type Reading struct {
	Level        float64
	Emotion      string
	Confidence   float64
	FaceDetected bool
	CapturedAt   time.Time
}

// updatePayload mirrors the stress_update wire shape with a pointer level so
// a missing field is distinguishable from zero.
type updatePayload struct {
	Level        *float64 `json:"level"`
	Emotion      string   `json:"emotion"`
	Confidence   float64  `json:"confidence"`
	FaceDetected bool     `json:"face_detected"`
}

// parseReading validates a raw stress_update payload. Out-of-range or
// non-numeric levels reject the whole reading; nothing is clamped. When the
// server reports no face (or the sentinel emotion), the raw values are never
// surfaced: level is forced to 0 and the emotion to the sentinel.
func parseReading(data json.RawMessage, now time.Time) (Reading, error) {
	var p updatePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return Reading{}, err
	}
	if p.Level == nil || math.IsNaN(*p.Level) || *p.Level < 0 || *p.Level > 1 {
		return Reading{}, errInvalidReading
	}

	r := Reading{CapturedAt: now}
	if p.FaceDetected && p.Emotion != models.NoFaceLabel {
		r.Level = *p.Level
		r.Emotion = p.Emotion
		r.Confidence = p.Confidence
		r.FaceDetected = true
	} else {
		r.Emotion = models.NoFaceLabel
	}
	return r, nil
}
