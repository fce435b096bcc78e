// Package inference holds the frame classification collaborator. The real
// deployment plugs a served emotion model in here; the bundled stub keeps the
// pipeline runnable without one.
package inference

import (
	"hash/fnv"

	"github.com/neurometric/backend/internal/models"
)

// emotionStress maps detected emotions to stress intensity, higher for
// negative emotions. Values follow the FER2013 Mini-XCEPTION deployment.
var emotionStress = map[string]float64{
	"angry":    0.85,
	"fear":     0.8,
	"sad":      0.7,
	"surprise": 0.5,
	"neutral":  0.4,
	"happy":    0.2,
}

var emotions = []string{"angry", "fear", "sad", "surprise", "neutral", "happy"}

// StubClassifier is a deterministic stand-in for the emotion model: the same
// frame bytes always yield the same reading. Frames under minFrameBytes are
// treated as containing no face.
type StubClassifier struct {
	minFrameBytes int
}

const defaultMinFrameBytes = 16

// NewStubClassifier creates the stub.
func NewStubClassifier() *StubClassifier {
	return &StubClassifier{minFrameBytes: defaultMinFrameBytes}
}

// Classify produces a stress reading from raw frame bytes.
func (s *StubClassifier) Classify(frame []byte) (models.StressUpdate, error) {
	if len(frame) < s.minFrameBytes {
		return models.StressUpdate{
			Emotion:      models.NoFaceLabel,
			FaceDetected: false,
		}, nil
	}

	h := fnv.New64a()
	_, _ = h.Write(frame)
	sum := h.Sum64()

	emotion := emotions[sum%uint64(len(emotions))]
	// Confidence in [0.5, 1.0): a face was found, certainty varies per frame.
	confidence := 0.5 + float64((sum>>8)%500)/1000

	return models.StressUpdate{
		Level:        emotionStress[emotion],
		Emotion:      emotion,
		Confidence:   confidence,
		FaceDetected: true,
	}, nil
}
