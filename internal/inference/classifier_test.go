package inference

import (
	"bytes"
	"testing"

	"github.com/neurometric/backend/internal/models"
)

func TestStubClassifier_Deterministic(t *testing.T) {
	t.Parallel()

	c := NewStubClassifier()
	frame := bytes.Repeat([]byte{0xAB, 0x12}, 32)

	first, err := c.Classify(frame)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	second, err := c.Classify(frame)
	if err != nil {
		t.Fatalf("classify again: %v", err)
	}
	if first != second {
		t.Errorf("same frame gave different readings: %+v vs %+v", first, second)
	}
}

func TestStubClassifier_ShortFrameMeansNoFace(t *testing.T) {
	t.Parallel()

	c := NewStubClassifier()
	update, err := c.Classify([]byte{1, 2, 3})
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if update.FaceDetected {
		t.Error("face detected on a frame too small to hold one")
	}
	if update.Emotion != models.NoFaceLabel {
		t.Errorf("emotion: want %q, got %q", models.NoFaceLabel, update.Emotion)
	}
	if update.Level != 0 {
		t.Errorf("level: want 0, got %v", update.Level)
	}
}

func TestStubClassifier_ReadingWithinBounds(t *testing.T) {
	t.Parallel()

	c := NewStubClassifier()
	for seed := byte(0); seed < 25; seed++ {
		frame := bytes.Repeat([]byte{seed, seed + 1}, 16)
		update, err := c.Classify(frame)
		if err != nil {
			t.Fatalf("classify seed %d: %v", seed, err)
		}
		if !update.FaceDetected {
			t.Fatalf("seed %d: no face on a full-size frame", seed)
		}
		want, ok := emotionStress[update.Emotion]
		if !ok {
			t.Fatalf("seed %d: unknown emotion %q", seed, update.Emotion)
		}
		if update.Level != want {
			t.Errorf("seed %d: level %v does not match emotion %q (%v)", seed, update.Level, update.Emotion, want)
		}
		if update.Confidence < 0.5 || update.Confidence >= 1.0 {
			t.Errorf("seed %d: confidence %v outside [0.5, 1.0)", seed, update.Confidence)
		}
	}
}
