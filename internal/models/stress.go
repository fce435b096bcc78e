package models

import "time"

// NoFaceLabel is the sentinel emotion reported when no face is present in the
// analyzed frame. Readings carrying it must never surface the raw model output.
const NoFaceLabel = "NO FACE"

// StressUpdate is the server→client payload carrying one inference result.
type StressUpdate struct {
	Level        float64 `json:"level"`
	Emotion      string  `json:"emotion"`
	Confidence   float64 `json:"confidence"`
	FaceDetected bool    `json:"face_detected"`
}

// StressAlert is the client→server report of a qualifying high-stress
// condition. The same shape is rebroadcast to all clients as
// admin_receive_stress_alert.
type StressAlert struct {
	UserID          string    `json:"userId"`
	UserName        string    `json:"userName"`
	Level           float64   `json:"level"`
	DetectedEmotion string    `json:"detectedEmotion"`
	Confidence      float64   `json:"confidence"`
	Timestamp       time.Time `json:"timestamp"`
	HRPhone         string    `json:"hrPhone,omitempty"`
	Source          string    `json:"source"`
}

// SMSSent confirms a successful notification-provider call to the reporting
// client. Sent only on success; failures are invisible to the end user.
type SMSSent struct {
	Success bool `json:"success"`
}
