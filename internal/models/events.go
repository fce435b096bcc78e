package models

// Named events carried over the WebSocket channel. Names and payload shapes are
// the compatibility surface with existing dashboard clients.
const (
	// EventVideoFrame carries a base64 data URL of one captured frame
	// (client→server).
	EventVideoFrame = "video_frame"

	// EventStressUpdate carries a StressUpdate (server→client).
	EventStressUpdate = "stress_update"

	// EventReportHighStress carries a StressAlert (client→server).
	EventReportHighStress = "report_high_stress"

	// EventAdminStressAlert is the fan-out of a received StressAlert to every
	// connected client, including the sender (server→all clients).
	EventAdminStressAlert = "admin_receive_stress_alert"

	// EventSMSSent carries an SMSSent confirmation (server→reporting client).
	EventSMSSent = "sms_sent_success"
)
