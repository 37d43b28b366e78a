package telemetry

import "time"

// Telemetry is one published light reading.
type Telemetry struct {
	DeviceID  string    `json:"device_id"`
	Timestamp time.Time `json:"timestamp"`
	Lux       *float64  `json:"lux,omitempty"`
	Broadband *uint16   `json:"broadband_raw,omitempty"`
	Infrared  *uint16   `json:"infrared_raw,omitempty"`
	Degraded  bool      `json:"degraded,omitempty"`
	Sequence  *int      `json:"sequence,omitempty"`
}

// BoolProperty wraps a boolean setting in the desired/reported document.
type BoolProperty struct {
	Value bool `json:"value"`
}

// DesiredConfig is the remote-side requested device configuration.
type DesiredConfig struct {
	StatusLED *BoolProperty `json:"status_led,omitempty"`
}

// ReportedConfig acknowledges applied configuration back to the remote side.
type ReportedConfig struct {
	StatusLED *BoolProperty `json:"status_led,omitempty"`
}
