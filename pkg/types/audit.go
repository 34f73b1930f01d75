package types

import "time"

// ExportEvent summarizes one export run for the audit log. It never carries
// row data.
type ExportEvent struct {
	Time          time.Time `json:"time"`
	Trigger       string    `json:"trigger"`
	Status        string    `json:"status"`
	Format        string    `json:"format"`
	From          string    `json:"from"`
	To            string    `json:"to"`
	Devices       int       `json:"devices"`
	FailedDevices []int64   `json:"failed_devices,omitempty"`
	Rows          int       `json:"rows"`
	Bytes         int       `json:"bytes"`
	DurationMs    int64     `json:"duration_ms"`
	Error         string    `json:"error,omitempty"`
}
