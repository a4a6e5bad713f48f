// Package events provides the in-process event bus used to announce
// freshly computed analytics.
package events

import (
	"time"
)

// EventType represents different event types
type EventType string

const (
	// ReportReady is emitted after a portfolio report has been computed
	ReportReady EventType = "REPORT_READY"
	// RefreshFailed is emitted when a scheduled refresh cannot produce a report
	RefreshFailed EventType = "REFRESH_FAILED"
	// ReportExported is emitted after a report was uploaded to object storage
	ReportExported EventType = "REPORT_EXPORTED"
	// ErrorOccurred is emitted for unexpected failures
	ErrorOccurred EventType = "ERROR_OCCURRED"
)

// EventData is the interface that all event data types must implement
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// Event is one published event
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Module    string    `json:"module"`
	Data      EventData `json:"data"`
}

// ReportReadyData announces a new report. Report carries the full report
// for in-process consumers and is left out of the JSON form.
type ReportReadyData struct {
	ReportID    string    `json:"report_id"`
	AsOf        time.Time `json:"as_of"`
	Assets      int       `json:"assets"`
	Diagnostics int       `json:"diagnostics"`
	Report      any       `json:"-"`
}

// EventType returns the event type for ReportReadyData
func (d *ReportReadyData) EventType() EventType {
	return ReportReady
}

// RefreshFailedData contains data for RefreshFailed events
type RefreshFailedData struct {
	Error string `json:"error"`
}

// EventType returns the event type for RefreshFailedData
func (d *RefreshFailedData) EventType() EventType {
	return RefreshFailed
}

// ReportExportedData contains data for ReportExported events
type ReportExportedData struct {
	ReportID string `json:"report_id"`
	Location string `json:"location"`
}

// EventType returns the event type for ReportExportedData
func (d *ReportExportedData) EventType() EventType {
	return ReportExported
}

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType {
	return ErrorOccurred
}
