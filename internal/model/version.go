package model

// Version constants for the change-event format and the service.
const (
	// EventVersion is the change-event snapshot format version.
	EventVersion = "1"

	// ServiceVersion is the registrar release version.
	ServiceVersion = "0.1.0"
)
