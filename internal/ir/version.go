package ir

// Version constants for the object model and the extraction core.
const (
	// ModelVersion is the object-model schema version, recorded on every
	// catalog row so downstream tools can detect stale exports.
	ModelVersion = "1"

	// CoreVersion is the extraction core version.
	CoreVersion = "0.1.0"
)
