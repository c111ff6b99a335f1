package core

// Version information for sdkguard
const (
	// Version is the current library version
	Version = "0.4.0"

	// UserAgent identifies sdkguard on outgoing report requests
	UserAgent = "sdkguard/" + Version
)
