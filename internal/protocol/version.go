package protocol

const (
	// Version is reported by getVersion.
	Version = "3.3"
	// LegacyVersion is reported by getVersion while legacy compatibility is on.
	LegacyVersion = "3.31"
)
