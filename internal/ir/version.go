package ir

// Version constants for IR schema and engine.
const (
	// IRVersion is the IR schema version.
	IRVersion = "1"

	// EngineVersion is the tactline engine version.
	EngineVersion = "0.1.0"
)

// SignifierNamespace is the reserved working-memory prefix under which
// computed Allen results are published.
const SignifierNamespace = "signifier"
