package errors

// Error code constants organized by phase.
const (
	// Parse errors (PAR###)

	// PAR001 indicates the working source could not be parsed at all
	// (libclang gave no translation unit; diagnostics inside a usable
	// unit are not errors — the compiler exit code is authoritative).
	PAR001 = "PAR001"

	// Build errors (BLD###)

	// BLD001 indicates the compiler binary could not be spawned.
	BLD001 = "BLD001"

	// BLD002 indicates the compiler exited with a non-zero status.
	BLD002 = "BLD002"

	// Load errors (LNK###)

	// LNK001 indicates a built module could not be loaded into the host.
	LNK001 = "LNK001"

	// LNK002 indicates a module failed to unload during cleanup.
	LNK002 = "LNK002"

	// Session errors (SES###)

	// SES001 indicates the session's working files could not be created.
	SES001 = "SES001"

	// SES002 indicates the persistent header could not be written.
	SES002 = "SES002"
)
