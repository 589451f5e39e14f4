package exitcodes

// Exit codes for the asset-sweep CLI
// These codes form the operational contract with automation and operators
const (
	Success       = 0 // Successful execution
	InvalidConfig = 2 // Configuration file or flags invalid
	RuntimeError  = 3 // Runtime error during execution
	Cancelled     = 4 // Run interrupted before completion
)
