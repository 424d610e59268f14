package config

import "time"

// Per-operation read timeouts. These sit below the transport-level request
// cap so a timed-out operation can still be reported cleanly.
const (
	DefaultSearchTimeout  = 30 * time.Second
	DefaultGetTimeout     = 30 * time.Second
	DefaultGetAllTimeout  = 30 * time.Second
	DefaultHistoryTimeout = 30 * time.Second

	// MaxRequestTimeout caps any single HTTP exchange with the server.
	MaxRequestTimeout = 60 * time.Second

	// DefaultDrainTimeout bounds how long shutdown waits for in-flight
	// operations before cancelling them.
	DefaultDrainTimeout = 3 * time.Second

	// DefaultTopK is the search result limit when the caller does not set
	// one.
	DefaultTopK = 5

	// DefaultMaxInFlight caps simultaneous operations on the background
	// loop to protect the store's connection pool.
	DefaultMaxInFlight = 5
)

// FactExtractionPrompt is pushed to the server as the custom fact extraction
// prompt. It pins the extracted memories to the language of the input.
const FactExtractionPrompt = `Extract the key facts from the input as short, standalone statements.
Always write each fact in the same language the user used in the original input.

Examples:
* Input: My order #12345 hasn't arrived yet.
  Output: {"facts": ["Order #12345 not received"]}
* Input: Me encanta jugar al futbol y esquiar.
  Output: {"facts": ["Le encanta jugar al futbol", "Le encanta esquiar"]}`
