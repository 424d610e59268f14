/*
Package logging configures the process-wide structured logger. Every package
logs through charmbracelet/log with key-value pairs; this package owns the
level and output so tool handlers, the dispatch loop, and the CLI agree on
where log lines go (stderr, never stdout, which belongs to the MCP transport).
*/
package logging

import (
	"os"
	"time"

	"github.com/charmbracelet/log"
)

// Init sets up the default logger. MCP stdio transports own stdout, so all
// logging goes to stderr.
func Init(level string) {
	log.SetOutput(os.Stderr)
	log.SetTimeFormat(time.RFC3339)
	log.SetReportCaller(false)

	switch level {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "warn":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		log.SetLevel(log.InfoLevel)
	}
}

// Named returns a logger with a component prefix, e.g. "loop" or "dispatch".
func Named(component string) *log.Logger {
	return log.Default().WithPrefix(component)
}
