package dispatch

import (
	"github.com/theapemachine/mem0-go/pkg/mem0"
)

// Status classifies the outcome of a dispatched operation.
type Status string

const (
	// StatusSuccess means the operation completed and Results carries its
	// normalized outcome.
	StatusSuccess Status = "SUCCESS"

	// StatusError means the operation failed; Results carries the
	// operation's degraded default so downstream consumers never have to
	// branch on a missing field.
	StatusError Status = "ERROR"

	// StatusAccepted means a write was handed to the background loop and
	// will complete, or fail, out of band.
	StatusAccepted Status = "ACCEPTED"

	// StatusSkipped means an add carried no usable content and was dropped
	// before it was ever submitted.
	StatusSkipped Status = "SKIPPED"
)

/*
Envelope is the uniform response shape for every operation. Faults never
escape as raw errors: they are folded into an ERROR envelope whose Results
field is pre-filled with the operation's empty default, so a consumer can
always read Results without nil checks on the envelope itself.
*/
type Envelope struct {
	Status   Status   `json:"status"`
	Messages []string `json:"messages,omitempty"`
	Results  any      `json:"results"`
}

// Success wraps a completed operation's normalized results.
func Success(results any, messages ...string) Envelope {
	return Envelope{Status: StatusSuccess, Messages: messages, Results: results}
}

// Errored wraps a failed operation, degrading Results to the operation's
// empty default.
func Errored(op Operation, messages ...string) Envelope {
	return Envelope{Status: StatusError, Messages: messages, Results: op.EmptyResult()}
}

// Accepted acknowledges a write queued for background execution.
func Accepted(op Operation) Envelope {
	return Envelope{
		Status:   StatusAccepted,
		Messages: []string{op.acceptedMessage()},
		Results:  op.EmptyResult(),
	}
}

// SkippedAdd is the response for an add whose content was blank. The result
// mimics a real add result so consumers that iterate events see a single
// SKIP event rather than an absent field.
func SkippedAdd() Envelope {
	return Envelope{
		Status:   StatusSkipped,
		Messages: []string{"no memorable content provided, nothing was stored"},
		Results: &mem0.AddResult{
			Results: []mem0.AddEvent{{ID: "", Memory: "", Event: "SKIP"}},
		},
	}
}
