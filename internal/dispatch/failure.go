package dispatch

import "fmt"

// Class categorizes a failed backend call.
type Class string

const (
	// ClassAuth marks authentication failures eligible for token recovery.
	ClassAuth Class = "auth"
	// ClassValidation marks 4xx business/validation rejections.
	ClassValidation Class = "validation"
	// ClassTransport marks DNS/connection/timeout failures before any
	// HTTP status was received.
	ClassTransport Class = "transport"
	// ClassUpstream marks 5xx backend failures.
	ClassUpstream Class = "upstream"
)

// Failure is the data form of a failed submission. It is handed to the
// rendering layer verbatim and never retried past the single recovery
// attempt.
type Failure struct {
	Class  Class
	Status int    // 0 for transport failures
	Detail string // backend detail body, or the transport error text

	// SessionExpired is set when an auth failure could not be recovered,
	// signalling the caller to re-authenticate.
	SessionExpired bool
}

// Error implements the error interface.
func (f *Failure) Error() string {
	if f.Status == 0 {
		return fmt.Sprintf("%s: %s", f.Class, f.Detail)
	}
	return fmt.Sprintf("%s (status %d): %s", f.Class, f.Status, f.Detail)
}
