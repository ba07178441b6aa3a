package ai

import "fmt"

// BackendUnavailableError marks failures where the remote embedding backend
// could not serve the request (circuit open, rate limited, network down,
// upstream 5xx). It is the only error class that authorizes switching to the
// deterministic fallback; validation and programming errors propagate as-is.
type BackendUnavailableError struct {
	Backend string
	Reason  string
	Err     error
}

func (e *BackendUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("embedding backend %s unavailable (%s): %v", e.Backend, e.Reason, e.Err)
	}
	return fmt.Sprintf("embedding backend %s unavailable (%s)", e.Backend, e.Reason)
}

func (e *BackendUnavailableError) Unwrap() error {
	return e.Err
}
