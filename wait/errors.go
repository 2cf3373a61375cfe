package wait

import "fmt"

// CanceledError reports that a wait was abandoned because its context was canceled before the
// event fired or the timeout elapsed. Reason holds the context's own error and is exposed via
// Unwrap, so errors.Is(err, context.Canceled) matches for callers that need to distinguish the
// cancellation cause.
type CanceledError struct {
	Reason error
}

func (e *CanceledError) Error() string {
	return fmt.Sprintf("wait canceled: %s", e.Reason)
}

func (e *CanceledError) Unwrap() error {
	return e.Reason
}
