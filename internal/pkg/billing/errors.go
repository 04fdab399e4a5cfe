package billing

import "fmt"

// ValidationError reports a verified webhook event whose payload is missing a
// field required for its declared kind. It is raised before any provider
// fetch or database write.
type ValidationError struct {
	Kind   EventKind
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("billing: invalid %s payload: %s", e.Kind, e.Reason)
}

// WriteError wraps a persistence failure. The webhook endpoint turns it into
// an HTTP 500 so the provider redelivers; every reconciliation action is safe
// to re-apply.
type WriteError struct {
	Op  string
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("billing: %s: %v", e.Op, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
