package estimator

import "fmt"

// ConstructionError reports an estimator that could not be built: bad
// parameters, unreadable templates, unknown models or inconsistent data.
type ConstructionError struct {
	Estimator string
	Err       error
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("construct %s estimator: %v", e.Estimator, e.Err)
}

func (e *ConstructionError) Unwrap() error { return e.Err }

// InvocationError reports a failed Estimate call, usually an external
// collaborator (embedding or inference backend) failing.
type InvocationError struct {
	Estimator string
	Err       error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("%s estimate: %v", e.Estimator, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }
