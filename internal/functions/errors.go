package functions

import "fmt"

// SpecError reports a provider that could not produce a valid function spec.
type SpecError struct {
	Provider string
	Err      error
}

func (e *SpecError) Error() string {
	return fmt.Sprintf("provider %s: querying spec: %v", e.Provider, e.Err)
}

func (e *SpecError) Unwrap() error { return e.Err }

// ExecutionError reports a failed function invocation. It is recoverable:
// the conversation passes it back to the model.
type ExecutionError struct {
	Function string
	Err      error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("function %s: %v", e.Function, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }
