package cli

// ExitError is a custom error type that includes a specific exit code.
// Configuration and usage problems exit 2; run and validation failures
// exit 1.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}
