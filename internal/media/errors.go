package media

import "fmt"

// ValidationError carries a user-facing rejection reason. The message is safe
// to return to the uploader verbatim; internal detail stays in logs.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func validationErrorf(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ToolUnavailableError indicates the external encoder or prober is missing or
// not responding. It is an operational failure, not a problem with the file.
type ToolUnavailableError struct {
	Tool string
	Err  error
}

func (e *ToolUnavailableError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Tool, e.Err)
}

func (e *ToolUnavailableError) Unwrap() error {
	return e.Err
}
