// Package exitcode provides standardized exit codes for preflight
package exitcode

// Exit codes for the preflight CLI
const (
	Success         = 0
	GeneralError    = 1
	ConfigError     = 2
	UsageError      = 3
	FileSystemError = 4
	// FindingsAtThreshold means the scan finished and at least one finding met --fail-on.
	FindingsAtThreshold = 10
)

// String returns a human-readable description of the exit code
func String(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case ConfigError:
		return "Configuration error"
	case UsageError:
		return "Usage error"
	case FileSystemError:
		return "File system error"
	case FindingsAtThreshold:
		return "Findings at or above threshold"
	default:
		return "Unknown error"
	}
}

// Error carries an exit code through cobra's error return.
type Error struct {
	Code int
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return String(e.Code)
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap attaches code to err; a nil err stays nil.
func Wrap(code int, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Err: err}
}
