package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	contentSvc "folio/internal/domain/services/content"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // A batch finished with failed items
	ExitCommandError = 2 // Command error (no database, refused in prod, etc.)
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// batchOutput is the JSON shape of a finished job
type batchOutput struct {
	Job string `json:"job"`
	*contentSvc.BatchResult
}

// writeBatch prints a job result. Failed items turn into an ExitFailure error after printing.
func writeBatch(w io.Writer, format, job string, result *contentSvc.BatchResult) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(batchOutput{Job: job, BatchResult: result}); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(w, "%s: %d processed, %d failed\n", job, result.Processed, result.Failed)
		for _, item := range result.Errors {
			fmt.Fprintf(w, "  node %d: %s\n", item.NodeID, item.Error)
		}
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%s: %d item(s) failed", job, result.Failed))
	}
	return nil
}
