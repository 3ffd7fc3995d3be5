package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/fabriziosalmi/checkmate/internal/check"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // successful execution
	ExitFailure      = 1 // rejected command (quota, busy pair, already resolved, ...)
	ExitCommandError = 2 // usage or environment error (bad flags, missing database, ...)
)

// ExitError carries a specific process exit code out of a RunE.
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

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// ExitCode extracts the exit code from an error. Engine rejections map to
// ExitFailure; anything else unrecognized is treated the same way.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// Formatter renders one-shot command results as text or JSON.
type Formatter struct {
	Format string
	Out    io.Writer
}

// response is the stable JSON envelope for CLI output.
type response struct {
	Status string     `json:"status"`
	Data   any        `json:"data,omitempty"`
	Error  *errorBody `json:"error,omitempty"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Success renders data as the JSON envelope, or prints the text line.
func (f Formatter) Success(data any, text string) error {
	if f.Format == "json" {
		enc := json.NewEncoder(f.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(response{Status: "ok", Data: data})
	}
	_, err := fmt.Fprintln(f.Out, text)
	return err
}

// Fail renders a domain rejection and returns an ExitError carrying the
// failure exit code, so Execute callers can surface it to the process.
func (f Formatter) Fail(err error) error {
	code := string(check.CodeOf(err))
	if f.Format == "json" {
		enc := json.NewEncoder(f.Out)
		enc.SetIndent("", "  ")
		_ = enc.Encode(response{Status: "error", Error: &errorBody{Code: code, Message: err.Error()}})
	} else {
		fmt.Fprintf(f.Out, "Error [%s]: %s\n", code, err.Error())
	}
	return WrapExitError(ExitFailure, code, err)
}
