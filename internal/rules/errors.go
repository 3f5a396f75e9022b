package rules

import (
	"errors"
	"fmt"
)

// Code classifies an expected, user-facing economy outcome. These are the
// reasons an action legitimately didn't happen, not bugs.
type Code string

const (
	CodeNoActiveArea      Code = "NoActiveArea"
	CodeToolMissing       Code = "ToolMissing"
	CodeToolTooWeak       Code = "ToolTooWeak"
	CodeInsufficientFunds Code = "InsufficientFunds"
	CodeInvalidQuantity   Code = "InvalidQuantity"
	CodeUnknownResource   Code = "UnknownResource"
	CodeInsufficientStock Code = "InsufficientStock"
	CodeInvalidRequest    Code = "InvalidRequest"
)

// EconomyError is returned by the rules engine when a request is well-formed
// but the economy rejects it. The state is left untouched.
type EconomyError struct {
	Code Code
	msg  string
}

func (e *EconomyError) Error() string {
	if e.msg == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.msg)
}

func econErr(code Code, format string, args ...any) *EconomyError {
	return &EconomyError{Code: code, msg: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the economy code from an error chain, or "" if the error
// is not an economy rejection.
func CodeOf(err error) Code {
	var ee *EconomyError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ""
}
