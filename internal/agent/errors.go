package agent

import "fmt"

// ErrorCode is a string type used for structured error reporting from the
// executor. Using a custom type ensures that only predefined constants can be
// used where an ErrorCode is expected.
type ErrorCode string

const (
	ErrCodeInvalidInstruction ErrorCode = "INVALID_INSTRUCTION"
	ErrCodeModelFailure       ErrorCode = "MODEL_FAILURE"
	ErrCodeMalformedResponse  ErrorCode = "MALFORMED_RESPONSE"
	ErrCodeBrowserFailure     ErrorCode = "BROWSER_FAILURE"
	ErrCodeStepBudget         ErrorCode = "STEP_BUDGET_EXHAUSTED"
)

// Error wraps a failure that terminated a run, tagged with a code the shell
// uses when deriving recovery hints.
type Error struct {
	Code ErrorCode
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("agent %s: %s", e.Op, e.Code)
	}
	return fmt.Sprintf("agent %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(code ErrorCode, op string, err error) *Error {
	return &Error{Code: code, Op: op, Err: err}
}
