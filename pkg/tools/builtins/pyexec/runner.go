package pyexec

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Execution is the collected outcome of one sandboxed run. Python
// exceptions and timeouts are recorded in Error (Traceback is set only
// for exceptions); they do not fail the run itself.
type Execution struct {
	Stdout        string  `json:"stdout"`
	Stderr        string  `json:"stderr"`
	ExecutionTime float64 `json:"execution_time"`
	Error         string  `json:"error,omitempty"`
	Traceback     string  `json:"traceback,omitempty"`
}

// Runner executes an already-scanned snippet in an isolated worker. Run
// returns an error only for infrastructure failures (missing interpreter,
// unreachable sandbox); outcomes of the code itself, including timeouts,
// are reported through the Execution.
type Runner interface {
	Run(ctx context.Context, code string, timeout time.Duration) (*Execution, error)
}

// timeoutPrefix starts every deadline Error produced by the runners.
const timeoutPrefix = "Execution timed out after "

func timeoutMessage(timeout time.Duration) string {
	return fmt.Sprintf("%s%d seconds", timeoutPrefix, int(timeout.Seconds()))
}

// TimedOut reports whether the run was stopped at its deadline rather
// than by a Python exception.
func (e *Execution) TimedOut() bool {
	return strings.HasPrefix(e.Error, timeoutPrefix)
}
