package session

import (
	"fmt"
	"time"

	"github.com/apex-sandbox/sandboxd/internal/protocol"
)

// buildVerdict applies the classifier's precedence: timed_out and
// memory_exceeded force both the error message and the exit code,
// regardless of the child's actual exit status, matching the original's
// send_json_result.
func buildVerdict(exitCode int, output, errMsg string, timedOut, memoryExceeded bool, elapsed time.Duration, timeLimitSec, memoryLimitMB int) protocol.Result {
	finalError := errMsg
	finalExitCode := exitCode

	switch {
	case timedOut:
		finalError = fmt.Sprintf("Time limit exceeded (%ds)", timeLimitSec)
		finalExitCode = protocol.ExitTimeLimitExceeded
	case memoryExceeded:
		finalError = fmt.Sprintf("Memory limit exceeded (%dMB)", memoryLimitMB)
		finalExitCode = protocol.ExitMemoryLimitExceeded
	}

	return protocol.Result{
		Output:          output,
		Error:           finalError,
		ExitCode:        finalExitCode,
		ExecutionTimeMs: elapsed.Milliseconds(),
		TimedOut:        timedOut,
		MemoryExceeded:  memoryExceeded,
	}
}

func statusFromResult(r protocol.Result) string {
	return protocol.StatusOf(r)
}
