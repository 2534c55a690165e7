package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscapeJSONString(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"quote", `a"b`, `a\"b`},
		{"backslash", `a\b`, `a\\b`},
		{"newline", "a\nb", `a\nb`},
		{"tab", "a\tb", `a\tb`},
		{"carriage return", "a\rb", `a\rb`},
		{"backspace", "a\bb", `a\bb`},
		{"form feed", "a\fb", `a\fb`},
		{"passthrough angle brackets", "a<b>c&d", "a<b>c&d"},
		{"plain", "hello", "hello"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EscapeJSONString(tt.in))
		})
	}
}

func TestEscapeUnescapeRoundTrip(t *testing.T) {
	for _, s := range []string{
		"plain ascii",
		"line1\nline2\ttabbed\r\n",
		`quotes "here" and \backslash\`,
		"",
	} {
		got := UnescapeJSONString(EscapeJSONString(s))
		assert.Equal(t, s, got)
	}
}

func TestUnescapeJSONString(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"escaped slash", `a\/b`, "a/b"},
		{"unicode escape passthrough", "a\\u00e9b", "a\\u00e9b"},
		{"trailing backslash kept literal", "a\\", "a\\"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UnescapeJSONString(tt.in))
		})
	}
}

func TestExecutionResultStatusPrecedence(t *testing.T) {
	tests := []struct {
		name   string
		result Result
		want   string
	}{
		{"success", Result{ExitCode: 0}, StatusSuccess},
		{"runtime error", Result{ExitCode: 1}, StatusRuntimeError},
		{"compilation error", Result{ExitCode: ExitCompilationError}, StatusCompilationError},
		{"security error", Result{ExitCode: ExitSecurityError}, StatusSecurityError},
		{"timed out wins over exit code", Result{ExitCode: 0, TimedOut: true}, StatusTimeLimitExceeded},
		{"memory exceeded wins over compile error", Result{ExitCode: ExitCompilationError, MemoryExceeded: true}, StatusMemoryLimitExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := ExecutionResult(tt.result)
			assert.Contains(t, msg, `"status":"`+tt.want+`"`)
		})
	}
}

func TestOutputEscapesMessage(t *testing.T) {
	msg := Output("line with \"quotes\"\n")
	assert.Equal(t, `{"type":"OUTPUT","message":"line with \"quotes\"\n"}`, msg)
}

func TestErrorMessageIncludesExitCode(t *testing.T) {
	msg := ErrorMessage("bad stuff", -3)
	assert.Equal(t, `{"type":"ERROR","message":"bad stuff","exit_code":-3}`, msg)
}
