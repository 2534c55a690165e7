package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSubmissionRawFallback(t *testing.T) {
	sub := ParseSubmission("int main(){return 0;}")
	assert.Equal(t, "int main(){return 0;}", sub.Code)
	assert.False(t, sub.MultiFile)
}

func TestParseSubmissionSingleFile(t *testing.T) {
	raw := `{"code":"int main(){\n  return 0;\n}","time_limit":7,"memory_limit":512}`
	sub := ParseSubmission(raw)
	assert.Equal(t, "int main(){\n  return 0;\n}", sub.Code)
	assert.Equal(t, 7, sub.TimeLimitSec)
	assert.Equal(t, 512, sub.MemoryLimitMB)
	assert.False(t, sub.MultiFile)
}

func TestParseSubmissionAliasFields(t *testing.T) {
	raw := `{"code":"x","timeLimitSec":3,"memoryLimitMb":128}`
	sub := ParseSubmission(raw)
	assert.Equal(t, 3, sub.TimeLimitSec)
	assert.Equal(t, 128, sub.MemoryLimitMB)
}

func TestParseSubmissionMultiFile(t *testing.T) {
	raw := `{"files":{"a.cpp":"void f(){}","m.cpp":"int main(){f();return 0;}"},"time_limit":5}`
	sub := ParseSubmission(raw)
	assert.True(t, sub.MultiFile)
	assert.Equal(t, "void f(){}", sub.Files["a.cpp"])
	assert.Equal(t, "int main(){f();return 0;}", sub.Files["m.cpp"])
	assert.Equal(t, 5, sub.TimeLimitSec)
}

func TestParseSubmissionMultiFileWithEscapedQuotes(t *testing.T) {
	raw := `{"files":{"a.cpp":"std::cout<<\"hi\";"}}`
	sub := ParseSubmission(raw)
	assert.Equal(t, `std::cout<<"hi";`, sub.Files["a.cpp"])
}

func TestParseSubmissionMissingFieldsDefaultToZero(t *testing.T) {
	sub := ParseSubmission(`{"foo":"bar"}`)
	assert.Equal(t, "", sub.Code)
	assert.Equal(t, 0, sub.TimeLimitSec)
	assert.Equal(t, 0, sub.MemoryLimitMB)
}
