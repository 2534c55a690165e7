package protocol

import "strings"

// MaxRequestBytes bounds the single receive a connection's initial request
// must fit in.
const MaxRequestBytes = 65535

// Submission is the decoded shape of the client's one-shot request: either
// a single source blob or a set of named files, plus optional limits.
type Submission struct {
	Code         string
	Files        map[string]string
	TimeLimitSec int
	MemoryLimitMB int
	MultiFile    bool
}

// ParseSubmission decodes a raw request payload the tolerant way the
// original does: if the payload starts with '{' it is scanned for known
// keys by substring search rather than run through a strict JSON parser,
// so malformed trailing content never aborts the whole request — missing
// fields are simply left at their zero value and the caller applies
// defaults. A payload not starting with '{' is the raw source itself.
func ParseSubmission(raw string) Submission {
	var sub Submission

	if len(raw) == 0 || raw[0] != '{' {
		sub.Code = raw
		return sub
	}

	if filesPos := strings.Index(raw, `"files":`); filesPos >= 0 {
		sub.MultiFile = true
		sub.Files = parseFilesObject(raw, filesPos)
	} else {
		sub.Code = parseStringField(raw, `"code":`)
	}

	sub.TimeLimitSec = parseIntField(raw, `"time_limit":`, `"timeLimitSec":`)
	sub.MemoryLimitMB = parseIntField(raw, `"memory_limit":`, `"memoryLimitMb":`)

	return sub
}

// parseFilesObject extracts the brace-balanced object following the
// `"files":` key and walks its key/value string pairs.
func parseFilesObject(raw string, filesKeyPos int) map[string]string {
	files := make(map[string]string)

	start := strings.IndexByte(raw[filesKeyPos:], '{')
	if start < 0 {
		return files
	}
	start += filesKeyPos

	depth := 0
	end := start
	for i := start; i < len(raw); i++ {
		switch raw[i] {
		case '{':
			depth++
		case '}':
			depth--
		}
		if depth == 0 {
			end = i
			break
		}
	}
	if end <= start {
		return files
	}

	pos := start + 1
	for pos < end {
		keyStart := strings.IndexByte(raw[pos:end], '"')
		if keyStart < 0 {
			break
		}
		keyStart += pos
		keyEnd := strings.IndexByte(raw[keyStart+1:end], '"')
		if keyEnd < 0 {
			break
		}
		keyEnd += keyStart + 1
		filename := raw[keyStart+1 : keyEnd]

		valueStart := strings.IndexByte(raw[keyEnd+1:end], '"')
		if valueStart < 0 {
			break
		}
		valueStart += keyEnd + 1

		valueEnd := scanStringEnd(raw, valueStart+1, end)
		if valueEnd >= end {
			break
		}

		content := UnescapeJSONString(raw[valueStart+1 : valueEnd])
		files[filename] = content

		pos = valueEnd + 1
	}

	return files
}

// parseStringField finds `"key":"value"` and returns the unescaped value,
// stopping at the first unescaped closing quote.
func parseStringField(raw, key string) string {
	keyPos := strings.Index(raw, key)
	if keyPos < 0 {
		return ""
	}
	valueStart := strings.IndexByte(raw[keyPos+len(key):], '"')
	if valueStart < 0 {
		return ""
	}
	valueStart += keyPos + len(key)

	valueEnd := scanStringEnd(raw, valueStart+1, len(raw))
	if valueEnd >= len(raw) {
		return ""
	}
	return UnescapeJSONString(raw[valueStart+1 : valueEnd])
}

// scanStringEnd walks forward from a string's opening-quote+1 position,
// honoring backslash escapes, and returns the index of the closing quote
// (or the bound if none is found).
func scanStringEnd(raw string, from, bound int) int {
	inEscape := false
	i := from
	for ; i < bound; i++ {
		if inEscape {
			inEscape = false
			continue
		}
		switch raw[i] {
		case '\\':
			inEscape = true
		case '"':
			return i
		}
	}
	return i
}

// parseIntField looks for either key spelling and reads the run of ASCII
// digits that follows its colon.
func parseIntField(raw string, keys ...string) int {
	pos := -1
	for _, k := range keys {
		if p := strings.Index(raw, k); p >= 0 {
			pos = p
			break
		}
	}
	if pos < 0 {
		return 0
	}

	colon := strings.IndexByte(raw[pos:], ':')
	if colon < 0 {
		return 0
	}
	colon += pos

	digitsStart := -1
	for i := colon + 1; i < len(raw); i++ {
		if raw[i] >= '0' && raw[i] <= '9' {
			digitsStart = i
			break
		}
		if raw[i] != ' ' {
			break
		}
	}
	if digitsStart < 0 {
		return 0
	}

	digitsEnd := digitsStart
	for digitsEnd < len(raw) && raw[digitsEnd] >= '0' && raw[digitsEnd] <= '9' {
		digitsEnd++
	}

	n := 0
	for _, c := range raw[digitsStart:digitsEnd] {
		n = n*10 + int(c-'0')
	}
	return n
}
