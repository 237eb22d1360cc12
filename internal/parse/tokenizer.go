// Package parse provides the lexical layer of the engine: the bracket-line
// tokenizer, parameter and value decoding, controller capability decoders,
// and the bounded string pool used by the builder.
//
// Nothing in this package returns an error for malformed input. A line that
// cannot be tokenized yields "no match" and the caller skips it; a value that
// cannot be decoded stays a raw string. A hostile or truncated log only
// degrades model richness.
package parse

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"loglens/internal/model"
)

const timestampLayout = "2006-01-02 15:04:05.000"

// maxHeaderFields bounds the leading bracket run: four mandatory fields
// (timestamp, level, process, thread) plus up to three source-location fields.
const maxHeaderFields = 7

var statusMarkerRe = regexp.MustCompile(`\|\s*(enter|leave)(?:\s*,\s*(\d+)\s*ms)?$`)

// Tokenize splits one trimmed log line into its structured form. It returns
// false when the line does not carry at least four leading bracket fields;
// the caller is expected to skip such lines.
func Tokenize(line string) (model.LogLine, bool) {
	line = strings.TrimSpace(line)
	fields, rest, ok := splitHeader(line)
	if !ok {
		return model.LogLine{}, false
	}

	ll := model.LogLine{
		Level:     fields[1],
		ProcessID: fields[2],
		ThreadID:  fields[3],
	}
	if ts, err := time.Parse(timestampLayout, fields[0]); err == nil {
		ll.Timestamp = ts
	}
	classifyLocation(fields[4:], &ll)

	msg, params, status, dur := ExtractParams(rest)
	ll.Message = msg
	ll.Params = params
	ll.Status = status
	ll.DurationMS = dur
	return ll, true
}

// splitHeader consumes the run of immediately adjacent [..] fields at the
// start of the line. Header fields contain no nested brackets, so the first
// ']' always closes the field.
func splitHeader(line string) (fields []string, rest string, ok bool) {
	i := 0
	for i < len(line) && line[i] == '[' && len(fields) < maxHeaderFields {
		end := strings.IndexByte(line[i:], ']')
		if end < 0 {
			break
		}
		fields = append(fields, line[i+1:i+end])
		i += end + 1
	}
	if len(fields) < 4 {
		return nil, "", false
	}
	return fields, strings.TrimSpace(line[i:]), true
}

// classifyLocation applies the best-effort heuristic for the optional
// source-location fields. Three fields are unambiguous; with fewer, a
// C++-source suffix picks the interpretation. Never fails.
func classifyLocation(opt []string, ll *model.LogLine) {
	switch len(opt) {
	case 0:
	case 1:
		if isSourceFile(opt[0]) {
			ll.SourceFile = opt[0]
		} else {
			ll.FunctionName = opt[0]
		}
	case 2:
		if isSourceFile(opt[0]) {
			ll.SourceFile = opt[0]
			ll.LineNumber = parseLineNumber(opt[1])
		} else {
			ll.FunctionName = opt[0]
			ll.SourceFile = opt[1]
		}
	default:
		ll.SourceFile = opt[0]
		ll.LineNumber = parseLineNumber(opt[1])
		ll.FunctionName = opt[2]
	}
}

func isSourceFile(s string) bool {
	return strings.HasSuffix(s, ".cpp") || strings.HasSuffix(s, ".h") || strings.HasSuffix(s, ".hpp")
}

// parseLineNumber accepts both "L65" and bare "65".
func parseLineNumber(s string) int {
	s = strings.TrimPrefix(s, "L")
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// ExtractParams scans the message tail for top-level bracketed [key=value]
// tokens. Both bracket and brace depth are tracked so a JSON value containing
// '[' or ']' does not split a token early. Text outside tokens becomes the
// message; a trailing "| enter" / "| leave[,<n>ms]" marker is stripped into
// status and duration.
func ExtractParams(rest string) (msg string, params map[string]interface{}, status string, durationMS int64) {
	params = map[string]interface{}{}
	var msgParts []string
	var buf strings.Builder

	bracket, brace := 0, 0
	tokenStart := -1
	for i := 0; i < len(rest); i++ {
		c := rest[i]
		switch c {
		case '[':
			if bracket == 0 && brace == 0 {
				tokenStart = i + 1
			}
			bracket++
			continue
		case ']':
			if bracket > 0 {
				bracket--
				if bracket == 0 && brace == 0 && tokenStart >= 0 {
					addParam(params, rest[tokenStart:i])
					tokenStart = -1
				}
				continue
			}
		case '{':
			brace++
		case '}':
			if brace > 0 {
				brace--
			}
		}
		if tokenStart < 0 {
			buf.WriteByte(c)
		}
	}
	if tokenStart >= 0 {
		// Unterminated token: keep it as message text rather than drop it.
		buf.WriteString(rest[tokenStart-1:])
	}
	if buf.Len() > 0 {
		msgParts = strings.Fields(buf.String())
	}
	msg = strings.Join(msgParts, " ")

	if m := statusMarkerRe.FindStringSubmatch(msg); m != nil {
		status = m[1]
		if m[2] != "" {
			durationMS, _ = strconv.ParseInt(m[2], 10, 64)
		}
		msg = strings.TrimSpace(strings.TrimSuffix(msg, m[0]))
	}
	return msg, params, status, durationMS
}

func addParam(params map[string]interface{}, token string) {
	if token == "" {
		return
	}
	eq := strings.IndexByte(token, '=')
	if eq < 0 {
		params[token] = true
		return
	}
	params[token[:eq]] = DecodeValue(token[eq+1:])
}

// DecodeValue turns a raw parameter string into a typed value. Decoding is
// attempted in a fixed order; anything undecodable stays the verbatim string.
func DecodeValue(raw string) interface{} {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	if s[0] == '{' || s[0] == '[' {
		var v interface{}
		if err := json.Unmarshal([]byte(s), &v); err == nil {
			return v
		}
		// Retry embedded JSON that was mangled by line wrapping.
		norm := strings.Join(strings.Fields(s), " ")
		if err := json.Unmarshal([]byte(norm), &v); err == nil {
			return v
		}
		return s
	}

	switch s {
	case "true":
		return true
	case "false":
		return false
	}

	if len(s) > 15 && allDigits(s) {
		// Capability masks may set bit 63; keep them 64-bit safe.
		if u, err := strconv.ParseUint(s, 10, 64); err == nil {
			return u
		}
		return s
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}

var boxRe = regexp.MustCompile(`^\[?\s*(\d+)\s*x\s*(\d+)\s*from\s*\(\s*(-?\d+)\s*,\s*(-?\d+)\s*\)\s*\]?$`)

// ParseBox decodes the raw hit-box string "[W x H from (X, Y)]" into
// [x, y, w, h]. Returns nil when the string does not match.
func ParseBox(raw string) []int {
	m := boxRe.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return nil
	}
	w, _ := strconv.Atoi(m[1])
	h, _ := strconv.Atoi(m[2])
	x, _ := strconv.Atoi(m[3])
	y, _ := strconv.Atoi(m[4])
	return []int{x, y, w, h}
}
