// Package correlate associates secondary-process log entries with the tasks
// reconstructed from the primary log. The secondary log is parsed
// independently with a much simpler tokenizer; the correlator itself is a
// pure function of its inputs.
package correlate

import (
	"strconv"
	"strings"
	"time"

	"loglens/internal/model"
)

var auxTimeLayouts = []string{
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04:05",
}

// ParseAuxLine tokenizes one secondary-log line. Leading bracket fields are
// classified best effort (timestamp, then level); key=value words in the
// message feed the correlation hints, everything else passes through.
func ParseAuxLine(raw string) model.AuxLogEntry {
	e := model.AuxLogEntry{Raw: raw, Fields: map[string]interface{}{}}
	rest := strings.TrimSpace(raw)

	sawTime := false
	for strings.HasPrefix(rest, "[") {
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			break
		}
		field := rest[1:end]
		rest = strings.TrimSpace(rest[end+1:])

		if !sawTime {
			if ms, ok := parseAuxTime(field); ok {
				e.TimestampMS = &ms
				sawTime = true
				continue
			}
		}
		if e.Level == "" && looksLikeLevel(field) {
			e.Level = field
			continue
		}
		if e.Identifier == "" {
			e.Identifier = field
		}
	}

	var msgWords []string
	for _, w := range strings.Fields(rest) {
		k, v, ok := strings.Cut(w, "=")
		if !ok {
			msgWords = append(msgWords, w)
			continue
		}
		switch k {
		case "task_id":
			if id, err := strconv.ParseInt(v, 10, 64); err == nil {
				e.TaskID = &id
				continue
			}
		case "identifier":
			e.Identifier = v
			continue
		}
		e.Fields[k] = v
	}
	e.Message = strings.Join(msgWords, " ")
	if len(e.Fields) == 0 {
		e.Fields = nil
	}
	return e
}

// ParseAuxLines tokenizes a whole secondary source, skipping blank lines.
func ParseAuxLines(lines []string) []model.AuxLogEntry {
	entries := make([]model.AuxLogEntry, 0, len(lines))
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		entries = append(entries, ParseAuxLine(l))
	}
	return entries
}

func parseAuxTime(s string) (int64, bool) {
	for _, layout := range auxTimeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UnixMilli(), true
		}
	}
	return 0, false
}

func looksLikeLevel(s string) bool {
	if len(s) < 3 || len(s) > 5 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return false
		}
	}
	return true
}
