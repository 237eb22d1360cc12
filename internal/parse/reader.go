package parse

import (
	"bufio"
	"io"
	"strings"
)

// maxLineBytes accommodates frameworks that dump whole recognition details
// on one line.
const maxLineBytes = 4 * 1024 * 1024

// ReadLines reads a UTF-8 line-oriented source and merges continuation lines
// (lines not starting with '[') into the previous bracketed line, so every
// returned line is a complete tokenizer input.
func ReadLines(r io.Reader) ([]string, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	var lines []string
	for sc.Scan() {
		appendMerged(&lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return lines, err
	}
	return lines, nil
}

// MergeContinuations applies the same pre-merge to an already split slice.
func MergeContinuations(raw []string) []string {
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		appendMerged(&lines, l)
	}
	return lines
}

func appendMerged(lines *[]string, l string) {
	if strings.HasPrefix(l, "[") || len(*lines) == 0 {
		*lines = append(*lines, l)
		return
	}
	(*lines)[len(*lines)-1] += "\n" + l
}
