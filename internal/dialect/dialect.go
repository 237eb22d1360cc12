// Package dialect normalizes the two incompatible log dialects into one
// lifecycle event stream.
//
// The explicit-event dialect already logs one aggregated marker per lifecycle
// event and only needs projection. The trace-derived dialect logs nothing but
// low-level function enter/leave and algorithm-result traces; its extractor
// reconstructs the same events through a multi-context state machine.
//
// Dispatch is a closed two-variant union: New returns one of exactly two
// extractor implementations, both satisfying the same Feed/Finish contract.
package dialect

import (
	"strings"

	"loglens/internal/config"
	"loglens/internal/model"
	"loglens/internal/parse"
)

// Kind selects one of the two extraction strategies.
type Kind int

const (
	// KindUnknown behaves as KindExplicit; an unrecognized source still
	// yields whatever markers it happens to contain.
	KindUnknown Kind = iota
	KindExplicit
	KindTrace
)

func (k Kind) String() string {
	switch k {
	case KindExplicit:
		return "explicit"
	case KindTrace:
		return "trace"
	default:
		return "unknown"
	}
}

// Result is everything one source contributed: the normalized event stream
// plus the ambient findings every dialect extracts the same way.
type Result struct {
	Events      []model.EventNotification
	Controllers []model.ControllerInfo
	// Identifiers maps process id to the identifier seen in that
	// process's lines.
	Identifiers map[string]string
}

// Extractor consumes tokenized lines one at a time, in source order. Feeding
// is strictly sequential per source; the synthesis state of later lines
// depends on all earlier ones.
type Extractor interface {
	Kind() Kind
	Feed(line model.LogLine)
	// Finish returns the accumulated result. Events are fully enriched:
	// no look-back mutation happens after Finish.
	Finish() Result

	// sealed keeps the union closed to the two in-package variants.
	sealed()
}

// New returns the extractor for kind. KindUnknown falls back to the
// explicit-event extractor.
func New(kind Kind) Extractor {
	if kind == KindTrace {
		return newTraceExtractor()
	}
	return newExplicitExtractor()
}

// ExtractEvents runs one full pass over already tokenized lines.
func ExtractEvents(kind Kind, lines []model.LogLine) Result {
	ex := New(kind)
	for _, l := range lines {
		ex.Feed(l)
	}
	return ex.Finish()
}

// workingMarker starts the line a framework logs on startup, naming the
// resource directory it works from. The path identifies the project.
const workingMarker = "Working "

// sniffLimit bounds how deep Sniff looks for the working marker.
const sniffLimit = 100

// Sniff inspects the first lines of a raw source and resolves its dialect
// through the project table. No marker or no table match yields KindUnknown.
func Sniff(lines []string, cfg *config.Config) (Kind, string) {
	limit := len(lines)
	if limit > sniffLimit {
		limit = sniffLimit
	}
	for _, raw := range lines[:limit] {
		ll, ok := parse.Tokenize(raw)
		if !ok {
			continue
		}
		if !strings.HasPrefix(ll.Message, workingMarker) {
			continue
		}
		path := strings.TrimSpace(strings.TrimPrefix(ll.Message, workingMarker))
		p, ok := cfg.MatchProject(path)
		if !ok {
			return KindUnknown, ""
		}
		if p.Dialect == config.DialectTrace {
			return KindTrace, p.Name
		}
		return KindExplicit, p.Name
	}
	return KindUnknown, ""
}
