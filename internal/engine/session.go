package engine

import (
	"loglens/internal/correlate"
	"loglens/internal/dialect"
	"loglens/internal/model"
	"loglens/internal/parse"
)

// Session feeds large sources in chunks so an interactive host can yield
// between them. Chunks of one source must arrive in order; the dialect state
// machines depend on having seen every earlier line. The builder and
// correlator run only in Finalize, so a chunk boundary can never fall inside
// the look-back enrichment of an open extraction.
type Session struct {
	engine  *Engine
	order   []string
	sources map[string]*sessionSource
	aux     []model.AuxLogEntry
	done    bool
}

type sessionSource struct {
	ex      dialect.Extractor
	partial string // carried continuation tail across chunk boundaries
}

// NewSession starts an incremental analysis under the engine's configuration.
func (e *Engine) NewSession() *Session {
	return &Session{engine: e, sources: map[string]*sessionSource{}}
}

// Feed processes one chunk of a primary source. The dialect is sniffed on
// the source's first chunk; kind forces it instead when not KindUnknown.
func (s *Session) Feed(sourceName string, kind dialect.Kind, lines []string) {
	if s.done {
		return
	}
	src, ok := s.sources[sourceName]
	if !ok {
		if kind == dialect.KindUnknown {
			kind, _ = dialect.Sniff(lines, &s.engine.cfg)
		}
		src = &sessionSource{ex: dialect.New(kind)}
		s.sources[sourceName] = src
		s.order = append(s.order, sourceName)
	}

	merged := parse.MergeContinuations(lines)
	if len(merged) == 0 {
		return
	}
	// A continuation at a chunk head belongs to the previous chunk's last
	// line; hold the final line back until the next chunk disambiguates.
	if src.partial != "" {
		merged = parse.MergeContinuations(append([]string{src.partial}, merged...))
	}
	src.partial = merged[len(merged)-1]
	for _, raw := range merged[:len(merged)-1] {
		if ll, ok := parse.Tokenize(raw); ok {
			src.ex.Feed(ll)
		}
	}
}

// FeedAux buffers auxiliary entries; correlation happens in Finalize, after
// every task is known.
func (s *Session) FeedAux(lines []string) {
	if s.done {
		return
	}
	s.aux = append(s.aux, correlate.ParseAuxLines(lines)...)
}

// Finalize flushes held-back lines, runs the builder over all extracted
// events and correlates the auxiliary entries. The session cannot be fed
// afterwards.
func (s *Session) Finalize() *Result {
	s.done = true
	extracted := make([]dialect.Result, 0, len(s.order))
	for _, name := range s.order {
		src := s.sources[name]
		if src.partial != "" {
			if ll, ok := parse.Tokenize(src.partial); ok {
				src.ex.Feed(ll)
			}
			src.partial = ""
		}
		extracted = append(extracted, src.ex.Finish())
	}
	return s.engine.assemble(extracted, s.aux)
}
