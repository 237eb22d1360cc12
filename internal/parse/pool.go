package parse

// StringPool interns the small vocabulary of node and entry names that
// repeats across a run. It is a private, single-owner cache: one pool per
// analysis, cleared after the builder pass. The entry cap bounds memory on
// hostile input; once full, strings pass through uninterned.
type StringPool struct {
	seen  map[string]string
	limit int
}

// DefaultPoolLimit is generous for real logs; a run rarely names more than a
// few hundred distinct nodes.
const DefaultPoolLimit = 4096

// NewStringPool returns a pool bounded to limit entries. A non-positive
// limit falls back to DefaultPoolLimit.
func NewStringPool(limit int) *StringPool {
	if limit <= 0 {
		limit = DefaultPoolLimit
	}
	return &StringPool{seen: make(map[string]string), limit: limit}
}

// Intern returns the canonical copy of s.
func (p *StringPool) Intern(s string) string {
	if c, ok := p.seen[s]; ok {
		return c
	}
	if len(p.seen) >= p.limit {
		return s
	}
	p.seen[s] = s
	return s
}

// Len reports the number of interned strings.
func (p *StringPool) Len() int { return len(p.seen) }

// Clear drops all interned strings.
func (p *StringPool) Clear() {
	p.seen = make(map[string]string)
}
