package tab

import "path/filepath"

// Resolver canonicalizes paths before comparison. Canonicalization depends
// on filesystem state (symlinks), so the matcher takes it as an interface
// and tests substitute a synthetic resolution table.
type Resolver interface {
	// Resolve returns the canonical form of path. Implementations fall
	// back to a cleaned literal path when resolution fails; Resolve
	// never errors.
	Resolve(path string) string
}

// realResolver resolves symlinks on the live filesystem, falling back to
// the literal path when the target cannot be resolved.
type realResolver struct{}

func (realResolver) Resolve(path string) string {
	if path == "" {
		return path
	}
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}
	return filepath.Clean(path)
}

// MatchPolicy controls how IsMounted treats reference entries sharing a
// target, which happens with overlapping bind mounts.
type MatchPolicy int

const (
	// AnySourceMatch treats an entry as mounted when any reference entry
	// with an equal canonical target has a compatible source; for bind
	// and overlay mounts the target alone is authoritative.
	AnySourceMatch MatchPolicy = iota
	// ExactSourceMatch requires canonical source equality even for bind
	// and overlay mounts.
	ExactSourceMatch
)

// Matcher answers read-only queries over a table. It never mutates the
// table or its entries, and a missed lookup is a nil result, not an error.
type Matcher struct {
	table    *Table
	resolver Resolver
	policy   MatchPolicy
}

// NewMatcher returns a matcher over t using the live-filesystem resolver
// and the AnySourceMatch reconciliation policy.
func NewMatcher(t *Table) *Matcher {
	return &Matcher{table: t, resolver: realResolver{}}
}

// SetResolver replaces the path canonicalizer.
func (m *Matcher) SetResolver(r Resolver) {
	m.resolver = r
}

// SetPolicy replaces the bind-mount reconciliation policy.
func (m *Matcher) SetPolicy(p MatchPolicy) {
	m.policy = p
}

// FindSource returns the first entry whose source matches value in the
// given scan direction, or nil. A full literal scan runs before the
// canonicalized one, so a literal match anywhere in the table wins over a
// canonical-only match.
func (m *Matcher) FindSource(value string, dir Direction) *Entry {
	if value == "" {
		return nil
	}
	if e := m.table.scan(dir, func(e *Entry) bool { return e.Source == value }); e != nil {
		return e
	}
	cn := m.resolver.Resolve(value)
	return m.table.scan(dir, func(e *Entry) bool { return m.resolver.Resolve(e.Source) == cn })
}

// FindTarget returns the first entry whose target matches path in the
// given scan direction, or nil. Like FindSource, literal matches take
// precedence over canonicalized ones.
func (m *Matcher) FindTarget(path string, dir Direction) *Entry {
	if path == "" {
		return nil
	}
	if e := m.table.scan(dir, func(e *Entry) bool { return e.Target == path }); e != nil {
		return e
	}
	cn := m.resolver.Resolve(path)
	return m.table.scan(dir, func(e *Entry) bool { return m.resolver.Resolve(e.Target) == cn })
}

// FindPair returns the first entry whose source and target both match in
// the same record, or nil. This is stricter than intersecting FindSource
// and FindTarget results: both fields must co-occur in one entry.
func (m *Matcher) FindPair(source, target string, dir Direction) *Entry {
	if source == "" || target == "" {
		return nil
	}
	return m.table.scan(dir, func(e *Entry) bool {
		return m.pathEq(e.Source, source) && m.pathEq(e.Target, target)
	})
}

// FindMountpoint returns the entry governing path: the one whose target is
// the longest ancestor of path, the path itself included. Ties between
// equal targets go to the first hit in the scan direction. Returns nil when
// not even a root entry exists.
func (m *Matcher) FindMountpoint(path string, dir Direction) *Entry {
	if path == "" {
		return nil
	}
	mnt := filepath.Clean(path)
	for {
		if e := m.FindTarget(mnt, dir); e != nil {
			return e
		}
		if mnt == "/" || mnt == "." {
			return nil
		}
		mnt = filepath.Dir(mnt)
	}
}

// IsMounted reports whether e, typically an fstab entry of the matcher's
// table, is currently mounted according to ref, a table built from live
// mount state such as /proc/self/mountinfo. A reference entry counts when
// its canonical target equals e's and its source is compatible under the
// matcher's policy. Swap areas never appear in kernel mount tables and
// always report false.
func (m *Matcher) IsMounted(ref *Table, e *Entry) bool {
	if ref == nil || e == nil || ref.Len() == 0 {
		return false
	}
	if e.FSType == "swap" {
		return false
	}
	if e.Source == "" || e.Target == "" {
		return false
	}

	tgt := m.resolver.Resolve(e.Target)
	for _, r := range ref.Entries() {
		if m.resolver.Resolve(r.Target) != tgt {
			continue
		}
		if m.sourceCompatible(r, e) {
			return true
		}
	}
	return false
}

// pathEq compares two fields literally first, then canonicalized.
func (m *Matcher) pathEq(a, b string) bool {
	if a == b {
		return true
	}
	return m.resolver.Resolve(a) == m.resolver.Resolve(b)
}

// sourceCompatible decides whether a live mount entry r accounts for the
// configured entry e once their targets already matched.
func (m *Matcher) sourceCompatible(r, e *Entry) bool {
	if m.pathEq(r.Source, e.Source) {
		return true
	}
	if m.policy != AnySourceMatch {
		return false
	}
	// Bind and overlay mounts re-report the backing device rather than
	// the configured source, so the target match alone is authoritative.
	if e.HasOption("bind") || e.HasOption("rbind") {
		return true
	}
	if r.Root != "" && r.Root != "/" {
		return true
	}
	if r.FSType == "overlay" || e.FSType == "overlay" {
		return true
	}
	return false
}
