package tab

// Direction selects the scan order for table lookups.
type Direction int

const (
	// Forward scans entries in file order.
	Forward Direction = iota
	// Backward scans entries in reverse file order.
	Backward
)

// Table owns an ordered collection of mount entries plus the free-standing
// comment blocks preceding the first entry and following the last one.
// Entry order is file order and is preserved across adds and removals.
//
// A Table has no internal locking. Concurrent readers are fine; callers
// sharing a table with a writer must serialize access themselves.
type Table struct {
	// IntroComment is the comment block at the top of the file, before
	// the first entry.
	IntroComment string
	// TrailingComment is the comment block after the last entry.
	TrailingComment string

	entries  []*Entry
	comments bool
}

// New returns an empty table. When withComments is true, comment text is
// retained during parsing and reproduced on serialization; otherwise
// comment lines are discarded entirely.
func New(withComments bool) *Table {
	return &Table{comments: withComments}
}

// CommentsEnabled reports whether the table retains comment text.
func (t *Table) CommentsEnabled() bool {
	return t.comments
}

// Len returns the number of entries.
func (t *Table) Len() int {
	return len(t.entries)
}

// Entries returns the entries in file order. The slice is shared with the
// table and must not be modified by the caller.
func (t *Table) Entries() []*Entry {
	return t.entries
}

// Add appends an entry, preserving the order of the existing ones.
func (t *Table) Add(e *Entry) {
	t.entries = append(t.entries, e)
}

// Remove deletes the entry by identity, not by value, so duplicates of an
// equal-valued entry stay untouched. The relative order of the remaining
// entries is preserved. It reports whether the entry was found.
func (t *Table) Remove(e *Entry) bool {
	for i, cur := range t.entries {
		if cur == e {
			t.entries = append(t.entries[:i], t.entries[i+1:]...)
			return true
		}
	}
	return false
}

// scan visits entries in the given direction and returns the first one the
// predicate accepts, or nil.
func (t *Table) scan(dir Direction, match func(*Entry) bool) *Entry {
	if dir == Backward {
		for i := len(t.entries) - 1; i >= 0; i-- {
			if match(t.entries[i]) {
				return t.entries[i]
			}
		}
		return nil
	}
	for _, e := range t.entries {
		if match(e) {
			return e
		}
	}
	return nil
}
