package tab

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Replace steps reported by ReplaceError.
const (
	StepCreate = "create"
	StepWrite  = "write"
	StepSync   = "sync"
	StepChmod  = "chmod"
	StepClose  = "close"
	StepRename = "rename"
)

// ReplaceError reports which step of an atomic replace failed. Whenever it
// is returned, the target file is untouched and the temporary file has
// been removed.
type ReplaceError struct {
	Step string
	Err  error
}

func (e *ReplaceError) Error() string {
	return fmt.Sprintf("replace (%s): %v", e.Step, e.Err)
}

func (e *ReplaceError) Unwrap() error {
	return e.Err
}

// Serialize renders the table as file text: intro comment, one line per
// entry preceded by its attached comment, then the trailing comment.
// Comment text is emitted only for tables built with comments enabled.
func Serialize(t *Table) []byte {
	var b strings.Builder
	if t.CommentsEnabled() && t.IntroComment != "" {
		b.WriteString(ensureNewline(t.IntroComment))
	}
	for _, e := range t.Entries() {
		if t.CommentsEnabled() && e.Comment != "" {
			b.WriteString(ensureNewline(e.Comment))
		}
		writeEntryLine(&b, e)
	}
	if t.CommentsEnabled() && t.TrailingComment != "" {
		b.WriteString(ensureNewline(t.TrailingComment))
	}
	return []byte(b.String())
}

// writeEntryLine emits one record with mangled fields. Empty source and
// fstype serialize as "none", empty options as "rw", matching what mount
// table updates have historically written.
func writeEntryLine(w io.StringWriter, e *Entry) {
	src, fstype, opts := e.Source, e.FSType, e.Options
	if src == "" {
		src = "none"
	}
	if fstype == "" {
		fstype = "none"
	}
	if opts == "" {
		opts = "rw"
	}
	_, _ = w.WriteString(fmt.Sprintf("%s %s %s %s %d %d\n",
		mangle(src), mangle(e.Target), mangle(fstype), mangle(opts),
		e.Freq, e.PassNo))
}

func ensureNewline(s string) string {
	if strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}

// Updater persists tables with a write-temp-then-rename atomic replace.
type Updater struct {
	// Overridable for fault-injection tests.
	syncFile func(*os.File) error
	rename   func(oldpath, newpath string) error
}

// NewUpdater returns an updater backed by the real filesystem.
func NewUpdater() *Updater {
	return &Updater{
		syncFile: (*os.File).Sync,
		rename:   os.Rename,
	}
}

// Replace atomically writes table to path. The serialized text goes to a
// temporary file in the same directory (so the final rename stays on one
// filesystem), is forced durable, and is renamed over path. A concurrent
// reader of path sees either the old content or the new content, never a
// partial write. On failure before the rename, the temporary file is
// removed, path is untouched, and the returned ReplaceError names the
// failing step. Replace never retries.
//
// Replace does not arbitrate between concurrent writers; callers needing
// that must hold a FileLock around the read-modify-write cycle.
func (u *Updater) Replace(t *Table, path string) error {
	data := Serialize(t)

	// Keep the mode of an existing file; fall back to the conventional
	// mount-table mode for a new one.
	mode := os.FileMode(0o644)
	if fi, err := os.Stat(path); err == nil {
		mode = fi.Mode().Perm()
	}

	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return &ReplaceError{Step: StepCreate, Err: err}
	}
	tmp := f.Name()
	fail := func(step string, err error) error {
		f.Close()
		os.Remove(tmp)
		return &ReplaceError{Step: step, Err: err}
	}

	if _, err := f.Write(data); err != nil {
		return fail(StepWrite, err)
	}
	if err := u.syncFile(f); err != nil {
		return fail(StepSync, err)
	}
	if err := f.Chmod(mode); err != nil {
		return fail(StepChmod, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return &ReplaceError{Step: StepClose, Err: err}
	}
	if err := u.rename(tmp, path); err != nil {
		os.Remove(tmp)
		return &ReplaceError{Step: StepRename, Err: err}
	}
	return nil
}
