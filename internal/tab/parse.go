package tab

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Format identifies the on-disk layout of a mount table.
type Format int

const (
	// FormatGuess inspects the first data line: a line starting with two
	// integers is mountinfo, anything else is fstab-style.
	FormatGuess Format = iota
	// FormatFstab covers fstab, mtab and /proc/mounts layouts.
	FormatFstab
	// FormatMountinfo covers /proc/self/mountinfo.
	FormatMountinfo
)

// ErrorPolicy decides what happens to a malformed table line when no
// per-line callback is set.
type ErrorPolicy int

const (
	// CollectAndContinue skips malformed lines and keeps parsing.
	CollectAndContinue ErrorPolicy = iota
	// StopOnFirstError aborts the parse on the first malformed line.
	StopOnFirstError
)

// ParseError describes a malformed table line.
type ParseError struct {
	File   string
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Reason)
}

// ParseOptions configures a parse.
type ParseOptions struct {
	// Comments retains comment text on the table and its entries.
	// Comment lines are still counted for line numbering when false,
	// but their text is discarded.
	Comments bool
	// Format forces the table format instead of guessing it.
	Format Format
	// Policy is the default reaction to a malformed line.
	Policy ErrorPolicy
	// OnError, when set, is invoked for every malformed line and its
	// return value overrides Policy: true continues (skipping the line),
	// false aborts the parse.
	OnError func(file string, line int) bool
}

// ParseFile reads and parses the mount table at path.
func ParseFile(path string, opts ParseOptions) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f, path, opts)
}

// Parse reads a mount table from r. The name identifies the input in
// diagnostics. An empty or all-comment input yields a table with zero
// entries and only the comment blocks populated.
func Parse(r io.Reader, name string, opts ParseOptions) (*Table, error) {
	t := New(opts.Comments)
	format := opts.Format

	// pending accumulates comment lines until the next data line claims
	// them; whatever is left at EOF becomes the trailing block.
	var pending strings.Builder

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSuffix(scanner.Text(), "\r")
		trimmed := strings.TrimSpace(raw)

		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			if !opts.Comments || format == FormatMountinfo {
				continue
			}
			// Comments before the first entry belong to the intro
			// block until that block is closed by a blank line;
			// afterwards they pend for the next entry.
			if t.Len() == 0 && !endsWithBlankLine(t.IntroComment) {
				t.IntroComment += raw + "\n"
			} else {
				pending.WriteString(raw + "\n")
			}
			continue
		}

		if format == FormatGuess {
			format = guessFormat(trimmed)
		}

		var (
			e   *Entry
			err error
		)
		switch format {
		case FormatMountinfo:
			e, err = parseMountinfoLine(trimmed)
		default:
			e, err = parseFstabLine(trimmed)
		}
		if err != nil {
			cont := opts.Policy == CollectAndContinue
			if opts.OnError != nil {
				cont = opts.OnError(name, line)
			}
			if !cont {
				return nil, &ParseError{File: name, Line: line, Reason: err.Error()}
			}
			continue
		}

		if opts.Comments {
			e.Comment = pending.String()
			pending.Reset()
		}
		t.Add(e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	if opts.Comments {
		t.TrailingComment = pending.String()
	}
	return t, nil
}

// endsWithBlankLine reports whether the last line of the accumulated block
// is blank, i.e. the block has been visually closed.
func endsWithBlankLine(s string) bool {
	if !strings.HasSuffix(s, "\n") {
		return false
	}
	s = s[:len(s)-1]
	i := strings.LastIndexByte(s, '\n')
	return strings.TrimSpace(s[i+1:]) == ""
}

// guessFormat distinguishes mountinfo from fstab-style content by the
// leading "<id> <parent>" integer pair of mountinfo lines.
func guessFormat(line string) Format {
	fields := strings.Fields(line)
	if len(fields) >= 2 {
		if _, err := strconv.Atoi(fields[0]); err == nil {
			if _, err := strconv.Atoi(fields[1]); err == nil {
				return FormatMountinfo
			}
		}
	}
	return FormatFstab
}

// parseFstabLine parses "source target fstype options [freq [passno]]".
// The two numeric fields default to zero when absent.
func parseFstabLine(s string) (*Entry, error) {
	fields := strings.Fields(s)
	if len(fields) < 4 || len(fields) > 6 {
		return nil, fmt.Errorf("expected 4 to 6 fields, got %d", len(fields))
	}
	e := &Entry{
		Source:  unmangle(fields[0]),
		Target:  unmangle(fields[1]),
		FSType:  unmangle(fields[2]),
		Options: unmangle(fields[3]),
	}
	var err error
	if len(fields) > 4 {
		if e.Freq, err = strconv.Atoi(fields[4]); err != nil {
			return nil, fmt.Errorf("bad dump frequency %q", fields[4])
		}
	}
	if len(fields) > 5 {
		if e.PassNo, err = strconv.Atoi(fields[5]); err != nil {
			return nil, fmt.Errorf("bad fsck pass number %q", fields[5])
		}
	}
	return e, nil
}

// parseMountinfoLine parses the kernel format
//
//	id parent maj:min root target vfs-options [optional fields] - fstype source fs-options
//
// where the optional fields run up to the " - " separator.
func parseMountinfoLine(s string) (*Entry, error) {
	sep := strings.Index(s, " - ")
	if sep < 0 {
		return nil, fmt.Errorf("missing optional-fields separator")
	}
	left := strings.Fields(s[:sep])
	right := strings.Fields(s[sep+3:])
	if len(left) < 6 {
		return nil, fmt.Errorf("expected at least 6 fields before separator, got %d", len(left))
	}
	if len(right) < 3 {
		return nil, fmt.Errorf("expected 3 fields after separator, got %d", len(right))
	}

	id, err := strconv.Atoi(left[0])
	if err != nil {
		return nil, fmt.Errorf("bad mount ID %q", left[0])
	}
	parent, err := strconv.Atoi(left[1])
	if err != nil {
		return nil, fmt.Errorf("bad parent mount ID %q", left[1])
	}

	e := &Entry{
		ID:         id,
		ParentID:   parent,
		Root:       unmangle(left[3]),
		Target:     unmangle(left[4]),
		VFSOptions: left[5],
		FSType:     right[0],
		Source:     unmangle(right[1]),
		FSOptions:  right[2],
	}
	e.Options = e.VFSOptions
	if e.FSOptions != "" {
		e.Options += "," + e.FSOptions
	}
	return e, nil
}
