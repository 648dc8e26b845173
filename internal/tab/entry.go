// Package tab parses, queries and rewrites mount-table files: static
// fstab-style tables, active mtab-style tables and kernel-reported
// mountinfo tables.
package tab

import (
	"strconv"
	"strings"
)

// Entry represents one record of a mount table.
type Entry struct {
	// Source is the device path, a LABEL=/UUID= reference, or a pseudo
	// filesystem source such as "tmpfs" or "none".
	Source string
	// Target is the mountpoint path.
	Target string
	// FSType is the filesystem type.
	FSType string
	// Options is the raw comma-separated option string. The engine passes
	// it through as opaque text and never interprets individual options.
	Options string
	// Freq is the dump(8) frequency field.
	Freq int
	// PassNo is the fsck(8) pass number field.
	PassNo int
	// Comment is the comment block physically attached to this record,
	// newline-terminated lines including their leading '#'. Empty when
	// the table was parsed with comments disabled.
	Comment string

	// Mountinfo fields, zero for fstab-style tables.

	// ID is the unique mount ID reported by the kernel.
	ID int
	// ParentID is the mount ID of the parent mount.
	ParentID int
	// Root is the pathname of the directory the mount is rooted at;
	// anything other than "/" indicates a bind mount.
	Root string
	// VFSOptions holds the per-mountpoint (fs-independent) options.
	VFSOptions string
	// FSOptions holds the per-superblock options.
	FSOptions string
}

// Clone returns an independent copy of the entry. Mutating the copy,
// including its attached comment, never affects the original.
func (e *Entry) Clone() *Entry {
	c := *e
	return &c
}

// HasOption reports whether the option list contains name, either bare or
// in name=value form.
func (e *Entry) HasOption(name string) bool {
	for _, opt := range strings.Split(e.Options, ",") {
		if opt == name {
			return true
		}
		if strings.HasPrefix(opt, name) && len(opt) > len(name) && opt[len(name)] == '=' {
			return true
		}
	}
	return false
}

// String renders the entry as a single table line without its comment.
func (e *Entry) String() string {
	var b strings.Builder
	writeEntryLine(&b, e)
	return strings.TrimSuffix(b.String(), "\n")
}

var mangler = strings.NewReplacer(
	`\`, `\134`,
	" ", `\040`,
	"\t", `\011`,
	"\n", `\012`,
)

// mangle escapes whitespace and backslashes in a table field using the
// octal notation fstab and /proc/mounts require.
func mangle(s string) string {
	return mangler.Replace(s)
}

// unmangle decodes \ooo octal escapes in a table field.
func unmangle(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+3 < len(s) {
			if n, err := strconv.ParseUint(s[i+1:i+4], 8, 8); err == nil {
				b.WriteByte(byte(n))
				i += 3
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
