package tab

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable_AddPreservesOrder(t *testing.T) {
	tbl := New(false)
	a := &Entry{Source: "/dev/sda1", Target: "/"}
	b := &Entry{Source: "/dev/sda2", Target: "/home"}
	c := &Entry{Source: "tmpfs", Target: "/tmp"}

	tbl.Add(a)
	tbl.Add(b)
	tbl.Add(c)

	require.Equal(t, 3, tbl.Len())
	assert.Equal(t, []*Entry{a, b, c}, tbl.Entries())
}

func TestTable_RemoveByIdentity(t *testing.T) {
	tbl := New(false)
	first := &Entry{Source: "/dev/sda1", Target: "/mnt"}
	dup := &Entry{Source: "/dev/sda1", Target: "/mnt"}
	last := &Entry{Source: "/dev/sda2", Target: "/home"}
	tbl.Add(first)
	tbl.Add(dup)
	tbl.Add(last)

	// Removing the second duplicate must not touch the equal-valued first.
	require.True(t, tbl.Remove(dup))
	assert.Equal(t, []*Entry{first, last}, tbl.Entries())

	assert.False(t, tbl.Remove(dup), "already removed")
	assert.False(t, tbl.Remove(&Entry{Source: "/dev/sda1", Target: "/mnt"}),
		"equal value, different identity")
}

func TestEntry_CloneIsIndependent(t *testing.T) {
	orig := &Entry{
		Source:  "/dev/sda1",
		Target:  "/",
		FSType:  "ext4",
		Options: "defaults",
		Comment: "# root\n",
	}

	cp := orig.Clone()
	cp.Options = "ro,noatime"
	cp.Comment = "# changed\n"

	assert.Equal(t, "defaults", orig.Options)
	assert.Equal(t, "# root\n", orig.Comment)
}

func TestEntry_HasOption(t *testing.T) {
	tests := []struct {
		name    string
		options string
		opt     string
		want    bool
	}{
		{"bare option", "rw,bind,relatime", "bind", true},
		{"key=value option", "rw,offset=1024", "offset", true},
		{"absent", "rw,relatime", "bind", false},
		{"prefix is not a match", "rw,binder", "bind", false},
		{"single option", "bind", "bind", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &Entry{Options: tt.options}
			if got := e.HasOption(tt.opt); got != tt.want {
				t.Errorf("HasOption(%q) on %q = %v, want %v", tt.opt, tt.options, got, tt.want)
			}
		})
	}
}

func TestEntry_String(t *testing.T) {
	e := &Entry{Source: "/dev/sda1", Target: "/mnt/with space", FSType: "ext4", Options: "defaults", PassNo: 2}
	assert.Equal(t, `/dev/sda1 /mnt/with\040space ext4 defaults 0 2`, e.String())
}
