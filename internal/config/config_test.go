package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mnttab.conf")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
fstab = "/tmp/fstab"
mountinfo = "/tmp/mountinfo"
comments = false
lock = false
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/fstab", cfg.Fstab)
	assert.Equal(t, "/tmp/mountinfo", cfg.Mountinfo)
	require.NotNil(t, cfg.Comments)
	assert.False(t, *cfg.Comments)
	require.NotNil(t, cfg.Lock)
	assert.False(t, *cfg.Lock)
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.conf"))
	require.NoError(t, err)
	assert.Equal(t, &Config{}, cfg)
}

func TestLoad_Malformed(t *testing.T) {
	path := writeConfig(t, "fstab = [broken")
	_, err := Load(path)
	require.Error(t, err)
}

func TestMerge_FlagsTakePrecedence(t *testing.T) {
	cfg := &Config{Fstab: "/from/file", Mountinfo: "/from/file/mi"}

	cfg.Merge("/from/flag", "", false, true)

	assert.Equal(t, "/from/flag", cfg.Fstab)
	assert.Equal(t, "/from/file/mi", cfg.Mountinfo, "empty flag leaves file value")
	assert.Nil(t, cfg.Comments, "unset bool flag leaves value undecided")
	require.NotNil(t, cfg.Lock)
	assert.False(t, *cfg.Lock)
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.ApplyDefaults()

	assert.Equal(t, DefaultFstabPath, cfg.Fstab)
	assert.Equal(t, DefaultMountinfoPath, cfg.Mountinfo)
	assert.True(t, cfg.CommentsEnabled())
	assert.True(t, cfg.LockEnabled())
}

func TestApplyDefaults_KeepsExplicitFalse(t *testing.T) {
	f := false
	cfg := &Config{Comments: &f, Lock: &f}
	cfg.ApplyDefaults()

	assert.False(t, cfg.CommentsEnabled())
	assert.False(t, cfg.LockEnabled())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"complete", Config{Fstab: "/etc/fstab", Mountinfo: "/proc/self/mountinfo"}, false},
		{"missing fstab", Config{Mountinfo: "/proc/self/mountinfo"}, true},
		{"missing mountinfo", Config{Fstab: "/etc/fstab"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
