package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

const (
	// DefaultConfigPath is the default location for the config file
	DefaultConfigPath = "/etc/mnttab.conf"
	// DefaultFstabPath is the static mount table edited by write commands
	DefaultFstabPath = "/etc/fstab"
	// DefaultMountinfoPath is the kernel-reported live mount table
	DefaultMountinfoPath = "/proc/self/mountinfo"
)

// Config holds the tool configuration
type Config struct {
	// Fstab is the static mount table file to query and edit
	Fstab string `toml:"fstab"`
	// Mountinfo is the live mount table used for is-mounted checks
	Mountinfo string `toml:"mountinfo"`
	// Comments keeps comment text intact across read-modify-write cycles
	// (default true)
	Comments *bool `toml:"comments"`
	// Lock takes an advisory file lock around write commands
	// (default true)
	Lock *bool `toml:"lock"`
}

// Load loads configuration from a TOML file
// Returns an empty config if the file doesn't exist
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	return cfg, nil
}

// Merge merges CLI flags into the config, with CLI flags taking precedence
// over config file values. Empty or unset CLI values are ignored.
func (c *Config) Merge(fstab, mountinfo string, noComments, noLock bool) {
	if fstab != "" {
		c.Fstab = fstab
	}
	if mountinfo != "" {
		c.Mountinfo = mountinfo
	}
	if noComments {
		f := false
		c.Comments = &f
	}
	if noLock {
		f := false
		c.Lock = &f
	}
}

// ApplyDefaults applies default values for any unset fields
func (c *Config) ApplyDefaults() {
	if c.Fstab == "" {
		c.Fstab = DefaultFstabPath
	}
	if c.Mountinfo == "" {
		c.Mountinfo = DefaultMountinfoPath
	}
	if c.Comments == nil {
		t := true
		c.Comments = &t
	}
	if c.Lock == nil {
		t := true
		c.Lock = &t
	}
}

// CommentsEnabled reports whether comment text is retained across a
// read-modify-write cycle. Call after ApplyDefaults.
func (c *Config) CommentsEnabled() bool {
	return c.Comments != nil && *c.Comments
}

// LockEnabled reports whether write commands take the advisory lock. Call
// after ApplyDefaults.
func (c *Config) LockEnabled() bool {
	return c.Lock != nil && *c.Lock
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Fstab == "" {
		return fmt.Errorf("fstab path is required (use --fstab or set 'fstab' in config file)")
	}
	if c.Mountinfo == "" {
		return fmt.Errorf("mountinfo path is required (use --mountinfo or set 'mountinfo' in config file)")
	}
	return nil
}
