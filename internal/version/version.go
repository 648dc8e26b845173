package version

import (
	"fmt"
	"runtime"
)

// Set via ldflags at build time
var (
	Version = "dev"
	Commit  = "unknown"
)

func String() string {
	return fmt.Sprintf("mnttab %s (commit: %s, go: %s)",
		Version, Commit, runtime.Version())
}
