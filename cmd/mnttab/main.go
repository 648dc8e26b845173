package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/urfave/cli/v3"

	"github.com/kriansa/mnttab/internal/config"
	"github.com/kriansa/mnttab/internal/log"
	"github.com/kriansa/mnttab/internal/tab"
	"github.com/kriansa/mnttab/internal/version"
)

func main() {
	cmd := &cli.Command{
		Name:  "mnttab",
		Usage: "Query and edit fstab-style mount tables",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Configuration file path",
				Value:   config.DefaultConfigPath,
			},
			&cli.StringFlag{
				Name:    "fstab",
				Aliases: []string{"f"},
				Usage:   "Static mount table file to operate on",
			},
			&cli.StringFlag{
				Name:    "mountinfo",
				Aliases: []string{"m"},
				Usage:   "Live mount table used for is-mounted checks",
			},
			&cli.BoolFlag{
				Name:  "no-comments",
				Usage: "Discard comment text instead of preserving it",
			},
			&cli.BoolFlag{
				Name:  "no-lock",
				Usage: "Skip the advisory file lock around write commands",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
			&cli.BoolFlag{
				Name:    "version",
				Aliases: []string{"V"},
				Usage:   "Print version information",
			},
		},
		Commands: []*cli.Command{
			listCommand(),
			findCommand(),
			addCommand(),
			removeCommand(),
			isMountedCommand(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Bool("version") {
				fmt.Println(version.String())
				return nil
			}
			return fmt.Errorf("no command given, see --help")
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig builds the effective configuration from the config file and
// the global CLI flags, flags taking precedence.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	log.Setup(cmd.Bool("verbose"))

	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	cfg.Merge(
		cmd.String("fstab"),
		cmd.String("mountinfo"),
		cmd.Bool("no-comments"),
		cmd.Bool("no-lock"),
	)
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// parseTable reads the configured fstab, reporting malformed lines as
// warnings and skipping them.
func parseTable(cfg *config.Config) (*tab.Table, error) {
	t, err := tab.ParseFile(cfg.Fstab, tab.ParseOptions{
		Comments: cfg.CommentsEnabled(),
		OnError: func(file string, line int) bool {
			log.Warn("skipping malformed line", "file", file, "line", line)
			return true
		},
	})
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", cfg.Fstab, err)
	}
	return t, nil
}

func direction(cmd *cli.Command) tab.Direction {
	if cmd.Bool("last") {
		return tab.Backward
	}
	return tab.Forward
}

func printEntry(e *tab.Entry) {
	fmt.Println(e.String())
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "Print the entries of the mount table",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "live",
				Usage: "List the live mount table instead of the static one",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			path := cfg.Fstab
			if cmd.Bool("live") {
				path = cfg.Mountinfo
			}
			t, err := tab.ParseFile(path, tab.ParseOptions{})
			if err != nil {
				return fmt.Errorf("parse %s: %w", path, err)
			}
			for _, e := range t.Entries() {
				printEntry(e)
			}
			return nil
		},
	}
}

func findCommand() *cli.Command {
	return &cli.Command{
		Name:  "find",
		Usage: "Find an entry by source, target, source+target pair, or governing mountpoint",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "source",
				Aliases: []string{"s"},
				Usage:   "Match by source device or pseudo-source",
			},
			&cli.StringFlag{
				Name:    "target",
				Aliases: []string{"t"},
				Usage:   "Match by mountpoint path",
			},
			&cli.StringFlag{
				Name:    "mountpoint",
				Aliases: []string{"M"},
				Usage:   "Find the entry governing this path (longest ancestor)",
			},
			&cli.BoolFlag{
				Name:  "last",
				Usage: "Scan in reverse file order",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			t, err := parseTable(cfg)
			if err != nil {
				return err
			}
			m := tab.NewMatcher(t)
			dir := direction(cmd)

			var e *tab.Entry
			source, target, mountpoint := cmd.String("source"), cmd.String("target"), cmd.String("mountpoint")
			switch {
			case mountpoint != "":
				e = m.FindMountpoint(mountpoint, dir)
			case source != "" && target != "":
				e = m.FindPair(source, target, dir)
			case source != "":
				e = m.FindSource(source, dir)
			case target != "":
				e = m.FindTarget(target, dir)
			default:
				return fmt.Errorf("one of --source, --target or --mountpoint is required")
			}

			if e == nil {
				return cli.Exit("not found", 1)
			}
			printEntry(e)
			return nil
		},
	}
}

func addCommand() *cli.Command {
	return &cli.Command{
		Name:  "add",
		Usage: "Append an entry to the mount table",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "source",
				Aliases:  []string{"s"},
				Usage:    "Source device or pseudo-source",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "target",
				Aliases:  []string{"t"},
				Usage:    "Mountpoint path",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "type",
				Aliases: []string{"T"},
				Usage:   "Filesystem type",
				Value:   "auto",
			},
			&cli.StringFlag{
				Name:    "options",
				Aliases: []string{"o"},
				Usage:   "Mount options (passed through verbatim)",
				Value:   "defaults",
			},
			&cli.StringFlag{
				Name:  "freq",
				Usage: "dump(8) frequency field",
				Value: "0",
			},
			&cli.StringFlag{
				Name:  "pass",
				Usage: "fsck(8) pass number field",
				Value: "0",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			freq, err := strconv.Atoi(cmd.String("freq"))
			if err != nil {
				return fmt.Errorf("invalid --freq %q", cmd.String("freq"))
			}
			pass, err := strconv.Atoi(cmd.String("pass"))
			if err != nil {
				return fmt.Errorf("invalid --pass %q", cmd.String("pass"))
			}

			return withWriteAccess(cfg, func(t *tab.Table) error {
				t.Add(&tab.Entry{
					Source:  cmd.String("source"),
					Target:  cmd.String("target"),
					FSType:  cmd.String("type"),
					Options: cmd.String("options"),
					Freq:    freq,
					PassNo:  pass,
				})
				log.Info("entry added", "source", cmd.String("source"), "target", cmd.String("target"))
				return nil
			})
		},
	}
}

func removeCommand() *cli.Command {
	return &cli.Command{
		Name:  "remove",
		Usage: "Remove an entry from the mount table",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "source",
				Aliases: []string{"s"},
				Usage:   "Source of the entry to remove (with --target, both must match one entry)",
			},
			&cli.StringFlag{
				Name:    "target",
				Aliases: []string{"t"},
				Usage:   "Mountpoint of the entry to remove",
			},
			&cli.BoolFlag{
				Name:  "last",
				Usage: "Scan in reverse file order",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			source, target := cmd.String("source"), cmd.String("target")
			if source == "" && target == "" {
				return fmt.Errorf("one of --source or --target is required")
			}

			return withWriteAccess(cfg, func(t *tab.Table) error {
				m := tab.NewMatcher(t)
				dir := direction(cmd)

				var e *tab.Entry
				switch {
				case source != "" && target != "":
					e = m.FindPair(source, target, dir)
				case source != "":
					e = m.FindSource(source, dir)
				default:
					e = m.FindTarget(target, dir)
				}
				if e == nil {
					return fmt.Errorf("no matching entry")
				}

				t.Remove(e)
				log.Info("entry removed", "source", e.Source, "target", e.Target)
				return nil
			})
		},
	}
}

func isMountedCommand() *cli.Command {
	return &cli.Command{
		Name:  "is-mounted",
		Usage: "Check whether a configured entry is currently mounted",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "source",
				Aliases: []string{"s"},
				Usage:   "Source of the entry to check",
			},
			&cli.StringFlag{
				Name:    "target",
				Aliases: []string{"t"},
				Usage:   "Mountpoint of the entry to check",
			},
			&cli.BoolFlag{
				Name:  "strict",
				Usage: "Require exact source equality even for bind mounts",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			source, target := cmd.String("source"), cmd.String("target")
			if source == "" && target == "" {
				return fmt.Errorf("one of --source or --target is required")
			}

			t, err := parseTable(cfg)
			if err != nil {
				return err
			}
			m := tab.NewMatcher(t)
			if cmd.Bool("strict") {
				m.SetPolicy(tab.ExactSourceMatch)
			}

			var e *tab.Entry
			switch {
			case source != "" && target != "":
				e = m.FindPair(source, target, tab.Forward)
			case source != "":
				e = m.FindSource(source, tab.Forward)
			default:
				e = m.FindTarget(target, tab.Forward)
			}
			if e == nil {
				return fmt.Errorf("no matching entry in %s", cfg.Fstab)
			}

			ref, err := tab.ParseFile(cfg.Mountinfo, tab.ParseOptions{})
			if err != nil {
				return fmt.Errorf("parse %s: %w", cfg.Mountinfo, err)
			}

			if !m.IsMounted(ref, e) {
				return cli.Exit("not mounted", 1)
			}
			fmt.Println("mounted")
			return nil
		},
	}
}

// withWriteAccess runs a read-modify-write cycle on the configured fstab:
// parse, mutate, atomic replace, holding the advisory lock when enabled. A
// missing table file starts the cycle from an empty table.
func withWriteAccess(cfg *config.Config, mutate func(*tab.Table) error) error {
	if cfg.LockEnabled() {
		lock := tab.NewFileLock(cfg.Fstab)
		if err := lock.Lock(); err != nil {
			return err
		}
		defer func() {
			if err := lock.Unlock(); err != nil {
				log.Warn("failed to release lock", "error", err)
			}
		}()
	}

	t, err := parseTable(cfg)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		t = tab.New(cfg.CommentsEnabled())
	}

	if err := mutate(t); err != nil {
		return err
	}

	if err := tab.NewUpdater().Replace(t, cfg.Fstab); err != nil {
		return fmt.Errorf("update %s: %w", cfg.Fstab, err)
	}
	log.Debug("table replaced", "path", cfg.Fstab, "entries", t.Len())
	return nil
}
