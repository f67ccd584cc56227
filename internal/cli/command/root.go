// Package command wires the ordkv-cli process: flag parsing via
// urfave/cli/v2 and dispatch into the interactive REPL against an
// embedded engine.
package command

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/ordkv/ordkv/internal/cli/repl"
	"github.com/ordkv/ordkv/internal/kv/compaction"
	"github.com/ordkv/ordkv/internal/kv/engine"
)

// Build information, set via ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// App creates the ordkv-cli application.
func App() *cli.App {
	return &cli.App{
		Name:    "ordkv-cli",
		Usage:   "interactive command shell for an embedded ordkv store",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildTime),
		Flags:   globalFlags(),
		Action:  runREPL,
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "data-dir",
			Aliases: []string{"d"},
			Usage:   "directory holding the WAL, SSTables, and MANIFEST",
			EnvVars: []string{"ORDKV_DATA_DIR"},
			Value:   "./ordkv-data",
		},
		&cli.StringFlag{
			Name:  "compaction",
			Usage: "initial compaction strategy: LEVELED, TIERED, SIZE_TIERED, TIME_WINDOW",
			Value: "LEVELED",
		},
	}
}

func runREPL(c *cli.Context) error {
	cfg := engine.DefaultConfig(c.String("data-dir"))
	if s, err := compactionStrategy(c.String("compaction")); err != nil {
		return err
	} else {
		cfg.CompactionStrategy = s
	}

	eng, err := engine.Open(cfg)
	if err != nil {
		return fmt.Errorf("open engine: %w", err)
	}
	defer eng.Close()

	return repl.New(eng).Run()
}

func compactionStrategy(name string) (compaction.Strategy, error) {
	switch name {
	case "LEVELED", "":
		return compaction.Leveled{}, nil
	case "TIERED":
		return compaction.NewTiered(), nil
	case "SIZE_TIERED":
		return compaction.NewSizeTiered(), nil
	case "TIME_WINDOW":
		return compaction.NewTimeWindow(), nil
	default:
		return nil, fmt.Errorf("unknown compaction strategy %q", name)
	}
}

// PrintError prints an error message to stderr.
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}
