// Command blockview is an interactive block map for a small block allocator.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/joshuapare/blockkit/internal/config"
	"github.com/joshuapare/blockkit/internal/logger"
	"github.com/joshuapare/blockkit/mem/alloc"
	"github.com/joshuapare/blockkit/mem/region"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// viewOptions holds the parsed command line.
type viewOptions struct {
	blockSize   int
	blockCount  int
	source      string
	debug       bool
	showVersion bool
}

// parseFlags reads args into viewOptions. Unset flags take their value
// from cfg.
func parseFlags(fs *pflag.FlagSet, args []string, cfg config.Config) (viewOptions, error) {
	var vo viewOptions
	fs.IntVarP(&vo.blockSize, "block-size", "s", cfg.BlockSize, "size of each block in bytes")
	fs.IntVarP(&vo.blockCount, "block-count", "n", cfg.BlockCount, "number of blocks")
	fs.StringVar(&vo.source, "source", cfg.Source, "memory source: heap or mmap")
	fs.BoolVarP(&vo.debug, "debug", "d", false, "log to ~/.blockkit/logs/")
	fs.BoolVarP(&vo.showVersion, "version", "v", false, "print version information")
	if err := fs.Parse(args); err != nil {
		return viewOptions{}, err
	}
	return vo, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	vo, err := parseFlags(pflag.NewFlagSet("blockview", pflag.ExitOnError), os.Args[1:], cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if vo.showVersion {
		fmt.Printf("blockview %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built: %s\n", date)
		return
	}

	// The terminal belongs to the UI, so logs only ever go to a file.
	opts := cfg.LoggerOptions(vo.debug)
	opts.Level = logrus.DebugLevel
	if opts.LogDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			opts.LogDir = filepath.Join(home, ".blockkit", "logs")
		} else {
			opts.Enabled = false
		}
	}
	if err := logger.Init(opts); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to init logging: %v\n", err)
	}

	src, err := region.New(vo.source)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	a, err := alloc.NewSmallBlock(src, vo.blockSize, vo.blockCount)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to create allocator: %v\n", err)
		os.Exit(1)
	}
	log := logger.Component("blockview")
	log.WithFields(logrus.Fields{"block_size": vo.blockSize, "block_count": vo.blockCount}).Info("starting blockview")

	p := tea.NewProgram(NewModel(a, vo.source), tea.WithAltScreen())
	finalModel, err := p.Run()
	if err != nil {
		log.WithError(err).Error("TUI error")
		fmt.Fprintf(os.Stderr, "Error running TUI: %v\n", err)
		_ = a.Close()
		os.Exit(1)
	}

	if model, ok := finalModel.(Model); ok {
		if err := model.Close(); err != nil {
			log.WithError(err).Warn("error closing allocator")
		}
	}
	log.Info("blockview exited normally")
}
