package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/joshuapare/blockkit/internal/config"
	"github.com/joshuapare/blockkit/internal/logger"
	"github.com/joshuapare/blockkit/mem/region"
)

var (
	// Global flags
	verbose    bool
	quiet      bool
	jsonOut    bool
	sourceKind string

	// cfg holds environment settings; flags that were set win over it.
	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:   "blockctl",
	Short: "Exercise blockkit's fixed-size block allocators",
	Long: `blockctl drives the blockkit allocators from the command line. It can
replay an alloc/free script against a single small block allocator or run a
random workload against a multi-class manager and report its statistics.

Defaults come from BLOCKKIT_* environment variables; flags override them.`,
	Version:           "0.1.0",
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().
		StringVar(&sourceKind, "source", region.KindHeap, "Memory source: heap or mmap")
}

// setup loads configuration and starts logging before any command runs.
func setup(cmd *cobra.Command, _ []string) error {
	c, err := config.Load()
	if err != nil {
		return err
	}
	cfg = c
	if !cmd.Flags().Changed("source") {
		sourceKind = cfg.Source
	}

	opts := cfg.LoggerOptions(verbose || cfg.LogDir != "")
	if verbose {
		opts.Level = logrus.DebugLevel
	}
	return logger.Init(opts)
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v\n", err)
		os.Exit(1)
	}
}

// newSource builds the region source selected by --source.
func newSource() (region.Source, error) {
	src, err := region.New(sourceKind)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s source: %w", sourceKind, err)
	}
	return src, nil
}

// Helper functions for output

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...any) {
	if !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printError prints an error message
func printError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format, args...)
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...any) {
	if verbose && !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
