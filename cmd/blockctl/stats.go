package main

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/joshuapare/blockkit/mem/alloc"
	"github.com/joshuapare/blockkit/mem/manager"
)

var (
	statsClasses string
	statsOps     int
	statsSeed    int64
)

func init() {
	cmd := newStatsCmd()
	cmd.Flags().StringVar(&statsClasses, "classes", "", "Class table, e.g. 16x64,32x32 (default BLOCKKIT_CLASSES or built-in)")
	cmd.Flags().IntVar(&statsOps, "ops", 10000, "Number of random operations")
	cmd.Flags().Int64Var(&statsSeed, "seed", 1, "Random seed")
	rootCmd.AddCommand(cmd)
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Run a random workload against a manager and show statistics",
		Long: `The stats command builds a multi-class manager, drives it with a seeded
random mix of allocations and frees, and reports per-class statistics.

Example:
  blockctl stats
  blockctl stats --classes 16x64,32x32 --ops 50000 --seed 7
  blockctl stats --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			classes := []manager.Class(cfg.Classes)
			if statsClasses != "" {
				parsed, err := manager.ParseClasses(statsClasses)
				if err != nil {
					return err
				}
				classes = parsed
			}
			if len(classes) == 0 {
				classes = manager.DefaultClasses
			}
			return runStats(classes, statsOps, statsSeed)
		},
	}
	return cmd
}

// ClassStats pairs a class with its pool counters.
type ClassStats struct {
	Class string `json:"class"`
	alloc.Stats
}

// WorkloadStats is the JSON form of a stats run.
type WorkloadStats struct {
	Source       string       `json:"source"`
	Ops          int          `json:"ops"`
	Seed         int64        `json:"seed"`
	Reserved     int          `json:"reserved_bytes"`
	Allocs       int          `json:"allocs"`
	Frees        int          `json:"frees"`
	Failed       int          `json:"failed"`
	Fallthroughs int          `json:"fallthroughs"`
	Live         int          `json:"live"`
	Classes      []ClassStats `json:"classes"`
}

func runStats(classes []manager.Class, ops int, seed int64) error {
	if ops < 0 {
		return fmt.Errorf("--ops must not be negative, got %d", ops)
	}

	src, err := newSource()
	if err != nil {
		return err
	}
	m, err := manager.New(src, classes)
	if err != nil {
		return fmt.Errorf("failed to create manager: %w", err)
	}
	defer m.Close()

	ws, err := runWorkload(m, ops, seed)
	if err != nil {
		return err
	}
	if err := m.Verify(); err != nil {
		return fmt.Errorf("manager state is inconsistent: %w", err)
	}
	ws.Source = sourceKind

	if jsonOut {
		return printJSON(ws)
	}
	printWorkload(ws)
	return nil
}

// runWorkload replays ops random operations. Allocations lean slightly
// ahead of frees so the pools fill up and fallthrough shows.
func runWorkload(m *manager.Manager, ops int, seed int64) (WorkloadStats, error) {
	rng := rand.New(rand.NewSource(seed))
	largest := m.Classes()[len(m.Classes())-1].BlockSize

	ws := WorkloadStats{Ops: ops, Seed: seed}
	var live []alloc.Addr
	for range ops {
		if len(live) > 0 && rng.Intn(100) < 45 {
			i := rng.Intn(len(live))
			addr := live[i]
			live[i] = live[len(live)-1]
			live = live[:len(live)-1]
			if err := m.Free(addr); err != nil {
				return ws, fmt.Errorf("free %#x: %w", uintptr(addr), err)
			}
			ws.Frees++
			continue
		}

		addr, _, err := m.Alloc(1 + rng.Intn(largest))
		switch {
		case errors.Is(err, alloc.ErrNoSpace):
			ws.Failed++
		case err != nil:
			return ws, err
		default:
			ws.Allocs++
			live = append(live, addr)
		}
	}

	st := m.Stats()
	ws.Reserved = st.Reserved
	ws.Fallthroughs = st.Fallthroughs
	ws.Live = len(live)
	for i, c := range m.Classes() {
		ws.Classes = append(ws.Classes, ClassStats{Class: c.String(), Stats: st.Pools[i]})
	}
	printVerbose("Workload finished with %d live allocations\n", len(live))
	return ws, nil
}

func printWorkload(ws WorkloadStats) {
	p := message.NewPrinter(language.English)

	printInfo("\nManager Statistics (%s source, seed %d)\n", ws.Source, ws.Seed)
	printInfo("%s\n\n", strings.Repeat("=", 40))

	printInfo("Workload:\n")
	printInfo("%s", p.Sprintf("  Operations: %d\n", ws.Ops))
	printInfo("%s", p.Sprintf("  Allocations: %d (%d failed)\n", ws.Allocs, ws.Failed))
	printInfo("%s", p.Sprintf("  Frees: %d\n", ws.Frees))
	printInfo("%s", p.Sprintf("  Fallthroughs: %d\n", ws.Fallthroughs))
	printInfo("%s", p.Sprintf("  Live: %d\n", ws.Live))
	printInfo("%s", p.Sprintf("  Reserved: %d bytes\n\n", ws.Reserved))

	printInfo("%-10s %8s %8s %10s %10s %10s %10s\n",
		"Class", "Free", "InUse", "HighWater", "Allocs", "Frees", "Exhausted")
	for _, cs := range ws.Classes {
		printInfo("%s", p.Sprintf("%-10s %8d %8d %10d %10d %10d %10d\n",
			cs.Class, cs.BlocksFree, cs.InUse, cs.HighWater, cs.AllocCalls, cs.FreeCalls, cs.Exhausted))
	}
}
