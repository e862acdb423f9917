package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joshuapare/blockkit/mem/alloc"
)

var (
	simBlockSize  int
	simBlockCount int
	simOps        string
)

func init() {
	cmd := newSimulateCmd()
	cmd.Flags().IntVar(&simBlockSize, "block-size", 16, "Size of each block in bytes")
	cmd.Flags().IntVar(&simBlockCount, "block-count", 4, "Number of blocks")
	cmd.Flags().StringVar(&simOps, "ops", "", "Operations to replay, e.g. \"a a a f16 a\"")
	rootCmd.AddCommand(cmd)
}

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Replay an alloc/free script against one allocator",
		Long: `The simulate command builds a single small block allocator and replays a
whitespace-separated script against it, printing the result of every step.

Operations:
  a       allocate a full block
  a<N>    allocate N bytes
  f<OFF>  free the block at byte offset OFF from the region base

Example:
  blockctl simulate --block-size 16 --block-count 4 --ops "a a a f16 a"
  blockctl simulate --ops "a a a a a" --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			size, count := simBlockSize, simBlockCount
			if !cmd.Flags().Changed("block-size") && cfg.BlockSize > 0 {
				size = cfg.BlockSize
			}
			if !cmd.Flags().Changed("block-count") && cfg.BlockCount > 0 {
				count = cfg.BlockCount
			}
			return runSimulate(size, count, simOps)
		},
	}
	return cmd
}

type opKind int

const (
	opAlloc opKind = iota
	opFree
)

// scriptOp is one parsed script operation.
type scriptOp struct {
	kind opKind
	arg  int // bytes for alloc (-1 for a whole block), offset for free
}

func (o scriptOp) String() string {
	switch {
	case o.kind == opFree:
		return fmt.Sprintf("free %d", o.arg)
	case o.arg < 0:
		return "alloc"
	default:
		return fmt.Sprintf("alloc %d", o.arg)
	}
}

// parseScript turns "a a8 f16" into operations.
func parseScript(script string) ([]scriptOp, error) {
	var ops []scriptOp
	for i, tok := range strings.Fields(script) {
		var op scriptOp
		switch tok[0] {
		case 'a', 'A':
			op = scriptOp{kind: opAlloc, arg: -1}
		case 'f', 'F':
			op = scriptOp{kind: opFree}
		default:
			return nil, fmt.Errorf("op %d: unknown operation %q", i+1, tok)
		}

		if rest := tok[1:]; rest != "" {
			n, err := strconv.Atoi(rest)
			if err != nil || n < 0 {
				return nil, fmt.Errorf("op %d: bad number in %q", i+1, tok)
			}
			op.arg = n
		} else if op.kind == opFree {
			return nil, fmt.Errorf("op %d: free needs an offset, e.g. f16", i+1)
		}
		ops = append(ops, op)
	}
	if len(ops) == 0 {
		return nil, errors.New("no operations given; use --ops")
	}
	return ops, nil
}

// SimStep is the outcome of one script operation.
type SimStep struct {
	Op         string `json:"op"`
	Offset     int    `json:"offset"`
	OK         bool   `json:"ok"`
	Error      string `json:"error,omitempty"`
	BlocksFree int    `json:"blocks_free"`
}

// SimResult is the JSON form of a simulate run.
type SimResult struct {
	Source     string      `json:"source"`
	BlockSize  int         `json:"block_size"`
	BlockCount int         `json:"block_count"`
	Steps      []SimStep   `json:"steps"`
	Stats      alloc.Stats `json:"stats"`
}

func runSimulate(blockSize, blockCount int, script string) error {
	ops, err := parseScript(script)
	if err != nil {
		return err
	}

	src, err := newSource()
	if err != nil {
		return err
	}
	a, err := alloc.NewSmallBlock(src, blockSize, blockCount)
	if err != nil {
		return fmt.Errorf("failed to create allocator: %w", err)
	}
	defer a.Close()

	printVerbose("Allocator: %d blocks of %d bytes at %#x (%s)\n",
		blockCount, blockSize, uintptr(a.Base()), sourceKind)

	result := SimResult{
		Source:     sourceKind,
		BlockSize:  blockSize,
		BlockCount: blockCount,
		Steps:      make([]SimStep, 0, len(ops)),
	}
	for _, op := range ops {
		result.Steps = append(result.Steps, applyOp(a, op))
	}
	result.Stats = a.Stats()

	if err := a.Verify(); err != nil {
		return fmt.Errorf("allocator state is inconsistent: %w", err)
	}

	if jsonOut {
		return printJSON(result)
	}

	printInfo("\nSimulation: %d x %d bytes\n", blockCount, blockSize)
	printInfo("%s\n", strings.Repeat("-", 40))
	for i, step := range result.Steps {
		outcome := fmt.Sprintf("offset %d", step.Offset)
		if !step.OK {
			outcome = step.Error
		} else if strings.HasPrefix(step.Op, "free") {
			outcome = "ok"
		}
		printInfo("%3d. %-10s -> %-14s free=%d\n", i+1, step.Op, outcome, step.BlocksFree)
	}
	printInfo("\nAllocs: %d  Frees: %d  Exhausted: %d  Rejected: %d  High water: %d\n",
		result.Stats.AllocCalls, result.Stats.FreeCalls, result.Stats.Exhausted,
		result.Stats.Rejected, result.Stats.HighWater)
	return nil
}

// applyOp runs one operation. Allocator errors are part of the result, not failures.
func applyOp(a *alloc.SmallBlockAllocator, op scriptOp) SimStep {
	step := SimStep{Op: op.String()}
	switch op.kind {
	case opAlloc:
		size := op.arg
		if size < 0 {
			size = a.BlockSize()
		}
		addr, _, err := a.Alloc(size)
		if err != nil {
			step.Error = describe(err)
		} else {
			step.OK = true
			step.Offset = int(addr - a.Base())
		}
	case opFree:
		step.Offset = op.arg
		if err := a.Free(a.Base() + alloc.Addr(op.arg)); err != nil {
			step.Error = describe(err)
		} else {
			step.OK = true
		}
	}
	step.BlocksFree = a.BlocksFree()
	return step
}

// describe shortens allocator errors for the step table.
func describe(err error) string {
	switch {
	case errors.Is(err, alloc.ErrNoSpace):
		return "no space"
	case errors.Is(err, alloc.ErrTooLarge):
		return "too large"
	case errors.Is(err, alloc.ErrDoubleFree):
		return "double free"
	case errors.Is(err, alloc.ErrMisaligned):
		return "misaligned"
	case errors.Is(err, alloc.ErrNotOwned):
		return "not owned"
	default:
		return err.Error()
	}
}
