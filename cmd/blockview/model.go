package main

import (
	"errors"
	"fmt"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/joshuapare/blockkit/internal/logger"
	"github.com/joshuapare/blockkit/mem/alloc"
)

// writeClipboard is replaced in tests.
var writeClipboard = clipboard.WriteAll

// cellWidth is the rendered width of one block including its gap.
const cellWidth = 3

// defaultColumns is used until the terminal reports its size.
const defaultColumns = 16

// copyResultMsg reports the outcome of a clipboard write.
type copyResultMsg struct {
	text string
	err  error
}

// Model is the bubbletea model for the block viewer. The allocator is shared
// by every copy of the model that bubbletea makes.
type Model struct {
	alloc      *alloc.SmallBlockAllocator
	sourceKind string

	keys KeyMap
	help help.Model

	cursor   int
	width    int
	height   int
	showHelp bool

	status    string
	statusErr bool
}

// NewModel creates the viewer for an allocator.
func NewModel(a *alloc.SmallBlockAllocator, sourceKind string) Model {
	return Model{
		alloc:      a,
		sourceKind: sourceKind,
		keys:       DefaultKeyMap(),
		help:       help.New(),
		status:     "press a to allocate, ? for help",
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Close releases the allocator's memory.
func (m Model) Close() error {
	return m.alloc.Close()
}

func (m Model) blockAddr(i int) alloc.Addr {
	return m.alloc.Base() + alloc.Addr(i*m.alloc.BlockSize())
}

func (m Model) blockOf(addr alloc.Addr) int {
	return int(addr-m.alloc.Base()) / m.alloc.BlockSize()
}

func (m Model) isLive(i int) bool {
	return m.alloc.Contains(m.blockAddr(i))
}

// columns returns how many blocks fit on one grid row.
func (m Model) columns() int {
	cols := defaultColumns
	if m.width > 0 {
		// Border and padding take two columns on each side.
		cols = (m.width - 4) / cellWidth
	}
	return max(1, min(cols, m.alloc.BlockCount()))
}

func (m *Model) setStatus(format string, args ...any) {
	m.status = fmt.Sprintf(format, args...)
	m.statusErr = false
}

func (m *Model) setError(format string, args ...any) {
	m.status = fmt.Sprintf(format, args...)
	m.statusErr = true
	logger.Component("blockview").Debug(m.status)
}

func (m *Model) moveTo(i int) {
	m.cursor = max(0, min(i, m.alloc.BlockCount()-1))
}

// allocate takes the lowest free block and moves the cursor onto it.
func (m *Model) allocate() {
	addr, _, err := m.alloc.Alloc(m.alloc.BlockSize())
	if errors.Is(err, alloc.ErrNoSpace) {
		m.setError("no free block: all %d in use", m.alloc.BlockCount())
		return
	}
	if err != nil {
		m.setError("alloc failed: %v", err)
		return
	}
	m.cursor = m.blockOf(addr)
	m.setStatus("allocated block %d at %#x", m.cursor, uintptr(addr))
}

// freeCursor frees the block under the cursor. Freeing a free block is
// passed through so the allocator's rejection is visible.
func (m *Model) freeCursor() {
	addr := m.blockAddr(m.cursor)
	if err := m.alloc.Free(addr); err != nil {
		switch {
		case errors.Is(err, alloc.ErrDoubleFree):
			m.setError("block %d is not allocated (double free rejected)", m.cursor)
		default:
			m.setError("free failed: %v", err)
		}
		return
	}
	m.setStatus("freed block %d at %#x", m.cursor, uintptr(addr))
}

func (m *Model) freeAll() {
	freed := 0
	for i := range m.alloc.BlockCount() {
		if !m.isLive(i) {
			continue
		}
		if err := m.alloc.Free(m.blockAddr(i)); err != nil {
			m.setError("free block %d: %v", i, err)
			return
		}
		freed++
	}
	m.setStatus("freed %d blocks", freed)
}

// nextLive moves the cursor to the next allocated block, wrapping around.
func (m *Model) nextLive() {
	n := m.alloc.BlockCount()
	for step := 1; step <= n; step++ {
		i := (m.cursor + step) % n
		if m.isLive(i) {
			m.cursor = i
			return
		}
	}
	m.setError("no allocated blocks")
}

// copyCursor copies the cursor block's address to the clipboard.
func (m Model) copyCursor() tea.Cmd {
	text := fmt.Sprintf("%#x", uintptr(m.blockAddr(m.cursor)))
	return func() tea.Msg {
		return copyResultMsg{text: text, err: writeClipboard(text)}
	}
}
