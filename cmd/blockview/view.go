package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	overlay "github.com/rmhubbert/bubbletea-overlay"
)

const (
	freeGlyph = "··"
	usedGlyph = "██"
)

// View renders the entire UI
func (m Model) View() string {
	if !m.showHelp {
		return m.renderMain()
	}
	// Rebuilt on every render; bubbletea hands Update a copy of the model.
	helpOverlay := overlay.New(
		&helpPanel{keys: m.keys, help: m.help},
		&mainView{model: &m},
		overlay.Center,
		overlay.Center,
		0,
		0,
	)
	return helpOverlay.View()
}

func (m Model) renderMain() string {
	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.renderHeader(),
		m.renderGrid(),
		m.renderCursor(),
		m.renderStatus(),
		m.help.View(m.keys),
	)
}

func (m Model) renderHeader() string {
	geometry := fmt.Sprintf("%d blocks x %d bytes at %#x (%s)",
		m.alloc.BlockCount(), m.alloc.BlockSize(), uintptr(m.alloc.Base()), m.sourceKind)
	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		headerStyle.Render("Block Allocator Viewer"),
		"  ",
		geometryStyle.Render(geometry),
	)
}

// renderGrid draws one cell per block, row-major by block index.
func (m Model) renderGrid() string {
	cols := m.columns()
	var b strings.Builder
	for i := range m.alloc.BlockCount() {
		if i > 0 && i%cols == 0 {
			b.WriteString("\n")
		} else if i > 0 {
			b.WriteString(" ")
		}

		style, glyph := freeCellStyle, freeGlyph
		if m.isLive(i) {
			style, glyph = usedCellStyle, usedGlyph
		}
		if i == m.cursor {
			style = cursorCellStyle
		}
		b.WriteString(style.Render(glyph))
	}
	return gridStyle.Render(b.String())
}

func (m Model) renderCursor() string {
	state := "free"
	if m.isLive(m.cursor) {
		state = "allocated"
	}
	return statusStyle.Render(fmt.Sprintf("block %d  offset %d  addr %#x  %s",
		m.cursor, m.cursor*m.alloc.BlockSize(), uintptr(m.blockAddr(m.cursor)), state))
}

func (m Model) renderStatus() string {
	st := m.alloc.Stats()
	counts := statusCountStyle.Render(fmt.Sprintf("free %d/%d", st.BlocksFree, st.BlockCount))
	detail := fmt.Sprintf("high water %d  allocs %d  frees %d  rejected %d",
		st.HighWater, st.AllocCalls, st.FreeCalls, st.Rejected)

	msg := m.status
	if m.statusErr {
		msg = errorStyle.Render(msg)
	}
	return statusStyle.Render(lipgloss.JoinVertical(lipgloss.Left, counts+"  "+detail, msg))
}

// helpPanel is the foreground of the help overlay.
type helpPanel struct {
	keys KeyMap
	help help.Model
}

func (h *helpPanel) Init() tea.Cmd                       { return nil }
func (h *helpPanel) Update(tea.Msg) (tea.Model, tea.Cmd) { return h, nil }

func (h *helpPanel) View() string {
	return modalStyle.Render(lipgloss.JoinVertical(
		lipgloss.Left,
		modalTitleStyle.Render("Keyboard Shortcuts"),
		h.help.FullHelpView(h.keys.FullHelp()),
	))
}

// mainView wraps the main screen for use as overlay background.
type mainView struct {
	model *Model
}

func (v *mainView) Init() tea.Cmd                       { return nil }
func (v *mainView) Update(tea.Msg) (tea.Model, tea.Cmd) { return v, nil }
func (v *mainView) View() string                        { return v.model.renderMain() }
