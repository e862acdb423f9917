package main

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// Update handles all messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case copyResultMsg:
		if msg.err != nil {
			m.setError("copy failed: %v", msg.err)
		} else {
			m.setStatus("copied %s", msg.text)
		}
		return m, nil

	case tea.KeyMsg:
		if m.showHelp {
			switch {
			case key.Matches(msg, m.keys.Esc), key.Matches(msg, m.keys.Help):
				m.showHelp = false
			case key.Matches(msg, m.keys.Quit):
				return m, tea.Quit
			}
			// Ignore other keys when help is showing
			return m, nil
		}
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	cols := m.columns()
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true

	case key.Matches(msg, m.keys.Up):
		if m.cursor-cols >= 0 {
			m.cursor -= cols
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor+cols < m.alloc.BlockCount() {
			m.cursor += cols
		}
	case key.Matches(msg, m.keys.Left):
		m.moveTo(m.cursor - 1)
	case key.Matches(msg, m.keys.Right):
		m.moveTo(m.cursor + 1)
	case key.Matches(msg, m.keys.Home):
		m.moveTo(0)
	case key.Matches(msg, m.keys.End):
		m.moveTo(m.alloc.BlockCount() - 1)

	case key.Matches(msg, m.keys.Alloc):
		m.allocate()
	case key.Matches(msg, m.keys.Free):
		m.freeCursor()
	case key.Matches(msg, m.keys.FreeAll):
		m.freeAll()
	case key.Matches(msg, m.keys.NextLive):
		m.nextLive()
	case key.Matches(msg, m.keys.Copy):
		return m, m.copyCursor()
	}
	return m, nil
}
