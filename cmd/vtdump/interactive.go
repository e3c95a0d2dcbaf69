package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/variant-runtime/variant"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type interactiveModel struct {
	err      error
	conv     *variant.Converter
	filename string
	entries  []entry
	input    textinput.Model
	selected int
	state    modelState
}

type modelState int

const (
	stateBrowse modelState = iota
	stateInputAddr
	stateShowValue
)

func newInteractiveModel(filename string, addrs []uint32) *interactiveModel {
	m := &interactiveModel{
		filename: filename,
		state:    stateBrowse,
	}
	for _, addr := range addrs {
		m.entries = append(m.entries, entry{Addr: addr})
	}
	return m
}

type loadedMsg struct {
	err  error
	conv *variant.Converter
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.loadImage
}

func (m *interactiveModel) loadImage() tea.Msg {
	conv, err := openImage(m.filename)
	return loadedMsg{conv: conv, err: err}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.state == stateInputAddr {
			return m.updateInput(msg)
		}
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit

		case "up", "k":
			if m.state == stateBrowse && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateBrowse && m.selected < len(m.entries)-1 {
				m.selected++
			}

		case "a":
			if m.state == stateBrowse && m.conv != nil {
				m.prepareInput()
				m.state = stateInputAddr
				return m, textinput.Blink
			}

		case "enter":
			switch m.state {
			case stateBrowse:
				if len(m.entries) > 0 {
					m.state = stateShowValue
				}
			case stateShowValue:
				m.state = stateBrowse
			}

		case "esc":
			if m.state == stateShowValue {
				m.state = stateBrowse
			}
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.conv = msg.conv
		for i := range m.entries {
			m.entries[i] = decodeEntry(m.conv, m.entries[i].Addr)
		}
	}

	return m, nil
}

func (m *interactiveModel) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.state = stateBrowse
		return m, nil
	case "enter":
		addr, err := parseAddr(m.input.Value())
		if err != nil {
			m.input.SetValue("")
			m.input.Placeholder = err.Error()
			return m, nil
		}
		m.entries = append(m.entries, decodeEntry(m.conv, addr))
		m.selected = len(m.entries) - 1
		m.state = stateShowValue
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *interactiveModel) prepareInput() {
	ti := textinput.New()
	ti.Placeholder = "0x10"
	ti.Prompt = "address: "
	ti.Width = 20
	ti.Focus()
	m.input = ti
}

func (m *interactiveModel) View() string {
	if m.err != nil {
		return failStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}

	if m.conv == nil {
		return "Loading image..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("Variant Dump"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n\n")

	switch m.state {
	case stateBrowse:
		if len(m.entries) == 0 {
			b.WriteString("No addresses yet.\n")
		}
		for i, e := range m.entries {
			line := fmt.Sprintf("0x%08x  %s", e.Addr, e.Tag)
			if e.Err != nil {
				line += "  " + failStyle.Render("error")
			}
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + line))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter show • a add address • q quit"))

	case stateInputAddr:
		b.WriteString(m.input.View())
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter decode • esc back"))

	case stateShowValue:
		e := m.entries[m.selected]
		b.WriteString(fmt.Sprintf("Value at %s:\n\n", addrStyle.Render(fmt.Sprintf("0x%08x", e.Addr))))
		if e.Tag != "" {
			b.WriteString(tagStyle.Render(e.Tag))
			b.WriteString("\n")
		}
		if e.Err != nil {
			b.WriteString(failStyle.Render(fmt.Sprintf("Error: %v", e.Err)))
		} else {
			b.WriteString(valueStyle.Render(formatValue(e.Value)))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	return b.String()
}

func runInteractive(filename string, addrs []uint32) error {
	p := tea.NewProgram(newInteractiveModel(filename, addrs), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
