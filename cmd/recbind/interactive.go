package main

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	json "github.com/goccy/go-json"

	"github.com/wippyai/recbind/binary"
	"github.com/wippyai/recbind/datum"
	"github.com/wippyai/recbind/schema"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	fieldStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type interactiveModel struct {
	err      error
	schema   *schema.Schema
	filename string
	hex      string
	decoded  string
	fields   []fieldInfo
	inputs   []textinput.Model
	selected int
	focusIdx int
	state    modelState
}

// fieldInfo is one input of the form: a record field, or the whole value
// for schemas that are not records.
type fieldInfo struct {
	name    string
	schema  *schema.Schema
	typeStr string
}

type modelState int

const (
	stateBrowse modelState = iota
	stateInputValues
	stateShowResult
)

func newInteractiveModel(filename string, s *schema.Schema) *interactiveModel {
	return &interactiveModel{
		filename: filename,
		schema:   s,
		state:    stateBrowse,
	}
}

type loadedMsg struct {
	fields []fieldInfo
}

type encodeResultMsg struct {
	err     error
	hex     string
	decoded string
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.loadFields
}

func (m *interactiveModel) loadFields() tea.Msg {
	if m.schema.Kind != schema.Record {
		return loadedMsg{fields: []fieldInfo{{name: "value", schema: m.schema, typeStr: m.schema.TypeName()}}}
	}
	fields := make([]fieldInfo, len(m.schema.Fields))
	for i, f := range m.schema.Fields {
		fields[i] = fieldInfo{name: f.Name, schema: f.Type, typeStr: f.Type.TypeName()}
	}
	return loadedMsg{fields: fields}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "q":
			if m.state != stateInputValues {
				return m, tea.Quit
			}

		case "up", "k":
			if m.state == stateBrowse && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateBrowse && m.selected < len(m.fields)-1 {
				m.selected++
			}

		case "enter":
			switch m.state {
			case stateBrowse:
				m.prepareInputs()
				m.state = stateInputValues
				return m, nil

			case stateInputValues:
				return m, m.encode

			case stateShowResult:
				m.state = stateInputValues
				m.err = nil
				return m, nil
			}

		case "tab":
			if m.state == stateInputValues && len(m.inputs) > 1 {
				m.inputs[m.focusIdx].Blur()
				m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
				m.inputs[m.focusIdx].Focus()
			}

		case "esc":
			switch m.state {
			case stateInputValues:
				m.state = stateBrowse
				m.inputs = nil
			case stateShowResult:
				m.state = stateBrowse
				m.hex, m.decoded = "", ""
				m.err = nil
			}
		}

	case loadedMsg:
		m.fields = msg.fields

	case encodeResultMsg:
		m.hex = msg.hex
		m.decoded = msg.decoded
		m.err = msg.err
		m.state = stateShowResult
	}

	if m.state == stateInputValues {
		var cmds []tea.Cmd
		for i := range m.inputs {
			var cmd tea.Cmd
			m.inputs[i], cmd = m.inputs[i].Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}

	return m, nil
}

// prepareInputs builds the form, keeping values already typed.
func (m *interactiveModel) prepareInputs() {
	if len(m.inputs) == len(m.fields) {
		return
	}
	m.inputs = make([]textinput.Model, len(m.fields))
	for i, f := range m.fields {
		ti := textinput.New()
		ti.Placeholder = f.typeStr
		ti.Prompt = f.name + ": "
		ti.Width = 40
		if i == m.selected {
			ti.Focus()
		}
		m.inputs[i] = ti
	}
	m.focusIdx = m.selected
}

func (m *interactiveModel) encode() tea.Msg {
	var value any
	if m.schema.Kind == schema.Record {
		obj := make(map[string]any, len(m.fields))
		for i, f := range m.fields {
			v, ok, err := parseInput(m.inputs[i].Value(), f.schema)
			if err != nil {
				return encodeResultMsg{err: fmt.Errorf("%s: %w", f.name, err)}
			}
			if ok {
				obj[f.name] = v
			}
		}
		value = obj
	} else {
		v, _, err := parseInput(m.inputs[0].Value(), m.schema)
		if err != nil {
			return encodeResultMsg{err: err}
		}
		value = v
	}

	native, err := fromJSON(value, m.schema, nil)
	if err != nil {
		return encodeResultMsg{err: err}
	}
	enc := binary.GetEncoder()
	defer binary.PutEncoder(enc)
	if err := datum.WriteAny(enc, m.schema, native); err != nil {
		return encodeResultMsg{err: err}
	}

	back, err := datum.ReadAny(binary.NewBytesDecoder(enc.Bytes()), m.schema)
	if err != nil {
		return encodeResultMsg{err: fmt.Errorf("decode back: %w", err)}
	}
	out, err := json.MarshalIndent(toJSON(back), "", "  ")
	if err != nil {
		return encodeResultMsg{err: err}
	}
	return encodeResultMsg{hex: hex.EncodeToString(enc.Bytes()), decoded: string(out)}
}

// parseInput reads one form value as JSON. Text that is not JSON is taken as
// a string when s accepts strings. An empty input reports false so that the
// field default applies.
func parseInput(text string, s *schema.Schema) (any, bool, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, false, nil
	}
	d := json.NewDecoder(strings.NewReader(text))
	d.UseNumber()
	var v any
	if err := d.Decode(&v); err != nil {
		if acceptsText(s) {
			return text, true, nil
		}
		return nil, false, fmt.Errorf("invalid value %q: %w", text, err)
	}
	return v, true, nil
}

func acceptsText(s *schema.Schema) bool {
	switch s.Kind {
	case schema.String, schema.Bytes, schema.Enum, schema.Fixed:
		return true
	case schema.Union:
		for _, b := range s.Branches {
			if acceptsText(b) {
				return true
			}
		}
	}
	return false
}

func (m *interactiveModel) View() string {
	if m.err != nil && m.state != stateShowResult {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}

	if len(m.fields) == 0 {
		return "Loading schema..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("Record Binder"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString(" ")
	b.WriteString(typeStyle.Render(m.schema.TypeName()))
	b.WriteString("\n\n")

	switch m.state {
	case stateBrowse:
		b.WriteString("Fields:\n\n")
		for i, f := range m.fields {
			line := fieldStyle.Render(f.name) + ": " + typeStyle.Render(f.typeStr)
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + f.name + ": " + f.typeStr))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter edit • q quit"))

	case stateInputValues:
		b.WriteString("Values as JSON, empty for the default:\n\n")
		for i, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString(" ")
			b.WriteString(typeStyle.Render(m.fields[i].typeStr))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab next field • enter encode • esc back"))

	case stateShowResult:
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString("Encoded:\n\n")
			b.WriteString(resultStyle.Render(m.hex))
			b.WriteString("\n\nDecoded:\n\n")
			b.WriteString(resultStyle.Render(m.decoded))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter edit • esc fields • q quit"))
	}

	return b.String()
}

func runInteractive(filename string, s *schema.Schema) error {
	p := tea.NewProgram(newInteractiveModel(filename, s), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
