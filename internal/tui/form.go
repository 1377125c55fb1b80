package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mhollis/caseline/internal/schema"
)

var (
	formTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	formLabelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#CCCCCC"))
	formDescStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#777777"))
	formErrStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	formHintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA")).MarginTop(1)
)

// formField pairs a schema field with its input widget. Boolean fields use
// a toggle instead of free text.
type formField struct {
	field  schema.Field
	input  textinput.Model
	toggle bool
	errMsg string
}

// inputForm collects values for one action or question according to its
// parsed schema.
type inputForm struct {
	title  string
	form   schema.Form
	fields []formField
	focus  int
}

func newInputForm(title string, form schema.Form) *inputForm {
	f := &inputForm{title: title, form: form}
	for _, field := range form.Fields {
		ff := formField{field: field}
		if field.Kind != schema.KindBoolean {
			input := textinput.New()
			input.Prompt = ""
			input.Placeholder = field.Kind.String()
			input.CharLimit = 256
			ff.input = input
		}
		f.fields = append(f.fields, ff)
	}
	f.setFocus(0)
	return f
}

func (f *inputForm) setFocus(idx int) {
	if len(f.fields) == 0 {
		return
	}
	if idx < 0 {
		idx = 0
	}
	if idx >= len(f.fields) {
		idx = len(f.fields) - 1
	}
	f.focus = idx
	for i := range f.fields {
		if f.fields[i].field.Kind == schema.KindBoolean {
			continue
		}
		if i == idx {
			f.fields[i].input.Focus()
		} else {
			f.fields[i].input.Blur()
		}
	}
}

// Update routes key and input events into the focused field. It reports
// whether the message was consumed.
func (f *inputForm) Update(msg tea.Msg) (tea.Cmd, bool) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return f.updateFocused(msg), true
	}
	switch key.String() {
	case "up", "shift+tab":
		f.setFocus(f.focus - 1)
		return nil, true
	case "down", "tab":
		f.setFocus(f.focus + 1)
		return nil, true
	case " ":
		if f.focusedIsToggle() {
			f.fields[f.focus].toggle = !f.fields[f.focus].toggle
			return nil, true
		}
	}
	return f.updateFocused(msg), true
}

func (f *inputForm) updateFocused(msg tea.Msg) tea.Cmd {
	if len(f.fields) == 0 || f.fields[f.focus].field.Kind == schema.KindBoolean {
		return nil
	}
	var cmd tea.Cmd
	f.fields[f.focus].input, cmd = f.fields[f.focus].input.Update(msg)
	return cmd
}

func (f *inputForm) focusedIsToggle() bool {
	return len(f.fields) > 0 && f.fields[f.focus].field.Kind == schema.KindBoolean
}

// rawValues snapshots what the user has entered so far, untyped.
func (f *inputForm) rawValues() map[string]any {
	values := map[string]any{}
	for _, ff := range f.fields {
		if ff.field.Kind == schema.KindBoolean {
			values[ff.field.Key] = ff.toggle
			continue
		}
		if text := ff.input.Value(); text != "" {
			values[ff.field.Key] = text
		}
	}
	return values
}

// Coerce validates the collected values against the schema. A field that
// fails keeps its error message for rendering; no payload is produced until
// every field coerces.
func (f *inputForm) Coerce() (map[string]any, bool) {
	for i := range f.fields {
		f.fields[i].errMsg = ""
	}
	payload, err := f.form.Coerce(f.rawValues())
	if err == nil {
		return payload, true
	}
	if fieldErr, ok := err.(*schema.FieldError); ok {
		for i := range f.fields {
			if f.fields[i].field.Key == fieldErr.Key {
				f.fields[i].errMsg = fmt.Sprintf("not a valid %s", fieldErr.Kind)
			}
		}
	}
	return nil, false
}

func (f *inputForm) View() string {
	lines := []string{formTitleStyle.Render(f.title), ""}
	for i, ff := range f.fields {
		indicator := "  "
		if i == f.focus {
			indicator = "> "
		}
		label := formLabelStyle.Render(ff.field.Label())
		var widget string
		if ff.field.Kind == schema.KindBoolean {
			box := "[ ]"
			if ff.toggle {
				box = "[x]"
			}
			widget = fmt.Sprintf("%s %s", box, label)
		} else {
			widget = fmt.Sprintf("%s: %s", label, ff.input.View())
		}
		lines = append(lines, indicator+widget)
		if ff.field.Description != "" {
			lines = append(lines, "    "+formDescStyle.Render(ff.field.Description))
		}
		if ff.errMsg != "" {
			lines = append(lines, "    "+formErrStyle.Render("⚠ "+ff.errMsg))
		}
	}
	lines = append(lines, formHintStyle.Render("enter=submit  space=toggle  tab/↑↓=move  esc=back"))
	return strings.Join(lines, "\n")
}
