package prompt

import (
	"context"
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nibzard/roadmapper/internal/fsaccess"
)

var (
	questionStyle = lipgloss.NewStyle().Bold(true)
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	hintStyle     = lipgloss.NewStyle().Faint(true)
)

type chooserModel struct {
	question  string
	options   []string
	cursor    int
	chosen    int
	cancelled bool
}

func newChooserModel(question string, options []string) *chooserModel {
	return &chooserModel{question: question, options: options, chosen: -1}
}

func (m *chooserModel) Init() tea.Cmd {
	return nil
}

func (m *chooserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "ctrl+c", "esc", "q":
		m.cancelled = true
		return m, tea.Quit
	case "up", "k", "left", "h", "shift+tab":
		m.cursor = (m.cursor + len(m.options) - 1) % len(m.options)
	case "down", "j", "right", "l", "tab":
		m.cursor = (m.cursor + 1) % len(m.options)
	case "enter", " ":
		m.chosen = m.cursor
		return m, tea.Quit
	default:
		if idx, ok := shortcut(strings.ToLower(key.String()), m.options); ok {
			m.cursor = idx
			m.chosen = idx
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m *chooserModel) View() string {
	if m.chosen >= 0 || m.cancelled {
		return ""
	}
	var b strings.Builder
	b.WriteString(questionStyle.Render(m.question))
	b.WriteString("\n\n")
	for i, opt := range m.options {
		if i == m.cursor {
			b.WriteString(selectedStyle.Render("> " + opt))
		} else {
			b.WriteString("  " + opt)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(hintStyle.Render("arrows to move, enter to choose, esc to cancel"))
	b.WriteString("\n")
	return b.String()
}

func runChooser(ctx context.Context, in io.Reader, out io.Writer, question string, options []string) (int, error) {
	model := newChooserModel(question, options)
	program := tea.NewProgram(model, tea.WithInput(in), tea.WithOutput(out), tea.WithContext(ctx))
	final, err := program.Run()
	if err != nil {
		if ctx.Err() != nil {
			return 0, fmt.Errorf("%w: %w", fsaccess.ErrPromptCancelled, ctx.Err())
		}
		return 0, err
	}
	m, ok := final.(*chooserModel)
	if !ok || m.cancelled || m.chosen < 0 {
		return 0, fsaccess.ErrPromptCancelled
	}
	return m.chosen, nil
}
