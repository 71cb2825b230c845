// Package ui provides the terminal roadmap viewer.
package ui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nibzard/roadmapper/internal/calendar"
	"github.com/nibzard/roadmapper/internal/roadmap"
	"github.com/nibzard/roadmapper/internal/stats"
	"github.com/nibzard/roadmapper/internal/storage"
	"github.com/nibzard/roadmapper/internal/utils"
)

// maxGroupRows bounds the visible part of the group list.
const maxGroupRows = 15

// ErrNoTTY is returned by RunTUI when stdout is not a terminal.
var ErrNoTTY = errors.New("tui requires a TTY")

// Store is the document source the viewer reads and mutates.
type Store interface {
	Document() *roadmap.Document
	Mutate(ctx context.Context, fn func(*roadmap.Document) error) error
}

// TUIOption configures the TUI behavior.
type TUIOption func(*tuiConfig)

// tuiConfig holds TUI configuration.
type tuiConfig struct {
	roadmapRef string
	now        func() time.Time
}

// WithRoadmap selects the roadmap shown first, by id or name.
func WithRoadmap(ref string) TUIOption {
	return func(c *tuiConfig) {
		c.roadmapRef = ref
	}
}

// WithClock overrides the clock used to find today's group and overdue tasks.
func WithClock(now func() time.Time) TUIOption {
	return func(c *tuiConfig) {
		c.now = now
	}
}

// RunTUI starts the viewer on store.
func RunTUI(ctx context.Context, store Store, opts ...TUIOption) error {
	if !utils.IsTTY(os.Stdout) {
		return ErrNoTTY
	}
	model := newTUIModel(ctx, store, opts...)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := program.Run()
	return err
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true)
	cursorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	doneStyle     = lipgloss.NewStyle().Faint(true).Strikethrough(true)
	overdueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	panelStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	hintStyle     = lipgloss.NewStyle().Faint(true)
	emptyDocument = "No roadmaps yet. Create one with 'roadmapper create <name>'."
)

type tuiModel struct {
	ctx   context.Context
	store Store
	now   func() time.Time

	doc        *roadmap.Document
	roadmapIdx int
	groups     []calendar.TimeGroup
	groupIdx   int
	taskIdx    int

	showHelp bool
	status   string
	err      error
}

type mutatedMsg struct {
	status string
	err    error
}

func newTUIModel(ctx context.Context, store Store, opts ...TUIOption) *tuiModel {
	c := &tuiConfig{now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	m := &tuiModel{ctx: ctx, store: store, now: c.now}
	m.refresh()
	if c.roadmapRef != "" {
		if r, err := m.doc.ResolveRoadmap(c.roadmapRef); err == nil {
			m.selectRoadmap(r.ID)
			m.rebuildGroups()
		} else {
			m.err = err
		}
	}
	m.focusToday()
	return m
}

func (m *tuiModel) Init() tea.Cmd {
	return nil
}

func (m *tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m, m.handleKey(msg)
	case mutatedMsg:
		m.err = msg.err
		if msg.err == nil {
			m.status = msg.status
		} else {
			m.status = ""
		}
		m.refresh()
	}
	return m, nil
}

func (m *tuiModel) handleKey(msg tea.KeyMsg) tea.Cmd {
	r := m.current()
	switch msg.String() {
	case "ctrl+c", "q":
		return tea.Quit
	case "?":
		m.showHelp = !m.showHelp
	case "r", "f5":
		m.refresh()
	case "tab":
		m.cycleRoadmap(1)
	case "shift+tab":
		m.cycleRoadmap(-1)
	case "left", "h":
		m.moveGroup(-1)
	case "right", "l":
		m.moveGroup(1)
	case "up", "k":
		m.moveTask(-1)
	case "down", "j":
		m.moveTask(1)
	case "t":
		m.focusToday()
	case "d", "w", "m":
		if r == nil {
			return nil
		}
		scale, _ := roadmap.ParseTimeScale(msg.String())
		id := r.ID
		return m.mutate(fmt.Sprintf("Time scale set to %s", scale), func(doc *roadmap.Document) error {
			return doc.SetTimeScale(id, scale)
		})
	case " ", "x", "enter":
		task := m.selectedTask()
		if r == nil || task == nil {
			return nil
		}
		rid, tid, name := r.ID, task.ID, task.Name
		return m.mutate(fmt.Sprintf("Toggled %q", name), func(doc *roadmap.Document) error {
			_, err := doc.ToggleComplete(rid, tid)
			return err
		})
	}
	return nil
}

func (m *tuiModel) mutate(status string, fn func(*roadmap.Document) error) tea.Cmd {
	return func() tea.Msg {
		return mutatedMsg{status: status, err: m.store.Mutate(m.ctx, fn)}
	}
}

// refresh reloads the document and keeps the selection in range.
func (m *tuiModel) refresh() {
	var selectedKey string
	if m.groupIdx < len(m.groups) {
		selectedKey = m.groups[m.groupIdx].Key
	}
	var roadmapID string
	if r := m.current(); r != nil {
		roadmapID = r.ID
	}

	m.doc = m.store.Document()
	m.roadmapIdx = 0
	if roadmapID != "" {
		m.selectRoadmap(roadmapID)
	}
	m.rebuildGroups()
	if idx := calendar.FindGroup(m.groups, selectedKey); idx >= 0 {
		m.groupIdx = idx
	}
	m.clampTask()
}

func (m *tuiModel) selectRoadmap(id string) {
	for i, r := range m.doc.Roadmaps {
		if r.ID == id {
			m.roadmapIdx = i
			return
		}
	}
}

func (m *tuiModel) current() *roadmap.Roadmap {
	if m.doc == nil || m.roadmapIdx >= len(m.doc.Roadmaps) {
		return nil
	}
	return &m.doc.Roadmaps[m.roadmapIdx]
}

func (m *tuiModel) rebuildGroups() {
	m.groups = nil
	if r := m.current(); r != nil {
		m.groups = calendar.GroupTasks(r.Tasks, r.TimeScale)
	}
	if m.groupIdx >= len(m.groups) {
		m.groupIdx = max(len(m.groups)-1, 0)
	}
}

func (m *tuiModel) cycleRoadmap(delta int) {
	n := len(m.doc.Roadmaps)
	if n == 0 {
		return
	}
	m.roadmapIdx = (m.roadmapIdx + delta + n) % n
	m.rebuildGroups()
	m.focusToday()
}

func (m *tuiModel) moveGroup(delta int) {
	if len(m.groups) == 0 {
		return
	}
	m.groupIdx = min(max(m.groupIdx+delta, 0), len(m.groups)-1)
	m.taskIdx = 0
}

func (m *tuiModel) moveTask(delta int) {
	m.taskIdx += delta
	m.clampTask()
}

func (m *tuiModel) clampTask() {
	n := len(m.groupTasks())
	m.taskIdx = min(max(m.taskIdx, 0), max(n-1, 0))
}

// focusToday selects the group containing today, or else the first group
// starting after it, or else the last group.
func (m *tuiModel) focusToday() {
	m.taskIdx = 0
	if len(m.groups) == 0 {
		m.groupIdx = 0
		return
	}
	now := m.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	for i, g := range m.groups {
		if g.Contains(today) || g.StartDate.After(today) {
			m.groupIdx = i
			return
		}
	}
	m.groupIdx = len(m.groups) - 1
}

func (m *tuiModel) groupTasks() []roadmap.Task {
	r := m.current()
	if r == nil || m.groupIdx >= len(m.groups) {
		return nil
	}
	return calendar.FilterTasksForGroup(r.Tasks, m.groups[m.groupIdx])
}

func (m *tuiModel) selectedTask() *roadmap.Task {
	tasks := m.groupTasks()
	if m.taskIdx >= len(tasks) {
		return nil
	}
	return &tasks[m.taskIdx]
}

func (m *tuiModel) today() string {
	return roadmap.FormatDate(m.now())
}

func (m *tuiModel) View() string {
	var b strings.Builder
	writeTitle(&b)

	if m.showHelp {
		writeHelp(&b)
		writeFooter(&b)
		return b.String()
	}

	r := m.current()
	if r == nil {
		b.WriteString(emptyDocument + "\n\n")
		m.writeStatus(&b)
		writeFooter(&b)
		return b.String()
	}

	writeHeader(&b, r, m.roadmapIdx, len(m.doc.Roadmaps), stats.Calculate(r, m.today()))
	if len(m.groups) == 0 {
		b.WriteString("  No tasks yet. Add one with 'roadmapper add'.\n\n")
	} else {
		left := m.groupList(r)
		right := m.taskList()
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, panelStyle.Render(left), panelStyle.Render(right)))
		b.WriteString("\n")
	}
	m.writeStatus(&b)
	writeFooter(&b)
	return b.String()
}

func (m *tuiModel) groupList(r *roadmap.Roadmap) string {
	start := 0
	if m.groupIdx >= maxGroupRows {
		start = m.groupIdx - maxGroupRows + 1
	}
	end := min(start+maxGroupRows, len(m.groups))

	var b strings.Builder
	for i := start; i < end; i++ {
		g := m.groups[i]
		line := fmt.Sprintf("%s (%d)", g.Label, len(calendar.FilterTasksForGroup(r.Tasks, g)))
		if i == m.groupIdx {
			b.WriteString(cursorStyle.Render("> " + line))
		} else {
			b.WriteString("  " + line)
		}
		if i < end-1 {
			b.WriteString("\n")
		}
	}
	if end < len(m.groups) {
		b.WriteString("\n" + hintStyle.Render(fmt.Sprintf("  ... %d more", len(m.groups)-end)))
	}
	return b.String()
}

func (m *tuiModel) taskList() string {
	var b strings.Builder
	g := m.groups[m.groupIdx]
	b.WriteString(titleStyle.Render(g.Label))
	tasks := m.groupTasks()
	if len(tasks) == 0 {
		b.WriteString("\n  No tasks in this period.")
		return b.String()
	}
	today := m.today()
	for i, t := range tasks {
		b.WriteString("\n")
		line := formatTask(&t, today)
		if i == m.taskIdx {
			b.WriteString(cursorStyle.Render(">") + line)
		} else {
			b.WriteString(" " + line)
		}
	}
	if t := m.selectedTask(); t != nil && t.Notes != "" {
		b.WriteString("\n\n" + hintStyle.Render(truncate(t.Notes, 60)))
	}
	return b.String()
}

func (m *tuiModel) writeStatus(b *strings.Builder) {
	if m.err != nil {
		b.WriteString(errorStyle.Render("Error: "+m.err.Error()) + "\n")
		if hint := storage.Hint(m.err); hint != "" {
			b.WriteString("  " + hint + "\n")
		}
		b.WriteString("\n")
		return
	}
	if m.status != "" {
		b.WriteString(m.status + "\n\n")
	}
}

func writeTitle(b *strings.Builder) {
	title := "Roadmapper"
	b.WriteString(titleStyle.Render(title) + "\n")
	b.WriteString(strings.Repeat("=", len(title)) + "\n\n")
}

func writeHeader(b *strings.Builder, r *roadmap.Roadmap, idx, total int, s stats.Stats) {
	b.WriteString(fmt.Sprintf("%s  (%d/%d, %s)\n", titleStyle.Render(r.Name), idx+1, total, r.TimeScale))
	b.WriteString(fmt.Sprintf("  Tasks: %d  Completed: %d (%d%%)  In progress: %d (%d%%)  Overdue: %d (%d%%)\n\n",
		s.Total, s.Completed, s.CompletedPct, s.InProgress, s.InProgressPct, s.Overdue, s.OverduePct))
}

func writeHelp(b *strings.Builder) {
	b.WriteString("Keyboard Shortcuts\n\n")
	b.WriteString("  q, ctrl+c        Quit\n")
	b.WriteString("  r, F5            Reload\n")
	b.WriteString("  ?                Toggle this help screen\n")
	b.WriteString("  tab, shift+tab   Next / previous roadmap\n")
	b.WriteString("  left, right      Previous / next period (h, l)\n")
	b.WriteString("  up, down         Select task (k, j)\n")
	b.WriteString("  space, x         Toggle task completion\n")
	b.WriteString("  t                Jump to today\n")
	b.WriteString("  d, w, m          Daily, weekly or monthly view\n\n")
}

func writeFooter(b *strings.Builder) {
	b.WriteString(hintStyle.Render("Press ? for help | q to quit") + "\n")
}

func formatTask(t *roadmap.Task, today string) string {
	box := "[ ]"
	if t.Completed {
		box = "[x]"
	}
	line := fmt.Sprintf(" %s %s  %s..%s", box, t.Name, t.StartDate, t.EndDate)
	if t.Category != "" {
		line += "  #" + t.Category
	}
	switch {
	case t.Completed:
		return doneStyle.Render(line)
	case t.EndDate < today:
		return overdueStyle.Render(line + "  overdue")
	}
	return line
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-3]) + "..."
}
