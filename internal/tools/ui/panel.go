// Package ui hosts the session panel in a terminal. The bubbletea update loop
// is the single owner of the controller and the lookup widget; revocations,
// lookups and reloads run as commands and come back as messages.
package ui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sandeepkv93/session-console/internal/panel"
)

type snapshotMsg struct {
	snap panel.Snapshot
	err  error
}

type revokeDoneMsg struct {
	op  *panel.RevokeOp
	err error
}

type lookupDoneMsg struct {
	out panel.LookupOutcome
}

// Model is the tea.Model of the session panel.
type Model struct {
	ctx   context.Context
	co    *panel.Coordinator
	title string

	cursor    int
	searching bool
	input     string
	notice    *panel.Notice
	loaded    bool
	loadErr   error
}

func NewModel(ctx context.Context, co *panel.Coordinator, title string) Model {
	return Model{ctx: ctx, co: co, title: title}
}

func (m Model) Init() tea.Cmd { return m.reloadCmd() }

func (m Model) reloadCmd() tea.Cmd {
	co, ctx := m.co, m.ctx
	return func() tea.Msg {
		snap, err := co.Fetch(ctx)
		return snapshotMsg{snap: snap, err: err}
	}
}

func revokeCmd(ctx context.Context, op *panel.RevokeOp) tea.Cmd {
	return func() tea.Msg {
		return revokeDoneMsg{op: op, err: op.Execute(ctx)}
	}
}

func lookupCmd(ctx context.Context, w *panel.IPLookupWidget, req panel.LookupRequest) tea.Cmd {
	return func() tea.Msg {
		return lookupDoneMsg{out: w.Fetch(ctx, req)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	sessions := m.co.Sessions()
	switch msg := msg.(type) {
	case snapshotMsg:
		if msg.err != nil {
			m.loadErr = msg.err
			m.setNotice(panel.NoticeFor(msg.err))
			return m, nil
		}
		if err := m.co.Apply(msg.snap); err != nil {
			m.loadErr = err
			m.setNotice(panel.NoticeFor(err))
			return m, nil
		}
		m.loaded, m.loadErr = true, nil
		m.clampCursor()
		return m, nil
	case revokeDoneMsg:
		out := sessions.Complete(msg.op, msg.err)
		m.notice = &out.Notice
		if m.co.Settle(out) {
			return m, m.reloadCmd()
		}
		return m, nil
	case lookupDoneMsg:
		m.co.Widget().Resolve(msg.out)
		return m, nil
	case tea.KeyMsg:
		if m.searching {
			return m.updateSearch(msg)
		}
		return m.updateTable(msg)
	}
	return m, nil
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.searching = false
		m.co.Sessions().SetSearchTerm(m.input)
		m.cursor = 0
	case tea.KeyEsc:
		m.searching = false
	case tea.KeyBackspace:
		if r := []rune(m.input); len(r) > 0 {
			m.input = string(r[:len(r)-1])
		}
	case tea.KeySpace:
		m.input += " "
	case tea.KeyRunes:
		m.input += string(msg.Runes)
	case tea.KeyCtrlC:
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) updateTable(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	sessions := m.co.Sessions()
	rows := sessions.Rows()
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(rows)-1 {
			m.cursor++
		}
	case "right", "n":
		sessions.NextPage()
		m.cursor = 0
	case "left", "p":
		sessions.PrevPage()
		m.cursor = 0
	case "s":
		sessions.ToggleSort()
		m.clampCursor()
	case "/":
		m.searching = true
		m.input = sessions.SearchTerm()
	case "esc":
		sessions.ClearSearch()
		m.cursor = 0
	case "r":
		return m, m.reloadCmd()
	case " ":
		if row, ok := m.row(rows); ok {
			sessions.ToggleSelect(row.Session.Token)
		}
	case "a":
		sessions.SetSelectAll(sessions.SelectAllState() != panel.Checked)
	case "x":
		row, ok := m.row(rows)
		if !ok {
			return m, nil
		}
		op, err := sessions.BeginRevokeOne(row.Session.Token)
		if err != nil {
			m.setNotice(panel.NoticeFor(err))
			return m, nil
		}
		return m, revokeCmd(m.ctx, op)
	case "X":
		var (
			op  *panel.RevokeOp
			err error
		)
		if sessions.SelectionCount() > 0 {
			op, err = sessions.BeginRevokeSelected()
		} else {
			op, err = sessions.BeginRevokeOthers()
		}
		if err != nil {
			m.setNotice(panel.NoticeFor(err))
			return m, nil
		}
		return m, revokeCmd(m.ctx, op)
	case "enter", "l":
		row, ok := m.row(rows)
		if !ok {
			return m, nil
		}
		req, err := m.co.LookupRow(row)
		if err != nil {
			m.setNotice(panel.NoticeFor(err))
			return m, nil
		}
		return m, lookupCmd(m.ctx, m.co.Widget(), req)
	case "b":
		if row, ok := m.row(rows); ok && m.co.SearchLabel(row.BrowserLabel) {
			m.cursor = 0
		}
	case "o":
		if row, ok := m.row(rows); ok && m.co.SearchLabel(row.OSLabel) {
			m.cursor = 0
		}
	case "i":
		if row, ok := m.row(rows); ok && m.co.SearchLabel(row.IPLabel) {
			m.cursor = 0
		}
	}
	return m, nil
}

func (m *Model) setNotice(n panel.Notice) { m.notice = &n }

func (m Model) row(rows []panel.Row) (panel.Row, bool) {
	if m.cursor < 0 || m.cursor >= len(rows) {
		return panel.Row{}, false
	}
	return rows[m.cursor], true
}

func (m *Model) clampCursor() {
	n := len(m.co.Sessions().Rows())
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n\n")
	if !m.loaded {
		if m.loadErr != nil {
			b.WriteString(errorStyle.Render("could not load sessions: " + m.loadErr.Error()))
			b.WriteString("\n" + mutedStyle.Render("r reload  q quit"))
			return b.String()
		}
		b.WriteString(mutedStyle.Render("loading sessions..."))
		return b.String()
	}
	b.WriteString(m.summary())
	b.WriteString("\n\n")
	b.WriteString(m.table())
	b.WriteString("\n")
	b.WriteString(m.footer())
	b.WriteString("\n\n")
	b.WriteString(boxStyle.Render(renderWidget(m.co.Widget())))
	if m.notice != nil {
		b.WriteString("\n")
		b.WriteString(renderNotice(*m.notice))
	}
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render("j/k move  space select  a all  x revoke  X " + strings.ToLower(m.co.Sessions().BulkActionLabel()) +
		"  enter lookup  b/o/i filter by browser/os/ip  / search  s sort  n/p page  r reload  q quit"))
	return b.String()
}

func (m Model) summary() string {
	s := m.co.Sessions()
	parts := []string{
		fmt.Sprintf("Sessions: %d", s.TotalSessions()),
		fmt.Sprintf("This device: %d", s.DeviceSessionCount()),
		fmt.Sprintf("Selected: %d", s.SelectionCount()),
		"Sort: " + s.SortDirection().String(),
	}
	if term := s.SearchTerm(); term != "" {
		parts = append(parts, fmt.Sprintf("Search: %q", term))
	}
	if m.searching {
		parts = append(parts, "Search> "+m.input+"_")
	}
	return strings.Join(parts, "  |  ")
}

func (m Model) table() string {
	s := m.co.Sessions()
	rows := s.Rows()
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%s %-8s %-14s %-14s %-16s %-28s %s",
		checkbox(s.SelectAllState()), "Device", "OS", "Browser", "IP", "Created", "Action")))
	b.WriteString("\n")
	if len(rows) == 0 {
		b.WriteString(mutedStyle.Render("no sessions match"))
		b.WriteString("\n")
		return b.String()
	}
	for i, row := range rows {
		line := renderRow(row)
		switch {
		case i == m.cursor:
			line = cursorStyle.Render(line)
		case row.IsCurrent:
			line = currentStyle.Render(line)
		case row.Busy:
			line = busyStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func renderRow(row panel.Row) string {
	box := "[ ]"
	switch {
	case !row.Selectable:
		box = "   "
	case row.Selected:
		box = "[x]"
	}
	action := row.ActionLabel
	if row.Busy {
		action = "Terminating..."
	}
	if row.IsCurrent {
		action += " (this session)"
	}
	return fmt.Sprintf("%s %-8s %-14s %-14s %-16s %-28s %s",
		box, row.DeviceLabel, clip(row.OSLabel, 14), clip(row.BrowserLabel, 14), row.IPLabel, row.CreatedLabel, action)
}

func (m Model) footer() string {
	s := m.co.Sessions()
	return mutedStyle.Render(fmt.Sprintf("Page %d of %d (%d shown)", s.CurrentPage(), s.TotalPages(), s.FilteredCount()))
}

func renderWidget(w *panel.IPLookupWidget) string {
	lines := []string{headerStyle.Render(w.Title())}
	switch st := w.State().(type) {
	case panel.GeoIdle:
		lines = append(lines, mutedStyle.Render("select a row and press enter"))
	case panel.GeoLoading:
		lines = append(lines, busyStyle.Render("looking up "+st.IP+"..."))
	case panel.GeoError:
		lines = append(lines, errorStyle.Render(st.Message))
	case panel.GeoSuccess:
		r := st.Result
		lines = append(lines,
			"Location: "+joinNonEmpty(", ", r.City, r.Region, r.Country),
			fmt.Sprintf("Coordinates: %.4f, %.4f", r.Lat, r.Lon),
			"ISP: "+orPlaceholder(r.ISP),
			"ASN: "+orPlaceholder(r.ASN),
		)
		if view, _, ok := w.MapURLs(); ok {
			lines = append(lines, "Map: "+view)
		}
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderNotice(n panel.Notice) string {
	if n.Level == panel.LevelSuccess {
		return successStyle.Render(n.Message)
	}
	return errorStyle.Render(n.Message)
}

func checkbox(st panel.CheckState) string {
	switch st {
	case panel.Checked:
		return "[x]"
	case panel.Indeterminate:
		return "[-]"
	default:
		return "[ ]"
	}
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func joinNonEmpty(sep string, parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return panel.Placeholder
	}
	return strings.Join(out, sep)
}

func orPlaceholder(s string) string {
	if strings.TrimSpace(s) == "" {
		return panel.Placeholder
	}
	return s
}

// RunPanel starts the interactive panel and blocks until the user quits.
func RunPanel(ctx context.Context, co *panel.Coordinator, title string) error {
	_, err := tea.NewProgram(NewModel(ctx, co, title), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}
