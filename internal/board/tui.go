// Package board is the interactive kanban view over the local job store:
// four columns, cursor navigation, and column moves persisted immediately.
package board

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/korrio/jobradar/internal/model"
	"github.com/korrio/jobradar/internal/store"
)

// Lines per job card in a column (title + subtitle + blank separator).
const cardHeight = 3

type viewState int

const (
	viewBoard viewState = iota
	viewDetail
)

var (
	activeBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("39")) // bright blue

	inactiveBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("240")) // dim gray

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	activeHeaderStyle = headerStyle.
				Foreground(lipgloss.Color("39"))

	inactiveHeaderStyle = headerStyle.
				Foreground(lipgloss.Color("240"))

	statusBarStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("236"))

	cardTitleStyle = lipgloss.NewStyle().
			Bold(true)

	cardSubtitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245"))

	selectedCardTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")). // bright white
				Background(lipgloss.Color("24"))  // dark blue bg

	selectedCardSubtitleStyle = lipgloss.NewStyle().
					Foreground(lipgloss.Color("252")).
					Background(lipgloss.Color("24"))

	priorityStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // orange

	detailLabelStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39")).
				Width(14)

	detailValueStyle = lipgloss.NewStyle()

	detailTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				MarginBottom(1)

	dividerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	bodyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))
)

var columnTitles = map[model.Column]string{
	model.ColumnInbox:      "Inbox",
	model.ColumnInterested: "Interested",
	model.ColumnProposed:   "Proposed",
	model.ColumnArchived:   "Archived",
}

type boardModel struct {
	store     *store.Store
	minBudget float64

	columns   map[model.Column][]model.JobRecord
	viewports []viewport.Model
	cursors   []int
	activeCol int
	width     int
	height    int
	ready     bool

	view           viewState
	detailJob      model.JobRecord
	detailViewport viewport.Model

	statusMsg string
}

func (m boardModel) Init() tea.Cmd {
	return nil
}

func (m boardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.recalcLayout()
		if m.view == viewDetail {
			m.detailViewport.Width = m.width - 4
			m.detailViewport.Height = m.height - 4
			m.detailViewport.SetContent(m.renderDetail())
		}
		return m, nil

	case tea.KeyMsg:
		if m.view == viewDetail {
			return m.updateDetailView(msg)
		}
		return m.updateBoardView(msg)
	}

	return m, nil
}

func (m boardModel) updateBoardView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "tab", "right", "l":
		m.activeCol = (m.activeCol + 1) % len(model.Columns)
		m.recalcContent()
		return m, nil
	case "shift+tab", "left", "h":
		m.activeCol = (m.activeCol + len(model.Columns) - 1) % len(model.Columns)
		m.recalcContent()
		return m, nil
	case "up", "k":
		m.moveCursor(-1)
		m.recalcContent()
		m.ensureCursorVisible()
		return m, nil
	case "down", "j":
		m.moveCursor(1)
		m.recalcContent()
		m.ensureCursorVisible()
		return m, nil
	case "]", "m":
		m.moveSelectedJob(1)
		return m, nil
	case "[":
		m.moveSelectedJob(-1)
		return m, nil
	case "+", "=":
		m.bumpPriority(1)
		return m, nil
	case "-":
		m.bumpPriority(-1)
		return m, nil
	case "o":
		if job, ok := m.selectedJob(); ok && job.URL != "" {
			openURL(job.URL)
		}
		return m, nil
	case "enter":
		return m.openDetailView()
	}

	var cmd tea.Cmd
	m.viewports[m.activeCol], cmd = m.viewports[m.activeCol].Update(msg)
	return m, cmd
}

func (m boardModel) updateDetailView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "esc", "backspace":
		m.view = viewBoard
		return m, nil
	case "o":
		if m.detailJob.URL != "" {
			openURL(m.detailJob.URL)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.detailViewport, cmd = m.detailViewport.Update(msg)
	return m, cmd
}

func (m *boardModel) selectedJob() (model.JobRecord, bool) {
	col := model.Columns[m.activeCol]
	jobs := m.columns[col]
	cursor := m.cursors[m.activeCol]
	if len(jobs) == 0 || cursor >= len(jobs) {
		return model.JobRecord{}, false
	}
	return jobs[cursor], true
}

// moveSelectedJob shifts the job under the cursor one column left or right
// and persists the move.
func (m *boardModel) moveSelectedJob(delta int) {
	job, ok := m.selectedJob()
	if !ok {
		return
	}

	target := m.activeCol + delta
	if target < 0 || target >= len(model.Columns) {
		return
	}
	to := model.Columns[target]

	if err := m.store.MoveColumn(job.ID, to); err != nil {
		m.statusMsg = fmt.Sprintf("move failed: %v", err)
		return
	}
	m.statusMsg = fmt.Sprintf("moved %q to %s", job.Title, columnTitles[to])
	m.reload()
}

func (m *boardModel) bumpPriority(delta int) {
	job, ok := m.selectedJob()
	if !ok {
		return
	}

	priority := job.Priority + delta
	if priority < 0 {
		priority = 0
	}
	if err := m.store.SetPriority(job.ID, priority); err != nil {
		m.statusMsg = fmt.Sprintf("priority update failed: %v", err)
		return
	}
	m.statusMsg = fmt.Sprintf("priority %d for %q", priority, job.Title)
	m.reload()
}

// reload refreshes every column from the store after a mutation.
func (m *boardModel) reload() {
	columns, err := m.store.Board(m.minBudget)
	if err != nil {
		m.statusMsg = fmt.Sprintf("reload failed: %v", err)
		return
	}
	m.columns = columns
	for i, col := range model.Columns {
		limit := len(m.columns[col]) - 1
		if limit < 0 {
			limit = 0
		}
		if m.cursors[i] > limit {
			m.cursors[i] = limit
		}
	}
	m.recalcContent()
}

func (m *boardModel) moveCursor(delta int) {
	col := model.Columns[m.activeCol]
	m.cursors[m.activeCol] = clamp(m.cursors[m.activeCol]+delta, 0, max(len(m.columns[col])-1, 0))
}

func (m *boardModel) ensureCursorVisible() {
	vp := &m.viewports[m.activeCol]
	cursor := m.cursors[m.activeCol]

	cursorTop := cursor * cardHeight
	cursorBottom := cursorTop + cardHeight - 1

	if cursorTop < vp.YOffset {
		vp.SetYOffset(cursorTop)
	} else if cursorBottom >= vp.YOffset+vp.Height {
		vp.SetYOffset(cursorBottom - vp.Height + 1)
	}
}

func (m boardModel) openDetailView() (tea.Model, tea.Cmd) {
	job, ok := m.selectedJob()
	if !ok {
		return m, nil
	}

	m.view = viewDetail
	m.detailJob = job
	m.detailViewport = viewport.New(m.width-4, m.height-4)
	m.detailViewport.SetContent(m.renderDetail())
	return m, nil
}

func (m *boardModel) recalcLayout() {
	// 2 border chars per column + 1 gap between columns.
	cols := len(model.Columns)
	colWidth := max((m.width-2*cols-(cols-1))/cols, 16)

	// Header (1 line) + border top/bottom (2) + status bar (1) = 4 lines overhead.
	colHeight := max(m.height-4, 5)

	if !m.ready {
		m.viewports = make([]viewport.Model, cols)
		for i := range m.viewports {
			m.viewports[i] = viewport.New(colWidth, colHeight)
		}
		m.ready = true
	} else {
		for i := range m.viewports {
			m.viewports[i].Width = colWidth
			m.viewports[i].Height = colHeight
		}
	}

	m.recalcContent()
}

func (m *boardModel) recalcContent() {
	for i, col := range model.Columns {
		m.viewports[i].SetContent(renderCards(m.columns[col], m.cursors[i], m.activeCol == i))
	}
}

func (m boardModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	if m.view == viewDetail {
		return m.viewDetail()
	}

	return m.viewBoard()
}

func (m boardModel) viewBoard() string {
	colWidth := m.viewports[0].Width

	headers := make([]string, 0, len(model.Columns))
	panes := make([]string, 0, len(model.Columns))
	for i, col := range model.Columns {
		header := fmt.Sprintf(" %s (%d)", columnTitles[col], len(m.columns[col]))
		if m.activeCol == i {
			headers = append(headers, lipgloss.NewStyle().Width(colWidth+2).Render(activeHeaderStyle.Render(header)))
			panes = append(panes, activeBorderStyle.Width(colWidth).Render(m.viewports[i].View()))
		} else {
			headers = append(headers, lipgloss.NewStyle().Width(colWidth+2).Render(inactiveHeaderStyle.Render(header)))
			panes = append(panes, inactiveBorderStyle.Width(colWidth).Render(m.viewports[i].View()))
		}
		if i < len(model.Columns)-1 {
			headers = append(headers, " ")
			panes = append(panes, " ")
		}
	}

	headerRow := lipgloss.JoinHorizontal(lipgloss.Top, headers...)
	paneRow := lipgloss.JoinHorizontal(lipgloss.Top, panes...)

	statusText := " ←/→ column  ↑/↓ cursor  [/] move job  +/- priority  Enter detail  o open  q quit"
	if m.statusMsg != "" {
		statusText = " " + m.statusMsg + "   " + statusText
	}
	statusBar := statusBarStyle.Width(m.width).Render(statusText)

	return headerRow + "\n" + paneRow + "\n" + statusBar
}

func (m boardModel) viewDetail() string {
	title := detailTitleStyle.Render("Job Details")
	border := activeBorderStyle.Width(m.width - 2)
	content := border.Render(m.detailViewport.View())

	statusText := " o open URL  esc/backspace back  ↑/↓ scroll  q quit"
	statusBar := statusBarStyle.Width(m.width).Render(statusText)

	return title + "\n" + content + "\n" + statusBar
}

func (m boardModel) renderDetail() string {
	j := m.detailJob
	var b strings.Builder

	addField := func(label, value string) {
		if value == "" {
			return
		}
		b.WriteString(detailLabelStyle.Render(label))
		b.WriteString(detailValueStyle.Render(value))
		b.WriteByte('\n')
	}

	addField("Title", j.Title)
	addField("Category", j.Category)
	if j.Budget > 0 {
		addField("Budget", fmt.Sprintf("%.0f %s", j.Budget, j.Currency))
	}
	addField("Status", string(j.Status))
	addField("Column", string(j.Column))
	if j.Priority > 0 {
		addField("Priority", priorityStyle.Render(fmt.Sprintf("%d", j.Priority)))
	}
	addField("Job ID", j.ID)
	addField("Inserted", j.InsertedAt)
	if j.Synced {
		addField("Board Item", j.SyncedItemID)
	}

	b.WriteByte('\n')
	addField("Job URL", j.URL)

	wrapWidth := max(m.width-8, 20)
	divider := func(label string) string {
		fill := strings.Repeat("─", max(wrapWidth-len(label), 3))
		return dividerStyle.Render(label + fill)
	}

	if j.Analysis != "" {
		b.WriteByte('\n')
		b.WriteString(divider("── Analysis ") + "\n\n")
		b.WriteString(bodyStyle.Render(wordWrap(j.Analysis, wrapWidth)) + "\n")
	}

	if j.Notes != "" {
		b.WriteByte('\n')
		b.WriteString(divider("── Notes ") + "\n\n")
		b.WriteString(bodyStyle.Render(wordWrap(j.Notes, wrapWidth)) + "\n")
	}

	if j.Description != "" {
		b.WriteByte('\n')
		b.WriteString(divider("── Description ") + "\n\n")
		b.WriteString(bodyStyle.Render(wordWrap(j.Description, wrapWidth)) + "\n")
	}

	return b.String()
}

func renderCards(jobs []model.JobRecord, cursor int, isActive bool) string {
	if len(jobs) == 0 {
		return "  (empty)"
	}

	var b strings.Builder
	for i, j := range jobs {
		isSelected := isActive && i == cursor

		titleSt := cardTitleStyle
		subtitleSt := cardSubtitleStyle
		prefix := "  "
		if isSelected {
			titleSt = selectedCardTitleStyle
			subtitleSt = selectedCardSubtitleStyle
			prefix = "> "
		}

		title := j.Title
		if j.Priority > 0 {
			title = fmt.Sprintf("%s %s", priorityStyle.Render(strings.Repeat("!", clamp(j.Priority, 1, 3))), title)
		}
		b.WriteString(prefix)
		b.WriteString(titleSt.Render(title))
		b.WriteByte('\n')

		budget := "no budget"
		if j.Budget > 0 {
			budget = fmt.Sprintf("%.0f %s", j.Budget, j.Currency)
		}
		b.WriteString(prefix)
		b.WriteString(subtitleSt.Render(fmt.Sprintf("%s · %s", budget, string(j.Status))))
		b.WriteByte('\n')

		if i < len(jobs)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func wordWrap(text string, width int) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}
	var lines []string
	line := words[0]
	for _, w := range words[1:] {
		if len(line)+1+len(w) <= width {
			line += " " + w
		} else {
			lines = append(lines, line)
			line = w
		}
	}
	lines = append(lines, line)
	return strings.Join(lines, "\n")
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// openURL opens url in the default system browser, fire-and-forget.
func openURL(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	default:
		return
	}
	_ = cmd.Start()
}

// Run launches the interactive kanban board over the given store.
func Run(st *store.Store, minBudget float64) error {
	columns, err := st.Board(minBudget)
	if err != nil {
		return fmt.Errorf("loading board: %w", err)
	}

	m := boardModel{
		store:     st,
		minBudget: minBudget,
		columns:   columns,
		cursors:   make([]int, len(model.Columns)),
	}

	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err = p.Run()
	return err
}
