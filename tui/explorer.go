// ABOUTME: Interactive terminal explorer for walking the invocation graph.
// ABOUTME: Search for a resource, then follow its invokes / invoked-by edges.

package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/2389-research/trunkline/graph"
)

type explorerMode int

const (
	modeSearch explorerMode = iota
	modeBrowse
)

const maxSelectionDigits = 6

// ExplorerModel is the top-level Bubble Tea model for the graph explorer.
// It starts at a search prompt; opening a resource switches to browse mode,
// where the combined relation table supports arrow and numeric selection.
type ExplorerModel struct {
	graph *graph.Graph
	index map[string]string // lowercase name -> canonical name

	mode   explorerMode
	search textinput.Model
	vp     viewport.Model

	current   string
	trail     []string
	rows      []relationRow
	cursor    int
	numBuffer string
	errMsg    string

	width    int
	height   int
	quitting bool
}

// NewExplorer creates an explorer over g. When start names a resource
// (matched case-insensitively), the explorer opens it directly instead of
// showing the search prompt.
func NewExplorer(g *graph.Graph, start string) ExplorerModel {
	index := make(map[string]string, g.Len())
	for _, id := range g.NodeIDs() {
		index[strings.ToLower(id)] = id
	}

	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "resource name"
	ti.Focus()

	m := ExplorerModel{
		graph:  g,
		index:  index,
		mode:   modeSearch,
		search: ti,
		vp:     viewport.New(80, 10),
	}

	if start != "" {
		if canonical, ok := m.resolve(start); ok {
			m = m.open(canonical, false)
		} else {
			m.search.SetValue(start)
			m.errMsg = fmt.Sprintf("unknown resource name: %q", start)
		}
	}
	return m
}

func (m ExplorerModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m ExplorerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.setSize(msg.Width, msg.Height)
		m.syncViewport()
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}
		if m.mode == modeSearch {
			return m.updateSearch(msg)
		}
		return m.updateBrowse(msg)
	}

	// Non-key messages (cursor blinks, mouse wheel) go to whichever
	// component currently owns the screen.
	var cmd tea.Cmd
	if m.mode == modeSearch {
		m.search, cmd = m.search.Update(msg)
	} else {
		m.vp, cmd = m.vp.Update(msg)
	}
	return m, cmd
}

func (m ExplorerModel) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		value := strings.TrimSpace(m.search.Value())
		if value == "" {
			return m, nil
		}
		canonical, ok := m.resolve(value)
		if !ok {
			m.errMsg = fmt.Sprintf("unknown resource name: %q", value)
			return m, nil
		}
		m = m.open(canonical, false)
		return m, nil

	case "esc":
		if m.search.Value() != "" {
			m.search.Reset()
			m.errMsg = ""
			return m, nil
		}
		m.quitting = true
		return m, tea.Quit
	}

	m.errMsg = ""
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	return m, cmd
}

func (m ExplorerModel) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case "q":
		m.quitting = true
		return m, tea.Quit

	case "esc":
		m = m.back()
		return m, nil

	case "backspace":
		if m.numBuffer != "" {
			m.numBuffer = m.numBuffer[:len(m.numBuffer)-1]
			return m, nil
		}
		m = m.back()
		return m, nil

	case "/":
		m = m.toSearch()
		return m, textinput.Blink

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		m.numBuffer = ""
		m.syncViewport()
		return m, nil

	case "down", "j":
		if m.cursor < len(m.rows)-1 {
			m.cursor++
		}
		m.numBuffer = ""
		m.syncViewport()
		return m, nil

	case "enter":
		if m.numBuffer != "" {
			n, err := strconv.Atoi(m.numBuffer)
			m.numBuffer = ""
			if err != nil {
				return m, nil
			}
			row, ok := m.rowByIndex(n)
			if !ok {
				m.errMsg = fmt.Sprintf("no relation numbered %d", n)
				return m, nil
			}
			m = m.open(row.Name, true)
			return m, nil
		}
		if m.cursor >= 0 && m.cursor < len(m.rows) {
			m = m.open(m.rows[m.cursor].Name, true)
		}
		return m, nil
	}

	if len(key) == 1 && key[0] >= '0' && key[0] <= '9' {
		if len(m.numBuffer) < maxSelectionDigits {
			m.numBuffer += key
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.vp, cmd = m.vp.Update(msg)
	return m, cmd
}

// open switches to browse mode on name. When push is true the current
// resource is recorded on the breadcrumb trail first. Opening a name with no
// node in the graph (an external or dangling target) keeps the current view
// and reports the problem instead.
func (m ExplorerModel) open(name string, push bool) ExplorerModel {
	if m.graph.FindNode(name) == nil {
		m.errMsg = fmt.Sprintf("%s has no definition in the graph", name)
		return m
	}
	if push && m.current != "" {
		m.trail = append(m.trail, m.current)
	}
	m.mode = modeBrowse
	m.search.Blur()
	m.current = name
	m.rows = buildRows(m.graph, name)
	m.cursor = 0
	m.numBuffer = ""
	m.errMsg = ""
	m.vp.GotoTop()
	m.syncViewport()
	return m
}

// back pops the breadcrumb trail, or returns to the search prompt when the
// trail is empty.
func (m ExplorerModel) back() ExplorerModel {
	if len(m.trail) == 0 {
		return m.toSearch()
	}
	prev := m.trail[len(m.trail)-1]
	m.trail = m.trail[:len(m.trail)-1]
	m.current = prev
	m.rows = buildRows(m.graph, prev)
	m.cursor = 0
	m.numBuffer = ""
	m.errMsg = ""
	m.vp.GotoTop()
	m.syncViewport()
	return m
}

func (m ExplorerModel) toSearch() ExplorerModel {
	m.mode = modeSearch
	m.current = ""
	m.trail = nil
	m.rows = nil
	m.cursor = 0
	m.numBuffer = ""
	m.errMsg = ""
	m.search.Reset()
	m.search.Focus()
	return m
}

func (m ExplorerModel) resolve(name string) (string, bool) {
	canonical, ok := m.index[strings.ToLower(strings.TrimSpace(name))]
	return canonical, ok
}

func (m ExplorerModel) rowByIndex(n int) (relationRow, bool) {
	for _, r := range m.rows {
		if r.Index == n {
			return r, true
		}
	}
	return relationRow{}, false
}

func (m *ExplorerModel) setSize(w, h int) {
	m.width = w
	m.height = h

	vw := w - 4
	if vw < 20 {
		vw = 20
	}
	vh := h - 7
	if vh < 3 {
		vh = 3
	}
	m.vp.Width = vw
	m.vp.Height = vh
}

// syncViewport re-renders the relation table into the viewport and scrolls
// so the cursor row stays visible.
func (m *ExplorerModel) syncViewport() {
	content, cursorLine := renderRelations(m.graph, m.rows, m.cursor)
	if content == "" && m.current != "" {
		content = fmt.Sprintf("%s has no relations to display", m.current)
	}
	m.vp.SetContent(content)
	if cursorLine >= 0 {
		if cursorLine < m.vp.YOffset {
			m.vp.SetYOffset(cursorLine)
		} else if cursorLine >= m.vp.YOffset+m.vp.Height {
			m.vp.SetYOffset(cursorLine - m.vp.Height + 1)
		}
	}
}

func (m ExplorerModel) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 {
		return "Initializing..."
	}

	var body string
	if m.mode == modeSearch {
		body = m.searchView()
	} else {
		body = m.browseView()
	}
	return BorderStyle.Width(m.width - 2).Render(body)
}

func (m ExplorerModel) searchView() string {
	lines := []string{
		PromptStyle.Render("Which resource would you like to look up?"),
		"",
		m.search.View(),
	}
	if m.errMsg != "" {
		lines = append(lines, "", ErrorStyle.Render(m.errMsg))
	}
	lines = append(lines, "", HelpStyle.Render("enter: open • esc: clear • ctrl+c: quit"))
	return strings.Join(lines, "\n")
}

func (m ExplorerModel) browseView() string {
	title := m.current
	if node := m.graph.FindNode(m.current); node != nil {
		title = fmt.Sprintf("%s (%s / %s)", m.current, node.Type, node.AccountName)
	}

	lines := []string{TitleStyle.Render(title)}
	if crumb := m.breadcrumb(); crumb != "" {
		lines = append(lines, BreadcrumbStyle.Render(crumb))
	}
	lines = append(lines, "", m.vp.View(), "")

	switch {
	case m.errMsg != "":
		lines = append(lines, ErrorStyle.Render(m.errMsg))
	case m.numBuffer != "":
		lines = append(lines, fmt.Sprintf("select: %s", m.numBuffer))
	default:
		lines = append(lines, HelpStyle.Render("↑/↓: move • enter: open • 1-9: select by number • /: search • esc: back • q: quit"))
	}
	return strings.Join(lines, "\n")
}

func (m ExplorerModel) breadcrumb() string {
	if len(m.trail) == 0 {
		return ""
	}
	parts := make([]string, 0, len(m.trail)+1)
	parts = append(parts, m.trail...)
	parts = append(parts, m.current)
	return strings.Join(parts, " > ")
}
