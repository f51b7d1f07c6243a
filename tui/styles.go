// ABOUTME: Lipgloss style definitions shared across the explorer UI.
// ABOUTME: Centralizes colors and borders so panels stay visually consistent.

package tui

import "github.com/charmbracelet/lipgloss"

var (
	// BorderStyle wraps the main explorer panel.
	BorderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62"))

	// TitleStyle renders the resource header line.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170"))

	// BreadcrumbStyle renders the navigation trail under the title.
	BreadcrumbStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	// SectionStyle renders the Invokes / Invoked by table headings.
	SectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("75"))

	// HeaderStyle renders the table column header row.
	HeaderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	// SelectedStyle highlights the row under the cursor.
	SelectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("236")).
			Background(lipgloss.Color("214"))

	// ExternalStyle dims rows whose target has no definition in the graph.
	ExternalStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	// PromptStyle renders the search prompt heading.
	PromptStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("42"))

	// ErrorStyle renders lookup and selection errors.
	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	// HelpStyle renders the key hint line at the bottom.
	HelpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)
