package ui

import "github.com/charmbracelet/lipgloss"

// styles is the shared stylesheet for the migration views. One palette keeps
// the status, confirm, run, and result screens consistent.
var styles = stylesheet{
	title: fg("#5A56E0").Bold(true).MarginBottom(1),
	ok:    fg("#2ECC71").Bold(true),
	err:   fg("#E74C3C").Bold(true),
	warn:  fg("#F39C12"),
	help:  fg("#6C6C6C").Faint(true),
}

// stylesheet names the [lipgloss.Style] values the views render with.
type stylesheet struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
}

func fg(hex string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(hex))
}
