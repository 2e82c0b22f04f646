// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI provides a multi-view workflow for a migration run:
//  1. [StatusView] : Inspect the store position and browse outstanding steps
//  2. [ConfirmView] : Confirm the run before anything is written
//  3. [RunView] : Monitor real-time progress updates
//  4. [ResultView] : Display versions applied, import tallies, and rejected rows
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern.
// Progress updates flow through a channel from the migration Engine, providing
// non-blocking status reporting while steps apply and rows import.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, y/n, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
