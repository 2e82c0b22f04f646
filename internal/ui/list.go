package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/tavs/internal/registry"
	"github.com/desertthunder/tavs/internal/repositories"
)

var (
	_ list.Item = stepItem{}
	_ list.Item = historyItem{}
)

// stepItem wraps [registry.MigrationStep] to implement [list.Item].
type stepItem struct {
	step registry.MigrationStep
}

func (i stepItem) FilterValue() string { return i.step.Description }
func (i stepItem) Title() string {
	return fmt.Sprintf("%04d %s", i.step.Version, i.step.Description)
}
func (i stepItem) Description() string {
	return fmt.Sprintf("%d statements", countStatements(i.step.Apply))
}

// historyItem wraps [repositories.AppliedStep] to implement [list.Item].
type historyItem struct {
	step repositories.AppliedStep
}

func (i historyItem) FilterValue() string { return i.step.Description }
func (i historyItem) Title() string {
	return fmt.Sprintf("%04d %s", i.step.Version, i.step.Description)
}
func (i historyItem) Description() string {
	return fmt.Sprintf("applied %s", i.step.AppliedAt.Format(time.RFC3339))
}

func stepItems(steps []registry.MigrationStep) []list.Item {
	items := make([]list.Item, len(steps))
	for idx, step := range steps {
		items[idx] = stepItem{step: step}
	}
	return items
}

func historyItems(steps []repositories.AppliedStep) []list.Item {
	items := make([]list.Item, len(steps))
	for idx, step := range steps {
		items[idx] = historyItem{step: step}
	}
	return items
}

// countStatements reports how many statements a step script runs, counting
// the way the script executor splits them.
func countStatements(script string) int {
	count := 0
	for _, stmt := range strings.Split(script, ";") {
		if strings.TrimSpace(stmt) != "" {
			count++
		}
	}
	return count
}
