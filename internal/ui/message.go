package ui

import (
	"github.com/desertthunder/tavs/internal/engine"
	"github.com/desertthunder/tavs/internal/registry"
)

// statusFetchedMsg delivers the store position read by [Model.fetchStatus].
type statusFetchedMsg struct {
	status  *engine.Status
	pending []registry.MigrationStep
	err     error
}

// progressUpdateMsg wraps one engine progress update for the Elm loop.
type progressUpdateMsg engine.ProgressUpdate

// runCompleteMsg delivers the run outcome once the engine goroutine returns.
type runCompleteMsg struct {
	result *engine.RunResult
	err    error
}
