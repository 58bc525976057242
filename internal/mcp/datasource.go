package mcp

import (
	"context"

	"github.com/claude/replog/internal/workout"
)

// DataSource abstracts the data layer for MCP tools. Both *workout.Logbook
// (local store) and HTTPClient (remote via REST API) satisfy this interface.
type DataSource interface {
	History(ctx context.Context, order workout.Order) ([]workout.SessionView, error)
	ExerciseNames(ctx context.Context) ([]workout.ExerciseOption, error)
}

// Compile-time check: *workout.Logbook satisfies DataSource.
var _ DataSource = (*workout.Logbook)(nil)
