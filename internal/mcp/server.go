package mcp

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/claude/replog/internal/workout"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// New creates an MCP server with all tools and resources registered.
func New(ds DataSource, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("RepLog", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("RepLog workout logbook. Query workout sessions, logged exercises, and training volume. Volume is sets*reps*weight for a uniform load, or reps*sum(weights) with one weight per set."),
	)

	h := &handlers{ds: ds, log: log}

	// Tools
	s.AddTools(
		server.ServerTool{Tool: toolListWorkouts, Handler: h.listWorkouts},
		server.ServerTool{Tool: toolGetWorkout, Handler: h.getWorkout},
		server.ServerTool{Tool: toolGetVolumeSummary, Handler: h.getVolumeSummary},
		server.ServerTool{Tool: toolListExercises, Handler: h.listExercises},
	)

	// Resources
	s.AddResources(
		server.ServerResource{Resource: resRecentWorkouts, Handler: h.recentWorkouts},
		server.ServerResource{Resource: resExerciseCatalog, Handler: h.exerciseCatalog},
	)

	return s
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	ds  DataSource
	log *slog.Logger
}

// --- Resource definitions ---

var resRecentWorkouts = mcp.NewResource(
	"replog://recent_workouts",
	"Recent Workouts",
	mcp.WithResourceDescription("Workout sessions from the last 14 days, with entries and per-session volume"),
	mcp.WithMIMEType("application/json"),
)

var resExerciseCatalog = mcp.NewResource(
	"replog://exercise_catalog",
	"Exercise Catalog",
	mcp.WithResourceDescription("All distinct exercises ever logged"),
	mcp.WithMIMEType("application/json"),
)

func (h *handlers) recentWorkouts(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	views, err := h.ds.History(ctx, workout.Descending)
	if err != nil {
		h.log.Error("mcp recent_workouts", "error", err)
		return nil, err
	}
	views = filterByRange(views, daysAgo(14), zeroTime)
	return jsonResource(req.Params.URI, views)
}

func (h *handlers) exerciseCatalog(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	opts, err := h.ds.ExerciseNames(ctx)
	if err != nil {
		h.log.Error("mcp exercise_catalog", "error", err)
		return nil, err
	}
	return jsonResource(req.Params.URI, opts)
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{URI: uri, MIMEType: "application/json", Text: string(data)},
	}, nil
}
