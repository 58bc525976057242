package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/claude/replog/internal/workout"
	"github.com/mark3labs/mcp-go/mcp"
)

var zeroTime time.Time

func daysAgo(n int) time.Time {
	return time.Now().AddDate(0, 0, -n)
}

// defaultTimeRange returns start/end defaulting to the last 90 days.
func defaultTimeRange(startStr, endStr string) (time.Time, time.Time, error) {
	var start, end time.Time
	var err error

	if endStr != "" {
		end, err = parseFlexTime(endStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		end = time.Now()
	}

	if startStr != "" {
		start, err = parseFlexTime(startStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		start = end.AddDate(0, 0, -90)
	}

	return start, end, nil
}

func parseFlexTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}
	t, err = time.Parse("2006-01-02", s)
	if err == nil {
		return t, nil
	}
	return time.Time{}, err
}

// filterByRange keeps sessions whose date falls inside [start, end]. A zero
// bound is open. Sessions with no dated entries (empty date) always pass;
// that covers the legacy bucket, which spans all of history.
func filterByRange(views []workout.SessionView, start, end time.Time) []workout.SessionView {
	out := make([]workout.SessionView, 0, len(views))
	for _, v := range views {
		if v.Date.IsZero() {
			out = append(out, v)
			continue
		}
		if !start.IsZero() && v.Date.Before(start) {
			continue
		}
		if !end.IsZero() && v.Date.After(end) {
			continue
		}
		out = append(out, v)
	}
	return out
}

// --- Tool definitions ---

var toolListWorkouts = mcp.NewTool("list_workouts",
	mcp.WithDescription("List workout sessions with their entries and total volume. Each session groups the exercises logged during it; the 'legacy' session collects entries imported without a session."),
	mcp.WithString("start", mcp.Description("Start date (ISO 8601 or YYYY-MM-DD). Defaults to 90 days ago.")),
	mcp.WithString("end", mcp.Description("End date (ISO 8601 or YYYY-MM-DD). Defaults to now.")),
	mcp.WithString("order", mcp.Description("Sort order by session date. Defaults to 'desc'."), mcp.Enum("asc", "desc")),
)

var toolGetWorkout = mcp.NewTool("get_workout",
	mcp.WithDescription("Get a single workout session by id, including every logged entry with sets, reps, weights, and computed volume."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Session id, or 'legacy' for the imported pre-session entries")),
)

var toolGetVolumeSummary = mcp.NewTool("get_volume_summary",
	mcp.WithDescription("Aggregate training volume per period: session count, entry count, and total volume (kg). Volume is sets*reps*weight for a uniform load, or reps*sum(weights) with one weight per set."),
	mcp.WithString("start", mcp.Description("Start date. Defaults to 90 days ago.")),
	mcp.WithString("end", mcp.Description("End date. Defaults to now.")),
	mcp.WithString("bucket", mcp.Description("Aggregation period. Defaults to '1 month'."), mcp.Enum("1 week", "1 month")),
)

var toolListExercises = mcp.NewTool("list_exercises",
	mcp.WithDescription("List all distinct exercises ever logged, with their normalized display names."),
)

// --- Tool handlers ---

func (h *handlers) listWorkouts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start, end, err := defaultTimeRange(req.GetString("start", ""), req.GetString("end", ""))
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	order := workout.ParseOrder(req.GetString("order", ""))

	views, err := h.ds.History(ctx, order)
	if err != nil {
		h.log.Error("mcp list_workouts", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	views = filterByRange(views, start, end)

	result, err := mcp.NewToolResultJSON(views)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getWorkout(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id parameter is required"), nil
	}

	views, err := h.ds.History(ctx, workout.Descending)
	if err != nil {
		h.log.Error("mcp get_workout", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	for _, v := range views {
		if v.ID == id {
			result, err := mcp.NewToolResultJSON(v)
			if err != nil {
				return mcp.NewToolResultError("serialization failed"), nil
			}
			return result, nil
		}
	}
	return mcp.NewToolResultError("no workout with id " + id), nil
}

// volumePeriod is one bucket of the volume summary.
type volumePeriod struct {
	Period      string  `json:"period"`
	Sessions    int     `json:"sessions"`
	Entries     int     `json:"entries"`
	TotalVolume float64 `json:"total_volume"`
}

func (h *handlers) getVolumeSummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start, end, err := defaultTimeRange(req.GetString("start", ""), req.GetString("end", ""))
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	bucket := req.GetString("bucket", "1 month")

	views, err := h.ds.History(ctx, workout.Ascending)
	if err != nil {
		h.log.Error("mcp get_volume_summary", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	views = filterByRange(views, start, end)

	byPeriod := make(map[string]*volumePeriod)
	var order []string
	for _, v := range views {
		if v.Date.IsZero() {
			continue
		}
		key := periodKey(v.Date, bucket)
		p, ok := byPeriod[key]
		if !ok {
			p = &volumePeriod{Period: key}
			byPeriod[key] = p
			order = append(order, key)
		}
		p.Sessions++
		p.Entries += len(v.Entries)
		p.TotalVolume += v.TotalVolume
	}

	periods := make([]volumePeriod, 0, len(order))
	for _, key := range order {
		periods = append(periods, *byPeriod[key])
	}

	result, err := mcp.NewToolResultJSON(periods)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

// periodKey formats a session date as its aggregation bucket label,
// ISO week for '1 week' and YYYY-MM otherwise.
func periodKey(t time.Time, bucket string) string {
	if bucket == "1 week" {
		year, week := t.ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week)
	}
	return t.Format("2006-01")
}

func (h *handlers) listExercises(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	opts, err := h.ds.ExerciseNames(ctx)
	if err != nil {
		h.log.Error("mcp list_exercises", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(opts)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}
