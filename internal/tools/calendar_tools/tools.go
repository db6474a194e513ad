package calendar_tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/calstats/internal/calendar"
	"github.com/teemow/calstats/internal/graph"
	"github.com/teemow/calstats/internal/identity"
	"github.com/teemow/calstats/internal/server"
	"github.com/teemow/calstats/internal/tools/common"
)

// Tool names.
const (
	ToolProfile = "calendar_profile"
	ToolView    = "calendar_view"
	ToolStats   = "calendar_stats"
)

// RegisterCalendarTools registers the calendar tools with the MCP server.
// All of them read the mailbox configured on sc.
func RegisterCalendarTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	if s == nil || sc == nil {
		return fmt.Errorf("MCP server and server context are required")
	}

	profileTool := mcp.NewTool(ToolProfile,
		mcp.WithDescription("Get the time zone and working hours of the calendar owner"),
		mcp.WithReadOnlyHintAnnotation(true),
	)
	s.AddTool(profileTool, common.InstrumentedToolHandler(ToolProfile, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleProfile(ctx, request, sc)
		}))

	viewTool := mcp.NewTool(ToolView,
		mcp.WithDescription("List calendar events overlapping a time range, as returned by Microsoft Graph (first page only)"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("start",
			mcp.Required(),
			mcp.Description("Start of the range (ISO 8601, e.g. '2025-01-06T00:00:00Z')"),
		),
		mcp.WithString("end",
			mcp.Required(),
			mcp.Description("End of the range (ISO 8601, e.g. '2025-01-13T00:00:00Z')"),
		),
	)
	s.AddTool(viewTool, common.InstrumentedToolHandler(ToolView, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleView(ctx, request, sc)
		}))

	statsTool := mcp.NewTool(ToolStats,
		mcp.WithDescription("Sum the hours spent in calendar events over a time range, grouped by category or by free/busy status"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("start",
			mcp.Required(),
			mcp.Description("Start of the range (ISO 8601, e.g. '2025-01-06T00:00:00Z')"),
		),
		mcp.WithString("end",
			mcp.Required(),
			mcp.Description("End of the range (ISO 8601, e.g. '2025-01-13T00:00:00Z')"),
		),
		mcp.WithString("groupBy",
			mcp.Description("Grouping: 'category' (default) or 'status'"),
			mcp.Enum(string(calendar.ByCategory), string(calendar.ByStatus)),
		),
	)
	s.AddTool(statsTool, common.InstrumentedToolHandler(ToolStats, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleStats(ctx, request, sc)
		}))

	return nil
}

func handleProfile(ctx context.Context, _ mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	profile, err := sc.Calendar().Profile(ctx, sc.TargetUser())
	if err != nil {
		return toolError("Failed to get profile", err), nil
	}
	return jsonResult(profile)
}

func handleView(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	start, end, res := rangeArgs(request)
	if res != nil {
		return res, nil
	}

	raw, err := sc.Calendar().CalendarView(ctx, sc.TargetUser(), start, end, calendar.ViewFields)
	if err != nil {
		return toolError("Failed to list events", err), nil
	}
	return mcp.NewToolResultText(string(raw)), nil
}

func handleStats(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	start, end, res := rangeArgs(request)
	if res != nil {
		return res, nil
	}

	dim, err := calendar.ParseDimension(request.GetString("groupBy", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	buckets, err := sc.Calendar().Stats(ctx, sc.TargetUser(), start, end, dim)
	if err != nil {
		return toolError("Failed to compute statistics", err), nil
	}
	return jsonResult(buckets)
}

// rangeArgs returns the start and end arguments, or an error result when
// either is missing.
func rangeArgs(request mcp.CallToolRequest) (start, end string, res *mcp.CallToolResult) {
	start = request.GetString("start", "")
	end = request.GetString("end", "")
	if err := calendar.ValidateRange(start, end); err != nil {
		return "", "", mcp.NewToolResultError(err.Error())
	}
	return start, end, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

// toolError describes err for the model. Upstream failures carry Graph's
// status and error code so the caller can tell throttling from a bad mailbox.
func toolError(prefix string, err error) *mcp.CallToolResult {
	var (
		upstreamErr *graph.UpstreamError
		authErr     *identity.AuthError
		dataErr     *calendar.DataError
	)

	switch {
	case errors.As(err, &upstreamErr):
		msg := fmt.Sprintf("%s: Microsoft Graph returned %d", prefix, upstreamErr.StatusCode)
		if upstreamErr.Code != "" {
			msg += fmt.Sprintf(" (%s: %s)", upstreamErr.Code, upstreamErr.Message)
		}
		if upstreamErr.RetryAfter > 0 {
			msg += fmt.Sprintf("; retry after %s", upstreamErr.RetryAfter)
		}
		return mcp.NewToolResultError(msg)
	case errors.As(err, &authErr):
		return mcp.NewToolResultError(fmt.Sprintf("%s: could not authenticate to Microsoft Graph: %v", prefix, authErr))
	case errors.As(err, &dataErr):
		return mcp.NewToolResultError(fmt.Sprintf("%s: malformed calendar data: %v", prefix, dataErr))
	default:
		return mcp.NewToolResultError(fmt.Sprintf("%s: %v", prefix, err))
	}
}
