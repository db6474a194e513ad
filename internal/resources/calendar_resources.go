package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/calstats/internal/server"
)

// ProfileURI identifies the mailbox profile resource.
const ProfileURI = "calendar://profile"

// RegisterCalendarResources registers read-only resources describing the
// configured mailbox.
func RegisterCalendarResources(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	if s == nil || sc == nil {
		return fmt.Errorf("MCP server and server context are required")
	}

	profileResource := mcp.NewResource(
		ProfileURI,
		"Calendar Owner Profile",
		mcp.WithResourceDescription("Time zone and working hours of the mailbox whose calendar is served"),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(profileResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleProfile(ctx, request, sc)
	})

	return nil
}

func handleProfile(ctx context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	profile, err := sc.Calendar().Profile(ctx, sc.TargetUser())
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	jsonData, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal profile: %w", err)
	}

	return []mcp.ResourceContents{
		&mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(jsonData),
		},
	}, nil
}
