// Package mcpserver exposes cook's build engine to MCP clients over
// stdio, grounded on obsidian-cli's pkg/mcp (same mark3labs/mcp-go
// server shape: one mcp.NewTool plus handler pair per capability,
// JSON-encoded structured results), adapted from vault queries to
// build-graph queries.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mdhender/cook/internal/engine"
)

// Config bundles the engine defaults every tool call falls back to
// when a request omits a field, mirroring obsidian-cli's mcp.Config.
type Config struct {
	CookbookPath string
	Jobs         int
	Stripdot     bool
	Logger       *slog.Logger
}

// New creates an MCP server with cook's tools registered, ready for
// server.ServeStdio.
func New(cfg Config) *server.MCPServer {
	s := server.NewMCPServer(
		"cook",
		"0.1.0",
		server.WithToolCapabilities(false),
		server.WithInstructions(instructions),
	)

	statusTool := mcp.NewTool("status",
		mcp.WithDescription(`Report which targets are stale without running any recipe. Response: {targets:[{name,state}]} where state is one of done_up_to_date, done_rebuilt (meaning: would rebuild), blocked, failed. Runs with dryRun always on.`),
		mcp.WithArray("goals", mcp.Required(), mcp.Description("Target file names to check"), mcp.WithStringItems()),
		mcp.WithString("cookbook", mcp.Description("Path to the cookbook file (defaults to the server's configured cookbook)")),
	)
	s.AddTool(statusTool, StatusTool(cfg))

	buildTool := mcp.NewTool("build",
		mcp.WithDescription(`Build one or more goals, running any stale recipe's commands. Response: {targets:[{name,state}]} with state done_up_to_date, done_rebuilt, or failed.`),
		mcp.WithArray("goals", mcp.Required(), mcp.Description("Target file names to build"), mcp.WithStringItems()),
		mcp.WithString("cookbook", mcp.Description("Path to the cookbook file (defaults to the server's configured cookbook)")),
		mcp.WithNumber("jobs", mcp.Description("Maximum concurrent recipe nodes (default: server configured value)"), mcp.Min(1)),
		mcp.WithBoolean("continueOnFailure", mcp.Description("Keep building independent goals after a failure (default false)")),
	)
	s.AddTool(buildTool, BuildTool(cfg))

	return s
}

const instructions = `This MCP server exposes cook, a file-construction build tool, as two tools:
- status: check which of the given goals are stale, without building anything.
- build: build the given goals, running any recipe whose targets are out of date.

Both tools accept a "goals" array of target file names and an optional "cookbook" path override.`

// targetState is one entry in a status/build response.
type targetState struct {
	Name  string `json:"name"`
	State string `json:"state"`
}

// StatusTool reports staleness for the requested goals with DryRun
// forced on, so no recipe command actually executes.
func StatusTool(cfg Config) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return runEngine(ctx, cfg, request, true)
	}
}

// BuildTool builds the requested goals for real.
func BuildTool(cfg Config) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return runEngine(ctx, cfg, request, false)
	}
}

func runEngine(ctx context.Context, cfg Config, request mcp.CallToolRequest, dryRun bool) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	rawGoals, ok := args["goals"].([]interface{})
	if !ok || len(rawGoals) == 0 {
		return mcp.NewToolResultError("goals is required and must be a non-empty array"), nil
	}
	goals := make([]string, len(rawGoals))
	for i, v := range rawGoals {
		s, ok := v.(string)
		if !ok {
			return mcp.NewToolResultError("all goals must be strings"), nil
		}
		goals[i] = s
	}

	cookbookPath := cfg.CookbookPath
	if v, ok := args["cookbook"].(string); ok && v != "" {
		cookbookPath = v
	}
	if cookbookPath == "" {
		return mcp.NewToolResultError("no cookbook configured; pass \"cookbook\""), nil
	}

	jobs := cfg.Jobs
	if jf, ok := args["jobs"].(float64); ok && jf > 0 {
		jobs = int(jf)
	}
	continueOnFailure, _ := args["continueOnFailure"].(bool)

	res, err := engine.Run(ctx, engine.Options{
		CookbookPath:      cookbookPath,
		Goals:             goals,
		Jobs:              jobs,
		ContinueOnFailure: continueOnFailure,
		Stripdot:          cfg.Stripdot,
		DryRun:            dryRun,
		Logger:            cfg.Logger,
	})
	if err != nil && res.Targets == nil {
		return mcp.NewToolResultError(fmt.Sprintf("build failed: %s", err)), nil
	}

	states := make([]targetState, 0, len(res.Targets))
	for name, st := range res.Targets {
		states = append(states, targetState{Name: name, State: st.String()})
	}

	encoded, jsonErr := json.Marshal(struct {
		RunID   string        `json:"run_id"`
		Targets []targetState `json:"targets"`
		Error   string        `json:"error,omitempty"`
	}{RunID: res.RunID, Targets: states, Error: errString(err)})
	if jsonErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding response: %s", jsonErr)), nil
	}
	return mcp.NewToolResultText(string(encoded)), nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
