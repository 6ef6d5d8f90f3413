package mcpserver

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

func writeTestCookbook(t *testing.T, dir string) (cookbookPath, target, src string) {
	t.Helper()
	src = filepath.Join(dir, "foo.c")
	if err := os.WriteFile(src, []byte("int main(){}"), 0o644); err != nil {
		t.Fatal(err)
	}
	cookbookPath = filepath.Join(dir, "COOKBOOK")
	if err := os.WriteFile(cookbookPath, []byte("%.o : %.c\n    cc -c $ingredient -o $target\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	target = filepath.Join(dir, "foo.o")
	return cookbookPath, target, src
}

func TestStatusToolReportsWithoutBuilding(t *testing.T) {
	dir := t.TempDir()
	cookbookPath, target, src := writeTestCookbook(t, dir)

	cfg := Config{CookbookPath: cookbookPath}
	tool := StatusTool(cfg)
	req := mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      "status",
			Arguments: map[string]interface{}{"goals": []interface{}{target, src}},
		},
	}

	res, err := tool(context.Background(), req)
	if err != nil {
		t.Fatalf("StatusTool: %v", err)
	}
	if res.IsError {
		t.Fatalf("StatusTool returned an error result: %+v", res)
	}

	text := resultText(t, res)
	var body struct {
		Targets []targetState `json:"targets"`
	}
	if err := json.Unmarshal([]byte(text), &body); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(body.Targets) == 0 {
		t.Fatal("expected at least one target in the response")
	}
}

func TestBuildToolRequiresGoals(t *testing.T) {
	cfg := Config{CookbookPath: "COOKBOOK"}
	tool := BuildTool(cfg)
	req := mcp.CallToolRequest{
		Params: mcp.CallToolParams{Name: "build", Arguments: map[string]interface{}{}},
	}

	res, err := tool(context.Background(), req)
	if err != nil {
		t.Fatalf("BuildTool: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected an error result when goals is missing")
	}
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	for _, c := range res.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	t.Fatalf("no text content in result: %+v", res)
	return ""
}
