package mcp

import (
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

func jsonResult(data interface{}) (*mcp.CallToolResult, error) {
	content, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %v", err)
	}
	return textResult(string(content)), nil
}

// errorResult reports a tool failure inside the result object with
// IsError set, so the caller can see it and self-correct, instead of
// surfacing a protocol-level error.
func errorResult(err error) *mcp.CallToolResult {
	result := textResult(err.Error())
	result.IsError = true
	return result
}
