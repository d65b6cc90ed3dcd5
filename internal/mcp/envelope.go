// Package mcp exposes the orchestration engine as an MCP tool server.
package mcp

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/forgecrew/foreman/internal/engine"
)

// envelope is the stable result shape of every tool: {success, data?,
// error?}. Batch tools return success=true even when individual entries
// fail; per-entry failures live inside data.
type envelope struct {
	Success bool           `json:"success"`
	Data    interface{}    `json:"data,omitempty"`
	Error   *envelopeError `json:"error,omitempty"`
}

type envelopeError struct {
	Message string      `json:"message"`
	Code    engine.Code `json:"code"`
}

func textResult(v interface{}) (*mcp.CallToolResult, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tool result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(string(payload))},
	}, nil
}

// successResult wraps data in a success envelope
func successResult(data interface{}) (*mcp.CallToolResult, error) {
	return textResult(envelope{Success: true, Data: data})
}

// failureResult wraps an error in a failure envelope. The error is
// reported inside the protocol result, not as a transport failure.
func failureResult(err error) (*mcp.CallToolResult, error) {
	coded := engine.AsError(err)
	return textResult(envelope{
		Success: false,
		Error:   &envelopeError{Message: coded.Message, Code: coded.Code},
	})
}
