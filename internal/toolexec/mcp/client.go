// Package mcp is the production toolexec.Client: it reaches tool
// servers over the Model Context Protocol rather than hosting tools
// in-process.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	mcppkg "github.com/modelcontextprotocol/go-sdk/mcp"

	"meridian/internal/toolexec"
)

// ServerConfig describes one MCP server to connect to, over either a
// spawned command (stdio transport) or a remote Streamable HTTP
// endpoint.
type ServerConfig struct {
	Name    string
	Command string
	Args    []string
	URL     string
}

// Client is a toolexec.Client backed by a single MCP session.
type Client struct {
	session *mcppkg.ClientSession
}

// Connect dials the configured MCP server and returns a ready Client.
func Connect(ctx context.Context, cfg ServerConfig) (*Client, error) {
	client := mcppkg.NewClient(&mcppkg.Implementation{Name: "praxis", Version: "0.1.0"}, nil)

	var session *mcppkg.ClientSession
	var err error
	switch {
	case strings.TrimSpace(cfg.Command) != "":
		session, err = client.Connect(ctx, &mcppkg.CommandTransport{
			Command: buildCommand(cfg),
		}, nil)
	case strings.TrimSpace(cfg.URL) != "":
		session, err = client.Connect(ctx, &mcppkg.StreamableClientTransport{Endpoint: cfg.URL}, nil)
	default:
		return nil, fmt.Errorf("mcp: server %q has neither command nor url configured", cfg.Name)
	}
	if err != nil {
		return nil, fmt.Errorf("mcp: connect to %q: %w", cfg.Name, err)
	}
	return &Client{session: session}, nil
}

// Close tears down the underlying session.
func (c *Client) Close() error {
	return c.session.Close()
}

// ListTools enumerates every tool the connected server exposes.
func (c *Client) ListTools(ctx context.Context) ([]toolexec.ToolDescriptor, error) {
	var out []toolexec.ToolDescriptor
	for tool, err := range c.session.Tools(ctx, nil) {
		if err != nil {
			return nil, fmt.Errorf("mcp: list tools: %w", err)
		}
		schema := map[string]any{}
		if tool.InputSchema != nil {
			if b, marshalErr := json.Marshal(tool.InputSchema); marshalErr == nil {
				_ = json.Unmarshal(b, &schema)
			}
		}
		out = append(out, toolexec.ToolDescriptor{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: schema,
		})
	}
	return out, nil
}

// CallTool invokes a named tool and renders its textual content for
// the model. A server-reported error becomes a *toolexec.ToolError.
func (c *Client) CallTool(ctx context.Context, name string, arguments map[string]any) (string, error) {
	res, err := c.session.CallTool(ctx, &mcppkg.CallToolParams{Name: name, Arguments: arguments})
	if err != nil {
		return "", fmt.Errorf("mcp: call tool %q: %w", name, err)
	}

	var texts []string
	for _, content := range res.Content {
		if tc, ok := content.(*mcppkg.TextContent); ok {
			texts = append(texts, tc.Text)
		}
	}
	result := strings.Join(texts, "\n")

	if res.IsError {
		return "", &toolexec.ToolError{Message: result}
	}
	return result, nil
}

func buildCommand(cfg ServerConfig) *exec.Cmd {
	return exec.Command(cfg.Command, cfg.Args...)
}
