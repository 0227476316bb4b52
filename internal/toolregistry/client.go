// Package toolregistry 管理租户范围的外部 MCP 工具端点：连接、探活、工具发现与调用。
package toolregistry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"z-novel-ai-api/internal/domain/entity"
)

// Client 是单个插件连接的抽象，屏蔽 stdio 与 HTTP 传输的差异。
type Client interface {
	ListTools(ctx context.Context) ([]entity.ToolDescriptor, error)
	Call(ctx context.Context, toolName string, args map[string]any) (map[string]any, error)
	Close() error
}

// Dial 按插件的传输方式建立连接。
func Dial(ctx context.Context, plugin *entity.ToolPlugin) (Client, error) {
	switch plugin.Transport {
	case entity.ToolPluginTransportStdio:
		return dialStdio(ctx, plugin)
	case entity.ToolPluginTransportSSE, entity.ToolPluginTransportStreamableHTTP:
		return dialHTTP(plugin), nil
	default:
		return nil, fmt.Errorf("unsupported transport: %s", plugin.Transport)
	}
}

type stdioClient struct {
	mcpClient *mcpclient.Client
}

func dialStdio(ctx context.Context, plugin *entity.ToolPlugin) (Client, error) {
	env := make([]string, 0, len(plugin.Env))
	for k, v := range plugin.Env {
		env = append(env, k+"="+v)
	}

	c, err := mcpclient.NewStdioMCPClient(plugin.Command, env)
	if err != nil {
		return nil, fmt.Errorf("create mcp stdio client: %w", err)
	}
	if err := c.Start(ctx); err != nil {
		return nil, fmt.Errorf("start mcp stdio client: %w", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ClientInfo = mcp.Implementation{Name: "z-novel-ai-api", Version: "1.0.0"}
	initReq.Params.ProtocolVersion = "2024-11-05"
	if _, err := c.Initialize(ctx, initReq); err != nil {
		c.Close()
		return nil, fmt.Errorf("initialize mcp stdio client: %w", err)
	}

	return &stdioClient{mcpClient: c}, nil
}

func (s *stdioClient) ListTools(ctx context.Context) ([]entity.ToolDescriptor, error) {
	resp, err := s.mcpClient.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, err
	}
	out := make([]entity.ToolDescriptor, 0, len(resp.Tools))
	for _, t := range resp.Tools {
		schemaBytes, _ := json.Marshal(t.InputSchema)
		out = append(out, entity.ToolDescriptor{
			Name:        t.Name,
			Description: t.Description,
			SchemaJSON:  string(schemaBytes),
		})
	}
	return out, nil
}

func (s *stdioClient) Call(ctx context.Context, toolName string, args map[string]any) (map[string]any, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = toolName
	req.Params.Arguments = args
	resp, err := s.mcpClient.CallTool(ctx, req)
	if err != nil {
		return nil, err
	}
	return parseCallResult(resp)
}

func (s *stdioClient) Close() error {
	return s.mcpClient.Close()
}

func parseCallResult(resp *mcp.CallToolResult) (map[string]any, error) {
	if resp == nil {
		return nil, fmt.Errorf("empty mcp response")
	}
	var sb strings.Builder
	for _, content := range resp.Content {
		if tc, ok := content.(mcp.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}
	result := map[string]any{"text": sb.String()}
	if resp.IsError {
		return result, fmt.Errorf("mcp tool call returned error: %s", sb.String())
	}
	return result, nil
}

// httpClient 是一个按 JSON-RPC over HTTP 方式调用的轻量客户端，用于 sse/streamable_http 传输。
type httpClient struct {
	url     string
	headers map[string]string
	hc      *http.Client
}

func dialHTTP(plugin *entity.ToolPlugin) Client {
	return &httpClient{
		url:     plugin.URL,
		headers: plugin.Headers,
		hc:      &http.Client{Timeout: 30 * time.Second},
	}
}

type jsonRPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type jsonRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *jsonRPCError   `json:"error,omitempty"`
}

type jsonRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (h *httpClient) request(ctx context.Context, method string, params any) (*jsonRPCResponse, error) {
	body, err := json.Marshal(jsonRPCRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	for k, v := range h.headers {
		req.Header.Set(k, v)
	}

	resp, err := h.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var rpcResp jsonRPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, fmt.Errorf("decode mcp response: %w", err)
	}
	if rpcResp.Error != nil {
		return &rpcResp, fmt.Errorf("mcp error: %s", rpcResp.Error.Message)
	}
	return &rpcResp, nil
}

func (h *httpClient) ListTools(ctx context.Context) ([]entity.ToolDescriptor, error) {
	resp, err := h.request(ctx, "tools/list", nil)
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Tools []struct {
			Name        string          `json:"name"`
			Description string          `json:"description"`
			InputSchema json.RawMessage `json:"inputSchema"`
		} `json:"tools"`
	}
	if err := json.Unmarshal(resp.Result, &parsed); err != nil {
		return nil, fmt.Errorf("parse tools/list result: %w", err)
	}
	out := make([]entity.ToolDescriptor, 0, len(parsed.Tools))
	for _, t := range parsed.Tools {
		out = append(out, entity.ToolDescriptor{
			Name:        t.Name,
			Description: t.Description,
			SchemaJSON:  string(t.InputSchema),
		})
	}
	return out, nil
}

func (h *httpClient) Call(ctx context.Context, toolName string, args map[string]any) (map[string]any, error) {
	resp, err := h.request(ctx, "tools/call", map[string]any{"name": toolName, "arguments": args})
	if err != nil {
		return nil, err
	}
	var result map[string]any
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, fmt.Errorf("parse tools/call result: %w", err)
	}
	return result, nil
}

func (h *httpClient) Close() error {
	return nil
}
