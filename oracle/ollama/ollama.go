// Package ollama implements oracle.ChatModel on Ollama's /api/chat endpoint.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"recipeassistant"
	"recipeassistant/oracle"
)

const (
	DefaultBaseEndpoint = "http://localhost:11434"
	DefaultModelID      = "llama3.2"

	// DefaultTimeout bounds a whole chat round trip when no HTTPClient is given.
	DefaultTimeout = 2 * time.Minute
)

type options struct {
	Temperature   float64 `json:"temperature,omitempty"`
	TopP          float64 `json:"top_p,omitempty"`
	RepeatPenalty float64 `json:"repeat_penalty,omitempty"`
	NumCtx        int     `json:"num_ctx,omitempty"`
}

type Client struct {
	endpoint   string
	model      string
	httpClient recipeassistant.HTTPClient
	options    options
}

type ClientOpts struct {
	BaseEndpoint string
	ModelID      string
	HTTPClient   recipeassistant.HTTPClient
}

func NewClient(opts ClientOpts) *Client {
	if opts.BaseEndpoint == "" {
		opts.BaseEndpoint = DefaultBaseEndpoint
	}
	if opts.ModelID == "" {
		opts.ModelID = DefaultModelID
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{
		model:      opts.ModelID,
		httpClient: opts.HTTPClient,
		endpoint:   strings.TrimRight(opts.BaseEndpoint, "/") + "/api/chat",
		options: options{
			Temperature:   0.2,
			TopP:          0.9,
			RepeatPenalty: 1.05,
			NumCtx:        16384,
		},
	}
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type wireFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type wireTool struct {
	Type     string       `json:"type"`
	Function wireFunction `json:"function"`
}

type wireRequest struct {
	Model    string        `json:"model"`
	Messages []wireMessage `json:"messages"`
	Tools    []wireTool    `json:"tools,omitempty"`
	Stream   bool          `json:"stream"`
	Options  options       `json:"options,omitempty"`
}

// Chat sends req to Ollama. Ollama has no tool_choice, so a forced function
// is the only tool offered and the system prompt asks for it explicitly.
func (c *Client) Chat(ctx context.Context, req oracle.ChatRequest) (oracle.ChatResponse, error) {
	slog.Info("LLM_CLIENT: Invoked", "provider", "ollama", "messages_len", len(req.Messages), "functions", len(req.Functions))

	wr, err := c.buildRequest(req)
	if err != nil {
		return oracle.ChatResponse{}, err
	}
	reqBytes, err := json.Marshal(wr)
	if err != nil {
		return oracle.ChatResponse{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBuffer(reqBytes))
	if err != nil {
		return oracle.ChatResponse{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return oracle.ChatResponse{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return oracle.ChatResponse{}, fmt.Errorf("read ollama response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return oracle.ChatResponse{}, fmt.Errorf("ollama returned %s: %s", resp.Status, string(body))
	}
	if !gjson.ValidBytes(body) {
		return oracle.ChatResponse{}, fmt.Errorf("ollama response is not valid JSON")
	}

	return parseResponse(body), nil
}

func (c *Client) buildRequest(req oracle.ChatRequest) (wireRequest, error) {
	system := req.System
	functions := req.Functions
	if req.ForceFunction != "" {
		functions = nil
		for _, f := range req.Functions {
			if f.Name == req.ForceFunction {
				functions = append(functions, f)
			}
		}
		system = strings.TrimSpace(system + "\nYou must respond by calling the " + req.ForceFunction + " tool.")
	}

	messages := make([]wireMessage, 0, len(req.Messages)+1)
	if strings.TrimSpace(system) != "" {
		messages = append(messages, wireMessage{Role: "system", Content: system})
	}
	for _, m := range req.Messages {
		role := m.Role
		if role != oracle.RoleAssistant {
			role = oracle.RoleUser
		}
		messages = append(messages, wireMessage{Role: role, Content: m.Content})
	}

	wr := wireRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   false,
		Options:  c.options,
	}
	for _, f := range functions {
		params, err := oracle.SchemaMap(f.Parameters)
		if err != nil {
			return wireRequest{}, fmt.Errorf("failed to marshal tool schema for %s: %w", f.Name, err)
		}
		wr.Tools = append(wr.Tools, wireTool{
			Type:     "function",
			Function: wireFunction{Name: f.Name, Description: f.Description, Parameters: params},
		})
	}
	return wr, nil
}

// parseResponse reads message.content and message.tool_calls. Some models
// send arguments as a JSON-encoded string rather than an object.
func parseResponse(body []byte) oracle.ChatResponse {
	msg := gjson.GetBytes(body, "message")
	out := oracle.ChatResponse{Content: msg.Get("content").String()}

	msg.Get("tool_calls").ForEach(func(_, call gjson.Result) bool {
		args := call.Get("function.arguments")
		raw := args.Raw
		if args.Type == gjson.String {
			raw = args.Str
		}
		if !args.Exists() {
			raw = "{}"
		}
		out.Calls = append(out.Calls, oracle.FunctionCall{
			Name:      call.Get("function.name").String(),
			Arguments: json.RawMessage(raw),
		})
		return true
	})

	return out
}

var _ oracle.ChatModel = (*Client)(nil)
