// Package openai implements oracle.ChatModel on the OpenAI chat completions API.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"recipeassistant/oracle"
)

const (
	defaultModelID   = openai.GPT4
	defaultMaxTokens = 1024
	defaultTopP      = 0.9

	// DefaultTimeout bounds a whole completion round trip when no HTTPClient is given.
	DefaultTimeout = 2 * time.Minute
)

type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type ClientOpts struct {
	APIKey string

	// BaseURL targets an OpenAI-compatible server; empty means api.openai.com.
	BaseURL     string
	HTTPClient  *http.Client
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

type Client struct {
	api         chatCompleter
	model       string
	maxTokens   int
	temperature float32
	topP        float32
}

func NewClient(opts ClientOpts) *Client {
	config := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		baseURL := strings.TrimSuffix(opts.BaseURL, "/")
		if !strings.HasSuffix(baseURL, "/v1") {
			baseURL += "/v1"
		}
		config.BaseURL = baseURL
	}
	config.HTTPClient = httpClientOrDefault(opts.HTTPClient)
	return newClient(openai.NewClientWithConfig(config), opts)
}

func httpClientOrDefault(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return &http.Client{Timeout: DefaultTimeout}
}

func newClient(api chatCompleter, opts ClientOpts) *Client {
	if opts.ModelID == "" {
		opts.ModelID = defaultModelID
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	if opts.TopP == 0 {
		opts.TopP = defaultTopP
	}
	return &Client{
		api:         api,
		model:       opts.ModelID,
		maxTokens:   opts.MaxTokens,
		temperature: opts.Temperature,
		topP:        opts.TopP,
	}
}

// Chat sends req as a chat completion. Functions are offered as tools and
// ForceFunction pins the tool choice.
func (c *Client) Chat(ctx context.Context, req oracle.ChatRequest) (oracle.ChatResponse, error) {
	slog.Info("LLM_CLIENT: Invoked", "provider", "openai", "messages_len", len(req.Messages), "functions", len(req.Functions))

	creq, err := c.buildRequest(req)
	if err != nil {
		return oracle.ChatResponse{}, err
	}

	resp, err := c.api.CreateChatCompletion(ctx, creq)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			slog.Error("LLM_CLIENT: OpenAI request failed",
				"status_code", apiErr.HTTPStatusCode,
				"code", apiErr.Code,
				"type", apiErr.Type,
				"message", apiErr.Message,
			)
		} else {
			slog.Error("LLM_CLIENT: OpenAI request failed", "error", err)
		}
		return oracle.ChatResponse{}, err
	}

	slog.Info("LLM_CLIENT: OpenAI invoke succeeded",
		"choices", len(resp.Choices),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
	)

	if len(resp.Choices) == 0 {
		return oracle.ChatResponse{}, fmt.Errorf("openai returned no choices")
	}

	choice := resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonLength {
		slog.Warn("LLM_CLIENT: Model hit MaxTokens limit; consider increasing MaxTokens")
	}

	out := oracle.ChatResponse{Content: choice.Message.Content}
	for _, tc := range choice.Message.ToolCalls {
		out.Calls = append(out.Calls, oracle.FunctionCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		})
	}
	return out, nil
}

func (c *Client) buildRequest(req oracle.ChatRequest) (openai.ChatCompletionRequest, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	for _, m := range req.Messages {
		role := openai.ChatMessageRoleUser
		if m.Role == oracle.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	// A zero temperature is dropped by omitempty and the API default of 1 applies.
	temperature := c.temperature
	if temperature == 0 {
		temperature = math.SmallestNonzeroFloat32
	}

	creq := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: temperature,
		TopP:        c.topP,
	}

	for _, f := range req.Functions {
		params, err := oracle.SchemaMap(f.Parameters)
		if err != nil {
			return openai.ChatCompletionRequest{}, fmt.Errorf("failed to marshal tool schema for %s: %w", f.Name, err)
		}
		creq.Tools = append(creq.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        f.Name,
				Description: f.Description,
				Parameters:  params,
			},
		})
	}

	if req.ForceFunction != "" {
		creq.ToolChoice = openai.ToolChoice{
			Type:     openai.ToolTypeFunction,
			Function: openai.ToolFunction{Name: req.ForceFunction},
		}
	}

	return creq, nil
}

var _ oracle.ChatModel = (*Client)(nil)
