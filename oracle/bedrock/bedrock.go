// Package bedrock implements oracle.ChatModel on the Amazon Bedrock Converse API.
package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"recipeassistant/oracle"
)

const (
	// defaultModelID is the default model ID for Bedrock Claude.
	// It's an inference profile ID or ARN, not the foundation model's ID.
	// See https://docs.aws.amazon.com/bedrock/latest/userguide/inference-profiles.html.
	defaultModelID = "us.anthropic.claude-3-7-sonnet-20250219-v1:0"

	defaultMaxTokens = 1024

	// Low temperature keeps tool selection and extraction consistent.
	defaultTemperature = 0.2

	defaultTopP = 0.9
)

type bedrockRuntimeClient interface {
	Converse(context.Context, *bedrockruntime.ConverseInput, ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

type LLMOptions struct {
	ModelID     string
	MaxTokens   int32
	Temperature float32
	TopP        float32
}

type LLMClient struct {
	brc  bedrockRuntimeClient
	opts LLMOptions
}

func NewLLMClient(brc bedrockRuntimeClient, opts LLMOptions) *LLMClient {
	if opts.ModelID == "" {
		opts.ModelID = defaultModelID
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	if opts.Temperature == 0 {
		opts.Temperature = defaultTemperature
	}
	if opts.TopP == 0 {
		opts.TopP = defaultTopP
	}
	return &LLMClient{
		brc:  brc,
		opts: opts,
	}
}

// Chat sends req through Converse. Consecutive messages of the same role are
// merged because Converse requires roles to alternate.
func (c *LLMClient) Chat(ctx context.Context, req oracle.ChatRequest) (oracle.ChatResponse, error) {
	slog.Info("LLM_CLIENT: Invoked", "provider", "bedrock", "messages_len", len(req.Messages), "functions", len(req.Functions))

	in, err := c.buildInput(req)
	if err != nil {
		return oracle.ChatResponse{}, err
	}

	out, err := c.brc.Converse(ctx, in)
	if err != nil {
		slog.Error("LLM_CLIENT: Bedrock Claude invoke failed", "error", err, "model", c.opts.ModelID)
		return oracle.ChatResponse{}, err
	}

	var latency int64
	if out.Metrics != nil {
		latency = aws.ToInt64(out.Metrics.LatencyMs)
	}
	var inputTokens, outputTokens int32
	if out.Usage != nil {
		inputTokens = aws.ToInt32(out.Usage.InputTokens)
		outputTokens = aws.ToInt32(out.Usage.OutputTokens)
	}
	slog.Info("LLM_CLIENT: Bedrock Claude invoke succeeded",
		"stop_reason", out.StopReason,
		"latency_ms", latency,
		"input_tokens", inputTokens,
		"output_tokens", outputTokens,
	)

	switch out.StopReason {
	case types.StopReasonMaxTokens:
		slog.Warn("LLM_CLIENT: Model hit MaxTokens limit; consider increasing MaxTokens or chunking")
		return oracle.ChatResponse{}, fmt.Errorf("model hit MaxTokens limit; consider increasing MaxTokens or chunking")

	case types.StopReasonGuardrailIntervened, types.StopReasonContentFiltered:
		slog.Warn("LLM_CLIENT: Model response blocked by Bedrock safety filters")
		return oracle.ChatResponse{}, fmt.Errorf("model response blocked by Bedrock safety filters")
	}

	calls, err := callsFromOutput(out)
	if err != nil {
		return oracle.ChatResponse{}, fmt.Errorf("failed to parse tool calls: %w", err)
	}

	return oracle.ChatResponse{Content: textFromOutput(out), Calls: calls}, nil
}

func (c *LLMClient) buildInput(req oracle.ChatRequest) (*bedrockruntime.ConverseInput, error) {
	var sys []types.SystemContentBlock
	if strings.TrimSpace(req.System) != "" {
		sys = append(sys, &types.SystemContentBlockMemberText{Value: req.System})
	}

	var msgs []types.Message
	for _, m := range req.Messages {
		role := types.ConversationRoleUser
		if m.Role == oracle.RoleAssistant {
			role = types.ConversationRoleAssistant
		}
		block := &types.ContentBlockMemberText{Value: m.Content}

		if n := len(msgs); n > 0 && msgs[n-1].Role == role {
			msgs[n-1].Content = append(msgs[n-1].Content, block)
			continue
		}
		msgs = append(msgs, types.Message{Role: role, Content: []types.ContentBlock{block}})
	}

	in := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(c.opts.ModelID),
		System:   sys,
		Messages: msgs,
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:   aws.Int32(c.opts.MaxTokens),
			Temperature: aws.Float32(c.opts.Temperature),
			TopP:        aws.Float32(c.opts.TopP),
		},
	}

	if len(req.Functions) == 0 {
		return in, nil
	}

	var tools []types.Tool
	for _, f := range req.Functions {
		spec, err := buildToolSpec(f)
		if err != nil {
			return nil, err
		}
		tools = append(tools, &types.ToolMemberToolSpec{Value: spec})
	}

	var choice types.ToolChoice = &types.ToolChoiceMemberAuto{}
	if req.ForceFunction != "" {
		choice = &types.ToolChoiceMemberTool{Value: types.SpecificToolChoice{Name: aws.String(req.ForceFunction)}}
	}
	in.ToolConfig = &types.ToolConfiguration{Tools: tools, ToolChoice: choice}

	return in, nil
}

// buildToolSpec constructs a ToolSpecification for a function. The schema is
// round-tripped through JSON so the document carries plain maps.
func buildToolSpec(f oracle.FunctionSpec) (types.ToolSpecification, error) {
	schemaMap, err := oracle.SchemaMap(f.Parameters)
	if err != nil {
		return types.ToolSpecification{}, fmt.Errorf("failed to marshal tool schema for %s: %w", f.Name, err)
	}

	return types.ToolSpecification{
		Name:        aws.String(f.Name),
		Description: aws.String(f.Description),
		InputSchema: &types.ToolInputSchemaMemberJson{
			Value: document.NewLazyDocument(schemaMap),
		},
	}, nil
}

// textFromOutput joins the assistant's text blocks with '\n'.
func textFromOutput(out *bedrockruntime.ConverseOutput) string {
	if out == nil || out.Output == nil {
		return ""
	}

	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok || msg == nil {
		return ""
	}

	texts := make([]string, 0, len(msg.Value.Content))
	for _, cb := range msg.Value.Content {
		if t, ok := cb.(*types.ContentBlockMemberText); ok && t != nil && t.Value != "" {
			texts = append(texts, t.Value)
		}
	}
	return strings.Join(texts, "\n")
}

// callsFromOutput extracts tool uses emitted by the assistant.
func callsFromOutput(out *bedrockruntime.ConverseOutput) ([]oracle.FunctionCall, error) {
	if out == nil {
		return nil, nil
	}
	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok || msg == nil {
		return nil, nil
	}

	var calls []oracle.FunctionCall
	for _, cb := range msg.Value.Content {
		tu, ok := cb.(*types.ContentBlockMemberToolUse)
		if !ok || tu == nil {
			continue
		}

		args := json.RawMessage(`{}`)
		if tu.Value.Input != nil {
			b, err := tu.Value.Input.MarshalSmithyDocument()
			if err != nil {
				return nil, fmt.Errorf("tool %s input: %w", aws.ToString(tu.Value.Name), err)
			}
			args = b
		}

		calls = append(calls, oracle.FunctionCall{
			ID:        aws.ToString(tu.Value.ToolUseId),
			Name:      aws.ToString(tu.Value.Name),
			Arguments: args,
		})
	}
	return calls, nil
}

var _ oracle.ChatModel = (*LLMClient)(nil)
