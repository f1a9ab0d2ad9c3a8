package bedrock

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/joeshaw/envdecode"
	"github.com/modelcontextprotocol/go-sdk/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recipeassistant"
	"recipeassistant/oracle"
)

// mockBedrockClient implements bedrockRuntimeClient for testing
type mockBedrockClient struct {
	response *bedrockruntime.ConverseOutput
	err      error
	input    *bedrockruntime.ConverseInput
}

func (m *mockBedrockClient) Converse(ctx context.Context, input *bedrockruntime.ConverseInput, opts ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	m.input = input
	return m.response, m.err
}

func TestNewLLMClient(t *testing.T) {
	tests := []struct {
		name     string
		input    LLMOptions
		expected LLMOptions
	}{
		{
			name:  "empty options uses defaults",
			input: LLMOptions{},
			expected: LLMOptions{
				ModelID:     defaultModelID,
				MaxTokens:   defaultMaxTokens,
				Temperature: defaultTemperature,
				TopP:        defaultTopP,
			},
		},
		{
			name: "partial options with defaults",
			input: LLMOptions{
				ModelID:   "custom-model",
				MaxTokens: 2048,
			},
			expected: LLMOptions{
				ModelID:     "custom-model",
				MaxTokens:   2048,
				Temperature: defaultTemperature,
				TopP:        defaultTopP,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockClient := &mockBedrockClient{}
			client := NewLLMClient(mockClient, tt.input)

			assert.Equal(t, tt.expected, client.opts)
			assert.Equal(t, mockClient, client.brc)
		})
	}
}

func TestLLMClient_Chat_DefaultModelFromEnv(t *testing.T) {
	t.Setenv("ORACLE_PROVIDER", "bedrock")
	t.Setenv("MODEL_ID", "")

	var modelConfig recipeassistant.ModelConfig
	require.NoError(t, envdecode.Decode(&modelConfig))
	assert.Empty(t, modelConfig.ModelID)

	mockClient := &mockBedrockClient{response: message(&types.ContentBlockMemberText{Value: "Try the curry."})}
	client := NewLLMClient(mockClient, LLMOptions{
		ModelID:     modelConfig.ModelID,
		MaxTokens:   modelConfig.MaxTokens,
		Temperature: modelConfig.Temperature,
		TopP:        modelConfig.TopP,
	})

	_, err := client.Chat(context.Background(), oracle.ChatRequest{
		Messages: []oracle.Message{{Role: oracle.RoleUser, Content: "Suggest a recipe"}},
	})
	require.NoError(t, err)
	require.NotNil(t, mockClient.input)
	assert.Equal(t, defaultModelID, aws.ToString(mockClient.input.ModelId))
}

func message(blocks ...types.ContentBlock) *bedrockruntime.ConverseOutput {
	return &bedrockruntime.ConverseOutput{
		Output: &types.ConverseOutputMemberMessage{
			Value: types.Message{Role: types.ConversationRoleAssistant, Content: blocks},
		},
		Usage:   &types.TokenUsage{InputTokens: aws.Int32(10), OutputTokens: aws.Int32(20)},
		Metrics: &types.ConverseMetrics{LatencyMs: aws.Int64(100)},
	}
}

func TestLLMClient_Chat(t *testing.T) {
	textOut := message(&types.ContentBlockMemberText{Value: "Try the omelette."})
	textOut.StopReason = types.StopReasonEndTurn

	toolOut := message(
		&types.ContentBlockMemberText{Value: "Let me search."},
		&types.ContentBlockMemberToolUse{Value: types.ToolUseBlock{
			ToolUseId: aws.String("tooluse-1"),
			Name:      aws.String("recipe_search"),
			Input:     document.NewLazyDocument(map[string]any{"input": "pasta"}),
		}},
	)
	toolOut.StopReason = types.StopReasonToolUse

	maxTokens := message()
	maxTokens.StopReason = types.StopReasonMaxTokens

	filtered := message()
	filtered.StopReason = types.StopReasonContentFiltered

	tests := []struct {
		name          string
		mockResponse  *bedrockruntime.ConverseOutput
		mockError     error
		expectedText  string
		expectedCall  *oracle.FunctionCall
		expectedArgs  string
		expectedError string
	}{
		{
			name:         "successful text response",
			mockResponse: textOut,
			expectedText: "Try the omelette.",
		},
		{
			name:         "tool use response",
			mockResponse: toolOut,
			expectedText: "Let me search.",
			expectedCall: &oracle.FunctionCall{ID: "tooluse-1", Name: "recipe_search"},
			expectedArgs: `{"input": "pasta"}`,
		},
		{
			name:          "max tokens error",
			mockResponse:  maxTokens,
			expectedError: "model hit MaxTokens limit",
		},
		{
			name:          "safety filter error",
			mockResponse:  filtered,
			expectedError: "model response blocked by Bedrock safety filters",
		},
		{
			name:          "bedrock API error",
			mockError:     assert.AnError,
			expectedError: "assert.AnError general error for testing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewLLMClient(&mockBedrockClient{response: tt.mockResponse, err: tt.mockError}, LLMOptions{})
			resp, err := client.Chat(context.Background(), oracle.ChatRequest{
				Messages: []oracle.Message{{Role: oracle.RoleUser, Content: "Hello"}},
			})

			if tt.expectedError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedError)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expectedText, resp.Content)
			if tt.expectedCall == nil {
				assert.Empty(t, resp.Calls)
				return
			}
			require.Len(t, resp.Calls, 1)
			assert.Equal(t, tt.expectedCall.ID, resp.Calls[0].ID)
			assert.Equal(t, tt.expectedCall.Name, resp.Calls[0].Name)
			assert.JSONEq(t, tt.expectedArgs, string(resp.Calls[0].Arguments))
		})
	}
}

func TestLLMClient_buildInput(t *testing.T) {
	client := NewLLMClient(&mockBedrockClient{}, LLMOptions{})

	in, err := client.buildInput(oracle.ChatRequest{
		System: "be helpful",
		Messages: []oracle.Message{
			{Role: oracle.RoleUser, Content: "What is 2+2?"},
			{Role: oracle.RoleUser, Content: "Observation: Answer: 4"},
		},
		Functions: []oracle.FunctionSpec{{
			Name:        "submit_recipe",
			Description: "submit",
			Parameters:  &jsonschema.Schema{Type: "object"},
		}},
		ForceFunction: "submit_recipe",
	})
	require.NoError(t, err)

	assert.Equal(t, defaultModelID, aws.ToString(in.ModelId))
	require.Len(t, in.System, 1)

	require.Len(t, in.Messages, 1, "consecutive user messages are merged")
	assert.Equal(t, types.ConversationRoleUser, in.Messages[0].Role)
	assert.Len(t, in.Messages[0].Content, 2)

	require.NotNil(t, in.ToolConfig)
	require.Len(t, in.ToolConfig.Tools, 1)
	spec, ok := in.ToolConfig.Tools[0].(*types.ToolMemberToolSpec)
	require.True(t, ok)
	assert.Equal(t, "submit_recipe", aws.ToString(spec.Value.Name))

	choice, ok := in.ToolConfig.ToolChoice.(*types.ToolChoiceMemberTool)
	require.True(t, ok)
	assert.Equal(t, "submit_recipe", aws.ToString(choice.Value.Name))
}

func TestLLMClient_buildInput_NoFunctions(t *testing.T) {
	client := NewLLMClient(&mockBedrockClient{}, LLMOptions{})

	in, err := client.buildInput(oracle.ChatRequest{
		Messages: []oracle.Message{
			{Role: oracle.RoleUser, Content: "hi"},
			{Role: oracle.RoleAssistant, Content: "hello"},
			{Role: oracle.RoleUser, Content: "bye"},
		},
	})
	require.NoError(t, err)

	assert.Nil(t, in.ToolConfig)
	assert.Empty(t, in.System)
	assert.Len(t, in.Messages, 3)
}

func TestTextFromOutput(t *testing.T) {
	assert.Equal(t, "", textFromOutput(nil))
	assert.Equal(t, "a\nb", textFromOutput(message(
		&types.ContentBlockMemberText{Value: "a"},
		&types.ContentBlockMemberText{Value: ""},
		&types.ContentBlockMemberText{Value: "b"},
	)))
}
