package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"

	"recipeassistant/nutrition"
	"recipeassistant/router"
	"recipeassistant/tools"
)

// SubmitRecipeFunction is the function the model must call when extracting a recipe.
const SubmitRecipeFunction = "submit_recipe"

// ErrMalformedExtraction is returned when the model's recipe extraction does
// not match the submit_recipe schema.
var ErrMalformedExtraction = errors.New("malformed recipe extraction")

// Prompts and scratchpad framing sent to the model.
const (
	ScratchpadHeader = "Results of the tools you called so far for this message:"
	ScratchpadFooter = "Call another tool if you still need information, otherwise reply to the user with the final answer."

	ExtractionSystemPrompt = "Extract the recipe from the user's text. Call submit_recipe with a short title and " +
		"one entry per ingredient including its quantity, for example \"2 eggs\" or \"1 cup rice\". " +
		"Use only the ingredients that appear in the text."

	TranslationSystemPrompt = "Translate the math problem into a single arithmetic expression. " +
		"Use only numbers, the operators + - * / % and parentheses. Reply with the expression only."
)

// Oracle adapts a ChatModel to the router and the tools.
type Oracle struct {
	model ChatModel
}

func New(model ChatModel) *Oracle {
	return &Oracle{model: model}
}

type toolArguments struct {
	Input string `json:"input"`
}

// Decide asks the model for the next action. Registered tools are offered as
// functions; a function call becomes a ToolCall and plain text a FinalAnswer.
func (o *Oracle) Decide(ctx context.Context, prompt router.Prompt) (router.Action, error) {
	req := ChatRequest{
		System:   prompt.System,
		Messages: []Message{{Role: RoleUser, Content: prompt.Message}},
	}
	for _, t := range prompt.Tools {
		req.Functions = append(req.Functions, FunctionSpec{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.InputSchema,
		})
	}
	if len(prompt.Scratchpad) > 0 {
		req.Messages = append(req.Messages, Message{
			Role:    RoleUser,
			Content: ScratchpadHeader + "\n\n" + prompt.RenderScratchpad() + "\n\n" + ScratchpadFooter,
		})
	}

	resp, err := o.model.Chat(ctx, req)
	if err != nil {
		return nil, err
	}

	if len(resp.Calls) > 0 {
		call := resp.Calls[0]
		if len(resp.Calls) > 1 {
			slog.Warn("ORACLE: Model requested several tools; using the first", "requested", len(resp.Calls), "tool", call.Name)
		}
		if strings.TrimSpace(call.Name) == "" {
			return nil, fmt.Errorf("%w: function call without a name", router.ErrMalformedAction)
		}

		var args toolArguments
		if err := decodeStrict(call.Arguments, &args); err != nil {
			return nil, fmt.Errorf("%w: arguments for %s: %v", router.ErrMalformedAction, call.Name, err)
		}
		return router.ToolCall{Tool: call.Name, Input: args.Input}, nil
	}

	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return nil, fmt.Errorf("%w: empty reply", router.ErrMalformedAction)
	}
	return router.FinalAnswer{Text: text}, nil
}

// Complete returns the model's reply to a single user prompt.
func (o *Oracle) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := o.model.Chat(ctx, ChatRequest{
		Messages: []Message{{Role: RoleUser, Content: prompt}},
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}

// ExtractRecipe forces the model to call submit_recipe and decodes the call
// strictly: unknown fields and blank ingredients are rejected.
func (o *Oracle) ExtractRecipe(ctx context.Context, text string) (nutrition.Recipe, error) {
	resp, err := o.model.Chat(ctx, ChatRequest{
		System:        ExtractionSystemPrompt,
		Messages:      []Message{{Role: RoleUser, Content: text}},
		Functions:     []FunctionSpec{submitRecipeSpec()},
		ForceFunction: SubmitRecipeFunction,
	})
	if err != nil {
		return nutrition.Recipe{}, err
	}

	for _, call := range resp.Calls {
		if call.Name != SubmitRecipeFunction {
			continue
		}
		var recipe nutrition.Recipe
		if err := decodeStrict(call.Arguments, &recipe); err != nil {
			return nutrition.Recipe{}, fmt.Errorf("%w: %v", ErrMalformedExtraction, err)
		}
		if err := recipe.Validate(); err != nil {
			return nutrition.Recipe{}, fmt.Errorf("%w: %v", ErrMalformedExtraction, err)
		}
		return recipe, nil
	}

	return nutrition.Recipe{}, fmt.Errorf("%w: model did not call %s", ErrMalformedExtraction, SubmitRecipeFunction)
}

// TranslateExpression asks the model for an arithmetic expression answering question.
// The result is not evaluated here.
func (o *Oracle) TranslateExpression(ctx context.Context, question string) (string, error) {
	resp, err := o.model.Chat(ctx, ChatRequest{
		System:   TranslationSystemPrompt,
		Messages: []Message{{Role: RoleUser, Content: question}},
	})
	if err != nil {
		return "", err
	}

	expr := strings.TrimSpace(resp.Content)
	expr = strings.TrimPrefix(expr, "```text")
	expr = strings.Trim(expr, "`\n ")
	return expr, nil
}

func submitRecipeSpec() FunctionSpec {
	return FunctionSpec{
		Name:        SubmitRecipeFunction,
		Description: "Submit the recipe whose nutrition should be analyzed.",
		Parameters: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"title": {
					Type:        "string",
					Description: "Short name of the recipe.",
				},
				"ingredients": {
					Type:        "array",
					Description: "One entry per ingredient with its quantity.",
					Items:       &jsonschema.Schema{Type: "string"},
				},
			},
			Required: []string{"ingredients"},
		},
	}
}

// decodeStrict decodes a single JSON object into v, rejecting unknown fields
// and trailing data.
func decodeStrict(raw json.RawMessage, v any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return errors.New("no arguments")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after arguments")
	}
	return nil
}

var (
	_ router.Oracle              = (*Oracle)(nil)
	_ tools.Completer            = (*Oracle)(nil)
	_ tools.RecipeExtractor      = (*Oracle)(nil)
	_ tools.ExpressionTranslator = (*Oracle)(nil)
)
