// Package mock is a deterministic oracle.ChatModel. It picks tools from
// keywords in the user message, so the router can be exercised end to end
// without a provider.
package mock

import (
	"context"
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"

	"recipeassistant/oracle"
)

type ChatModel struct{}

func NewChatModel() *ChatModel {
	return &ChatModel{}
}

type plannedCall struct {
	tool string

	// input is used verbatim; an empty input means the previous observation.
	input string
}

var (
	actionInputPattern = regexp.MustCompile(`(?m)^Action Input: `)
	arithmeticPattern  = regexp.MustCompile(`\d\s*[-+*/%]\s*\d`)
	numberPattern      = regexp.MustCompile(`\d+(?:\.\d+)?|[-+*/%()]`)
)

var (
	operatorWordPattern = regexp.MustCompile(`\b(?:plus|minus|times|multiplied by|divided by|over)\b`)
	operatorWords       = map[string]string{
		"plus":          "+",
		"minus":         "-",
		"times":         "*",
		"multiplied by": "*",
		"divided by":    "/",
		"over":          "/",
	}
)

func (m *ChatModel) Chat(ctx context.Context, req oracle.ChatRequest) (oracle.ChatResponse, error) {
	slog.Info("LLM_CLIENT: Invoked", "provider", "mock", "messages_len", len(req.Messages), "functions", len(req.Functions))

	if len(req.Messages) == 0 {
		return oracle.ChatResponse{Content: "Hello! Ask me for a recipe."}, nil
	}
	last := req.Messages[len(req.Messages)-1].Content

	switch {
	case req.ForceFunction == oracle.SubmitRecipeFunction:
		return extract(last), nil
	case req.System == oracle.TranslationSystemPrompt:
		return oracle.ChatResponse{Content: translate(last)}, nil
	case len(req.Functions) == 0:
		return oracle.ChatResponse{Content: complete(last)}, nil
	}

	return route(req), nil
}

// route follows a fixed plan derived from the first user message and ends
// with a final answer built from the last observation.
func route(req oracle.ChatRequest) oracle.ChatResponse {
	message := req.Messages[0].Content
	plan := planFor(message)

	var done int
	var observation string
	if len(req.Messages) > 1 {
		pad := req.Messages[len(req.Messages)-1].Content
		done = len(actionInputPattern.FindAllStringIndex(pad, -1))
		observation = lastObservation(pad)
	}

	if done < len(plan) && offered(req.Functions, plan[done].tool) {
		call := plan[done]
		input := call.input
		if input == "" {
			input = observation
		}
		args, _ := json.Marshal(map[string]string{"input": input})
		slog.Info("LLM_CLIENT: Returning tool call", "tool", call.tool)
		return oracle.ChatResponse{Calls: []oracle.FunctionCall{{ID: "mock-" + call.tool, Name: call.tool, Arguments: args}}}
	}

	slog.Info("LLM_CLIENT: Returning final answer", "steps", done)
	return oracle.ChatResponse{Content: finalAnswer(plan, observation)}
}

func planFor(message string) []plannedCall {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "nutrition") || strings.Contains(lower, "calorie"):
		if strings.Contains(lower, "previous") || strings.Contains(lower, "last") || strings.Contains(lower, "that") {
			return []plannedCall{
				{tool: "qa_chat", input: "Repeat the last recipe you suggested, including its ingredients."},
				{tool: "nutrition_info"},
			}
		}
		return []plannedCall{{tool: "nutrition_info", input: message}}
	case arithmeticPattern.MatchString(lower) || containsAny(lower, "calculate", " plus ", " minus ", " times ", "divided by"):
		return []plannedCall{{tool: "calculator", input: message}}
	case strings.Contains(lower, "recipe") || strings.Contains(lower, "cook") || strings.Contains(lower, "dinner"):
		return []plannedCall{{tool: "recipe_search", input: message}}
	default:
		return []plannedCall{{tool: "qa_chat", input: message}}
	}
}

func finalAnswer(plan []plannedCall, observation string) string {
	if observation == "" || strings.Contains(observation, " failed: ") {
		return "Sorry, I could not obtain the requested information."
	}
	switch plan[len(plan)-1].tool {
	case "recipe_search":
		return "Here is a recipe you could try:\n\n" + observation
	case "nutrition_info":
		return "Here is the nutritional value of the recipe: " + observation
	default:
		return observation
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func offered(functions []oracle.FunctionSpec, name string) bool {
	for _, f := range functions {
		if f.Name == name {
			return true
		}
	}
	return false
}

func lastObservation(pad string) string {
	i := strings.LastIndex(pad, "Observation: ")
	if i < 0 {
		return ""
	}
	obs := pad[i+len("Observation: "):]
	obs = strings.TrimSuffix(obs, oracle.ScratchpadFooter)
	return strings.TrimSpace(obs)
}

// extract reads "- " bullet lines as ingredients, falling back to a comma
// separated list. The line before "Ingredients:" is the title.
func extract(text string) oracle.ChatResponse {
	var title, previous string
	var ingredients []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "- "):
			ingredients = append(ingredients, strings.TrimSpace(strings.TrimPrefix(line, "- ")))
		case line == "Ingredients:" && title == "":
			title = previous
		}
		if line != "" {
			previous = line
		}
	}
	if len(ingredients) == 0 {
		for _, part := range strings.Split(text, ",") {
			if p := strings.TrimSpace(part); p != "" {
				ingredients = append(ingredients, p)
			}
		}
		title = ""
	}

	args, _ := json.Marshal(map[string]any{"title": title, "ingredients": ingredients})
	return oracle.ChatResponse{Calls: []oracle.FunctionCall{{
		ID:        "mock-" + oracle.SubmitRecipeFunction,
		Name:      oracle.SubmitRecipeFunction,
		Arguments: args,
	}}}
}

// translate keeps the numbers and operators of a worded math question.
func translate(question string) string {
	q := operatorWordPattern.ReplaceAllStringFunc(strings.ToLower(question), func(w string) string {
		return operatorWords[w]
	})
	return strings.Join(numberPattern.FindAllString(q, -1), " ")
}

// complete answers from the context block of the Q&A prompt.
func complete(prompt string) string {
	_, rest, ok := strings.Cut(prompt, "context: ")
	if !ok {
		return "I am not sure how to help with that."
	}
	history, _, _ := strings.Cut(rest, "\nmessage: ")
	history = strings.TrimSpace(history)
	if history == "" {
		return "We have not talked about anything yet."
	}
	return history
}

var _ oracle.ChatModel = (*ChatModel)(nil)
