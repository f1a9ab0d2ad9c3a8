package tools

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recipeassistant/memory"
	"recipeassistant/nutrition"
)

type mockCompleter struct {
	prompts []string
	answer  string
	err     error
}

func (m *mockCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	return m.answer, m.err
}

type mockRetriever struct {
	queries []string
	answer  string
	err     error
}

func (m *mockRetriever) Answer(ctx context.Context, query string) (string, error) {
	m.queries = append(m.queries, query)
	return m.answer, m.err
}

type mockExtractor struct {
	recipe nutrition.Recipe
	err    error
}

func (m *mockExtractor) ExtractRecipe(ctx context.Context, text string) (nutrition.Recipe, error) {
	return m.recipe, m.err
}

type mockAnalyzer struct {
	got    []nutrition.Recipe
	result nutrition.Result
	err    error
}

func (m *mockAnalyzer) Analyze(ctx context.Context, recipe nutrition.Recipe) (nutrition.Result, error) {
	m.got = append(m.got, recipe)
	return m.result, m.err
}

type mockTranslator struct {
	calls int
	expr  string
	err   error
}

func (m *mockTranslator) TranslateExpression(ctx context.Context, question string) (string, error) {
	m.calls++
	return m.expr, m.err
}

func TestNewRegistry(t *testing.T) {
	qa := NewQAChat(&mockCompleter{}, memory.NewConversation())
	search := NewRecipeSearch(&mockRetriever{})

	t.Run("keeps registration order", func(t *testing.T) {
		registry, err := NewRegistry(qa, search)
		require.NoError(t, err)

		got := registry.GetTools()
		require.Len(t, got, 2)
		assert.Equal(t, "qa_chat", got[0].Name())
		assert.Equal(t, "recipe_search", got[1].Name())

		tool, err := registry.GetTool("recipe_search")
		require.NoError(t, err)
		assert.Same(t, search, tool)
	})

	t.Run("unknown tool", func(t *testing.T) {
		registry, err := NewRegistry(qa)
		require.NoError(t, err)

		_, err = registry.GetTool("wine_pairing")
		assert.ErrorIs(t, err, ErrToolNotFound)
	})

	t.Run("duplicate names rejected", func(t *testing.T) {
		_, err := NewRegistry(qa, NewQAChat(&mockCompleter{}, memory.NewConversation()))
		assert.ErrorContains(t, err, "already registered")
	})

	t.Run("nil tool rejected", func(t *testing.T) {
		_, err := NewRegistry(qa, nil)
		assert.Error(t, err)
	})
}

func TestToolMetadata(t *testing.T) {
	all := []Tool{
		NewQAChat(&mockCompleter{}, memory.NewConversation()),
		NewRecipeSearch(&mockRetriever{}),
		NewNutritionInfo(&mockExtractor{}, &mockAnalyzer{}),
		NewCalculator(&mockTranslator{}),
	}

	for _, tool := range all {
		t.Run(tool.Name(), func(t *testing.T) {
			assert.NotEmpty(t, tool.Title())
			assert.NotEmpty(t, tool.Description())

			schema := tool.InputSchema()
			require.NotNil(t, schema)
			assert.Equal(t, "object", schema.Type)
			assert.Contains(t, schema.Properties, "input")
			assert.Equal(t, "string", schema.Properties["input"].Type)
			assert.Equal(t, []string{"input"}, schema.Required)
		})
	}
}

func TestQAChat_Invoke(t *testing.T) {
	conv := memory.NewConversation()
	for i := 0; i < 7; i++ {
		require.NoError(t, conv.Append(memory.UserTurn(fmt.Sprintf("q%d", i)), memory.AssistantTurn(fmt.Sprintf("a%d", i))))
	}

	llm := &mockCompleter{answer: "You asked about q6."}
	tool := NewQAChat(llm, conv)

	got, err := tool.Invoke(context.Background(), "what did I ask last?")
	require.NoError(t, err)
	assert.Equal(t, "You asked about q6.", got)

	require.Len(t, llm.prompts, 1)
	expected := "Use the following context to respond to the user's message if relevant:\n" +
		"context: q2\na2\nq3\na3\nq4\na4\nq5\na5\nq6\na6\n" +
		"message: what did I ask last?"
	assert.Equal(t, expected, llm.prompts[0])
	assert.NotContains(t, llm.prompts[0], "a1")
}

func TestQAChat_EmptyHistory(t *testing.T) {
	llm := &mockCompleter{answer: "hi"}
	tool := NewQAChat(llm, memory.NewConversation())

	_, err := tool.Invoke(context.Background(), "hello")
	require.NoError(t, err)
	assert.Contains(t, llm.prompts[0], "context: \nmessage: hello")
}

func TestQAChat_CompletionError(t *testing.T) {
	tool := NewQAChat(&mockCompleter{err: errors.New("401 invalid api key")}, memory.NewConversation())

	_, err := tool.Invoke(context.Background(), "hello")
	assert.ErrorContains(t, err, "invalid api key")
}

func TestRecipeSearch_Invoke(t *testing.T) {
	engine := &mockRetriever{answer: "Bean Chili: beans, tomato, onion"}
	tool := NewRecipeSearch(engine)

	got, err := tool.Invoke(context.Background(), "something with beans")
	require.NoError(t, err)
	assert.Equal(t, "Bean Chili: beans, tomato, onion", got)
	assert.Equal(t, []string{"something with beans"}, engine.queries)
}

func TestNutritionInfo_Invoke(t *testing.T) {
	recipe := nutrition.Recipe{Title: "Toast", Ingredients: []string{"2 slices bread", "1 tbsp butter"}}

	t.Run("success", func(t *testing.T) {
		analyzer := &mockAnalyzer{result: nutrition.Result{Calories: 250, Protein: 10}}
		tool := NewNutritionInfo(&mockExtractor{recipe: recipe}, analyzer)

		got, err := tool.Invoke(context.Background(), "Toast: 2 slices bread, 1 tbsp butter")
		require.NoError(t, err)
		assert.JSONEq(t, `{"calories": 250, "protein": 10, "fat": 0, "carbohydrates": 0, "sugar": 0}`, got)
		assert.Equal(t, []nutrition.Recipe{recipe}, analyzer.got)
	})

	t.Run("upstream status preserved", func(t *testing.T) {
		statusErr := &nutrition.StatusError{StatusCode: 555, Body: "Recipe with insufficient quality"}
		tool := NewNutritionInfo(&mockExtractor{recipe: recipe}, &mockAnalyzer{err: statusErr})

		_, err := tool.Invoke(context.Background(), "Toast")
		require.Error(t, err)

		var got *nutrition.StatusError
		require.True(t, errors.As(err, &got))
		assert.Equal(t, 555, got.StatusCode)
		assert.Equal(t, "Recipe with insufficient quality", got.Body)
	})

	t.Run("extraction failure skips analysis", func(t *testing.T) {
		analyzer := &mockAnalyzer{}
		tool := NewNutritionInfo(&mockExtractor{err: errors.New("malformed")}, analyzer)

		_, err := tool.Invoke(context.Background(), "??")
		assert.ErrorContains(t, err, "extract ingredients")
		assert.Empty(t, analyzer.got)
	})

	t.Run("empty ingredient list skips analysis", func(t *testing.T) {
		analyzer := &mockAnalyzer{}
		tool := NewNutritionInfo(&mockExtractor{recipe: nutrition.Recipe{Title: "Nothing"}}, analyzer)

		_, err := tool.Invoke(context.Background(), "Nothing")
		assert.Error(t, err)
		assert.Empty(t, analyzer.got)
	})
}

func TestCalculator_Invoke(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		translated  string
		expected    string
		translates  bool
		expectError bool
	}{
		{name: "plain expression", input: "(2 + 3) * 4", expected: "Answer: 20"},
		{name: "fractional division", input: "10 / 4", expected: "Answer: 2.5"},
		{name: "negative numbers", input: "-3 + 1.5", expected: "Answer: -1.5"},
		{name: "word problem translated", input: "what is 15% of 80?", translated: "80 * 15 / 100", expected: "Answer: 12", translates: true},
		{name: "division by zero", input: "1 / 0", expectError: true},
		{name: "translator returns code", input: "delete everything", translated: `"x" | env`, translates: true, expectError: true},
		{name: "unbalanced", input: "(1 + 2", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			translator := &mockTranslator{expr: tt.translated}
			tool := NewCalculator(translator)

			got, err := tool.Invoke(context.Background(), tt.input)
			if tt.expectError {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expected, got)
			}

			if tt.translates {
				assert.Equal(t, 1, translator.calls)
			} else {
				assert.Equal(t, 0, translator.calls)
			}
		})
	}
}

func TestIsArithmetic(t *testing.T) {
	assert.True(t, IsArithmetic("1+1"))
	assert.True(t, IsArithmetic(" (3.5 * 2) % 4 "))
	assert.False(t, IsArithmetic("+-*/"))
	assert.False(t, IsArithmetic(". + 1"))
	assert.False(t, IsArithmetic("env.HOME"))
	assert.False(t, IsArithmetic("1, 2"))
}
