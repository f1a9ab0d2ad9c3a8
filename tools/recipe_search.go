package tools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
)

// Retriever answers a query from the indexed recipe collection.
type Retriever interface {
	Answer(ctx context.Context, query string) (string, error)
}

type RecipeSearch struct{ engine Retriever }

func NewRecipeSearch(engine Retriever) *RecipeSearch { return &RecipeSearch{engine: engine} }

func (t *RecipeSearch) Name() string  { return "recipe_search" }
func (t *RecipeSearch) Title() string { return "RAG Chat" }
func (t *RecipeSearch) Description() string {
	return "Finds recipes using internal documents. Input is what the user is looking for, e.g. a dish, an ingredient or a meal type."
}

func (t *RecipeSearch) InputSchema() *jsonschema.Schema {
	return textInputSchema("What kind of recipe to look for.")
}

func (t *RecipeSearch) Invoke(ctx context.Context, query string) (string, error) {
	return t.engine.Answer(ctx, query)
}
