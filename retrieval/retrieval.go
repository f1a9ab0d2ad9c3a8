// Package retrieval answers recipe queries from a fixed recipe collection.
//
// The collection is read once from a storage.RecipeState and indexed either
// with an Embedder (cosine similarity) or, when none is configured, with a
// lexical token-overlap score.
package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"recipeassistant/storage"
)

// NoRecipesAnswer is returned for every query when the collection is empty.
const NoRecipesAnswer = "I don't have any recipes to suggest right now."

// ErrEmbedding is wrapped by Embedder implementations when a text cannot be embedded.
var ErrEmbedding = errors.New("embedding failed")

// Embedder converts text into a vector embedding.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Ingredient struct {
	Name string  `json:"name"`
	Qty  float64 `json:"qty,omitempty"`
	Unit string  `json:"unit,omitempty"`
}

// Document is one recipe in the collection.
type Document struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	MealTypes   []string     `json:"meal_types,omitempty"`
	Ingredients []Ingredient `json:"ingredients"`
	Steps       []string     `json:"steps,omitempty"`
}

// Passage renders the document as the text handed back to the caller.
func (d Document) Passage() string {
	var b strings.Builder
	b.WriteString(d.Name)
	if len(d.MealTypes) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(d.MealTypes, ", "))
	}
	b.WriteString("\nIngredients:\n")
	for _, ing := range d.Ingredients {
		b.WriteString("- ")
		if ing.Qty > 0 {
			b.WriteString(strconv.FormatFloat(ing.Qty, 'f', -1, 64))
			b.WriteByte(' ')
		}
		if ing.Unit != "" {
			b.WriteString(ing.Unit)
			b.WriteByte(' ')
		}
		b.WriteString(ing.Name)
		b.WriteByte('\n')
	}
	if len(d.Steps) > 0 {
		b.WriteString("Steps:\n")
		for i, step := range d.Steps {
			fmt.Fprintf(&b, "%d. %s\n", i+1, step)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

type Option func(*Engine)

// WithEmbedder switches the index from lexical scoring to embedding similarity.
func WithEmbedder(e Embedder) Option {
	return func(engine *Engine) { engine.embedder = e }
}

type Engine struct {
	state    storage.RecipeState
	embedder Embedder

	mu       sync.Mutex
	indexed  bool
	docs     []Document
	passages []string
	vectors  [][]float32
	tokens   []map[string]struct{}
}

func NewEngine(state storage.RecipeState, opts ...Option) *Engine {
	e := &Engine{state: state}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Index loads and indexes the collection. It is called lazily by Answer and
// only does work the first time it succeeds.
func (e *Engine) Index(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.indexed {
		return nil
	}

	raw, err := e.state.Load(ctx)
	if err != nil {
		return fmt.Errorf("load recipes: %w", err)
	}

	var docs []Document
	if len(strings.TrimSpace(string(raw))) > 0 {
		if err := json.Unmarshal(raw, &docs); err != nil {
			return fmt.Errorf("decode recipes: %w", err)
		}
	}

	passages := make([]string, len(docs))
	tokens := make([]map[string]struct{}, len(docs))
	for i, d := range docs {
		passages[i] = d.Passage()
		tokens[i] = tokenSet(passages[i])
	}

	var vectors [][]float32
	if e.embedder != nil {
		vectors = make([][]float32, len(docs))
		for i, p := range passages {
			v, err := e.embedder.Embed(ctx, p)
			if err != nil {
				return fmt.Errorf("embed recipe %q: %w", docs[i].Name, err)
			}
			vectors[i] = v
		}
	}

	e.docs, e.passages, e.tokens, e.vectors = docs, passages, tokens, vectors
	e.indexed = true
	slog.Info("RETRIEVAL: Indexed recipes", "count", len(docs), "embeddings", e.embedder != nil)
	return nil
}

// Answer returns the passage of the recipe that best matches query. When
// nothing in the collection scores above zero the first recipe is returned.
func (e *Engine) Answer(ctx context.Context, query string) (string, error) {
	if err := e.Index(ctx); err != nil {
		return "", err
	}
	if len(e.docs) == 0 {
		return NoRecipesAnswer, nil
	}

	scores, err := e.score(ctx, query)
	if err != nil {
		return "", err
	}

	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[best] {
			best = i
		}
	}

	slog.Debug("RETRIEVAL: Best match", "query", query, "recipe", e.docs[best].Name, "score", scores[best])
	return e.passages[best], nil
}

func (e *Engine) score(ctx context.Context, query string) ([]float64, error) {
	scores := make([]float64, len(e.docs))

	if e.embedder != nil {
		qv, err := e.embedder.Embed(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("embed query: %w", err)
		}
		for i, v := range e.vectors {
			scores[i] = CosineSimilarity(qv, v)
		}
		return scores, nil
	}

	q := tokenSet(query)
	for i, doc := range e.tokens {
		for tok := range q {
			if _, ok := doc[tok]; ok {
				scores[i]++
			}
		}
	}
	return scores, nil
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0 when
// the vectors differ in length or either is zero.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "the": {}, "of": {}, "for": {}, "with": {}, "to": {},
	"me": {}, "i": {}, "is": {}, "in": {}, "on": {}, "some": {}, "recipe": {}, "recipes": {},
	"suggest": {}, "what": {}, "can": {}, "make": {}, "please": {},
}

func tokenSet(s string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if _, skip := stopWords[f]; skip {
			continue
		}
		set[strings.TrimSuffix(f, "s")] = struct{}{}
	}
	return set
}
