package tools

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"
	"regexp"
	"strconv"
	"strings"

	"github.com/itchyny/gojq"
	"github.com/modelcontextprotocol/go-sdk/jsonschema"
)

// ErrInvalidExpression is returned for text that is not a plain arithmetic expression.
var ErrInvalidExpression = errors.New("invalid arithmetic expression")

// expressionPattern admits numbers, the operators + - * / %, parentheses and whitespace.
var expressionPattern = regexp.MustCompile(`^(?:\d+(?:\.\d+)?|\.\d+|[-+*/%()]|\s)+$`)

// ExpressionTranslator turns a math question into a single arithmetic expression.
type ExpressionTranslator interface {
	TranslateExpression(ctx context.Context, question string) (string, error)
}

type Calculator struct{ translator ExpressionTranslator }

func NewCalculator(translator ExpressionTranslator) *Calculator {
	return &Calculator{translator: translator}
}

func (t *Calculator) Name() string  { return "calculator" }
func (t *Calculator) Title() string { return "Calculator" }
func (t *Calculator) Description() string {
	return "Useful for performing math calculations. Input is an arithmetic expression or a math question."
}

func (t *Calculator) InputSchema() *jsonschema.Schema {
	return textInputSchema("An arithmetic expression such as (2 + 3) * 4, or a math question.")
}

// Invoke evaluates the input directly when it already is an arithmetic
// expression, otherwise asks the translator for one first.
func (t *Calculator) Invoke(ctx context.Context, input string) (string, error) {
	expr := strings.TrimSpace(input)
	if !IsArithmetic(expr) {
		translated, err := t.translator.TranslateExpression(ctx, expr)
		if err != nil {
			return "", fmt.Errorf("translate expression: %w", err)
		}
		expr = strings.TrimSpace(translated)
	}

	value, err := Evaluate(ctx, expr)
	if err != nil {
		return "", err
	}
	return "Answer: " + value, nil
}

// IsArithmetic reports whether s consists only of numbers, arithmetic operators,
// parentheses and whitespace, with at least one digit.
func IsArithmetic(s string) bool {
	return strings.ContainsAny(s, "0123456789") && expressionPattern.MatchString(s)
}

// Evaluate computes a whitelisted arithmetic expression with gojq. The
// expression runs against a null input with no access to the environment.
func Evaluate(ctx context.Context, expr string) (string, error) {
	if !IsArithmetic(expr) {
		return "", fmt.Errorf("%w: %q", ErrInvalidExpression, expr)
	}

	query, err := gojq.Parse(expr)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidExpression, err)
	}

	iter := query.RunWithContext(ctx, nil)
	v, ok := iter.Next()
	if !ok {
		return "", fmt.Errorf("%w: %q produced no value", ErrInvalidExpression, expr)
	}
	if err, isErr := v.(error); isErr {
		return "", fmt.Errorf("evaluate %q: %w", expr, err)
	}

	switch n := v.(type) {
	case int:
		return strconv.Itoa(n), nil
	case float64:
		if math.IsInf(n, 0) || math.IsNaN(n) {
			return "", fmt.Errorf("evaluate %q: result is not finite", expr)
		}
		return strconv.FormatFloat(n, 'f', -1, 64), nil
	case *big.Int:
		return n.String(), nil
	default:
		return "", fmt.Errorf("%w: %q evaluated to %T", ErrInvalidExpression, expr, v)
	}
}
