// Package nutrition submits recipes to an Edamam-style nutrition-details
// endpoint and reduces the response to a fixed set of nutrient totals.
package nutrition

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
)

// DefaultEndpoint is the Edamam nutrition-details API.
const DefaultEndpoint = "https://api.edamam.com/api/nutrition-details"

// Nutrient codes read from totalNutrients.
const (
	CodeEnergy       = "ENERC_KCAL"
	CodeProtein      = "PROCNT"
	CodeFat          = "FAT"
	CodeCarbohydrate = "CHOCDF"
	CodeSugar        = "SUGAR"
)

type doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Recipe is the structured payload submitted for analysis.
type Recipe struct {
	Title       string   `json:"title,omitempty"`
	Ingredients []string `json:"ingredients"`
}

// Result holds the nutrient totals of a recipe. Missing nutrients are 0.
type Result struct {
	Calories      float64 `json:"calories"`
	Protein       float64 `json:"protein"`
	Fat           float64 `json:"fat"`
	Carbohydrates float64 `json:"carbohydrates"`
	Sugar         float64 `json:"sugar"`
}

// StatusError is returned when the endpoint answers with anything but 200.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("failed to get nutrition data: %d, %s", e.StatusCode, e.Body)
}

type Client struct {
	endpoint   string
	appID      string
	appKey     string
	httpClient doer
}

type ClientOpts struct {
	Endpoint   string
	AppID      string
	AppKey     string
	HTTPClient doer
}

func NewClient(opts ClientOpts) *Client {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	return &Client{
		endpoint:   opts.Endpoint,
		appID:      opts.AppID,
		appKey:     opts.AppKey,
		httpClient: opts.HTTPClient,
	}
}

// wireRecipe uses Edamam's field name for the ingredient list.
type wireRecipe struct {
	Title string   `json:"title,omitempty"`
	Ingr  []string `json:"ingr"`
}

// Analyze submits the recipe and maps the nutrient totals of a successful response.
func (c *Client) Analyze(ctx context.Context, recipe Recipe) (Result, error) {
	slog.Info("NUTRITION: Analyzing recipe", "title", recipe.Title, "ingredients", len(recipe.Ingredients))

	body, err := json.Marshal(wireRecipe{Title: recipe.Title, Ingr: recipe.Ingredients})
	if err != nil {
		return Result{}, err
	}

	u, err := url.Parse(c.endpoint)
	if err != nil {
		return Result{}, fmt.Errorf("invalid nutrition endpoint: %w", err)
	}
	q := u.Query()
	q.Set("app_id", c.appID)
	q.Set("app_key", c.appKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("read nutrition response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return Result{}, &StatusError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	if !gjson.ValidBytes(raw) {
		return Result{}, fmt.Errorf("nutrition response is not valid JSON")
	}

	return ResultFromTotals(gjson.GetBytes(raw, "totalNutrients")), nil
}

// ResultFromTotals maps a totalNutrients object to a Result, defaulting
// absent or negative quantities to 0.
func ResultFromTotals(totals gjson.Result) Result {
	quantity := func(code string) float64 {
		q := totals.Get(code + ".quantity")
		if !q.Exists() || q.Float() < 0 {
			return 0
		}
		return q.Float()
	}

	return Result{
		Calories:      quantity(CodeEnergy),
		Protein:       quantity(CodeProtein),
		Fat:           quantity(CodeFat),
		Carbohydrates: quantity(CodeCarbohydrate),
		Sugar:         quantity(CodeSugar),
	}
}

// Validate checks that a recipe has at least one non-blank ingredient.
func (r Recipe) Validate() error {
	if len(r.Ingredients) == 0 {
		return fmt.Errorf("recipe has no ingredients")
	}
	for i, ing := range r.Ingredients {
		if strings.TrimSpace(ing) == "" {
			return fmt.Errorf("ingredient %d is blank", i)
		}
	}
	return nil
}
