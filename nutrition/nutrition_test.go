package nutrition

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestClient_Analyze(t *testing.T) {
	var (
		gotQuery  map[string]string
		gotRecipe map[string]any
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		gotQuery = map[string]string{
			"app_id":  r.URL.Query().Get("app_id"),
			"app_key": r.URL.Query().Get("app_key"),
		}
		b, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(b, &gotRecipe))

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"calories": 250, "totalNutrients": {"ENERC_KCAL": {"label": "Energy", "quantity": 250, "unit": "kcal"}, "PROCNT": {"quantity": 10, "unit": "g"}}}`)) // nolint: errcheck
	}))
	defer srv.Close()

	client := NewClient(ClientOpts{Endpoint: srv.URL, AppID: "id-123", AppKey: "key-456", HTTPClient: srv.Client()})

	result, err := client.Analyze(context.Background(), Recipe{
		Title:       "Omelette",
		Ingredients: []string{"2 eggs", "1 tbsp butter"},
	})
	require.NoError(t, err)

	assert.Equal(t, Result{Calories: 250, Protein: 10}, result)
	assert.Equal(t, map[string]string{"app_id": "id-123", "app_key": "key-456"}, gotQuery)
	assert.Equal(t, map[string]any{
		"title": "Omelette",
		"ingr":  []any{"2 eggs", "1 tbsp butter"},
	}, gotRecipe)
}

func TestClient_Analyze_NonSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": "unauthorized"}`)) // nolint: errcheck
	}))
	defer srv.Close()

	client := NewClient(ClientOpts{Endpoint: srv.URL, HTTPClient: srv.Client()})
	_, err := client.Analyze(context.Background(), Recipe{Ingredients: []string{"1 apple"}})
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
	assert.Equal(t, `{"error": "unauthorized"}`, statusErr.Body)
	assert.Contains(t, err.Error(), "401")
}

func TestClient_Analyze_InvalidBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`)) // nolint: errcheck
	}))
	defer srv.Close()

	client := NewClient(ClientOpts{Endpoint: srv.URL, HTTPClient: srv.Client()})
	_, err := client.Analyze(context.Background(), Recipe{Ingredients: []string{"1 apple"}})
	assert.Error(t, err)
}

func TestResultFromTotals(t *testing.T) {
	tests := []struct {
		name     string
		totals   string
		expected Result
	}{
		{
			name:     "missing nutrients default to zero",
			totals:   `{"ENERC_KCAL": {"quantity": 250}, "PROCNT": {"quantity": 10}}`,
			expected: Result{Calories: 250, Protein: 10},
		},
		{
			name: "all nutrients present",
			totals: `{"ENERC_KCAL": {"quantity": 512.5}, "PROCNT": {"quantity": 20}, "FAT": {"quantity": 30.25},
				"CHOCDF": {"quantity": 44}, "SUGAR": {"quantity": 3}}`,
			expected: Result{Calories: 512.5, Protein: 20, Fat: 30.25, Carbohydrates: 44, Sugar: 3},
		},
		{
			name:     "negative quantity clamps to zero",
			totals:   `{"FAT": {"quantity": -4}}`,
			expected: Result{},
		},
		{
			name:     "no totals at all",
			totals:   ``,
			expected: Result{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ResultFromTotals(gjson.Parse(tt.totals)))
		})
	}
}

func TestRecipe_Validate(t *testing.T) {
	assert.NoError(t, Recipe{Ingredients: []string{"1 cup rice"}}.Validate())
	assert.Error(t, Recipe{Title: "empty"}.Validate())
	assert.Error(t, Recipe{Ingredients: []string{"1 cup rice", "  "}}.Validate())
}
