package fooddata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nutracoach/pkg/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(&config.FoodDataConfig{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Timeout: 5 * time.Second,
	})
}

func TestSearchMapsNutrients(t *testing.T) {
	var gotQuery map[string]string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"path":     r.URL.Path,
			"api_key":  r.URL.Query().Get("api_key"),
			"query":    r.URL.Query().Get("query"),
			"pageSize": r.URL.Query().Get("pageSize"),
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"foods": [{
				"description": "Chicken, broilers or fryers, breast, meat only, raw",
				"foodNutrients": [
					{"nutrientId": 1008, "value": 165},
					{"nutrientId": 1003, "value": 31},
					{"nutrientId": 1004, "value": 3.6},
					{"nutrientId": 1005, "value": 0},
					{"nutrientId": 9999, "value": 42}
				]
			}]
		}`))
	})

	food, err := client.Search(context.Background(), "Chicken Breast")
	require.NoError(t, err)

	assert.Equal(t, "/foods/search", gotQuery["path"])
	assert.Equal(t, "test-key", gotQuery["api_key"])
	assert.Equal(t, "Chicken Breast", gotQuery["query"])
	assert.Equal(t, "1", gotQuery["pageSize"])

	assert.Equal(t, "chicken breast", food.Name)
	assert.Equal(t, 165.0, food.Calories)
	assert.Equal(t, 31.0, food.Protein)
	assert.Equal(t, 3.6, food.Fat)
	assert.Equal(t, 0.0, food.Carbs)
	assert.Equal(t, "g", food.ServingUnit)
}

func TestSearchNoResults(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"foods": []}`))
	})

	_, err := client.Search(context.Background(), "unobtainium")
	assert.ErrorIs(t, err, ErrFoodNotFound)
}

func TestSearchUpstreamError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := client.Search(context.Background(), "rice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
}

func TestSearchMalformedResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	})

	_, err := client.Search(context.Background(), "rice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode")
}
