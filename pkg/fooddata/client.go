// Package fooddata looks up foods in the USDA FoodData Central database.
// It backs the intake log: foods not yet in the local table are resolved
// here and cached locally on first use.
package fooddata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"nutracoach/pkg/config"
	"nutracoach/pkg/logx"
	"nutracoach/pkg/store"
)

// USDA nutrient IDs for the macros we track (per 100 g).
const (
	nutrientCalories = 1008
	nutrientProtein  = 1003
	nutrientFat      = 1004
	nutrientCarbs    = 1005
)

// ErrFoodNotFound indicates the search returned no usable results.
var ErrFoodNotFound = errors.New("food not found")

// Client queries the FoodData Central search API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *logx.Logger
}

// NewClient creates a food data client from configuration.
func NewClient(cfg *config.FoodDataConfig) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logx.NewLogger("fooddata"),
	}
}

type searchResponse struct {
	Foods []struct {
		Description   string `json:"description"`
		FoodNutrients []struct {
			NutrientID int64   `json:"nutrientId"`
			Value      float64 `json:"value"`
		} `json:"foodNutrients"`
	} `json:"foods"`
}

// Search looks up a food by name and returns its macros per 100 g. The
// first search hit is taken; FoodData Central ranks by relevance.
func (c *Client) Search(ctx context.Context, name string) (*store.Food, error) {
	q := url.Values{}
	q.Set("api_key", c.apiKey)
	q.Set("query", name)
	q.Set("pageSize", "1")

	reqURL := c.baseURL + "/foods/search?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build food search request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("food search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("food search returned status %d", resp.StatusCode)
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode food search response: %w", err)
	}

	if len(parsed.Foods) == 0 {
		return nil, ErrFoodNotFound
	}

	hit := parsed.Foods[0]
	food := &store.Food{
		Name:        strings.ToLower(name),
		ServingUnit: "g",
	}
	for _, n := range hit.FoodNutrients {
		switch n.NutrientID {
		case nutrientCalories:
			food.Calories = n.Value
		case nutrientProtein:
			food.Protein = n.Value
		case nutrientFat:
			food.Fat = n.Value
		case nutrientCarbs:
			food.Carbs = n.Value
		}
	}

	c.logger.Debug("Resolved %q to %q (%.0f kcal/100g)", name, hit.Description, food.Calories)
	return food, nil
}
