package nutrition

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"nutracoach/pkg/cache"
	"nutracoach/pkg/logx"
	"nutracoach/pkg/metrics"
	"nutracoach/pkg/store"
)

// ErrUnknownFood indicates a food that exists neither locally nor in the
// external database.
var ErrUnknownFood = errors.New("unknown food")

// FoodResolver resolves foods that are missing from the local table.
type FoodResolver interface {
	Search(ctx context.Context, name string) (*store.Food, error)
}

// DiaryService manages the intake log and its derived summaries. Writes
// invalidate the cached sums so readers never see stale totals.
type DiaryService struct {
	ops      *store.Operations
	cache    *cache.Cache
	resolver FoodResolver
	recorder metrics.Recorder
	logger   *logx.Logger

	// now is replaceable in tests.
	now func() time.Time
}

// NewDiaryService creates a diary service. resolver may be nil when no
// external food database is configured; unknown foods then fail.
func NewDiaryService(ops *store.Operations, c *cache.Cache, resolver FoodResolver, recorder metrics.Recorder) *DiaryService {
	if recorder == nil {
		recorder = metrics.NopRecorder{}
	}
	return &DiaryService{
		ops:      ops,
		cache:    c,
		resolver: resolver,
		recorder: recorder,
		logger:   logx.NewLogger("diary"),
		now:      time.Now,
	}
}

func (s *DiaryService) today() string {
	return s.now().Format("2006-01-02")
}

// resolveFood finds a food locally, falling back to the external database
// and caching the result as a local row.
func (s *DiaryService) resolveFood(ctx context.Context, name string) (*store.Food, error) {
	food, err := s.ops.GetFoodByName(name)
	if err == nil {
		return food, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	if s.resolver == nil {
		return nil, ErrUnknownFood
	}

	resolved, err := s.resolver.Search(ctx, name)
	if err != nil {
		s.logger.Warn("External food lookup failed for %q: %v", name, err)
		return nil, ErrUnknownFood
	}

	id, err := s.ops.InsertFood(resolved)
	if err != nil {
		return nil, err
	}
	resolved.ID = id
	s.logger.Info("Added food %q from external database", resolved.Name)
	return resolved, nil
}

// LogIntake records one food intake. Missing dates default to today.
func (s *DiaryService) LogIntake(ctx context.Context, username, foodName string, quantity float64, date, mealType string) (*store.IntakeEntry, error) {
	if date == "" {
		date = s.today()
	}

	food, err := s.resolveFood(ctx, foodName)
	if err != nil {
		return nil, err
	}

	entry, err := s.ops.InsertIntake(username, food.ID, quantity, date, mealType)
	if err != nil {
		return nil, err
	}

	s.cache.InvalidateIntake(username, date)
	return entry, nil
}

// UpdateIntake changes quantity and meal type of an owned entry.
func (s *DiaryService) UpdateIntake(_ context.Context, username string, id int64, quantity float64, mealType string) (*store.IntakeEntry, error) {
	entry, err := s.ops.UpdateIntake(username, id, quantity, mealType)
	if err != nil {
		return nil, err
	}
	s.cache.InvalidateIntake(username, entry.IntakeDate)
	return entry, nil
}

// DeleteIntake removes an owned entry. The entry's date is unknown after
// deletion, so every cached daily sum for the user is dropped.
func (s *DiaryService) DeleteIntake(_ context.Context, username string, id int64) error {
	if err := s.ops.DeleteIntake(username, id); err != nil {
		return err
	}
	s.cache.DeletePrefix("nutrition:" + username + ":")
	s.cache.Delete(cache.HistoryKey(username))
	return nil
}

// Entries returns the user's intake entries for one date (default today).
func (s *DiaryService) Entries(_ context.Context, username, date string) ([]store.IntakeEntry, error) {
	if date == "" {
		date = s.today()
	}
	return s.ops.ListIntake(username, date)
}

// DailySummary returns summed nutrition for one date (default today),
// served from cache when possible.
func (s *DiaryService) DailySummary(_ context.Context, username, date string) (*store.DailyTotals, error) {
	if date == "" {
		date = s.today()
	}

	key := cache.NutritionKey(username, date)
	if cached, ok := s.cache.Get(key); ok {
		var totals store.DailyTotals
		if err := json.Unmarshal([]byte(cached), &totals); err == nil {
			s.recorder.IncCache("nutrition", true)
			return &totals, nil
		}
		s.cache.Delete(key)
	}
	s.recorder.IncCache("nutrition", false)

	totals, err := s.ops.SumDailyNutrition(username, date)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(totals); err == nil {
		s.cache.Set(key, string(data), cache.NutritionTTL)
	}
	return totals, nil
}

// History7Days returns daily totals for the trailing 7 days, oldest first.
// Days with no entries appear with zero totals.
func (s *DiaryService) History7Days(_ context.Context, username string) ([]store.DailyTotals, error) {
	key := cache.HistoryKey(username)
	if cached, ok := s.cache.Get(key); ok {
		var history []store.DailyTotals
		if err := json.Unmarshal([]byte(cached), &history); err == nil {
			s.recorder.IncCache("history", true)
			return history, nil
		}
		s.cache.Delete(key)
	}
	s.recorder.IncCache("history", false)

	dates := make([]string, 0, 7)
	for i := 6; i >= 0; i-- {
		dates = append(dates, s.now().AddDate(0, 0, -i).Format("2006-01-02"))
	}

	history, err := s.ops.DailyHistory(username, dates)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(history); err == nil {
		s.cache.Set(key, string(data), cache.HistoryTTL)
	}
	return history, nil
}
