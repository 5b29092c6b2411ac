package nutrition

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nutracoach/pkg/cache"
	"nutracoach/pkg/metrics"
	"nutracoach/pkg/store"
)

// fakeResolver scripts the external food lookup.
type fakeResolver struct {
	foods map[string]*store.Food
	calls int
}

func (f *fakeResolver) Search(_ context.Context, name string) (*store.Food, error) {
	f.calls++
	if food, ok := f.foods[name]; ok {
		clone := *food
		return &clone, nil
	}
	return nil, errors.New("not in external database")
}

func newTestDiary(t *testing.T, resolver FoodResolver) (*DiaryService, *store.Operations) {
	t.Helper()
	db, err := store.OpenEphemeral()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	ops := store.NewOperations(db)

	_, err = ops.CreateUser("alice", "hash", &store.Profile{
		Age: 30, Sex: "male", HeightCm: 180, WeightKg: 75,
		ActivityLevel: "moderate", Goal: "maintain",
	})
	require.NoError(t, err)

	svc := NewDiaryService(ops, cache.New(), resolver, metrics.NopRecorder{})
	svc.now = func() time.Time { return time.Date(2025, 6, 7, 10, 0, 0, 0, time.UTC) }
	return svc, ops
}

func TestLogIntakeWithLocalFood(t *testing.T) {
	svc, ops := newTestDiary(t, nil)
	_, err := ops.InsertFood(&store.Food{Name: "rice", Calories: 130, Protein: 2.7, Carbs: 28, Fat: 0.3})
	require.NoError(t, err)

	entry, err := svc.LogIntake(context.Background(), "alice", "Rice", 200, "", "lunch")
	require.NoError(t, err)

	// Missing dates default to today.
	assert.Equal(t, "2025-06-07", entry.IntakeDate)
	assert.Equal(t, "rice", entry.FoodName)
	assert.Equal(t, 200.0, entry.Quantity)
}

func TestLogIntakeResolvesExternally(t *testing.T) {
	resolver := &fakeResolver{foods: map[string]*store.Food{
		"quinoa": {Name: "quinoa", Calories: 120, Protein: 4.4, Carbs: 21, Fat: 1.9, ServingUnit: "g"},
	}}
	svc, ops := newTestDiary(t, resolver)

	entry, err := svc.LogIntake(context.Background(), "alice", "quinoa", 100, "2025-06-07", "")
	require.NoError(t, err)
	assert.Equal(t, "quinoa", entry.FoodName)
	assert.Equal(t, 1, resolver.calls)

	// The resolved food is now a local row; no second external lookup.
	_, err = svc.LogIntake(context.Background(), "alice", "quinoa", 50, "2025-06-07", "")
	require.NoError(t, err)
	assert.Equal(t, 1, resolver.calls)

	food, err := ops.GetFoodByName("quinoa")
	require.NoError(t, err)
	assert.Equal(t, 120.0, food.Calories)
}

func TestLogIntakeUnknownFood(t *testing.T) {
	svc, _ := newTestDiary(t, &fakeResolver{})
	_, err := svc.LogIntake(context.Background(), "alice", "unobtainium", 100, "", "")
	assert.ErrorIs(t, err, ErrUnknownFood)

	// No resolver configured at all behaves the same.
	svcNoResolver, _ := newTestDiary(t, nil)
	_, err = svcNoResolver.LogIntake(context.Background(), "alice", "unobtainium", 100, "", "")
	assert.ErrorIs(t, err, ErrUnknownFood)
}

func TestDailySummaryCachingAndInvalidation(t *testing.T) {
	svc, ops := newTestDiary(t, nil)
	_, err := ops.InsertFood(&store.Food{Name: "rice", Calories: 130, Protein: 2.7, Carbs: 28, Fat: 0.3})
	require.NoError(t, err)

	_, err = svc.LogIntake(context.Background(), "alice", "rice", 100, "2025-06-07", "")
	require.NoError(t, err)

	totals, err := svc.DailySummary(context.Background(), "alice", "2025-06-07")
	require.NoError(t, err)
	assert.Equal(t, 130.0, totals.Calories)

	// A second write invalidates the cached sum.
	_, err = svc.LogIntake(context.Background(), "alice", "rice", 100, "2025-06-07", "")
	require.NoError(t, err)

	totals, err = svc.DailySummary(context.Background(), "alice", "2025-06-07")
	require.NoError(t, err)
	assert.Equal(t, 260.0, totals.Calories)
}

func TestUpdateAndDeleteIntakeRefreshSummaries(t *testing.T) {
	svc, ops := newTestDiary(t, nil)
	_, err := ops.InsertFood(&store.Food{Name: "rice", Calories: 130, Protein: 2.7, Carbs: 28, Fat: 0.3})
	require.NoError(t, err)

	entry, err := svc.LogIntake(context.Background(), "alice", "rice", 100, "2025-06-07", "lunch")
	require.NoError(t, err)

	_, err = svc.DailySummary(context.Background(), "alice", "2025-06-07")
	require.NoError(t, err)

	updated, err := svc.UpdateIntake(context.Background(), "alice", entry.ID, 300, "dinner")
	require.NoError(t, err)
	assert.Equal(t, 300.0, updated.Quantity)

	totals, err := svc.DailySummary(context.Background(), "alice", "2025-06-07")
	require.NoError(t, err)
	assert.Equal(t, 390.0, totals.Calories)

	require.NoError(t, svc.DeleteIntake(context.Background(), "alice", entry.ID))

	totals, err = svc.DailySummary(context.Background(), "alice", "2025-06-07")
	require.NoError(t, err)
	assert.Equal(t, 0.0, totals.Calories)
}

func TestHistory7Days(t *testing.T) {
	svc, ops := newTestDiary(t, nil)
	_, err := ops.InsertFood(&store.Food{Name: "rice", Calories: 130, Protein: 2.7, Carbs: 28, Fat: 0.3})
	require.NoError(t, err)

	// Log on "today" (2025-06-07) and three days earlier.
	_, err = svc.LogIntake(context.Background(), "alice", "rice", 100, "2025-06-07", "")
	require.NoError(t, err)
	_, err = svc.LogIntake(context.Background(), "alice", "rice", 200, "2025-06-04", "")
	require.NoError(t, err)

	history, err := svc.History7Days(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, history, 7)

	// Oldest first: 06-01 .. 06-07.
	assert.Equal(t, "2025-06-01", history[0].Date)
	assert.Equal(t, "2025-06-07", history[6].Date)
	assert.Equal(t, 0.0, history[0].Calories)
	assert.Equal(t, 260.0, history[3].Calories)
	assert.Equal(t, 130.0, history[6].Calories)
}

func TestEntriesDefaultDate(t *testing.T) {
	svc, ops := newTestDiary(t, nil)
	_, err := ops.InsertFood(&store.Food{Name: "rice", Calories: 130, Protein: 2.7, Carbs: 28, Fat: 0.3})
	require.NoError(t, err)

	_, err = svc.LogIntake(context.Background(), "alice", "rice", 100, "", "breakfast")
	require.NoError(t, err)

	entries, err := svc.Entries(context.Background(), "alice", "")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "breakfast", entries[0].MealType)
}
