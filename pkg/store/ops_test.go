package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOps(t *testing.T) *Operations {
	t.Helper()
	db, err := OpenEphemeral()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewOperations(db)
}

func seedUser(t *testing.T, ops *Operations, username string) {
	t.Helper()
	_, err := ops.CreateUser(username, "hash", &Profile{
		Age: 30, Sex: "male", HeightCm: 180, WeightKg: 75,
		ActivityLevel: "moderate", Goal: "maintain",
	})
	require.NoError(t, err)
}

func seedFood(t *testing.T, ops *Operations, name string, calories, protein, carbs, fat float64) int64 {
	t.Helper()
	id, err := ops.InsertFood(&Food{
		Name: name, Calories: calories, Protein: protein, Carbs: carbs, Fat: fat,
	})
	require.NoError(t, err)
	return id
}

func TestCreateAndGetUser(t *testing.T) {
	ops := newTestOps(t)
	seedUser(t, ops, "alice")

	u, err := ops.GetUserByUsername("alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, "hash", u.PasswordHash)

	_, err = ops.GetUserByUsername("nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDuplicateUsernameRejected(t *testing.T) {
	ops := newTestOps(t)
	seedUser(t, ops, "alice")

	_, err := ops.CreateUser("alice", "other", &Profile{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UNIQUE")
}

func TestProfileRoundTrip(t *testing.T) {
	ops := newTestOps(t)
	seedUser(t, ops, "alice")

	p, err := ops.GetProfile("alice")
	require.NoError(t, err)
	assert.Equal(t, 30, p.Age)
	assert.Equal(t, 75.0, p.WeightKg)

	require.NoError(t, ops.UpdateProfile("alice", map[string]any{
		"weight_kg": 72.5,
		"goal":      "cut",
	}))

	p, err = ops.GetProfile("alice")
	require.NoError(t, err)
	assert.Equal(t, 72.5, p.WeightKg)
	assert.Equal(t, "cut", p.Goal)
}

func TestUpdateProfileRejectsUnknownField(t *testing.T) {
	ops := newTestOps(t)
	seedUser(t, ops, "alice")

	err := ops.UpdateProfile("alice", map[string]any{"password_hash": "pwned"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not editable")

	err = ops.UpdateProfile("ghost", map[string]any{"age": 31})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetFoodByNameCaseInsensitive(t *testing.T) {
	ops := newTestOps(t)
	seedFood(t, ops, "chicken breast", 165, 31, 0, 3.6)

	f, err := ops.GetFoodByName("Chicken Breast")
	require.NoError(t, err)
	assert.Equal(t, "chicken breast", f.Name)
	assert.Equal(t, "g", f.ServingUnit)

	_, err = ops.GetFoodByName("unobtainium")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIntakeLifecycle(t *testing.T) {
	ops := newTestOps(t)
	seedUser(t, ops, "alice")
	foodID := seedFood(t, ops, "rice", 130, 2.7, 28, 0.3)

	entry, err := ops.InsertIntake("alice", foodID, 200, "2025-06-01", "lunch")
	require.NoError(t, err)
	assert.Equal(t, "rice", entry.FoodName)
	assert.Equal(t, 200.0, entry.Quantity)
	assert.Equal(t, "lunch", entry.MealType)

	updated, err := ops.UpdateIntake("alice", entry.ID, 150, "dinner")
	require.NoError(t, err)
	assert.Equal(t, 150.0, updated.Quantity)
	assert.Equal(t, "dinner", updated.MealType)

	entries, err := ops.ListIntake("alice", "2025-06-01")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	require.NoError(t, ops.DeleteIntake("alice", entry.ID))
	entries, err = ops.ListIntake("alice", "2025-06-01")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestIntakeOwnershipEnforced(t *testing.T) {
	ops := newTestOps(t)
	seedUser(t, ops, "alice")
	seedUser(t, ops, "bob")
	foodID := seedFood(t, ops, "rice", 130, 2.7, 28, 0.3)

	entry, err := ops.InsertIntake("alice", foodID, 100, "2025-06-01", "")
	require.NoError(t, err)

	_, err = ops.UpdateIntake("bob", entry.ID, 50, "")
	assert.ErrorIs(t, err, ErrNotFound)
	err = ops.DeleteIntake("bob", entry.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// Alice still owns the untouched entry.
	entries, err := ops.ListIntake("alice", "2025-06-01")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 100.0, entries[0].Quantity)
}

func TestSumDailyNutrition(t *testing.T) {
	ops := newTestOps(t)
	seedUser(t, ops, "alice")
	riceID := seedFood(t, ops, "rice", 130, 2.7, 28, 0.3)
	chickenID := seedFood(t, ops, "chicken breast", 165, 31, 0, 3.6)

	_, err := ops.InsertIntake("alice", riceID, 200, "2025-06-01", "lunch")
	require.NoError(t, err)
	_, err = ops.InsertIntake("alice", chickenID, 150, "2025-06-01", "lunch")
	require.NoError(t, err)

	totals, err := ops.SumDailyNutrition("alice", "2025-06-01")
	require.NoError(t, err)

	// rice: 130*2 = 260, chicken: 165*1.5 = 247.5.
	assert.Equal(t, 507.5, totals.Calories)
	assert.Equal(t, 51.9, totals.Protein)
	assert.Equal(t, 56.0, totals.Carbs)
	assert.Equal(t, 6.0, totals.Fat)
}

func TestSumDailyNutritionEmptyDay(t *testing.T) {
	ops := newTestOps(t)
	seedUser(t, ops, "alice")

	totals, err := ops.SumDailyNutrition("alice", "2025-06-01")
	require.NoError(t, err)
	assert.Equal(t, 0.0, totals.Calories)
	assert.Equal(t, "2025-06-01", totals.Date)

	_, err = ops.SumDailyNutrition("ghost", "2025-06-01")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDailyHistory(t *testing.T) {
	ops := newTestOps(t)
	seedUser(t, ops, "alice")
	riceID := seedFood(t, ops, "rice", 130, 2.7, 28, 0.3)

	_, err := ops.InsertIntake("alice", riceID, 100, "2025-06-02", "")
	require.NoError(t, err)

	history, err := ops.DailyHistory("alice", []string{"2025-06-01", "2025-06-02", "2025-06-03"})
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, 0.0, history[0].Calories)
	assert.Equal(t, 130.0, history[1].Calories)
	assert.Equal(t, "2025-06-03", history[2].Date)
}

func TestChatHistory(t *testing.T) {
	ops := newTestOps(t)

	for i := 0; i < 6; i++ {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		require.NoError(t, ops.AppendChatMessage("alice", role, "message"))
	}
	require.NoError(t, ops.AppendChatMessage("bob", "user", "other user"))

	// Limited fetch returns the most recent turns, oldest first.
	history, err := ops.GetChatHistory("alice", 4)
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.True(t, history[0].ID < history[3].ID)
	for _, m := range history {
		assert.Equal(t, "alice", m.Username)
	}

	all, err := ops.GetChatHistory("alice", 0)
	require.NoError(t, err)
	assert.Len(t, all, 6)

	require.NoError(t, ops.ClearChatHistory("alice"))
	all, err = ops.GetChatHistory("alice", 0)
	require.NoError(t, err)
	assert.Empty(t, all)

	// Bob's history is untouched.
	bob, err := ops.GetChatHistory("bob", 0)
	require.NoError(t, err)
	assert.Len(t, bob, 1)
}
