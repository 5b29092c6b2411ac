package nutrition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateMaleMaintain(t *testing.T) {
	needs, err := Calculate(Input{
		Sex:           "male",
		ActivityLevel: "moderate",
		Goal:          "maintain",
		WeightKg:      75,
		HeightCm:      180,
		Age:           30,
	})
	require.NoError(t, err)

	// BMR = 10*75 + 6.25*180 - 5*30 + 5 = 1730; TDEE = 1730 * 1.55 = 2681.5.
	assert.Equal(t, 1730, needs.BMR)
	assert.Equal(t, 2682, needs.TDEE)
	assert.Equal(t, 2682, needs.Calories)
	assert.Equal(t, 120, needs.ProteinG)
	assert.Equal(t, 74, needs.FatG)
	assert.Equal(t, 384, needs.CarbsG)
	assert.Equal(t, 1.55, needs.ActivityMultiplier)
	assert.Equal(t, "maintain", needs.Goal)
	assert.Equal(t, "0%", needs.GoalAdjustment)
}

func TestCalculateFemaleCut(t *testing.T) {
	needs, err := Calculate(Input{
		Sex:           "female",
		ActivityLevel: "moderate",
		Goal:          "cut",
		WeightKg:      75,
		HeightCm:      180,
		Age:           30,
	})
	require.NoError(t, err)

	// Female BMR offset is -161 instead of +5.
	assert.Equal(t, 1564, needs.BMR)
	assert.Equal(t, 2424, needs.TDEE)
	assert.Equal(t, 1939, needs.Calories)
	assert.Equal(t, 120, needs.ProteinG)
	assert.Equal(t, 54, needs.FatG)
	assert.Equal(t, 243, needs.CarbsG)
	assert.Equal(t, "-20%", needs.GoalAdjustment)
}

func TestCalculateBulkAdjustment(t *testing.T) {
	needs, err := Calculate(Input{
		Sex:           "male",
		ActivityLevel: "sedentary",
		Goal:          "bulk",
		WeightKg:      60,
		HeightCm:      170,
		Age:           25,
	})
	require.NoError(t, err)

	assert.Equal(t, "20%", needs.GoalAdjustment)
	assert.Greater(t, needs.Calories, needs.TDEE)
}

func TestCalculateGoalDefaultsToMaintain(t *testing.T) {
	needs, err := Calculate(Input{
		Sex:           "male",
		ActivityLevel: "light",
		WeightKg:      80,
		HeightCm:      175,
		Age:           40,
	})
	require.NoError(t, err)
	assert.Equal(t, "maintain", needs.Goal)
	assert.Equal(t, needs.TDEE, needs.Calories)
}

func TestCalculateSexCaseInsensitive(t *testing.T) {
	needs, err := Calculate(Input{
		Sex:           "Male",
		ActivityLevel: "moderate",
		WeightKg:      75,
		HeightCm:      180,
		Age:           30,
	})
	require.NoError(t, err)
	assert.Equal(t, 1730, needs.BMR)
}

func TestCalculateValidation(t *testing.T) {
	base := Input{Sex: "male", ActivityLevel: "moderate", WeightKg: 75, HeightCm: 180, Age: 30}

	missing := base
	missing.WeightKg = 0
	_, err := Calculate(missing)
	require.EqualError(t, err, "missing required parameters: weight_kg, height_cm, age")

	missing = base
	missing.Age = -1
	_, err = Calculate(missing)
	require.EqualError(t, err, "missing required parameters: weight_kg, height_cm, age")

	badSex := base
	badSex.Sex = "other"
	_, err = Calculate(badSex)
	require.EqualError(t, err, "sex must be 'male' or 'female'")

	badActivity := base
	badActivity.ActivityLevel = "heroic"
	_, err = Calculate(badActivity)
	require.EqualError(t, err, "invalid activity_level")

	badGoal := base
	badGoal.Goal = "shred"
	_, err = Calculate(badGoal)
	require.EqualError(t, err, "invalid goal. Must be 'cut', 'maintain', or 'bulk'")
}

func TestCalculateMacroCaloriesAddUp(t *testing.T) {
	needs, err := Calculate(Input{
		Sex:           "female",
		ActivityLevel: "active",
		Goal:          "maintain",
		WeightKg:      62,
		HeightCm:      168,
		Age:           28,
	})
	require.NoError(t, err)

	macroCalories := needs.ProteinG*4 + needs.FatG*9 + needs.CarbsG*4
	assert.InDelta(t, needs.Calories, macroCalories, 5)
}
