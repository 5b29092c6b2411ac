package store

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// User is an account row with credentials.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
}

// Profile holds the nutrition-relevant attributes of a user.
type Profile struct {
	Username      string  `json:"username"`
	Age           int     `json:"age"`
	Sex           string  `json:"sex"`
	HeightCm      float64 `json:"height_cm"`
	WeightKg      float64 `json:"weight_kg"`
	ActivityLevel string  `json:"activity_level"`
	Goal          string  `json:"goal"`
}

// Food is a food row with macros per 100 serving units.
type Food struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Calories    float64 `json:"calories"`
	Protein     float64 `json:"protein"`
	Carbs       float64 `json:"carbs"`
	Fat         float64 `json:"fat"`
	ServingUnit string  `json:"serving_unit"`
}

// IntakeEntry is one logged food intake.
type IntakeEntry struct {
	ID         int64   `json:"id"`
	FoodID     int64   `json:"food_id"`
	FoodName   string  `json:"food_name"`
	Quantity   float64 `json:"quantity"`
	IntakeDate string  `json:"intake_date"`
	MealType   string  `json:"meal_type,omitempty"`
	CreatedAt  string  `json:"created_at"`
}

// DailyTotals is the summed nutrition for one date.
type DailyTotals struct {
	Date     string  `json:"date"`
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
}

// ChatMessage is one stored conversation turn.
type ChatMessage struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

// Operations provides typed access to the database.
// No raw SQL should exist outside this package.
type Operations struct {
	db *sql.DB
}

// NewOperations creates an Operations instance over the given connection.
func NewOperations(db *sql.DB) *Operations {
	return &Operations{db: db}
}

// CreateUser inserts a new account with its profile.
// Returns ErrNotFound-free errors; duplicate usernames surface as an error.
func (o *Operations) CreateUser(username, passwordHash string, p *Profile) (int64, error) {
	res, err := o.db.Exec(`
		INSERT INTO users (username, password_hash, age, sex, height_cm, weight_kg, activity_level, goal)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		username, passwordHash, p.Age, p.Sex, p.HeightCm, p.WeightKg, p.ActivityLevel, p.Goal,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get user id: %w", err)
	}
	return id, nil
}

// GetUserByUsername returns the credentials row for a username.
func (o *Operations) GetUserByUsername(username string) (*User, error) {
	var u User
	err := o.db.QueryRow(
		`SELECT id, username, password_hash FROM users WHERE username = ?`, username,
	).Scan(&u.ID, &u.Username, &u.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

// userID resolves a username to its row id.
func (o *Operations) userID(username string) (int64, error) {
	var id int64
	err := o.db.QueryRow(`SELECT id FROM users WHERE username = ?`, username).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to resolve user: %w", err)
	}
	return id, nil
}

// GetProfile returns the stored profile for a username.
func (o *Operations) GetProfile(username string) (*Profile, error) {
	var p Profile
	var age sql.NullInt64
	var sex, activity, goal sql.NullString
	var height, weight sql.NullFloat64
	err := o.db.QueryRow(`
		SELECT username, age, sex, height_cm, weight_kg, activity_level, goal
		FROM users WHERE username = ?`, username,
	).Scan(&p.Username, &age, &sex, &height, &weight, &activity, &goal)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	p.Age = int(age.Int64)
	p.Sex = sex.String
	p.HeightCm = height.Float64
	p.WeightKg = weight.Float64
	p.ActivityLevel = activity.String
	p.Goal = goal.String
	return &p, nil
}

// profileColumns is the closed set of profile fields a user may edit.
var profileColumns = map[string]bool{
	"age":            true,
	"sex":            true,
	"height_cm":      true,
	"weight_kg":      true,
	"activity_level": true,
	"goal":           true,
}

// UpdateProfile updates the allowed profile fields for a username.
// Unknown fields are rejected.
func (o *Operations) UpdateProfile(username string, fields map[string]any) error {
	if len(fields) == 0 {
		return fmt.Errorf("no fields to update")
	}

	setClauses := make([]string, 0, len(fields))
	args := make([]any, 0, len(fields)+1)
	for col, val := range fields {
		if !profileColumns[col] {
			return fmt.Errorf("field %q is not editable", col)
		}
		setClauses = append(setClauses, col+" = ?")
		args = append(args, val)
	}
	args = append(args, username)

	res, err := o.db.Exec(
		"UPDATE users SET "+strings.Join(setClauses, ", ")+" WHERE username = ?", args...,
	)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetFoodByName returns a food row matched case-insensitively by name.
func (o *Operations) GetFoodByName(name string) (*Food, error) {
	var f Food
	err := o.db.QueryRow(`
		SELECT id, name, calories, protein, carbs, fat, serving_unit
		FROM food WHERE LOWER(name) = LOWER(?)`, name,
	).Scan(&f.ID, &f.Name, &f.Calories, &f.Protein, &f.Carbs, &f.Fat, &f.ServingUnit)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get food: %w", err)
	}
	return &f, nil
}

// InsertFood inserts a food row and returns its id.
func (o *Operations) InsertFood(f *Food) (int64, error) {
	unit := f.ServingUnit
	if unit == "" {
		unit = "g"
	}
	res, err := o.db.Exec(`
		INSERT INTO food (name, calories, protein, carbs, fat, serving_unit)
		VALUES (?, ?, ?, ?, ?, ?)`,
		f.Name, f.Calories, f.Protein, f.Carbs, f.Fat, unit,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert food: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get food id: %w", err)
	}
	return id, nil
}

// InsertIntake logs an intake entry for a user and returns the stored row.
func (o *Operations) InsertIntake(username string, foodID int64, quantity float64, intakeDate, mealType string) (*IntakeEntry, error) {
	userID, err := o.userID(username)
	if err != nil {
		return nil, err
	}

	res, err := o.db.Exec(`
		INSERT INTO user_intake (user_id, food_id, quantity, intake_date, meal_type)
		VALUES (?, ?, ?, ?, ?)`,
		userID, foodID, quantity, intakeDate, mealType,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert intake: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get intake id: %w", err)
	}
	return o.getIntake(userID, id)
}

// getIntake fetches one intake row joined with its food name.
func (o *Operations) getIntake(userID, id int64) (*IntakeEntry, error) {
	var e IntakeEntry
	var mealType sql.NullString
	err := o.db.QueryRow(`
		SELECT ui.id, ui.food_id, f.name, ui.quantity, ui.intake_date, ui.meal_type, ui.created_at
		FROM user_intake ui JOIN food f ON ui.food_id = f.id
		WHERE ui.id = ? AND ui.user_id = ?`, id, userID,
	).Scan(&e.ID, &e.FoodID, &e.FoodName, &e.Quantity, &e.IntakeDate, &mealType, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get intake: %w", err)
	}
	e.MealType = mealType.String
	return &e, nil
}

// UpdateIntake updates quantity and meal type of an entry owned by username.
func (o *Operations) UpdateIntake(username string, id int64, quantity float64, mealType string) (*IntakeEntry, error) {
	userID, err := o.userID(username)
	if err != nil {
		return nil, err
	}

	res, err := o.db.Exec(`
		UPDATE user_intake SET quantity = ?, meal_type = ?
		WHERE id = ? AND user_id = ?`,
		quantity, mealType, id, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update intake: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check update: %w", err)
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	return o.getIntake(userID, id)
}

// DeleteIntake removes an entry owned by username.
func (o *Operations) DeleteIntake(username string, id int64) error {
	userID, err := o.userID(username)
	if err != nil {
		return err
	}

	res, err := o.db.Exec(`DELETE FROM user_intake WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete intake: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListIntake returns all entries for a user on a date.
func (o *Operations) ListIntake(username, intakeDate string) ([]IntakeEntry, error) {
	userID, err := o.userID(username)
	if err != nil {
		return nil, err
	}

	rows, err := o.db.Query(`
		SELECT ui.id, ui.food_id, f.name, ui.quantity, ui.intake_date, ui.meal_type, ui.created_at
		FROM user_intake ui JOIN food f ON ui.food_id = f.id
		WHERE ui.user_id = ? AND ui.intake_date = ?
		ORDER BY ui.id`, userID, intakeDate,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list intake: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []IntakeEntry
	for rows.Next() {
		var e IntakeEntry
		var mealType sql.NullString
		if err := rows.Scan(&e.ID, &e.FoodID, &e.FoodName, &e.Quantity, &e.IntakeDate, &mealType, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan intake row: %w", err)
		}
		e.MealType = mealType.String
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate intake rows: %w", err)
	}
	return entries, nil
}

// round1 rounds to one decimal place, half away from zero.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// SumDailyNutrition sums logged intake for one date, scaling each entry's
// per-100-unit macros by quantity/100. Returns zero totals when nothing is
// logged; ErrNotFound when the user does not exist.
func (o *Operations) SumDailyNutrition(username, intakeDate string) (*DailyTotals, error) {
	userID, err := o.userID(username)
	if err != nil {
		return nil, err
	}

	rows, err := o.db.Query(`
		SELECT ui.quantity, f.calories, f.protein, f.carbs, f.fat
		FROM user_intake ui JOIN food f ON ui.food_id = f.id
		WHERE ui.user_id = ? AND ui.intake_date = ?`, userID, intakeDate,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query intake: %w", err)
	}
	defer func() { _ = rows.Close() }()

	totals := DailyTotals{Date: intakeDate}
	for rows.Next() {
		var quantity, calories, protein, carbs, fat float64
		if err := rows.Scan(&quantity, &calories, &protein, &carbs, &fat); err != nil {
			return nil, fmt.Errorf("failed to scan intake row: %w", err)
		}
		factor := quantity / 100.0
		totals.Calories += calories * factor
		totals.Protein += protein * factor
		totals.Carbs += carbs * factor
		totals.Fat += fat * factor
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate intake rows: %w", err)
	}

	totals.Calories = round1(totals.Calories)
	totals.Protein = round1(totals.Protein)
	totals.Carbs = round1(totals.Carbs)
	totals.Fat = round1(totals.Fat)
	return &totals, nil
}

// DailyHistory returns totals for each of the given dates, oldest first.
func (o *Operations) DailyHistory(username string, dates []string) ([]DailyTotals, error) {
	history := make([]DailyTotals, 0, len(dates))
	for _, d := range dates {
		totals, err := o.SumDailyNutrition(username, d)
		if err != nil {
			return nil, err
		}
		history = append(history, *totals)
	}
	return history, nil
}

// AppendChatMessage stores one conversation turn.
func (o *Operations) AppendChatMessage(username, role, content string) error {
	if _, err := o.db.Exec(`
		INSERT INTO chat_messages (username, role, content) VALUES (?, ?, ?)`,
		username, role, content,
	); err != nil {
		return fmt.Errorf("failed to append chat message: %w", err)
	}
	return nil
}

// GetChatHistory returns the most recent limit turns for a user, oldest first.
// limit <= 0 returns all turns.
func (o *Operations) GetChatHistory(username string, limit int) ([]ChatMessage, error) {
	q := `SELECT id, username, role, content, created_at FROM chat_messages WHERE username = ? ORDER BY id`
	args := []any{username}
	if limit > 0 {
		q = `SELECT id, username, role, content, created_at FROM (
			SELECT id, username, role, content, created_at FROM chat_messages
			WHERE username = ? ORDER BY id DESC LIMIT ?
		) ORDER BY id`
		args = append(args, limit)
	}

	rows, err := o.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get chat history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var messages []ChatMessage
	for rows.Next() {
		var m ChatMessage
		if err := rows.Scan(&m.ID, &m.Username, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat row: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate chat rows: %w", err)
	}
	return messages, nil
}

// ClearChatHistory removes all stored turns for a user.
func (o *Operations) ClearChatHistory(username string) error {
	if _, err := o.db.Exec(`DELETE FROM chat_messages WHERE username = ?`, username); err != nil {
		return fmt.Errorf("failed to clear chat history: %w", err)
	}
	return nil
}
