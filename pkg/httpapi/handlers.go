package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"nutracoach/pkg/auth"
	"nutracoach/pkg/chat"
	"nutracoach/pkg/llmerrors"
	"nutracoach/pkg/logx"
	"nutracoach/pkg/metrics"
	"nutracoach/pkg/nutrition"
	"nutracoach/pkg/store"
	"nutracoach/pkg/worker"
)

type handlers struct {
	ops      *store.Operations
	tokens   *auth.TokenIssuer
	chat     *chat.Service
	diary    *nutrition.DiaryService
	pool     *worker.Pool
	usage    *metrics.QueryService
	provider string
	recorder metrics.Recorder
	logger   *logx.Logger
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func (h *handlers) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type registerRequest struct {
	Username      string  `json:"username"`
	Password      string  `json:"password"`
	Age           int     `json:"age"`
	Sex           string  `json:"sex"`
	HeightCm      float64 `json:"height_cm"`
	WeightKg      float64 `json:"weight_kg"`
	ActivityLevel string  `json:"activity_level"`
	Goal          string  `json:"goal"`
}

func (h *handlers) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.logger.Error("Password hashing failed: %v", err)
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	_, err = h.ops.CreateUser(req.Username, hash, &store.Profile{
		Age:           req.Age,
		Sex:           req.Sex,
		HeightCm:      req.HeightCm,
		WeightKg:      req.WeightKg,
		ActivityLevel: req.ActivityLevel,
		Goal:          req.Goal,
	})
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			writeError(w, http.StatusConflict, "username already exists")
			return
		}
		h.logger.Error("User creation failed: %v", err)
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"username": req.Username})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	user, err := h.ops.GetUserByUsername(req.Username)
	if errors.Is(err, store.ErrNotFound) || (err == nil && !auth.CheckPassword(user.PasswordHash, req.Password)) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		h.logger.Error("Login lookup failed: %v", err)
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": h.tokens.Issue(user.Username)})
}

func (h *handlers) myProfile(w http.ResponseWriter, r *http.Request) {
	username := usernameFrom(r.Context())
	profile, err := h.ops.GetProfile(username)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		h.logger.Error("Profile lookup failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *handlers) profileEdit(w http.ResponseWriter, r *http.Request) {
	username := usernameFrom(r.Context())

	var fields map[string]any
	if !decodeBody(w, r, &fields) {
		return
	}

	err := h.ops.UpdateProfile(username, fields)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "user not found")
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	profile, err := h.ops.GetProfile(username)
	if err != nil {
		h.logger.Error("Profile reload failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

type insertLogRequest struct {
	FoodName   string  `json:"food_name"`
	Quantity   float64 `json:"quantity"`
	IntakeDate string  `json:"intake_date"`
	MealType   string  `json:"meal_type"`
}

func (h *handlers) insertLog(w http.ResponseWriter, r *http.Request) {
	username := usernameFrom(r.Context())

	var req insertLogRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.FoodName == "" || req.Quantity <= 0 {
		writeError(w, http.StatusBadRequest, "food_name and a positive quantity are required")
		return
	}

	entry, err := h.diary.LogIntake(r.Context(), username, req.FoodName, req.Quantity, req.IntakeDate, req.MealType)
	switch {
	case errors.Is(err, nutrition.ErrUnknownFood):
		writeError(w, http.StatusNotFound, "food not found")
		return
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "user not found")
		return
	case err != nil:
		h.logger.Error("Intake insert failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to log intake")
		return
	}

	writeJSON(w, http.StatusCreated, entry)
}

type updateLogRequest struct {
	ID       int64   `json:"id"`
	Quantity float64 `json:"quantity"`
	MealType string  `json:"meal_type"`
}

func (h *handlers) updateLog(w http.ResponseWriter, r *http.Request) {
	username := usernameFrom(r.Context())

	var req updateLogRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ID <= 0 || req.Quantity <= 0 {
		writeError(w, http.StatusBadRequest, "id and a positive quantity are required")
		return
	}

	entry, err := h.diary.UpdateIntake(r.Context(), username, req.ID, req.Quantity, req.MealType)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "log entry not found")
		return
	case err != nil:
		h.logger.Error("Intake update failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to update intake")
		return
	}

	writeJSON(w, http.StatusOK, entry)
}

func (h *handlers) retrieveLog(w http.ResponseWriter, r *http.Request) {
	username := usernameFrom(r.Context())
	date := r.URL.Query().Get("date")

	entries, err := h.diary.Entries(r.Context(), username, date)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "user not found")
		return
	case err != nil:
		h.logger.Error("Intake list failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load intake log")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

type deleteLogRequest struct {
	ID int64 `json:"id"`
}

func (h *handlers) deleteLog(w http.ResponseWriter, r *http.Request) {
	username := usernameFrom(r.Context())

	var req deleteLogRequest
	if !decodeBody(w, r, &req) {
		return
	}

	err := h.diary.DeleteIntake(r.Context(), username, req.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "log entry not found")
		return
	case err != nil:
		h.logger.Error("Intake delete failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to delete intake")
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"deleted": req.ID})
}

func (h *handlers) dvSummation(w http.ResponseWriter, r *http.Request) {
	username := usernameFrom(r.Context())
	date := r.URL.Query().Get("date")

	totals, err := h.diary.DailySummary(r.Context(), username, date)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "user not found")
		return
	case err != nil:
		h.logger.Error("Daily summation failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to sum nutrition")
		return
	}

	writeJSON(w, http.StatusOK, totals)
}

func (h *handlers) dailyNeeds(w http.ResponseWriter, r *http.Request) {
	username := usernameFrom(r.Context())

	profile, err := h.ops.GetProfile(username)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		h.logger.Error("Profile lookup failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}

	needs, err := nutrition.Calculate(nutrition.Input{
		Sex:           strings.ToLower(profile.Sex),
		WeightKg:      profile.WeightKg,
		HeightCm:      profile.HeightCm,
		Age:           profile.Age,
		ActivityLevel: profile.ActivityLevel,
		Goal:          profile.Goal,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, needs)
}

func (h *handlers) history7Days(w http.ResponseWriter, r *http.Request) {
	username := usernameFrom(r.Context())

	history, err := h.diary.History7Days(r.Context(), username)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "user not found")
		return
	case err != nil:
		h.logger.Error("History query failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"history": history})
}

type chatRequest struct {
	Message string `json:"message"`
	Async   bool   `json:"async"`
}

func (h *handlers) chatMessage(w http.ResponseWriter, r *http.Request) {
	username := usernameFrom(r.Context())

	var req chatRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	if req.Async && h.pool != nil {
		taskID, err := h.pool.Submit(username, req.Message)
		if errors.Is(err, worker.ErrQueueFull) {
			writeError(w, http.StatusServiceUnavailable, "too many pending tasks")
			return
		}
		if err != nil {
			h.logger.Error("Task submit failed: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to submit task")
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"task_id": taskID})
		return
	}

	resp, err := h.chat.Chat(r.Context(), username, req.Message)
	if err != nil {
		h.writeChatError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeChatError maps loop and provider failures to HTTP codes.
func (h *handlers) writeChatError(w http.ResponseWriter, err error) {
	var llmErr *llmerrors.Error
	if errors.As(err, &llmErr) {
		switch llmErr.Type {
		case llmerrors.ErrorTypeExhausted:
			writeError(w, http.StatusInternalServerError, llmErr.Message)
			return
		case llmerrors.ErrorTypeBadPrompt:
			writeError(w, http.StatusBadRequest, llmErr.Message)
			return
		case llmerrors.ErrorTypeAuth:
			h.logger.Error("Provider auth failure: %v", err)
			writeError(w, http.StatusBadGateway, "provider authentication failed")
			return
		}
	}
	h.logger.Error("Chat failed: %v", err)
	writeError(w, http.StatusBadGateway, "chat request failed")
}

func (h *handlers) chatTask(w http.ResponseWriter, r *http.Request) {
	if h.pool == nil {
		writeError(w, http.StatusNotFound, "background tasks disabled")
		return
	}

	task, ok := h.pool.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if task.Username != usernameFrom(r.Context()) {
		// Task IDs are unguessable, but ownership is still enforced.
		writeError(w, http.StatusNotFound, "task not found")
		return
	}

	writeJSON(w, http.StatusOK, task)
}

func (h *handlers) chatHistory(w http.ResponseWriter, r *http.Request) {
	username := usernameFrom(r.Context())

	history, err := h.chat.History(r.Context(), username)
	if err != nil {
		h.logger.Error("Chat history load failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load chat history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"history": history})
}

// usageSummary reports aggregated token usage pulled back out of Prometheus.
func (h *handlers) usageSummary(w http.ResponseWriter, r *http.Request) {
	if h.usage == nil {
		writeError(w, http.StatusNotFound, "usage reporting disabled")
		return
	}

	summary, err := h.usage.GetUsage(r.Context(), h.provider)
	if err != nil {
		h.logger.Error("Usage query failed: %v", err)
		writeError(w, http.StatusBadGateway, "failed to query usage")
		return
	}

	if r.URL.Query().Get("by_model") == "true" {
		byModel, err := h.usage.GetUsageByModel(r.Context(), h.provider)
		if err != nil {
			h.logger.Error("Usage query failed: %v", err)
			writeError(w, http.StatusBadGateway, "failed to query usage")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"total": summary, "by_model": byModel})
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func (h *handlers) chatHistoryClear(w http.ResponseWriter, r *http.Request) {
	username := usernameFrom(r.Context())

	if err := h.chat.ClearHistory(r.Context(), username); err != nil {
		h.logger.Error("Chat history clear failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to clear chat history")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
