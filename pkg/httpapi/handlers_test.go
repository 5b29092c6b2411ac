package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nutracoach/pkg/auth"
	"nutracoach/pkg/cache"
	"nutracoach/pkg/chat"
	"nutracoach/pkg/config"
	"nutracoach/pkg/llm"
	"nutracoach/pkg/metrics"
	"nutracoach/pkg/nutrition"
	"nutracoach/pkg/store"
	"nutracoach/pkg/tools"
	"nutracoach/pkg/worker"
)

// stubLLM answers every completion with fixed content.
type stubLLM struct {
	content string
}

func (s *stubLLM) Complete(_ context.Context, _ llm.CompletionRequest) (llm.CompletionResponse, error) {
	return llm.CompletionResponse{Content: s.content}, nil
}

func (s *stubLLM) GetModelName() string { return "test-model" }

type testServer struct {
	handler http.Handler
	ops     *store.Operations
	tokens  *auth.TokenIssuer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db, err := store.OpenEphemeral()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	ops := store.NewOperations(db)

	c := cache.New()
	diary := nutrition.NewDiaryService(ops, c, nil, metrics.NopRecorder{})

	provider := tools.NewProvider(tools.ToolContext{Store: ops})
	dispatcher := tools.NewDispatcher(provider)
	loop := chat.NewLoop(&stubLLM{content: "Eat more vegetables."}, dispatcher, provider.Definitions(), 256, 0)
	chatSvc := chat.NewService(loop, ops, c, metrics.NopRecorder{}, "system", "test")

	pool := worker.NewPool(chatSvc, config.WorkerConfig{
		Workers: 1, MaxRetries: 0, RetryDelay: time.Millisecond, ResultTTL: time.Hour,
	})
	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)
	t.Cleanup(func() {
		cancel()
		pool.Stop()
	})

	tokens := auth.NewTokenIssuer("test-secret", time.Hour)
	srv := NewServer(&config.ServerConfig{Addr: ":0"}, Deps{
		Ops:      ops,
		Tokens:   tokens,
		Chat:     chatSvc,
		Diary:    diary,
		Pool:     pool,
		Provider: "test",
	})

	return &testServer{handler: srv.httpServer.Handler, ops: ops, tokens: tokens}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload
}

// registerAlice creates the fixture account and returns a valid token.
func (ts *testServer) registerAlice(t *testing.T) string {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/register", "", map[string]any{
		"username": "alice", "password": "hunter2",
		"age": 30, "sex": "male", "height_cm": 180, "weight_kg": 75,
		"activity_level": "moderate", "goal": "maintain",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return ts.tokens.Issue("alice")
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRegisterValidation(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/register", "", map[string]any{"username": "alice"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	ts.registerAlice(t)
	rec = ts.do(t, http.MethodPost, "/register", "", map[string]any{
		"username": "alice", "password": "other",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestLogin(t *testing.T) {
	ts := newTestServer(t)
	ts.registerAlice(t)

	rec := ts.do(t, http.MethodPost, "/login", "", map[string]any{
		"username": "alice", "password": "hunter2",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	token, _ := decodeJSON(t, rec)["token"].(string)
	require.NotEmpty(t, token)

	username, err := ts.tokens.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", username)

	// Wrong password and unknown user produce the same answer.
	rec = ts.do(t, http.MethodPost, "/login", "", map[string]any{
		"username": "alice", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = ts.do(t, http.MethodPost, "/login", "", map[string]any{
		"username": "nobody", "password": "hunter2",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/my_profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodGet, "/my_profile", "garbage-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProfileReadAndEdit(t *testing.T) {
	ts := newTestServer(t)
	token := ts.registerAlice(t)

	rec := ts.do(t, http.MethodGet, "/my_profile", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	profile := decodeJSON(t, rec)
	assert.Equal(t, "alice", profile["username"])
	assert.Equal(t, float64(75), profile["weight_kg"])

	rec = ts.do(t, http.MethodPost, "/profile_edit", token, map[string]any{
		"weight_kg": 72.5, "goal": "cut",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	profile = decodeJSON(t, rec)
	assert.Equal(t, 72.5, profile["weight_kg"])
	assert.Equal(t, "cut", profile["goal"])

	rec = ts.do(t, http.MethodPost, "/profile_edit", token, map[string]any{
		"password_hash": "pwned",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIntakeLogFlow(t *testing.T) {
	ts := newTestServer(t)
	token := ts.registerAlice(t)

	_, err := ts.ops.InsertFood(&store.Food{Name: "rice", Calories: 130, Protein: 2.7, Carbs: 28, Fat: 0.3})
	require.NoError(t, err)

	rec := ts.do(t, http.MethodPost, "/insert_log", token, map[string]any{
		"food_name": "rice", "quantity": 200, "intake_date": "2025-06-01", "meal_type": "lunch",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	entry := decodeJSON(t, rec)
	entryID := int64(entry["id"].(float64))
	assert.Equal(t, "rice", entry["food_name"])

	rec = ts.do(t, http.MethodGet, "/retrieve_log?date=2025-06-01", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decodeJSON(t, rec)["entries"].([]any)
	assert.Len(t, entries, 1)

	rec = ts.do(t, http.MethodGet, "/dv_summation?date=2025-06-01", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	totals := decodeJSON(t, rec)
	assert.Equal(t, float64(260), totals["calories"])

	rec = ts.do(t, http.MethodPost, "/update_log", token, map[string]any{
		"id": entryID, "quantity": 100, "meal_type": "dinner",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(100), decodeJSON(t, rec)["quantity"])

	rec = ts.do(t, http.MethodPost, "/delete_log", token, map[string]any{"id": entryID})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(entryID), decodeJSON(t, rec)["deleted"])

	rec = ts.do(t, http.MethodPost, "/delete_log", token, map[string]any{"id": entryID})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInsertLogUnknownFood(t *testing.T) {
	ts := newTestServer(t)
	token := ts.registerAlice(t)

	rec := ts.do(t, http.MethodPost, "/insert_log", token, map[string]any{
		"food_name": "unobtainium", "quantity": 100,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "food not found")
}

func TestDailyNeeds(t *testing.T) {
	ts := newTestServer(t)
	token := ts.registerAlice(t)

	rec := ts.do(t, http.MethodGet, "/daily_needs", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	needs := decodeJSON(t, rec)
	assert.Equal(t, float64(2682), needs["calories"])
	assert.Equal(t, float64(120), needs["protein_g"])
	assert.Equal(t, float64(1730), needs["bmr"])
}

func TestHistory7Days(t *testing.T) {
	ts := newTestServer(t)
	token := ts.registerAlice(t)

	rec := ts.do(t, http.MethodGet, "/history_7days", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decodeJSON(t, rec)["history"].([]any)
	assert.Len(t, history, 7)
}

func TestChatSync(t *testing.T) {
	ts := newTestServer(t)
	token := ts.registerAlice(t)

	rec := ts.do(t, http.MethodPost, "/api/chat", token, map[string]any{"message": "what should I eat?"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	payload := decodeJSON(t, rec)
	assert.Equal(t, "Eat more vegetables.", payload["response"])

	rec = ts.do(t, http.MethodPost, "/api/chat", token, map[string]any{"message": "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatAsyncLifecycle(t *testing.T) {
	ts := newTestServer(t)
	token := ts.registerAlice(t)

	rec := ts.do(t, http.MethodPost, "/api/chat", token, map[string]any{
		"message": "what should I eat?", "async": true,
	})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	taskID, _ := decodeJSON(t, rec)["task_id"].(string)
	require.NotEmpty(t, taskID)

	require.Eventually(t, func() bool {
		poll := ts.do(t, http.MethodGet, "/api/chat/task/"+taskID, token, nil)
		if poll.Code != http.StatusOK {
			return false
		}
		return decodeJSON(t, poll)["status"] == "done"
	}, 5*time.Second, 5*time.Millisecond)

	// Another user cannot read the task.
	otherToken := ts.tokens.Issue("bob")
	rec = ts.do(t, http.MethodGet, "/api/chat/task/"+taskID, otherToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChatHistoryEndpoints(t *testing.T) {
	ts := newTestServer(t)
	token := ts.registerAlice(t)

	rec := ts.do(t, http.MethodPost, "/api/chat", token, map[string]any{"message": "hello"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/chat/history", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decodeJSON(t, rec)["history"].([]any)
	assert.Len(t, history, 2)

	rec = ts.do(t, http.MethodDelete, "/api/chat/history", token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/chat/history", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeJSON(t, rec)["history"])
}

func TestUsageDisabled(t *testing.T) {
	ts := newTestServer(t)
	token := ts.registerAlice(t)

	rec := ts.do(t, http.MethodGet, "/api/usage", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
