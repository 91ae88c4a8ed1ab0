package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"insight/internal/answer"
	"insight/internal/chart"
	"insight/internal/config"
	"insight/internal/explore"
	"insight/internal/noql"
	"insight/internal/schema"
	"insight/internal/store"
	"insight/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fixedLLM struct {
	answer string
}

func (f *fixedLLM) Complete(_ context.Context, prompt string) (string, error) {
	if strings.Contains(prompt, "EXPLORATORY") {
		return `{"explorations": [{"purpose": "Count contacts", "sql": "SELECT COUNT(*) AS count FROM contacts"}]}`, nil
	}
	return f.answer, nil
}

func (f *fixedLLM) CompleteWithSystem(ctx context.Context, system, prompt string) (string, error) {
	if strings.Contains(system, "Reply with ONLY one word") {
		return "DATA", nil
	}
	return f.Complete(ctx, prompt)
}

type fixedExec struct{}

func (fixedExec) Execute(context.Context, string) (types.QueryResult, error) {
	return types.QueryResult{
		Columns: []string{"status", "count"},
		Rows: [][]types.Scalar{
			{"active", float64(12)},
			{"inactive", float64(5)},
		},
	}, nil
}

type fixedGen struct{}

func (fixedGen) Generate(context.Context, string, string) (string, error) {
	return "SELECT status, COUNT(*) AS count FROM contacts GROUP BY status", nil
}

type noHints struct{}

func (noHints) TableCounts(context.Context) map[string]int           { return nil }
func (noHints) Samples(context.Context) map[string]types.QueryResult { return nil }

func newTestServer(t *testing.T) (*httptest.Server, *store.Store) {
	return newTestServerWithHints(t, nil)
}

func newTestServerWithHints(t *testing.T, hints *noql.Hints) (*httptest.Server, *store.Store) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	st, err := store.Open(filepath.Join(t.TempDir(), "insight.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	catalog := schema.Default()
	llm := &fixedLLM{answer: "All quiet on the data front."}
	engine := explore.NewEngine(llm, fixedExec{}, noHints{}, st, catalog, 3, 0, logger)
	pipeline := chart.NewPipeline(fixedGen{}, fixedExec{}, nil, logger)
	orch := answer.NewOrchestrator(llm, fixedGen{}, fixedExec{}, st, engine, pipeline, nil, catalog, logger)

	cfg := config.DefaultConfig()
	cfg.Server.CORSOrigins = []string{"https://app.example.com"}

	srv := New(cfg, orch, st, hints, catalog, logger)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		http.DefaultClient.CloseIdleConnections()
	})
	return ts, st
}

func getJSON(t *testing.T, url string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func postJSON(t *testing.T, url string, payload any) (int, map[string]any) {
	t.Helper()
	b, err := json.Marshal(payload)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	defer resp.Body.Close()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestHealthAndPing(t *testing.T) {
	ts, _ := newTestServer(t)

	status, body := getJSON(t, ts.URL+"/health")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "healthy", body["status"])

	status, body = getJSON(t, ts.URL+"/api/ping")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "pong", body["message"])
}

func TestAskEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	status, body := postJSON(t, ts.URL+"/api/ask", map[string]string{
		"question": "how many contacts per status?",
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "chat_style", body["response_mode"])
	assert.NotEmpty(t, body["answer_markdown"])
	assert.NotEmpty(t, body["conversation_id"])
	assert.Equal(t, "zigment", body["database_name"])
}

func TestAskRequiresQuestion(t *testing.T) {
	ts, _ := newTestServer(t)

	status, body := postJSON(t, ts.URL+"/api/ask", map[string]string{"question": "  "})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, false, body["success"])
}

func TestConversationLifecycle(t *testing.T) {
	ts, _ := newTestServer(t)

	status, body := postJSON(t, ts.URL+"/api/conversations", map[string]string{"title": "Contact digging"})
	require.Equal(t, http.StatusOK, status)
	convID, _ := body["conversation_id"].(string)
	require.NotEmpty(t, convID)

	status, body = getJSON(t, ts.URL+"/api/conversations")
	require.Equal(t, http.StatusOK, status)
	list, _ := body["conversations"].([]any)
	require.Len(t, list, 1)

	status, body = getJSON(t, ts.URL+"/api/history?conversation_id="+convID)
	require.Equal(t, http.StatusOK, status)
	messages, _ := body["messages"].([]any)
	assert.Empty(t, messages)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/conversations/"+convID, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	status, body = getJSON(t, ts.URL+"/api/conversations")
	require.Equal(t, http.StatusOK, status)
	list, _ = body["conversations"].([]any)
	assert.Empty(t, list)
}

func TestListConversationsLimit(t *testing.T) {
	ts, st := newTestServer(t)

	_, err := st.CreateConversation("First", "zigment")
	require.NoError(t, err)
	_, err = st.CreateConversation("Second", "zigment")
	require.NoError(t, err)

	status, body := getJSON(t, ts.URL+"/api/conversations")
	require.Equal(t, http.StatusOK, status)
	list, _ := body["conversations"].([]any)
	assert.Len(t, list, 2)

	status, body = getJSON(t, ts.URL+"/api/conversations?limit=1")
	require.Equal(t, http.StatusOK, status)
	list, _ = body["conversations"].([]any)
	assert.Len(t, list, 1)
}

func TestHistoryRequiresConversationID(t *testing.T) {
	ts, _ := newTestServer(t)

	status, body := getJSON(t, ts.URL+"/api/history")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, false, body["success"])
}

func TestExecuteQueryEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	status, body := postJSON(t, ts.URL+"/api/execute-query", map[string]string{
		"question": "contacts per status",
		"format":   "bar",
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])
	assert.Contains(t, body["query"], "LIMIT 50")
	rows, _ := body["rows"].([]any)
	assert.Len(t, rows, 2)
	require.NotNil(t, body["chart"])
}

func TestExecuteQueryStructuredError(t *testing.T) {
	ts, _ := newTestServer(t)

	status, body := postJSON(t, ts.URL+"/api/execute-query", map[string]string{
		"question": "what is the weather like",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	errObj, _ := body["error"].(map[string]any)
	require.NotNil(t, errObj)
	assert.Equal(t, "irrelevant_question", errObj["kind"])
	assert.NotEmpty(t, errObj["suggestion"])
}

func TestSchemaEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	status, body := getJSON(t, ts.URL+"/api/schema")
	require.Equal(t, http.StatusOK, status)
	collections, _ := body["collections"].([]any)
	assert.Len(t, collections, 5)
}

func TestSchemaCollectionLookup(t *testing.T) {
	ts, _ := newTestServer(t)

	// schema-style aliases resolve to the canonical collection
	status, body := getJSON(t, ts.URL+"/api/schema?collection=CONTACT")
	require.Equal(t, http.StatusOK, status)
	col, ok := body["collection"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "contacts", col["name"])

	status, body = getJSON(t, ts.URL+"/api/schema?collection=nosuch")
	require.Equal(t, http.StatusNotFound, status)
	errObj, _ := body["error"].(map[string]any)
	assert.Equal(t, "unknown_collection", errObj["kind"])
}

type countingExec struct {
	mu    sync.Mutex
	calls int
}

func (c *countingExec) Execute(context.Context, string) (types.QueryResult, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return types.QueryResult{
		Columns: []string{"count"},
		Rows:    [][]types.Scalar{{float64(7)}},
	}, nil
}

func (c *countingExec) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestInspectRefreshDropsHintCache(t *testing.T) {
	exec := &countingExec{}
	hints := noql.NewHints(exec, schema.Default(), noql.NewTTLCache(time.Minute), zaptest.NewLogger(t))
	ts, _ := newTestServerWithHints(t, hints)

	status, _ := getJSON(t, ts.URL+"/api/inspect")
	require.Equal(t, http.StatusOK, status)
	warm := exec.callCount()
	require.Greater(t, warm, 0)

	// cached: no new executor traffic
	status, _ = getJSON(t, ts.URL+"/api/inspect")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, warm, exec.callCount())

	status, body := getJSON(t, ts.URL+"/api/inspect?refresh=1")
	require.Equal(t, http.StatusOK, status)
	assert.Greater(t, exec.callCount(), warm)
	tables, _ := body["tables"].(map[string]any)
	assert.Contains(t, tables, "contacts")
}

func TestCORSHeaders(t *testing.T) {
	ts, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://app.example.com")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "https://app.example.com", resp.Header.Get("Access-Control-Allow-Origin"))

	req, err = http.NewRequest(http.MethodGet, ts.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://evil.example.com")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}
