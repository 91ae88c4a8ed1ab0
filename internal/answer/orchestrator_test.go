package answer

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"insight/internal/chart"
	"insight/internal/explore"
	"insight/internal/schema"
	"insight/internal/store"
	"insight/internal/types"
)

// scriptedLLM routes prompts to canned replies by marker substring.
type scriptedLLM struct {
	classification string
	probePlan      string
	answer         string
	summary        string
	answerErr      error
	prompts        []string
}

func (s *scriptedLLM) Complete(_ context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	switch {
	case strings.Contains(prompt, "EXPLORATORY"):
		return s.probePlan, nil
	case strings.Contains(prompt, "concise bullet points"):
		return s.summary, nil
	default:
		if s.answerErr != nil {
			return "", s.answerErr
		}
		return s.answer, nil
	}
}

func (s *scriptedLLM) CompleteWithSystem(ctx context.Context, system, prompt string) (string, error) {
	if strings.Contains(system, "Reply with ONLY one word") {
		s.prompts = append(s.prompts, system)
		return s.classification, nil
	}
	return s.Complete(ctx, prompt)
}

type recordingExec struct {
	queries []string
	result  types.QueryResult
	err     error
}

func (r *recordingExec) Execute(_ context.Context, q string) (types.QueryResult, error) {
	r.queries = append(r.queries, q)
	if r.err != nil {
		return types.QueryResult{}, r.err
	}
	return r.result, nil
}

type recordingGen struct {
	query string
	err   error
}

func (r *recordingGen) Generate(_ context.Context, _, _ string) (string, error) {
	return r.query, r.err
}

type emptyHints struct{}

func (emptyHints) TableCounts(context.Context) map[string]int           { return nil }
func (emptyHints) Samples(context.Context) map[string]types.QueryResult { return nil }

func newTestOrchestrator(t *testing.T, llm *scriptedLLM, gen *recordingGen, exec *recordingExec) (*Orchestrator, *store.Store) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	st, err := store.Open(filepath.Join(t.TempDir(), "insight.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	catalog := schema.Default()
	engine := explore.NewEngine(llm, exec, emptyHints{}, st, catalog, 3, 0, logger)
	pipeline := chart.NewPipeline(gen, exec, nil, logger)
	return NewOrchestrator(llm, gen, exec, st, engine, pipeline, nil, catalog, logger), st
}

func statusRows() types.QueryResult {
	return types.QueryResult{
		Columns: []string{"status", "count"},
		Rows: [][]types.Scalar{
			{"active", float64(12)},
			{"inactive", float64(5)},
			{"pending", float64(3)},
		},
	}
}

func TestAnswerCasualShortQuestion(t *testing.T) {
	llm := &scriptedLLM{classification: "DATA"}
	o, st := newTestOrchestrator(t, llm, &recordingGen{}, &recordingExec{})

	resp, err := o.Answer(context.Background(), "hi", "zigment", "")
	require.NoError(t, err)

	assert.Equal(t, "casual", resp.Mode)
	assert.NotEmpty(t, resp.Markdown)
	assert.Empty(t, resp.Charts)
	assert.NotEmpty(t, resp.ConversationID)
	// short messages never reach the classifier
	assert.Empty(t, llm.prompts)

	history, err := st.GetHistory(resp.ConversationID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, "assistant", history[1].Role)
	assert.Equal(t, "casual", history[1].Meta["mode"])
}

func TestAnswerCasualClassified(t *testing.T) {
	llm := &scriptedLLM{classification: "CASUAL"}
	o, _ := newTestOrchestrator(t, llm, &recordingGen{}, &recordingExec{})

	resp, err := o.Answer(context.Background(), "thanks a lot for the help", "zigment", "")
	require.NoError(t, err)
	assert.Equal(t, "casual", resp.Mode)
	assert.Contains(t, strings.ToLower(resp.Markdown), "welcome")
}

func TestAnswerDataFlow(t *testing.T) {
	markdown := "Here is the breakdown.\n\n```chart\n{\"type\": \"bar\", \"question\": \"contacts by status\", \"title\": \"Status\", \"db\": \"zigment\"}\n```\n\nActive contacts dominate."
	llm := &scriptedLLM{
		classification: "DATA",
		probePlan:      `{"explorations": [{"purpose": "Count contacts", "sql": "SELECT COUNT(*) AS count FROM contacts"}]}`,
		answer:         markdown,
	}
	exec := &recordingExec{result: statusRows()}
	gen := &recordingGen{query: "SELECT status, COUNT(*) AS count FROM contacts GROUP BY status"}
	o, st := newTestOrchestrator(t, llm, gen, exec)

	resp, err := o.Answer(context.Background(), "how many contacts per status?", "zigment", "")
	require.NoError(t, err)

	assert.Equal(t, "chat_style", resp.Mode)
	require.Len(t, resp.Charts, 1)
	assert.Contains(t, resp.Markdown, "{{chart:"+resp.Charts[0].ID+"}}")
	assert.NotContains(t, resp.Markdown, "```chart")
	assert.Contains(t, resp.Markdown, "Active contacts dominate.")

	// both turns persisted, facts on the assistant turn but not in the response
	history, err := st.GetHistory(resp.ConversationID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "chat_style", history[1].Meta["mode"])
	require.Len(t, history[1].Charts, 1)

	facts := st.GetFactsForConversation("zigment", resp.ConversationID, 5)
	assert.Contains(t, facts, "records found")
}

func TestAnswerDataGenerationFailureFallback(t *testing.T) {
	llm := &scriptedLLM{
		classification: "DATA",
		probePlan:      "not json",
		answerErr:      errors.New("model overloaded"),
	}
	o, _ := newTestOrchestrator(t, llm, &recordingGen{}, &recordingExec{result: statusRows()})

	resp, err := o.Answer(context.Background(), "show me contact trends", "zigment", "")
	require.NoError(t, err)
	assert.Contains(t, resp.Markdown, "model overloaded")
	assert.Contains(t, resp.Markdown, "show me contact trends")
	assert.Empty(t, resp.Charts)
}

func TestAnswerUnclearVerdictMeansData(t *testing.T) {
	llm := &scriptedLLM{answer: "Plain answer with no chart."}
	o, _ := newTestOrchestrator(t, llm, &recordingGen{}, &recordingExec{result: statusRows()})

	resp, err := o.Answer(context.Background(), "hello there friend", "zigment", "")
	require.NoError(t, err)
	// empty verdict does not contain CASUAL, so this goes down the data path
	assert.Equal(t, "chat_style", resp.Mode)
}

func TestAnswerEmptyQuestionRejected(t *testing.T) {
	o, _ := newTestOrchestrator(t, &scriptedLLM{}, &recordingGen{}, &recordingExec{})

	_, err := o.Answer(context.Background(), "   ", "zigment", "")
	var ae *types.AnswerError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "invalid_request", ae.Kind)
}

func TestAnswerHistoryWindow(t *testing.T) {
	llm := &scriptedLLM{classification: "DATA", probePlan: "not json", answer: "Answer."}
	o, st := newTestOrchestrator(t, llm, &recordingGen{}, &recordingExec{result: statusRows()})

	convID, err := st.CreateConversation("New conversation", "zigment")
	require.NoError(t, err)
	for i := 0; i < 8; i++ {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		_, err := st.AddMessage(convID, role, strings.Repeat("m", 10)+string(rune('a'+i)), nil, nil, "", "zigment", "")
		require.NoError(t, err)
	}

	_, err = o.Answer(context.Background(), "what changed since last week?", "zigment", convID)
	require.NoError(t, err)

	var answerPrompt string
	for _, p := range llm.prompts {
		if strings.Contains(p, "natural conversation about CRM data") {
			answerPrompt = p
		}
	}
	require.NotEmpty(t, answerPrompt)
	// only the most recent six turns appear
	assert.NotContains(t, answerPrompt, strings.Repeat("m", 10)+"a")
	assert.NotContains(t, answerPrompt, strings.Repeat("m", 10)+"b")
	assert.Contains(t, answerPrompt, strings.Repeat("m", 10)+"h")
}

func TestDirectTableResult(t *testing.T) {
	exec := &recordingExec{result: statusRows()}
	gen := &recordingGen{query: "```sql\nSELECT status, COUNT(*) AS count FROM contacts GROUP BY status\n```"}
	o, _ := newTestOrchestrator(t, &scriptedLLM{}, gen, exec)

	res, err := o.Direct(context.Background(), "contacts per status", "zigment", "table")
	require.NoError(t, err)

	assert.Contains(t, res.Query, "LIMIT 50")
	assert.NotContains(t, res.Query, "```")
	assert.Len(t, res.Result.Rows, 3)
	assert.Nil(t, res.Chart)
}

func TestDirectBarChart(t *testing.T) {
	exec := &recordingExec{result: statusRows()}
	gen := &recordingGen{query: "SELECT status, COUNT(*) AS count FROM contacts GROUP BY status"}
	o, _ := newTestOrchestrator(t, &scriptedLLM{}, gen, exec)

	res, err := o.Direct(context.Background(), "contacts per status", "zigment", "bar")
	require.NoError(t, err)

	require.NotNil(t, res.Chart)
	assert.Equal(t, "bar", res.Chart.ChartType)
	assert.True(t, strings.HasPrefix(res.Chart.ID, "chart_"))
	assert.Len(t, res.Chart.Data, 3)
}

func TestDirectNoData(t *testing.T) {
	exec := &recordingExec{result: types.QueryResult{Columns: []string{"status"}}}
	gen := &recordingGen{query: "SELECT status FROM contacts"}
	o, _ := newTestOrchestrator(t, &scriptedLLM{}, gen, exec)

	_, err := o.Direct(context.Background(), "contacts per status", "zigment", "table")
	var ae *types.AnswerError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "no_data", ae.Kind)
	assert.NotEmpty(t, ae.Suggestion)
}

func TestDirectOffTopicRejected(t *testing.T) {
	o, _ := newTestOrchestrator(t, &scriptedLLM{}, &recordingGen{}, &recordingExec{})

	_, err := o.Direct(context.Background(), "what is the weather today", "zigment", "table")
	var ae *types.AnswerError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "irrelevant_question", ae.Kind)
}

func TestDirectExecutionError(t *testing.T) {
	exec := &recordingExec{err: errors.New("unknown column")}
	gen := &recordingGen{query: "SELECT nope FROM contacts"}
	o, _ := newTestOrchestrator(t, &scriptedLLM{}, gen, exec)

	_, err := o.Direct(context.Background(), "contacts per status", "zigment", "table")
	var ae *types.AnswerError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "execution_failed", ae.Kind)
	assert.Contains(t, ae.Message, "unknown column")
}
