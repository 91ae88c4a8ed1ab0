// Package answer orchestrates the full question -> markdown pipeline:
// classification, compaction, exploration, generation, chart
// resolution, and persistence.
package answer

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"insight/internal/chart"
	"insight/internal/explore"
	"insight/internal/noql"
	"insight/internal/prompt"
	"insight/internal/schema"
	"insight/internal/store"
	"insight/internal/types"
)

const (
	historyWindow     = 6
	historyBodyCap    = 1200
	historySummaryCap = 3
	titleCap          = 80
)

// Response is what a resolved question yields.
type Response struct {
	Markdown       string              `json:"markdown"`
	Charts         []types.ChartRecord `json:"charts"`
	ConversationID string              `json:"conversation_id"`
	Mode           string              `json:"mode"`
}

// Orchestrator wires the pipeline stages together.
type Orchestrator struct {
	llm       types.CompletionClient
	generator types.QueryGenerator
	exec      types.QueryExecutor
	store     *store.Store
	engine    *explore.Engine
	pipeline  *chart.Pipeline
	compactor *Compactor
	hints     *noql.Hints
	catalog   schema.Catalog
	logger    *zap.Logger
}

// NewOrchestrator assembles the answer pipeline.
func NewOrchestrator(
	llm types.CompletionClient,
	generator types.QueryGenerator,
	exec types.QueryExecutor,
	st *store.Store,
	engine *explore.Engine,
	pipeline *chart.Pipeline,
	hints *noql.Hints,
	catalog schema.Catalog,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		llm:       llm,
		generator: generator,
		exec:      exec,
		store:     st,
		engine:    engine,
		pipeline:  pipeline,
		compactor: NewCompactor(llm, st, logger),
		hints:     hints,
		catalog:   catalog,
		logger:    logger,
	}
}

// Answer resolves a question inside a conversation. An empty
// conversationID starts a fresh conversation with no history or fact
// carryover.
func (o *Orchestrator) Answer(ctx context.Context, question, dataset, conversationID string) (Response, error) {
	if strings.TrimSpace(question) == "" {
		return Response{}, &types.AnswerError{
			Kind:       "invalid_request",
			Message:    "Question is required",
			Suggestion: "Ask a question about your data",
		}
	}

	if o.isCasual(ctx, question) {
		return o.answerCasual(ctx, question, dataset, conversationID)
	}
	return o.answerData(ctx, question, dataset, conversationID)
}

// isCasual classifies the message. Anything under three characters is
// casual without a completion call; classifier failure means data.
func (o *Orchestrator) isCasual(ctx context.Context, question string) bool {
	if len(strings.TrimSpace(question)) < 3 {
		return true
	}
	verdict, err := o.llm.CompleteWithSystem(ctx, prompt.ClassificationSystem, question)
	if err != nil {
		o.logger.Warn("classification failed, treating as data query", zap.Error(err))
		return false
	}
	return strings.Contains(strings.ToUpper(verdict), "CASUAL")
}

func (o *Orchestrator) answerCasual(ctx context.Context, question, dataset, conversationID string) (Response, error) {
	reply := CasualReply(question, dataset)

	conversationID, err := o.ensureConversation(conversationID, question, dataset)
	if err != nil {
		o.logger.Warn("failed to persist casual exchange", zap.Error(err))
		return Response{Markdown: reply, Charts: []types.ChartRecord{}, Mode: "casual"}, nil
	}
	if _, err := o.store.AddMessage(conversationID, "user", question, nil, nil, question, dataset, ""); err != nil {
		o.logger.Warn("failed to store user turn", zap.Error(err))
	}
	if _, err := o.store.AddMessage(conversationID, "assistant", reply, nil, map[string]any{"mode": "casual"}, "", dataset, ""); err != nil {
		o.logger.Warn("failed to store assistant turn", zap.Error(err))
	}

	return Response{
		Markdown:       reply,
		Charts:         []types.ChartRecord{},
		ConversationID: conversationID,
		Mode:           "casual",
	}, nil
}

func (o *Orchestrator) answerData(ctx context.Context, question, dataset, conversationID string) (Response, error) {
	history := ""
	if conversationID != "" {
		if err := o.compactor.CompactIfNeeded(ctx, conversationID); err != nil {
			o.logger.Warn("compaction failed, continuing with full history", zap.Error(err))
		}
		history = o.buildHistory(conversationID)
	}

	exploration := o.engine.Explore(ctx, question, dataset, conversationID)
	factsText := strings.Join(exploration.Facts, "\n")
	allowedText := renderAllowed(exploration.AllowedEntities)

	markdown, err := o.llm.Complete(ctx, prompt.AnswerMarkdown(
		question,
		o.catalog.JSON(),
		o.sampleJSON(ctx),
		history,
		factsText,
		allowedText,
	))
	if err != nil {
		o.logger.Error("answer generation failed", zap.Error(err))
		markdown = fallbackMarkdown(question, err)
	}
	markdown = strings.TrimSpace(markdown)

	resolved, charts := o.pipeline.ExtractAndResolve(ctx, markdown, dataset, question)
	if charts == nil {
		charts = []types.ChartRecord{}
	}

	conversationID, persistErr := o.ensureConversation(conversationID, question, dataset)
	if persistErr != nil {
		o.logger.Warn("failed to create conversation", zap.Error(persistErr))
	} else {
		if _, err := o.store.AddMessage(conversationID, "user", question, nil, nil, question, dataset, ""); err != nil {
			o.logger.Warn("failed to store user turn", zap.Error(err))
		}
		if _, err := o.store.AddMessage(conversationID, "assistant", resolved, charts, map[string]any{"mode": "chat_style"}, "", dataset, factsText); err != nil {
			o.logger.Warn("failed to store assistant turn", zap.Error(err))
		}
	}

	return Response{
		Markdown:       resolved,
		Charts:         charts,
		ConversationID: conversationID,
		Mode:           "chat_style",
	}, nil
}

func (o *Orchestrator) ensureConversation(conversationID, question, dataset string) (string, error) {
	if conversationID != "" {
		return conversationID, nil
	}
	title := question
	if len(title) > titleCap {
		title = title[:titleCap]
	}
	return o.store.CreateConversation(title, dataset)
}

// buildHistory renders the prompting window: up to three summaries
// followed by the last six messages, long bodies truncated.
func (o *Orchestrator) buildHistory(conversationID string) string {
	var lines []string

	if summaries, err := o.store.GetSummaries(conversationID); err == nil {
		if len(summaries) > historySummaryCap {
			summaries = summaries[len(summaries)-historySummaryCap:]
		}
		for _, s := range summaries {
			lines = append(lines, "SUMMARY: "+strings.TrimSpace(s.Content))
		}
	}

	window, err := o.store.GetRecentWindow(conversationID, historyWindow)
	if err != nil {
		o.logger.Warn("failed to load history window", zap.Error(err))
		return strings.Join(lines, "\n")
	}
	for _, m := range window {
		body := strings.TrimSpace(m.Markdown)
		if body == "" {
			continue
		}
		if len(body) > historyBodyCap {
			body = body[:historyBodyCap] + "..."
		}
		lines = append(lines, strings.ToUpper(m.Role)+": "+body)
	}
	return strings.Join(lines, "\n")
}

func (o *Orchestrator) sampleJSON(ctx context.Context) string {
	if o.hints == nil {
		return "{}"
	}
	b, err := json.Marshal(o.hints.Samples(ctx))
	if err != nil {
		return "{}"
	}
	if len(b) > 4000 {
		b = b[:4000]
	}
	return string(b)
}

func renderAllowed(entities map[string]struct{}) string {
	if len(entities) == 0 {
		return "(none)"
	}
	names := make([]string, 0, len(entities))
	for e := range entities {
		names = append(names, e)
	}
	sort.Strings(names)
	return strings.Join(names, "\n")
}

func fallbackMarkdown(question string, err error) string {
	return fmt.Sprintf(`I ran into a problem while answering your question.

**Question:** %s

**Error:** %v

Please try again, or rephrase the question.`, question, err)
}
