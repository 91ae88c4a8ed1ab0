// Package explore gathers grounding facts for a question before the
// answer is written. The deep path asks the completion collaborator for
// targeted probe queries; when that is not possible it degrades to
// passive sampling of the catalog's collections.
package explore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"insight/internal/prompt"
	"insight/internal/query"
	"insight/internal/schema"
	"insight/internal/types"
)

const (
	entityMaxLen     = 80
	deepQuestionMin  = 5
	largeTableFloor  = 100000
	defaultMaxProbes = 3
	defaultProbeRows = 20
)

// FactsProvider supplies prior exploration facts scoped to one
// conversation.
type FactsProvider interface {
	GetFactsForConversation(dataset, conversationID string, limit int) string
}

// HintProvider supplies cached table counts and samples.
type HintProvider interface {
	TableCounts(ctx context.Context) map[string]int
	Samples(ctx context.Context) map[string]types.QueryResult
}

// Engine runs exploration rounds. It never returns an error: every
// failure degrades toward an empty result.
type Engine struct {
	llm       types.CompletionClient
	exec      types.QueryExecutor
	hints     HintProvider
	facts     FactsProvider
	catalog   schema.Catalog
	maxProbes int
	probeRows int
	logger    *zap.Logger
}

// NewEngine creates an exploration engine. maxProbes <= 0 uses the
// default of 3; probeRows <= 0 uses the default cap of 20 rows per
// probe.
func NewEngine(llm types.CompletionClient, exec types.QueryExecutor, hints HintProvider, facts FactsProvider, catalog schema.Catalog, maxProbes, probeRows int, logger *zap.Logger) *Engine {
	if maxProbes <= 0 {
		maxProbes = defaultMaxProbes
	}
	if probeRows <= 0 {
		probeRows = defaultProbeRows
	}
	return &Engine{
		llm:       llm,
		exec:      exec,
		hints:     hints,
		facts:     facts,
		catalog:   catalog,
		maxProbes: maxProbes,
		probeRows: probeRows,
		logger:    logger,
	}
}

type probePlan struct {
	Explorations []probe `json:"explorations"`
}

type probe struct {
	Purpose string `json:"purpose"`
	SQL     string `json:"sql"`
}

// Explore gathers facts and allowed entities for a question. Questions
// longer than five characters take the deep path; anything shorter, and
// any deep-path failure before probes run, uses passive sampling.
func (e *Engine) Explore(ctx context.Context, question, dataset, conversationID string) types.ExplorationResult {
	if len(strings.TrimSpace(question)) > deepQuestionMin {
		result, reason := e.deepExplore(ctx, question, dataset, conversationID)
		if reason == "" {
			return result
		}
		e.logger.Warn("deep exploration fell back to passive sampling",
			zap.String("reason", reason))
	}
	return e.passiveSample(ctx)
}

// deepExplore returns the result and an empty reason on success, or a
// non-empty fallback reason when passive sampling should take over.
func (e *Engine) deepExplore(ctx context.Context, question, dataset, conversationID string) (types.ExplorationResult, string) {
	counts := e.hints.TableCounts(ctx)
	samples := e.hints.Samples(ctx)

	priorFacts := ""
	if conversationID != "" && e.facts != nil {
		priorFacts = e.facts.GetFactsForConversation(dataset, conversationID, 5)
	}

	p := prompt.ProbeProposal(
		question,
		e.catalog.JSON(),
		renderCounts(counts),
		renderSamples(samples),
		priorFacts,
		schema.LargeTableGuidance(counts, largeTableFloor),
	)

	raw, err := e.llm.Complete(ctx, p)
	if err != nil {
		return types.ExplorationResult{}, fmt.Sprintf("probe proposal failed: %v", err)
	}

	var plan probePlan
	if err := json.Unmarshal([]byte(stripJSONFences(raw)), &plan); err != nil {
		return types.ExplorationResult{}, fmt.Sprintf("probe JSON unparseable: %v", err)
	}

	result := types.ExplorationResult{AllowedEntities: map[string]struct{}{}}
	probes := plan.Explorations
	if len(probes) > e.maxProbes {
		probes = probes[:e.maxProbes]
	}
	for i, pr := range probes {
		purpose := strings.TrimSpace(pr.Purpose)
		if purpose == "" {
			purpose = fmt.Sprintf("Query %d", i+1)
		}
		if strings.TrimSpace(pr.SQL) == "" {
			continue
		}
		e.runProbe(ctx, purpose, pr.SQL, &result)
	}
	return result, ""
}

func (e *Engine) runProbe(ctx context.Context, purpose, sql string, result *types.ExplorationResult) {
	q := query.Normalize(sql, e.probeRows)
	res, err := e.exec.Execute(ctx, q)
	if err != nil {
		result.Facts = append(result.Facts, fmt.Sprintf("%s: query error - %v", purpose, err))
		return
	}
	if len(res.Rows) == 0 {
		result.Facts = append(result.Facts, fmt.Sprintf("%s: no matching records", purpose))
		return
	}

	result.Facts = append(result.Facts, fmt.Sprintf("%s: %d records found", purpose, len(res.Rows)))

	if len(res.Columns) >= 2 && len(res.Rows[0]) >= 2 {
		result.Facts = append(result.Facts, fmt.Sprintf(
			"%s: top result - %s: %v, %s: %v",
			purpose, res.Columns[0], res.Rows[0][0], res.Columns[1], res.Rows[0][1]))
	}
	lower := strings.ToLower(purpose)
	if strings.Contains(lower, "ranking") || strings.Contains(lower, "top") {
		method := q
		if len(method) > 200 {
			method = method[:200] + "..."
		}
		result.Facts = append(result.Facts, "Ranking methodology: "+method)
	}

	rows := res.Rows
	if len(rows) > 5 {
		rows = rows[:5]
	}
	for _, row := range rows {
		for _, cell := range row {
			addEntity(result, cell)
		}
	}
}

// passiveSample previews each collection directly, without an LLM call.
func (e *Engine) passiveSample(ctx context.Context) types.ExplorationResult {
	result := types.ExplorationResult{AllowedEntities: map[string]struct{}{}}
	for _, name := range e.catalog.Names() {
		res, err := e.exec.Execute(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT 5", name))
		if err != nil {
			result.Facts = append(result.Facts, fmt.Sprintf("table %s: preview error", name))
			continue
		}
		result.Facts = append(result.Facts, fmt.Sprintf(
			"table %s: %d columns, %d sample rows", name, len(res.Columns), len(res.Rows)))

		rows := res.Rows
		if len(rows) > 3 {
			rows = rows[:3]
		}
		for _, row := range rows {
			cells := row
			if len(cells) > 2 {
				cells = cells[:2]
			}
			for _, cell := range cells {
				addEntity(&result, cell)
			}
		}
	}
	return result
}

// addEntity records a string cell as an allowed entity: long enough to
// be a name, not purely numeric, truncated for prompt safety.
func addEntity(result *types.ExplorationResult, cell types.Scalar) {
	s, ok := cell.(string)
	if !ok {
		return
	}
	s = strings.TrimSpace(s)
	if len(s) <= 2 {
		return
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return
	}
	if len(s) > entityMaxLen {
		s = s[:entityMaxLen]
	}
	result.AddEntity(s)
}

func renderCounts(counts map[string]int) string {
	b, err := json.Marshal(counts)
	if err != nil {
		return "{}"
	}
	return clip(string(b), 2000)
}

func renderSamples(samples map[string]types.QueryResult) string {
	b, err := json.Marshal(samples)
	if err != nil {
		return "{}"
	}
	return clip(string(b), 2000)
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// stripJSONFences removes a markdown fence wrapper from an LLM JSON
// response, tolerating a language tag on the opening line.
func stripJSONFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	start := 1
	end := len(lines)
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) == "```" {
			end = i
			break
		}
	}
	if start > end {
		return s
	}
	return strings.TrimSpace(strings.Join(lines[start:end], "\n"))
}
