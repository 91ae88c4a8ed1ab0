package answer

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"insight/internal/chart"
	"insight/internal/query"
	"insight/internal/types"
)

const directRowLimit = 50

// DirectResult is the outcome of a one-shot query, bypassing
// conversations and exploration.
type DirectResult struct {
	Query  string             `json:"query"`
	Result types.QueryResult  `json:"result"`
	Chart  *types.ChartRecord `json:"chart,omitempty"`
}

// Direct answers a single question as a raw query plus an optional
// formatted chart. format is one of "table", "bar", "line", "pie",
// "scatter"; empty means table.
func (o *Orchestrator) Direct(ctx context.Context, question, dataset, format string) (DirectResult, error) {
	if rel := CheckRelevance(question); rel != nil {
		return DirectResult{}, rel
	}
	if format == "" {
		format = "table"
	}

	generated, err := o.generator.Generate(ctx, question, dataset)
	if err != nil {
		o.logger.Error("query generation failed", zap.Error(err))
		return DirectResult{}, &types.AnswerError{
			Kind:       "generation_failed",
			Message:    "Could not generate a query for this question",
			Suggestion: "Try rephrasing the question with specific field or table names",
		}
	}

	q := query.Normalize(generated, directRowLimit)
	result, err := o.exec.Execute(ctx, q)
	if err != nil {
		o.logger.Error("query execution failed", zap.String("query", q), zap.Error(err))
		return DirectResult{}, &types.AnswerError{
			Kind:       "execution_failed",
			Message:    "Query execution failed: " + err.Error(),
			Suggestion: "Check that the question references existing fields and tables",
		}
	}
	if result.Empty() {
		return DirectResult{}, &types.AnswerError{
			Kind:       "no_data",
			Message:    "No data found for this question",
			Suggestion: "Try broadening the question or removing filters",
		}
	}

	out := DirectResult{Query: q, Result: result}
	if format != "table" {
		points := chart.Format(result.Rows, format, question, result.Columns)
		if len(points) > 1 {
			xLabel, yLabel := chart.AxisLabels(format, result.Columns, question)
			title := question
			if len(title) > 60 {
				title = title[:60] + "..."
			}
			out.Chart = &types.ChartRecord{
				ID:        "chart_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8],
				ChartType: format,
				Title:     title,
				XAxis:     xLabel,
				YAxis:     yLabel,
				Data:      points,
			}
		}
	}
	return out, nil
}
