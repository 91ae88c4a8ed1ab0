package chart

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"insight/internal/query"
	"insight/internal/types"
)

// Directive is the parsed body of one ```chart block.
type Directive struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Question string `json:"question"`
	SQLFocus string `json:"sql_focus"`
	DB       string `json:"db"`
}

// Focus returns the query focus: sql_focus wins over question, and the
// title is the last resort.
func (d Directive) Focus() string {
	if d.SQLFocus != "" {
		return d.SQLFocus
	}
	if d.Question != "" {
		return d.Question
	}
	return d.Title
}

var genericFocuses = map[string]struct{}{
	"chart":         {},
	"charts":        {},
	"visualization": {},
}

// Pipeline resolves chart directives embedded in answer markdown.
type Pipeline struct {
	gen    types.QueryGenerator
	exec   types.QueryExecutor
	critic *Critic
	logger *zap.Logger
}

// NewPipeline creates a chart pipeline. critic may be nil to skip the
// necessity review.
func NewPipeline(gen types.QueryGenerator, exec types.QueryExecutor, critic *Critic, logger *zap.Logger) *Pipeline {
	return &Pipeline{gen: gen, exec: exec, critic: critic, logger: logger}
}

// ExtractAndResolve scans markdown for chart directives, resolves each
// one, and returns the rewritten markdown plus the resolved charts in
// directive order. Resolved directives become {{chart:<id>}}
// placeholders; failed or void ones are removed. Directives are
// isolated: one failure never affects the others.
func (p *Pipeline) ExtractAndResolve(ctx context.Context, markdown, dataset, question string) (string, []types.ChartRecord) {
	segments := Scan(markdown)

	var out strings.Builder
	var charts []types.ChartRecord
	for _, seg := range segments {
		if !seg.IsChart {
			out.WriteString(seg.Text)
			continue
		}

		record, replacement, ok := p.resolve(ctx, seg.Directive, dataset, question)
		if !ok {
			out.WriteString(replacement)
			continue
		}
		charts = append(charts, record)
		out.WriteString("{{chart:" + record.ID + "}}")
	}
	return out.String(), charts
}

// resolve turns one directive body into a chart record. When ok is
// false the replacement text (possibly empty) stands in for the
// directive.
func (p *Pipeline) resolve(ctx context.Context, body, dataset, question string) (types.ChartRecord, string, bool) {
	var directive Directive
	if err := json.Unmarshal([]byte(unwrapDoubleBraces(body)), &directive); err != nil {
		p.logger.Warn("unparseable chart directive", zap.Error(err))
		return types.ChartRecord{}, "", false
	}

	chartType := directive.Type
	if chartType == "" {
		chartType = "bar"
	}
	title := directive.Title
	if title == "" {
		title = "Chart"
	}
	if directive.DB == "" {
		directive.DB = dataset
	}

	focus := directive.Focus()
	if _, generic := genericFocuses[strings.ToLower(focus)]; generic && question != "" {
		focus = question
		if len(question) > 50 {
			title = "Analysis: " + question[:50] + "..."
		} else {
			title = question
		}
	}

	q, err := p.gen.Generate(ctx, focus, directive.DB)
	if err != nil {
		p.logger.Warn("chart query generation failed", zap.String("focus", focus), zap.Error(err))
		return types.ChartRecord{}, "", false
	}
	q = query.Normalize(q, PointCap(chartType))

	result, err := p.exec.Execute(ctx, q)
	if err != nil {
		p.logger.Warn("chart query failed", zap.String("query", q), zap.Error(err))
		return types.ChartRecord{}, "", false
	}

	// a chart with one point compares nothing; drop it
	if len(result.Rows) <= 1 {
		p.logger.Debug("skipping void chart",
			zap.String("title", title),
			zap.Int("rows", len(result.Rows)))
		return types.ChartRecord{}, "", false
	}

	xAxis, yAxis := AxisLabels(chartType, result.Columns, focus)
	record := types.ChartRecord{
		ID:        "chart_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8],
		Title:     title,
		XAxis:     xAxis,
		YAxis:     yAxis,
		ChartType: chartType,
		Data:      Format(result.Rows, chartType, focus, result.Columns),
	}
	if record.Void() {
		return types.ChartRecord{}, "", false
	}

	if p.critic != nil {
		approved, replacement := p.critic.Review(ctx, question, record)
		if !approved {
			return types.ChartRecord{}, replacement, false
		}
	}
	return record, "", true
}
