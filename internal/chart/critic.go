package chart

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"insight/internal/prompt"
	"insight/internal/types"
)

var chartPurposes = map[string]string{
	"bar":     "Show ranking/comparison between categories",
	"pie":     "Show proportional distribution of parts to whole",
	"line":    "Show trend or change over time",
	"scatter": "Show correlation between two numeric variables",
	"table":   "Show detailed data with multiple attributes",
}

// Critic asks the completion collaborator whether a resolved chart
// actually earns its place or should be replaced by a sentence.
type Critic struct {
	llm    types.CompletionClient
	logger *zap.Logger
}

// NewCritic creates a chart-necessity critic.
func NewCritic(llm types.CompletionClient, logger *zap.Logger) *Critic {
	return &Critic{llm: llm, logger: logger}
}

// Review returns whether the chart is approved and, when rejected, the
// replacement text to put in its place. A critic call failure approves
// the chart; an unparseable verdict rejects it with generic text.
func (c *Critic) Review(ctx context.Context, question string, record types.ChartRecord) (bool, string) {
	purpose, ok := chartPurposes[record.ChartType]
	if !ok {
		purpose = "Display data visualization"
	}

	p := prompt.ChartCritic(question, record.ChartType, record.Title, purpose, dataPreview(record))
	raw, err := c.llm.Complete(ctx, p)
	if err != nil {
		c.logger.Warn("chart critic call failed, keeping chart", zap.Error(err))
		return true, ""
	}

	verdict := strings.TrimSpace(raw)
	if strings.HasPrefix(verdict, "APPROVE:") {
		return true, ""
	}
	if strings.Contains(verdict, "REJECT:") && strings.Contains(verdict, "REPLACEMENT:") {
		parts := strings.SplitN(verdict, "REPLACEMENT:", 2)
		replacement := strings.TrimSpace(parts[1])
		if replacement != "" {
			return false, replacement
		}
	}

	c.logger.Debug("unclear critic verdict, dropping chart",
		zap.String("verdict", clipString(verdict, 120)))
	return false, fmt.Sprintf("Based on the data analysis, %s can be summarized effectively in text form.", record.Title)
}

// dataPreview renders the first points of a chart for the critic
// prompt, flagging the degenerate single-point case explicitly.
func dataPreview(record types.ChartRecord) string {
	if len(record.Data) == 0 {
		return "(no data)"
	}
	points := record.Data
	if len(points) > 5 {
		points = points[:5]
	}
	parts := make([]string, 0, len(points))
	for _, p := range points {
		if p.HasXY {
			parts = append(parts, fmt.Sprintf("%s: (%g, %g)", p.Label, p.X, p.Y))
		} else {
			parts = append(parts, fmt.Sprintf("%s: %g", p.Label, p.Value))
		}
	}
	preview := fmt.Sprintf("Sample data (%d total items): %s", len(record.Data), strings.Join(parts, ", "))
	if len(record.Data) == 1 {
		preview += " SINGLE DATA POINT - NO COMPARISON POSSIBLE"
	}
	return preview
}

func clipString(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
