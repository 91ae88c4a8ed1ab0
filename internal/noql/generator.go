package noql

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"insight/internal/prompt"
	"insight/internal/query"
	"insight/internal/schema"
	"insight/internal/types"
)

// Generator turns a natural-language question into a NoQL statement via
// the completion collaborator.
type Generator struct {
	llm     types.CompletionClient
	catalog schema.Catalog
	hints   *Hints
	logger  *zap.Logger
}

// NewGenerator creates a question -> NoQL generator.
func NewGenerator(llm types.CompletionClient, catalog schema.Catalog, hints *Hints, logger *zap.Logger) *Generator {
	return &Generator{llm: llm, catalog: catalog, hints: hints, logger: logger}
}

// Generate produces one executable NoQL statement for the question.
// The output is fence-stripped but not limit-capped; callers apply
// their own cap through query.Normalize.
func (g *Generator) Generate(ctx context.Context, question, dataset string) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", fmt.Errorf("question is empty")
	}

	guidance := ""
	if g.hints != nil {
		guidance = schema.LargeTableGuidance(g.hints.TableCounts(ctx), 100000)
	}

	p := prompt.QueryGeneration(question, g.catalog.JSON(), g.catalog.SoftDeleteRules(), guidance)
	raw, err := g.llm.Complete(ctx, p)
	if err != nil {
		return "", fmt.Errorf("query generation failed: %w", err)
	}

	q := query.StripFences(raw)
	if q == "" {
		return "", fmt.Errorf("query generation returned empty text")
	}
	g.logger.Debug("generated query",
		zap.String("dataset", dataset),
		zap.String("query", q))
	return q, nil
}
