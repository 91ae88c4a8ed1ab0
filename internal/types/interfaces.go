package types

import "context"

// CompletionClient is the minimal interface to the completion collaborator.
// It is used for classification, probe proposal, answer generation, and
// summarization; no model-specific behavior is inspected.
type CompletionClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// QueryExecutor is the execution collaborator: query text in, normalized
// rows/columns out. Result sets are assumed already small; callers enforce
// that by normalizing a LIMIT into every query they send.
type QueryExecutor interface {
	Execute(ctx context.Context, query string) (QueryResult, error)
}

// QueryGenerator turns a natural-language focus into query text for the
// target dataset.
type QueryGenerator interface {
	Generate(ctx context.Context, question, dataset string) (string, error)
}
