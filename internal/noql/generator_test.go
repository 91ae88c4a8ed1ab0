package noql

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"insight/internal/schema"
)

func testCatalog() schema.Catalog {
	return schema.Catalog{Collections: []schema.Collection{
		{
			Name:        "contacts",
			Description: "Customer contacts",
			Fields: []schema.Field{
				{Name: "_id", Type: "STRING", Unique: true},
				{Name: "status", Type: "TEXT"},
			},
		},
		{
			Name:        "events",
			Description: "Events",
			SoftDelete:  true,
			Fields: []schema.Field{
				{Name: "_id", Type: "STRING", Unique: true},
				{Name: "type", Type: "TEXT"},
			},
		},
	}}
}

type stubCompletion struct {
	response string
	err      error
	prompts  []string
}

func (s *stubCompletion) Complete(_ context.Context, p string) (string, error) {
	s.prompts = append(s.prompts, p)
	return s.response, s.err
}

func (s *stubCompletion) CompleteWithSystem(ctx context.Context, _ string, user string) (string, error) {
	return s.Complete(ctx, user)
}

func TestGenerateStripsFences(t *testing.T) {
	llm := &stubCompletion{response: "```sql\nSELECT status, COUNT(*) AS count FROM contacts GROUP BY status\n```"}
	gen := NewGenerator(llm, testCatalog(), nil, zap.NewNop())

	q, err := gen.Generate(context.Background(), "how many contacts per status?", "zigment")
	require.NoError(t, err)
	assert.Equal(t, "SELECT status, COUNT(*) AS count FROM contacts GROUP BY status", q)

	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], "how many contacts per status?")
	assert.Contains(t, llm.prompts[0], `"contacts"`)
}

func TestGenerateEmptyQuestion(t *testing.T) {
	gen := NewGenerator(&stubCompletion{}, testCatalog(), nil, zap.NewNop())
	_, err := gen.Generate(context.Background(), "  ", "zigment")
	assert.Error(t, err)
}

func TestGenerateCompletionError(t *testing.T) {
	gen := NewGenerator(&stubCompletion{err: assert.AnError}, testCatalog(), nil, zap.NewNop())
	_, err := gen.Generate(context.Background(), "contacts per status", "zigment")
	assert.Error(t, err)
}

func TestGenerateEmptyResponse(t *testing.T) {
	gen := NewGenerator(&stubCompletion{response: "``````"}, testCatalog(), nil, zap.NewNop())
	_, err := gen.Generate(context.Background(), "contacts per status", "zigment")
	assert.Error(t, err)
}
