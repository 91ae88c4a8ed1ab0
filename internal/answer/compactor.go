package answer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"insight/internal/prompt"
	"insight/internal/store"
)

const (
	compactionThreshold = 10
	compactionBatch     = 10
	compactionBodyCap   = 600

	// fallbackSummary stands in when the summarizer itself fails; the
	// sources are still evicted so the window invariant holds.
	fallbackSummary = "Previous context summarized: (details omitted)."
)

// Compactor folds the oldest messages of an overlong conversation into
// a summary so the prompting window stays bounded.
type Compactor struct {
	llm    completer
	store  *store.Store
	logger *zap.Logger
}

type completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// NewCompactor creates a conversation compactor.
func NewCompactor(llm completer, st *store.Store, logger *zap.Logger) *Compactor {
	return &Compactor{llm: llm, store: st, logger: logger}
}

// CompactIfNeeded summarizes and deletes the oldest batch when the
// conversation holds more than the threshold. Between passes a
// conversation never carries more than threshold raw messages into
// prompt assembly.
func (c *Compactor) CompactIfNeeded(ctx context.Context, conversationID string) error {
	total, err := c.store.GetMessageCount(conversationID)
	if err != nil {
		return fmt.Errorf("failed to count messages for compaction: %w", err)
	}
	if total <= compactionThreshold {
		return nil
	}

	oldest, err := c.store.GetOldestMessages(conversationID, compactionBatch)
	if err != nil {
		return fmt.Errorf("failed to load oldest messages: %w", err)
	}
	if len(oldest) == 0 {
		return nil
	}

	var lines []string
	for _, m := range oldest {
		body := strings.TrimSpace(m.Markdown)
		if body == "" {
			continue
		}
		if len(body) > compactionBodyCap {
			body = body[:compactionBodyCap]
		}
		lines = append(lines, strings.ToUpper(m.Role)+": "+body)
	}

	summary, err := c.llm.Complete(ctx, prompt.Summarization(strings.Join(lines, "\n")))
	if err != nil || strings.TrimSpace(summary) == "" {
		c.logger.Warn("summarization failed, using placeholder", zap.Error(err))
		summary = fallbackSummary
	}
	summary = strings.TrimSpace(summary)

	if _, err := c.store.SaveSummary(conversationID, summary); err != nil {
		return fmt.Errorf("failed to save summary: %w", err)
	}

	ids := make([]string, 0, len(oldest))
	for _, m := range oldest {
		ids = append(ids, m.ID)
	}
	if err := c.store.DeleteMessagesByIDs(conversationID, ids); err != nil {
		return fmt.Errorf("failed to evict compacted messages: %w", err)
	}

	c.logger.Debug("compacted conversation",
		zap.String("conversation_id", conversationID),
		zap.Int("evicted", len(ids)))
	return nil
}
