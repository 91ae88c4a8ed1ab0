// Package store persists conversations, messages, and compaction
// summaries in a local SQLite database.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"insight/internal/types"
)

// DefaultTitle is the placeholder a conversation is created with. The
// first user message backfills the real title only while this
// placeholder is still in place.
const DefaultTitle = "New conversation"

// Conversation is one chat thread.
type Conversation struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Dataset   string `json:"database_name"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// Message is one turn in a conversation. Facts are internal grounding
// context for later turns and are never returned to API callers.
type Message struct {
	ID             string              `json:"id"`
	ConversationID string              `json:"conversation_id,omitempty"`
	Role           string              `json:"role"`
	Markdown       string              `json:"content_markdown"`
	Charts         []types.ChartRecord `json:"charts"`
	Meta           map[string]any      `json:"sql_meta"`
	Dataset        string              `json:"database_name"`
	Facts          string              `json:"-"`
	CreatedAt      string              `json:"created_at"`
}

// Summary is a compacted digest of evicted messages.
type Summary struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id,omitempty"`
	Content        string `json:"content"`
	CreatedAt      string `json:"created_at"`
}

// Store wraps the SQLite conversation database. Safe for concurrent use.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	logger *zap.Logger
}

// Open opens (creating if needed) the conversation database at path and
// applies schema migrations.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	// modernc sqlite is not safe for concurrent writers on one connection
	db.SetMaxOpenConns(1)

	s := &Store{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS conversation (
			id TEXT PRIMARY KEY,
			title TEXT,
			database_name TEXT,
			created_at TEXT,
			updated_at TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS message (
			id TEXT PRIMARY KEY,
			conversation_id TEXT,
			role TEXT,
			content_markdown TEXT,
			charts_json TEXT,
			sql_meta_json TEXT,
			database_name TEXT,
			facts TEXT,
			created_at TEXT,
			FOREIGN KEY(conversation_id) REFERENCES conversation(id)
		)`,
		`CREATE TABLE IF NOT EXISTS summary (
			id TEXT PRIMARY KEY,
			conversation_id TEXT,
			content TEXT,
			created_at TEXT,
			FOREIGN KEY(conversation_id) REFERENCES conversation(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_message_conversation ON message(conversation_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_summary_conversation ON summary(conversation_id, created_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("store migration failed: %w", err)
		}
	}
	return nil
}

func genID(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

func nowString() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000000")
}

// CreateConversation creates a conversation and returns its id. An
// empty title becomes the default placeholder.
func (s *Store) CreateConversation(title, dataset string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(title) == "" {
		title = DefaultTitle
	}
	id := genID("conv")
	ts := nowString()
	_, err := s.db.Exec(
		"INSERT INTO conversation (id, title, database_name, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		id, title, dataset, ts, ts,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create conversation: %w", err)
	}
	return id, nil
}

// ListConversations returns conversations ordered by most recent
// activity.
func (s *Store) ListConversations(limit int) ([]Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(
		"SELECT id, title, database_name, created_at, updated_at FROM conversation ORDER BY updated_at DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var out []Conversation
	for rows.Next() {
		var c Conversation
		var dataset sql.NullString
		if err := rows.Scan(&c.ID, &c.Title, &dataset, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		c.Dataset = dataset.String
		out = append(out, c)
	}
	return out, rows.Err()
}

// AddMessage appends a message. For user messages, titleHint backfills
// the conversation title while it is still the placeholder. The owning
// conversation's updated_at and dataset are touched either way.
func (s *Store) AddMessage(conversationID, role, markdown string, charts []types.ChartRecord, meta map[string]any, titleHint, dataset, facts string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if charts == nil {
		charts = []types.ChartRecord{}
	}
	if meta == nil {
		meta = map[string]any{}
	}
	chartsJSON, err := json.Marshal(charts)
	if err != nil {
		return "", fmt.Errorf("failed to encode charts: %w", err)
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("failed to encode message meta: %w", err)
	}

	id := genID("msg")
	ts := nowString()
	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		"INSERT INTO message (id, conversation_id, role, content_markdown, charts_json, sql_meta_json, database_name, facts, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		id, conversationID, role, markdown, string(chartsJSON), string(metaJSON), dataset, facts, ts,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert message: %w", err)
	}

	if role == "user" && titleHint != "" {
		hint := titleHint
		if len(hint) > 80 {
			hint = hint[:80]
		}
		if _, err := tx.Exec(
			"UPDATE conversation SET title=? WHERE id=? AND (title IS NULL OR title=?)",
			hint, conversationID, DefaultTitle,
		); err != nil {
			return "", fmt.Errorf("failed to backfill title: %w", err)
		}
	}
	if _, err := tx.Exec(
		"UPDATE conversation SET updated_at=?, database_name=? WHERE id=?",
		ts, dataset, conversationID,
	); err != nil {
		return "", fmt.Errorf("failed to touch conversation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit message: %w", err)
	}
	return id, nil
}

// GetHistory returns all messages for a conversation in ascending
// order.
func (s *Store) GetHistory(conversationID string) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		"SELECT id, role, content_markdown, charts_json, sql_meta_json, database_name, facts, created_at FROM message WHERE conversation_id=? ORDER BY created_at ASC",
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		m.ConversationID = conversationID
		out = append(out, m)
	}
	return out, rows.Err()
}

// GetRecentWindow returns the last n messages in ascending order.
func (s *Store) GetRecentWindow(conversationID string, n int) ([]Message, error) {
	history, err := s.GetHistory(conversationID)
	if err != nil {
		return nil, err
	}
	if len(history) > n {
		history = history[len(history)-n:]
	}
	return history, nil
}

func scanMessage(rows *sql.Rows) (Message, error) {
	var m Message
	var chartsJSON, metaJSON, dataset, facts sql.NullString
	if err := rows.Scan(&m.ID, &m.Role, &m.Markdown, &chartsJSON, &metaJSON, &dataset, &facts, &m.CreatedAt); err != nil {
		return Message{}, fmt.Errorf("failed to scan message: %w", err)
	}
	m.Dataset = dataset.String
	m.Facts = facts.String
	m.Charts = []types.ChartRecord{}
	m.Meta = map[string]any{}
	if chartsJSON.String != "" {
		if err := json.Unmarshal([]byte(chartsJSON.String), &m.Charts); err != nil {
			m.Charts = []types.ChartRecord{}
		}
	}
	if metaJSON.String != "" {
		if err := json.Unmarshal([]byte(metaJSON.String), &m.Meta); err != nil {
			m.Meta = map[string]any{}
		}
	}
	return m, nil
}

// GetMessageCount returns the number of messages in a conversation.
func (s *Store) GetMessageCount(conversationID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM message WHERE conversation_id=?", conversationID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return n, nil
}

// GetOldestMessages returns the oldest limit messages in ascending
// order.
func (s *Store) GetOldestMessages(conversationID string, limit int) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		"SELECT id, role, content_markdown, charts_json, sql_meta_json, database_name, facts, created_at FROM message WHERE conversation_id=? ORDER BY created_at ASC LIMIT ?",
		conversationID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load oldest messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		m.ConversationID = conversationID
		out = append(out, m)
	}
	return out, rows.Err()
}

// DeleteMessagesByIDs deletes the given messages from a conversation.
func (s *Store) DeleteMessagesByIDs(conversationID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, 0, len(ids)+1)
	args = append(args, conversationID)
	for _, id := range ids {
		args = append(args, id)
	}
	_, err := s.db.Exec(
		fmt.Sprintf("DELETE FROM message WHERE conversation_id=? AND id IN (%s)", placeholders),
		args...,
	)
	if err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}
	return nil
}

// SaveSummary stores a compaction summary and returns its id.
func (s *Store) SaveSummary(conversationID, content string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := genID("sum")
	_, err := s.db.Exec(
		"INSERT INTO summary (id, conversation_id, content, created_at) VALUES (?, ?, ?, ?)",
		id, conversationID, content, nowString(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to save summary: %w", err)
	}
	return id, nil
}

// GetSummaries returns summaries for a conversation in ascending order.
func (s *Store) GetSummaries(conversationID string) ([]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		"SELECT id, content, created_at FROM summary WHERE conversation_id=? ORDER BY created_at ASC",
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load summaries: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sum Summary
		if err := rows.Scan(&sum.ID, &sum.Content, &sum.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan summary: %w", err)
		}
		sum.ConversationID = conversationID
		out = append(out, sum)
	}
	return out, rows.Err()
}

// DeleteConversation removes a conversation with its messages and
// summaries.
func (s *Store) DeleteConversation(conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		"DELETE FROM message WHERE conversation_id=?",
		"DELETE FROM summary WHERE conversation_id=?",
		"DELETE FROM conversation WHERE id=?",
	} {
		if _, err := tx.Exec(stmt, conversationID); err != nil {
			return fmt.Errorf("failed to delete conversation: %w", err)
		}
	}
	return tx.Commit()
}

// GetFactsForConversation returns prior assistant facts for this
// conversation and dataset, newest first, each prefixed with
// "Previous exploration:". Facts never cross conversations: an empty
// conversationID always yields "".
func (s *Store) GetFactsForConversation(dataset, conversationID string, limit int) string {
	if dataset == "" || conversationID == "" {
		return ""
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(
		"SELECT facts FROM message WHERE conversation_id=? AND database_name=? AND role='assistant' AND facts IS NOT NULL AND facts != '' ORDER BY created_at DESC LIMIT ?",
		conversationID, dataset, limit,
	)
	if err != nil {
		s.logger.Warn("failed to load past facts", zap.Error(err))
		return ""
	}
	defer rows.Close()

	var parts []string
	for rows.Next() {
		var facts string
		if err := rows.Scan(&facts); err != nil {
			continue
		}
		if facts != "" {
			parts = append(parts, "Previous exploration: "+facts)
		}
	}
	return strings.Join(parts, "\n")
}
