// Package noql is the boundary to the remote reporting API: it executes
// NoQL text, normalizes the response shapes into types.QueryResult,
// generates NoQL from natural-language questions, and caches table
// count/sample hints.
package noql

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"insight/internal/types"
)

// Executor posts NoQL to the reporting preview endpoint and normalizes
// the result into the fixed rows/columns shape.
type Executor struct {
	baseURL string
	orgID   string
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
}

// NewExecutor creates a reporting API executor.
func NewExecutor(baseURL, orgID, apiKey string, timeout time.Duration, logger *zap.Logger) *Executor {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Executor{
		baseURL: strings.TrimRight(baseURL, "/"),
		orgID:   orgID,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type previewRequest struct {
	SQLText string `json:"sqlText"`
	Type    string `json:"type"`
}

// Execute runs one NoQL statement and returns the normalized result.
func (e *Executor) Execute(ctx context.Context, query string) (types.QueryResult, error) {
	body, err := json.Marshal(previewRequest{SQLText: query, Type: "table"})
	if err != nil {
		return types.QueryResult{}, fmt.Errorf("failed to encode query request: %w", err)
	}

	url := e.baseURL + "/reporting/preview"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return types.QueryResult{}, fmt.Errorf("failed to build query request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-org-id", e.orgID)
	req.Header.Set("zigment-x-api-key", e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return types.QueryResult{}, fmt.Errorf("query request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.QueryResult{}, fmt.Errorf("failed to read query response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return types.QueryResult{}, fmt.Errorf("query API returned status %d: %s", resp.StatusCode, truncate(string(raw), 300))
	}

	result, err := normalizeResponse(raw)
	if err != nil {
		return types.QueryResult{}, err
	}
	e.logger.Debug("executed query",
		zap.Int("rows", len(result.Rows)),
		zap.Int("columns", len(result.Columns)))
	return result, nil
}

// normalizeResponse flattens the API's response variants into rows and
// columns. Handled shapes: the nested {success, data:{headers, rows},
// metadata} envelope with list-of-map rows, and the flat legacy
// {data|rows|results, columns|fields} form.
func normalizeResponse(raw []byte) (types.QueryResult, error) {
	var envelope map[string]any
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return types.QueryResult{}, fmt.Errorf("failed to decode query response: %w", err)
	}

	if success, ok := envelope["success"].(bool); ok && !success {
		return types.QueryResult{}, fmt.Errorf("query API error: %s", errorText(envelope))
	}
	if errs, ok := envelope["errors"].([]any); ok && len(errs) > 0 {
		return types.QueryResult{}, fmt.Errorf("query API error: %s", errorText(envelope))
	}

	if data, ok := envelope["data"].(map[string]any); ok {
		return normalizeNested(envelope, data), nil
	}
	return normalizeFlat(envelope), nil
}

func normalizeNested(envelope, data map[string]any) types.QueryResult {
	columns := keysOf(data["headers"])
	if len(columns) == 0 {
		if meta, ok := envelope["metadata"].(map[string]any); ok {
			columns = keysOf(meta["columns"])
		}
	}

	rawRows, _ := data["rows"].([]any)
	if len(columns) == 0 && len(rawRows) > 0 {
		if first, ok := rawRows[0].(map[string]any); ok {
			columns = sortedKeys(first)
		}
	}

	var rows [][]types.Scalar
	for _, r := range rawRows {
		switch row := r.(type) {
		case map[string]any:
			cells := make([]types.Scalar, 0, len(columns))
			for _, col := range columns {
				cells = append(cells, normalizeCell(row[col], col))
			}
			rows = append(rows, cells)
		case []any:
			cells := make([]types.Scalar, 0, len(row))
			for i, v := range row {
				name := ""
				if i < len(columns) {
					name = columns[i]
				}
				cells = append(cells, normalizeCell(v, name))
			}
			rows = append(rows, cells)
		}
	}
	return types.QueryResult{Rows: rows, Columns: columns}
}

func normalizeFlat(envelope map[string]any) types.QueryResult {
	var rawRows []any
	for _, key := range []string{"data", "rows", "results"} {
		if v, ok := envelope[key].([]any); ok {
			rawRows = v
			break
		}
	}
	var columns []string
	for _, key := range []string{"columns", "fields"} {
		if v, ok := envelope[key].([]any); ok {
			for _, c := range v {
				if s, ok := c.(string); ok {
					columns = append(columns, s)
				}
			}
			break
		}
	}

	var rows [][]types.Scalar
	for _, r := range rawRows {
		switch row := r.(type) {
		case map[string]any:
			if len(columns) == 0 {
				columns = sortedKeys(row)
			}
			cells := make([]types.Scalar, 0, len(columns))
			for _, col := range columns {
				cells = append(cells, normalizeCell(row[col], col))
			}
			rows = append(rows, cells)
		case []any:
			cells := make([]types.Scalar, 0, len(row))
			for i, v := range row {
				name := ""
				if i < len(columns) {
					name = columns[i]
				}
				cells = append(cells, normalizeCell(v, name))
			}
			rows = append(rows, cells)
		}
	}
	return types.QueryResult{Rows: rows, Columns: columns}
}

var numericColumnHints = []string{"count", "total", "sum", "avg", "average"}

// normalizeCell collapses array cells to scalars and maps empty strings
// in count-like columns to zero.
func normalizeCell(v any, column string) types.Scalar {
	switch val := v.(type) {
	case []any:
		switch len(val) {
		case 0:
			return nil
		case 1:
			return normalizeCell(val[0], column)
		default:
			parts := make([]string, 0, 3)
			for _, item := range val[:3] {
				parts = append(parts, fmt.Sprintf("%v", item))
			}
			return strings.Join(parts, ", ")
		}
	case string:
		if val == "" {
			lower := strings.ToLower(column)
			for _, hint := range numericColumnHints {
				if strings.Contains(lower, hint) {
					return float64(0)
				}
			}
		}
		return val
	default:
		return v
	}
}

// keysOf extracts the "key" entries from a headers-style list.
func keysOf(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	var keys []string
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			if k, ok := m["key"].(string); ok {
				keys = append(keys, k)
			}
		}
	}
	return keys
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// map order is random; a stable column order keeps results usable
	sort.Strings(keys)
	return keys
}

func errorText(envelope map[string]any) string {
	if errs, ok := envelope["errors"].([]any); ok && len(errs) > 0 {
		parts := make([]string, 0, len(errs))
		for _, e := range errs {
			parts = append(parts, fmt.Sprintf("%v", e))
		}
		return strings.Join(parts, "; ")
	}
	if msg, ok := envelope["message"].(string); ok && msg != "" {
		return msg
	}
	return "unknown error"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
