package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "SELECT * FROM contacts", "SELECT * FROM contacts"},
		{"fenced", "```\nSELECT * FROM contacts\n```", "SELECT * FROM contacts"},
		{"fenced sql tag", "```sql\nSELECT 1\n```", "SELECT 1"},
		{"fenced noql tag", "```noql\nSELECT 1\n```", "SELECT 1"},
		{"double quoted", `"SELECT 1"`, "SELECT 1"},
		{"single quoted", "'SELECT 1'", "SELECT 1"},
		{"whitespace", "  SELECT 1  ", "SELECT 1"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripFences(tt.in))
		})
	}
}

func TestEnsureLimit(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		limit int
		want  string
	}{
		{"select without limit", "select a from t", 50, "select a from t LIMIT 50"},
		{"existing limit kept", "SELECT a FROM t LIMIT 10;", 50, "SELECT a FROM t LIMIT 10;"},
		{"lowercase limit kept", "select a from t limit 5", 50, "select a from t limit 5"},
		{"semicolon preserved", "SELECT a FROM t;", 25, "SELECT a FROM t LIMIT 25;"},
		{"non select untouched", "UPDATE t SET a = 1", 50, "UPDATE t SET a = 1"},
		{"empty untouched", "", 50, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EnsureLimit(tt.in, tt.limit))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"```sql\nselect a from t\n```",
		"SELECT a FROM t LIMIT 10",
		"select name, count(*) from contacts group by name;",
		"UPDATE t SET a = 1",
	}
	for _, in := range inputs {
		once := Normalize(in, 50)
		twice := Normalize(once, 50)
		assert.Equal(t, once, twice, "input %q", in)
	}
}
