// Package query normalizes LLM-emitted NoQL before it reaches the
// reporting API: markdown fences are stripped and SELECT statements get
// a row cap.
package query

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	limitRe  = regexp.MustCompile(`(?i)\bLIMIT\s+\d+\b`)
	selectRe = regexp.MustCompile(`(?i)^\s*SELECT\b`)
)

// StripFences removes one layer of markdown code fencing, an optional
// noql/sql language tag, and surrounding quotes from a raw query string.
func StripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimLeft(s, "`")
		lower := strings.ToLower(s)
		switch {
		case strings.HasPrefix(lower, "noql"):
			s = strings.TrimSpace(s[4:])
		case strings.HasPrefix(lower, "sql"):
			s = strings.TrimSpace(s[3:])
		}
	}
	s = strings.TrimSpace(strings.ReplaceAll(s, "```", ""))
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			s = strings.TrimSpace(s[1 : len(s)-1])
		}
	}
	return s
}

// EnsureLimit appends "LIMIT n" to a SELECT statement that has no LIMIT
// clause. Queries that already carry a limit, and non-SELECT statements,
// are returned unchanged. A trailing semicolon is preserved.
func EnsureLimit(q string, limit int) string {
	trimmed := strings.TrimSpace(q)
	hadSemicolon := strings.HasSuffix(trimmed, ";")
	if hadSemicolon {
		trimmed = trimmed[:len(trimmed)-1]
	}
	if limitRe.MatchString(trimmed) {
		return q
	}
	if !selectRe.MatchString(trimmed) {
		return q
	}
	out := trimmed + " LIMIT " + strconv.Itoa(limit)
	if hadSemicolon {
		out += ";"
	}
	return out
}

// Normalize strips fencing and enforces a row limit in one pass. It is
// idempotent: Normalize(Normalize(q, n), n) == Normalize(q, n).
func Normalize(raw string, limit int) string {
	return EnsureLimit(StripFences(raw), limit)
}
