// Package chart turns the ```chart directives an answer embeds into
// resolved chart records: it scans the markdown, parses each directive,
// generates and runs the backing query, formats the rows, and
// substitutes placeholders into the text.
package chart

import "strings"

const (
	fenceOpen  = "```chart"
	fenceClose = "```"
)

// Segment is one piece of scanned markdown: either literal text or the
// body of a chart directive.
type Segment struct {
	Text      string
	Directive string
	IsChart   bool
}

// Scan splits markdown into text and directive segments with a single
// linear pass. Text segments are preserved byte-for-byte; joining the
// text of a directive-free document reproduces the input exactly. An
// unterminated directive fence is treated as plain text.
func Scan(markdown string) []Segment {
	var segments []Segment
	rest := markdown
	for {
		open := strings.Index(rest, fenceOpen)
		if open < 0 {
			break
		}
		bodyStart := open + len(fenceOpen)
		closeIdx := strings.Index(rest[bodyStart:], fenceClose)
		if closeIdx < 0 {
			break
		}
		if open > 0 {
			segments = append(segments, Segment{Text: rest[:open]})
		}
		body := strings.TrimSpace(rest[bodyStart : bodyStart+closeIdx])
		segments = append(segments, Segment{Directive: body, IsChart: true})
		rest = rest[bodyStart+closeIdx+len(fenceClose):]
	}
	if rest != "" {
		segments = append(segments, Segment{Text: rest})
	}
	return segments
}

// unwrapDoubleBraces removes one layer of doubled braces from a
// directive body. LLMs that saw the templated examples often emit
// {{...}} instead of {...}.
func unwrapDoubleBraces(body string) string {
	s := strings.TrimSpace(body)
	if strings.HasPrefix(s, "{{") && strings.HasSuffix(s, "}}") {
		return s[1 : len(s)-1]
	}
	return s
}
