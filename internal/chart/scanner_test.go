package chart

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanNoDirectives(t *testing.T) {
	md := "# Heading\n\nPlain prose with `inline code` and\n\n```sql\nSELECT 1\n```\n"
	segments := Scan(md)
	require.Len(t, segments, 1)
	assert.False(t, segments[0].IsChart)
	assert.Equal(t, md, segments[0].Text, "text survives byte-for-byte")
}

func TestScanExtractsDirectives(t *testing.T) {
	md := "Intro.\n\n```chart\n{\"type\": \"bar\"}\n```\n\nMiddle.\n\n```chart\n{\"type\": \"pie\"}\n```\n\nEnd."
	segments := Scan(md)

	var texts, directives []string
	for _, s := range segments {
		if s.IsChart {
			directives = append(directives, s.Directive)
		} else {
			texts = append(texts, s.Text)
		}
	}
	require.Len(t, directives, 2)
	assert.Equal(t, `{"type": "bar"}`, directives[0])
	assert.Equal(t, `{"type": "pie"}`, directives[1])
	assert.Equal(t, "Intro.\n\n", texts[0])
	assert.Contains(t, strings.Join(texts, ""), "Middle.")
	assert.Contains(t, strings.Join(texts, ""), "End.")
}

func TestScanUnterminatedFenceIsText(t *testing.T) {
	md := "Before\n```chart\n{\"type\": \"bar\"}"
	segments := Scan(md)
	require.Len(t, segments, 1)
	assert.Equal(t, md, segments[0].Text)
}

func TestUnwrapDoubleBraces(t *testing.T) {
	assert.Equal(t, `{"type": "bar"}`, unwrapDoubleBraces(`{{"type": "bar"}}`))
	assert.Equal(t, `{"type": "bar"}`, unwrapDoubleBraces(`{"type": "bar"}`))
	assert.Equal(t, "not json", unwrapDoubleBraces(" not json "))
}
