package answer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCasualReplyBuckets(t *testing.T) {
	tests := []struct {
		name     string
		question string
		contains string
	}{
		{"greeting", "hello there", "Hi"},
		{"how are you", "how are you doing?", "doing great"},
		{"thanks", "thanks so much", "welcome"},
		{"capabilities", "what can you do", "zigment"},
		{"identity", "who are you", "Insight"},
		{"goodbye", "bye for now", "Goodbye"},
		{"short ack", "ok", "anything about your data"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CasualReply(tt.question, "zigment")
			assert.True(t, strings.Contains(strings.ToLower(got), strings.ToLower(tt.contains)),
				"reply %q should mention %q", got, tt.contains)
		})
	}
}

func TestCasualReplyDefault(t *testing.T) {
	got := CasualReply("something else entirely here", "zigment")
	assert.NotEmpty(t, got)
}

func TestCheckRelevance(t *testing.T) {
	assert.Nil(t, CheckRelevance("how many contacts do we have?"))

	err := CheckRelevance("a")
	if assert.NotNil(t, err) {
		assert.Equal(t, "irrelevant_question", err.Kind)
	}

	err = CheckRelevance("what is the weather like")
	if assert.NotNil(t, err) {
		assert.Contains(t, err.Message, "unrelated")
	}
}
