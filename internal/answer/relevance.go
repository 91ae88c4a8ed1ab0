package answer

import (
	"strings"

	"insight/internal/types"
)

var offTopicPhrases = []string{
	"how to cook", "recipe", "weather", "news", "sports score",
	"stock price", "cryptocurrency", "bitcoin", "movie", "song",
	"book recommendation", "travel advice", "medical advice",
}

// CheckRelevance rejects questions that cannot possibly be answered
// from the CRM data: too short, or plainly about something else.
// Returns nil when the question passes.
func CheckRelevance(question string) *types.AnswerError {
	if len(strings.TrimSpace(question)) < 3 {
		return &types.AnswerError{
			Kind:       "irrelevant_question",
			Message:    "Question is too short or empty",
			Suggestion: "Please provide a more detailed question",
		}
	}
	lower := strings.ToLower(question)
	for _, phrase := range offTopicPhrases {
		if strings.Contains(lower, phrase) {
			return &types.AnswerError{
				Kind:       "irrelevant_question",
				Message:    "Question appears to be unrelated to database content",
				Suggestion: "Please ask questions about the data in this database",
			}
		}
	}
	return nil
}
