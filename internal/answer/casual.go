package answer

import (
	"fmt"
	"strings"
)

// CasualReply picks a canned conversational response for non-data
// messages, keyed by simple phrase buckets.
func CasualReply(question, dataset string) string {
	q := strings.ToLower(strings.TrimSpace(question))

	switch {
	case containsAny(q, "hi", "hello", "hey"):
		return "Hi there! I'm **Insight**, your AI data analyst. Ask me anything about your database, and I'll help you explore the data with insights and visualizations!"
	case strings.Contains(q, "how are you") || strings.Contains(q, "how r u"):
		return "I'm doing great, thank you! Ready to dive into your data. What would you like to explore today?"
	case containsAny(q, "thanks", "thank you", "ty", "thx"):
		return "You're very welcome! Happy to help anytime. Let me know if you need anything else!"
	case strings.Contains(q, "what can you do") || strings.Contains(q, "what do you do") || strings.Contains(q, "help"):
		return capabilitiesReply(dataset)
	case strings.Contains(q, "who are you") || strings.Contains(q, "what are you") || strings.Contains(q, "your name"):
		return fmt.Sprintf("I'm **Insight**, your AI-powered data analyst! I turn your questions into queries, create visualizations, and help you discover insights in your `%s` database. Think of me as your friendly data expert who speaks plain English!", dataset)
	case containsAny(q, "bye", "goodbye", "see you", "cya"):
		return "Goodbye! It was great exploring data with you. Come back anytime!"
	case len(q) < 10:
		return "I'm here to help! Ask me anything about your data, and I'll create insights for you."
	default:
		return "I'm **Insight**, your data assistant! Ask me questions about your database, and I'll help you explore the data with smart queries and visualizations. What would you like to know?"
	}
}

func capabilitiesReply(dataset string) string {
	return fmt.Sprintf(`I'm **Insight**, your conversational data analyst! Here's what I can do:

- **Natural language queries** - just ask in plain English
- **Smart visualizations** - I pick the best charts for your data
- **Deep insights** - I explore patterns and trends you might miss
- **Follow-up suggestions** - I'll recommend what to look at next

**Current database:** `+"`%s`"+`

**Try asking things like:**
- "Show me the total number of contacts by status"
- "What are the most common event types?"
- "Show me chat engagement trends over time"

What would you like to discover?`, dataset)
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
