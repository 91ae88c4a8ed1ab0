package prompt

import (
	"fmt"
	"strings"
)

// collectionNameRules maps the uppercase schema names to the lowercase
// collection names the reporting API accepts.
const collectionNameRules = `ACTUAL COLLECTION NAMES (use these exact lowercase names in queries):
- EVENT -> events
- CONTACT -> contacts
- CORE_CONTACT -> corecontacts
- CHAT_HISTORY -> chathistories
- CONTACT_TAG -> contacttags
- ORG_AGENT -> orgagent
- ORGANIZATION -> organization`

const queryExamples = `EXAMPLES:

Q: "Distribution of leads by ad source"
A: SELECT CASE WHEN meta_ad_data_synced = true THEN 'Meta/Facebook' WHEN google_ad_data_synced = true THEN 'Google' ELSE 'Other' END AS ad_source, COUNT(*) AS count FROM contacts WHERE is_deleted = false GROUP BY ad_source ORDER BY count DESC

Q: "Contacts created per month in 2024"
A: SELECT CASE MONTH(TO_DATE(created_at_timestamp * 1000)) WHEN 1 THEN 'January' WHEN 2 THEN 'February' WHEN 3 THEN 'March' WHEN 4 THEN 'April' WHEN 5 THEN 'May' WHEN 6 THEN 'June' WHEN 7 THEN 'July' WHEN 8 THEN 'August' WHEN 9 THEN 'September' WHEN 10 THEN 'October' WHEN 11 THEN 'November' WHEN 12 THEN 'December' END AS month, COUNT(*) AS count FROM contacts WHERE created_at_timestamp >= 1704067200 GROUP BY MONTH(TO_DATE(created_at_timestamp * 1000)) ORDER BY MONTH(TO_DATE(created_at_timestamp * 1000))

Q: "Which channels get the most messages?"
A: SELECT channel, COUNT(*) AS message_count FROM chathistories WHERE is_deleted = false GROUP BY channel ORDER BY message_count DESC`

// QueryGeneration builds the question -> NoQL prompt.
func QueryGeneration(question, schemaJSON, softDeleteRules, guidance string) string {
	var b strings.Builder
	b.WriteString(DialectRules)
	b.WriteString("\n\n")
	b.WriteString(collectionNameRules)
	b.WriteString("\n\n")
	b.WriteString("You are an expert NoQL query generator. Generate ONE query that answers the question.\n")
	b.WriteString("The query must run directly: no code fences, no explanations, just the statement.\n")
	b.WriteString("Use ONLY collections and fields present in the schema below; never invent names.\n\n")
	b.WriteString(softDeleteRules)
	b.WriteString("\n\n")
	b.WriteString(queryExamples)
	b.WriteString("\n\nDATABASE SCHEMA:\n")
	b.WriteString(schemaJSON)
	if guidance != "" {
		b.WriteString("\n\n")
		b.WriteString(guidance)
	}
	b.WriteString("\n\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\n\nNoQL query:")
	return b.String()
}

// ClassificationSystem is the system prompt for the casual-vs-data
// classifier; the user message is passed through unchanged. The model
// must answer with exactly CASUAL or DATA.
const ClassificationSystem = `You are a classifier that determines if a user's message is casual conversation or a data/database query.

CASUAL (respond "CASUAL"): greetings, thanks, goodbyes, small talk,
questions about the bot ("who are you", "what can you do").

DATA (respond "DATA"): questions about data ("show me...", "how many...",
"top 10...", "compare..."), statistics (average, total, count,
distribution), business questions (revenue, contacts, engagement, trends).

If the message mixes both, classify as DATA. If unsure, DATA.

Reply with ONLY one word: CASUAL or DATA.`

// ProbeProposal builds the deep-exploration prompt asking for 1-3 quick
// probe queries as JSON.
func ProbeProposal(question, schemaJSON, counts, samples, priorFacts, guidance string) string {
	if priorFacts == "" {
		priorFacts = "(initial exploration)"
	}
	var b strings.Builder
	b.WriteString(DialectRules)
	b.WriteString("\n\n")
	b.WriteString(collectionNameRules)
	b.WriteString("\n\n")
	b.WriteString("You propose quick EXPLORATORY NoQL queries to understand a question before writing analysis.\n")
	b.WriteString("Use ONLY collections and columns that exist in the schema. 1-3 queries, SELECT-only,\n")
	b.WriteString("each with ORDER BY and LIMIT (max 20 rows). Aggregate early, minimal joins.\n\n")
	b.WriteString("DATABASE SCHEMA:\n")
	b.WriteString(schemaJSON)
	b.WriteString("\n\nSAMPLE DATA (first few rows per table):\n")
	b.WriteString(samples)
	b.WriteString("\n\nROW COUNTS:\n")
	b.WriteString(counts)
	if guidance != "" {
		b.WriteString("\n\n")
		b.WriteString(guidance)
	}
	b.WriteString("\n\nOUTPUT FORMAT: return ONLY JSON, no text before or after, no fences:\n")
	b.WriteString(`{"explorations": [{"purpose": "...", "sql": "SELECT ..."}]}`)
	b.WriteString("\n\nQuestion:\n")
	b.WriteString(question)
	b.WriteString("\n\nPrior facts:\n")
	b.WriteString(priorFacts)
	return b.String()
}

// Summarization builds the compaction prompt over rendered chat turns.
func Summarization(transcript string) string {
	return fmt.Sprintf(`Summarize the following chat turns into 4-6 concise bullet points capturing key facts, user intent, and decisions. Keep numbers if present.

%s

Summary:`, transcript)
}

// AnswerMarkdown builds the main conversational answer prompt.
func AnswerMarkdown(question, schemaJSON, samples, history, facts, allowedEntities string) string {
	if facts == "" {
		facts = "(no precomputed facts)"
	}
	if allowedEntities == "" {
		allowedEntities = "(none)"
	}
	var b strings.Builder
	b.WriteString("You are having a natural conversation about CRM data and insights. ")
	b.WriteString("Write as if you're talking to a colleague: friendly, informative, and conversational, but professional and business-focused.\n\n")
	b.WriteString("User asked: ")
	b.WriteString(question)
	b.WriteString("\n\nANSWER EXACTLY WHAT WAS ASKED. Don't mention database names or technical details.\n\n")
	b.WriteString("DATABASE SCHEMA:\n")
	b.WriteString(schemaJSON)
	b.WriteString("\n\nSAMPLE DATA (first few rows per table):\n")
	b.WriteString(samples)
	b.WriteString("\n\nRecent conversation (most recent last). Build on it naturally; do NOT restate earlier content verbatim:\n")
	b.WriteString(history)
	b.WriteString("\n\nFacts (ground truth; ONLY use these for numeric claims):\n")
	b.WriteString(facts)
	b.WriteString("\n\nAllowedEntities (you may ONLY reference these specific entities by name; otherwise use generic terms):\n")
	b.WriteString(allowedEntities)
	b.WriteString(`

Write a conversational response (3-5 paragraphs):
- Acknowledge what they're asking and give a quick overview.
- Walk through what the data shows, pointing out patterns and what they
  might mean for the business.
- Do NOT invent numbers. If a number is not in Facts or shown in a chart,
  phrase it qualitatively ("large share", "increased over time").

CHART RULES:
- Generate EXACTLY 1 chart, embedded as a fenced block:

` + "```chart" + `
{"type": "bar", "question": "Contacts by lifecycle stage", "title": "Lifecycle Stage Analysis", "db": "zigment"}
` + "```" + `

- "type" is one of bar, line, pie, scatter, table. "question" states what
  data the chart should show. Pick the type that fits the data: bar for
  comparison, line for time, pie for proportions.
- Only generate 2-4 charts if the question explicitly asks for multiple
  charts or different perspectives, and then each must show different data.`)
	return b.String()
}

// ChartCritic builds the chart-necessity prompt. The model answers
// "APPROVE: reason" or "REJECT: reason | REPLACEMENT: text".
func ChartCritic(question, chartType, title, purpose, dataPreview string) string {
	return fmt.Sprintf(`You are a data visualization critic. Decide if the proposed chart is truly necessary or if the information is better conveyed as text.

ORIGINAL QUESTION: %s
CHART PROPOSAL:
- Type: %s
- Title: %s
- Purpose: %s
- Data Preview: %s

REJECT when the chart is useless: a single data point (nothing to
compare), an empty dataset, a pie with one slice, a line chart over two
discrete categories, or a comparison question answered with one entity.

APPROVE when it adds value: 2+ points for comparison or distribution,
a time series with 3+ points, a type that matches the data structure.

Respond with EXACTLY one of:
APPROVE: [brief reason]
REJECT: [brief reason] | REPLACEMENT: [0-2 short sentences stating the fact naturally]

Replacement text must never mention charts, graphs, or visuals.

Your decision:`, question, chartType, title, purpose, dataPreview)
}
