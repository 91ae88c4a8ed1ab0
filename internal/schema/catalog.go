// Package schema holds the CRM schema catalog the LLM prompts are
// grounded on: collection and field descriptions, the canonical
// lowercase collection-name mapping, and guidance text for querying
// large tables.
package schema

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Field describes one column in a collection.
type Field struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	Required bool     `json:"required,omitempty"`
	Unique   bool     `json:"unique,omitempty"`
	Options  []string `json:"options,omitempty"`
	Storage  string   `json:"storage,omitempty"`
	Note     string   `json:"note,omitempty"`
}

// Collection describes one queryable CRM collection.
type Collection struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	SoftDelete  bool    `json:"-"`
	Fields      []Field `json:"fields"`
}

// Catalog is the full set of collections for a dataset.
type Catalog struct {
	Collections []Collection `json:"collections"`
}

const epochNote = "Unix epoch seconds; convert with TO_DATE(field * 1000) before date functions"

func epochField(name string) Field {
	return Field{Name: name, Type: "DATETIME", Storage: "unix_epoch_seconds", Note: epochNote}
}

// Default returns the hardcoded CRM catalog. It is rebuilt on each call
// so callers can mutate their copy freely.
func Default() Catalog {
	return Catalog{Collections: []Collection{
		{
			Name:        "contacts",
			Description: "Customer/Lead contact information",
			Fields: []Field{
				{Name: "_id", Type: "STRING", Unique: true},
				{Name: "first_name", Type: "TEXT"},
				{Name: "last_name", Type: "TEXT"},
				{Name: "full_name", Type: "TEXT"},
				{Name: "email", Type: "EMAIL"},
				{Name: "phone", Type: "PHONE"},
				{Name: "status", Type: "SELECT", Options: []string{"NEW", "INITIATED", "IN_PROGRESS", "NOT_INTERESTED", "NOT_QUALIFIED", "CONVERTED", "IN_ACTIVE"}},
				{Name: "contact_stage", Type: "TEXT"},
				{Name: "source", Type: "SELECT", Options: []string{"GOOGLE_AD", "META_AD", "META_LEADGEN", "META_CTWA", "TIKTOK_AD", "LINKEDIN_AD", "OUTBOUND_CALL", "INBOUND_CALL", "INBOUND_FACEBOOK", "INBOUND_INSTAGRAM", "INBOUND_WHATSAPP", "LANDING_PAGE", "WEBSITE_FORM", "IMPORT", "MANUAL", "OTHER"}},
				{Name: "timezone", Type: "TEXT"},
				{Name: "notes", Type: "TEXTAREA"},
				{Name: "total_messages", Type: "NUMBER"},
				{Name: "total_user_messages", Type: "NUMBER"},
				{Name: "total_agent_messages", Type: "NUMBER"},
				{Name: "last_message_timestamp", Type: "DATETIME"},
				{Name: "first_agent_message_timestamp", Type: "DATETIME"},
				{Name: "first_user_message_timestamp", Type: "DATETIME"},
				{Name: "first_response_received", Type: "BOOLEAN"},
				{Name: "is_archived", Type: "BOOLEAN"},
				epochField("created_at_timestamp"),
				epochField("updated_at_timestamp"),
			},
		},
		{
			Name:        "corecontacts",
			Description: "Unified contact information across all agents and channels",
			SoftDelete:  true,
			Fields: []Field{
				{Name: "_id", Type: "STRING", Unique: true},
				{Name: "first_name", Type: "TEXT"},
				{Name: "last_name", Type: "TEXT"},
				{Name: "full_name", Type: "TEXT"},
				{Name: "email", Type: "EMAIL"},
				{Name: "phone", Type: "PHONE"},
				{Name: "lifecycle_stage", Type: "TEXT"},
				{Name: "status", Type: "TEXT"},
				{Name: "sub_status", Type: "TEXT"},
				{Name: "timezone", Type: "TEXT"},
				{Name: "notes", Type: "TEXTAREA"},
				{Name: "is_spam", Type: "BOOLEAN"},
				{Name: "is_unsubscribed", Type: "BOOLEAN"},
				{Name: "is_consent_received", Type: "BOOLEAN"},
				{Name: "is_archived", Type: "BOOLEAN"},
				{Name: "is_active", Type: "BOOLEAN"},
				{Name: "is_deleted", Type: "BOOLEAN"},
				epochField("created_at_timestamp"),
				epochField("updated_at_timestamp"),
			},
		},
		{
			Name:        "contacttags",
			Description: "Customer/Lead contact tag information",
			Fields: []Field{
				{Name: "_id", Type: "STRING", Unique: true},
				{Name: "label", Type: "TEXT", Required: true},
				{Name: "color", Type: "TEXT", Required: true},
				{Name: "contact_id", Type: "REFERENCE"},
				epochField("created_at_timestamp"),
				epochField("updated_at_timestamp"),
			},
		},
		{
			Name:        "events",
			Description: "Tracks lifecycle, marketing, and communication events across channels",
			SoftDelete:  true,
			Fields: []Field{
				{Name: "_id", Type: "STRING", Unique: true},
				{Name: "event_id", Type: "TEXT", Required: true, Unique: true},
				{Name: "org_id", Type: "REFERENCE", Required: true},
				{Name: "anonymous_id", Type: "TEXT"},
				{Name: "email", Type: "EMAIL"},
				{Name: "phone", Type: "PHONE"},
				{Name: "core_contact_id", Type: "REFERENCE"},
				{Name: "agent_contact_id", Type: "REFERENCE"},
				{Name: "category", Type: "SELECT", Options: []string{"ENGAGEMENT", "LIFECYCLE", "SYSTEM", "COMMUNICATION", "CUSTOM"}},
				{Name: "type", Type: "SELECT", Options: []string{"MESSAGE_SENT", "MESSAGE_RECEIVED", "STATUS_CHANGE", "STAGE_CHANGE", "LIFECYCLE_CHANGE", "CUSTOM"}},
				{Name: "change_value_for_type", Type: "TEXT"},
				{Name: "timestamp", Type: "NUMBER", Required: true, Storage: "unix_epoch_seconds", Note: epochNote},
				{Name: "channel", Type: "SELECT", Options: []string{"WEB", "SMS", "WHATSAPP", "EMAIL", "QR", "VOICE", "SOCIAL"}},
				{Name: "sub_channel", Type: "TEXT"},
				{Name: "message_content", Type: "TEXTAREA"},
				{Name: "message_sentiment", Type: "SELECT", Options: []string{"POSITIVE", "NEGATIVE", "NEUTRAL"}},
				{Name: "message_type", Type: "SELECT", Options: []string{"TEXT", "IMAGE", "VIDEO", "AUDIO", "DOCUMENT"}},
				{Name: "created_at", Type: "DATETIME", Required: true},
				{Name: "updated_at", Type: "DATETIME", Required: true},
				{Name: "is_deleted", Type: "BOOLEAN"},
			},
		},
		{
			Name:        "chathistories",
			Description: "Stores conversation history, feedback metrics, and message analytics for each contact across channels",
			SoftDelete:  true,
			Fields: []Field{
				{Name: "_id", Type: "STRING", Unique: true},
				{Name: "org_id", Type: "REFERENCE"},
				{Name: "org_agent_id", Type: "REFERENCE"},
				{Name: "contact_id", Type: "REFERENCE"},
				{Name: "provider", Type: "TEXT"},
				{Name: "channel", Type: "SELECT", Options: []string{"WEB", "WHATSAPP", "INSTAGRAM", "FACEBOOK_MESSENGER", "EMAIL", "VOICE", "OTHER"}},
				{Name: "contact_phone_number", Type: "PHONE"},
				{Name: "contact_email", Type: "EMAIL"},
				{Name: "body", Type: "TEXTAREA"},
				{Name: "last_message_timestamp", Type: "DATETIME"},
				{Name: "first_agent_message_timestamp", Type: "DATETIME"},
				{Name: "first_user_message_timestamp", Type: "DATETIME"},
				{Name: "total_guardrail_triggers", Type: "NUMBER"},
				{Name: "first_response_received", Type: "BOOLEAN"},
				{Name: "total_messages", Type: "NUMBER"},
				{Name: "total_user_messages", Type: "NUMBER"},
				{Name: "total_agent_messages", Type: "NUMBER"},
				epochField("created_at_timestamp"),
				epochField("updated_at_timestamp"),
				{Name: "is_deleted", Type: "BOOLEAN"},
			},
		},
	}}
}

// JSON renders the catalog as indented JSON for prompt embedding.
func (c Catalog) JSON() string {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}

// Names returns the collection names in catalog order.
func (c Catalog) Names() []string {
	names := make([]string, 0, len(c.Collections))
	for _, col := range c.Collections {
		names = append(names, col.Name)
	}
	return names
}

// Lookup returns the collection with the given canonical name.
func (c Catalog) Lookup(name string) (Collection, bool) {
	canon := CanonicalName(name)
	for _, col := range c.Collections {
		if col.Name == canon {
			return col, true
		}
	}
	return Collection{}, false
}

// aliases maps schema-style uppercase names to the exact lowercase
// collection names the reporting API accepts.
var aliases = map[string]string{
	"EVENT":        "events",
	"CONTACT":      "contacts",
	"CORE_CONTACT": "corecontacts",
	"CHAT_HISTORY": "chathistories",
	"CONTACT_TAG":  "contacttags",
	"ORG_AGENT":    "orgagent",
	"ORGANIZATION": "organization",
}

// CanonicalName maps any casing or underscore variant of a collection
// name to the lowercase form the reporting API requires.
func CanonicalName(name string) string {
	upper := strings.ToUpper(strings.TrimSpace(name))
	if mapped, ok := aliases[upper]; ok {
		return mapped
	}
	return strings.ReplaceAll(strings.ToLower(upper), "_", "")
}

// SoftDeleteRules renders the per-collection is_deleted filter guidance
// used in query-writing prompts.
func (c Catalog) SoftDeleteRules() string {
	var with, without []string
	for _, col := range c.Collections {
		if col.SoftDelete {
			with = append(with, col.Name)
		} else {
			without = append(without, col.Name)
		}
	}
	var b strings.Builder
	b.WriteString("Use WHERE is_deleted = false ONLY on collections that have the field.\n")
	b.WriteString("Collections WITH is_deleted (always filter): " + strings.Join(with, ", ") + "\n")
	b.WriteString("Collections WITHOUT is_deleted (never filter): " + strings.Join(without, ", "))
	return b.String()
}

// LargeTableGuidance renders optimization guidance for collections whose
// row count exceeds threshold. Returns "" when nothing qualifies.
func LargeTableGuidance(counts map[string]int, threshold int) string {
	var large []string
	for table, n := range counts {
		if n > threshold {
			large = append(large, fmt.Sprintf("- %s (%d rows)", table, n))
		}
	}
	if len(large) == 0 {
		return ""
	}
	sort.Strings(large)
	var b strings.Builder
	b.WriteString("LARGE TABLE WARNING - these collections contain substantial data:\n")
	b.WriteString(strings.Join(large, "\n"))
	b.WriteString("\n\nRules for queries touching them:\n")
	b.WriteString("1. Always use a LIMIT clause (default 50, max 500).\n")
	b.WriteString("2. Filter with WHERE before joins and aggregations.\n")
	b.WriteString("3. Avoid SELECT *; list only the columns you need.\n")
	b.WriteString("4. Prefer indexed columns (primary/foreign keys) in WHERE and JOIN.\n")
	b.WriteString("5. Pre-filter large collections in a CTE before joining.\n")
	b.WriteString("6. Keep exploratory queries simple; no multi-table joins on a first pass.\n")
	return b.String()
}
