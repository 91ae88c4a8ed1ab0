package chart

import "strings"

// AxisLabels derives display labels for the chart axes from the result
// columns: alias prefixes stripped, underscores spaced, title case.
// Scatter charts label from columns 1 and 2 when three or more exist,
// matching how their points are built.
func AxisLabels(chartType string, columns []string, question string) (string, string) {
	if len(columns) < 2 {
		return "Categories", "Values"
	}

	clean := make([]string, len(columns))
	for i, col := range columns {
		clean[i] = titleCase(strings.ReplaceAll(stripAlias(col), "_", " "))
	}

	if chartType == "scatter" && len(clean) >= 3 {
		return clean[1], clean[2]
	}
	return clean[0], clean[1]
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}
