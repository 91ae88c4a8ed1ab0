package chart

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"insight/internal/types"
)

// maxPoints caps the number of data points per chart type.
var maxPoints = map[string]int{
	"pie":     6,
	"bar":     20,
	"line":    50,
	"scatter": 100,
	"table":   50,
}

// PointCap returns the data-point cap for a chart type.
func PointCap(chartType string) int {
	if n, ok := maxPoints[chartType]; ok {
		return n
	}
	return 20
}

var dayNames = map[int]string{
	1: "Sunday",
	2: "Monday",
	3: "Tuesday",
	4: "Wednesday",
	5: "Thursday",
	6: "Friday",
	7: "Saturday",
}

// dayName converts a DAY_OF_WEEK code (1-7, Sunday first) to its name.
// Anything out of range is returned unchanged.
func dayName(label string) string {
	n, err := strconv.Atoi(label)
	if err != nil {
		return label
	}
	if name, ok := dayNames[n]; ok {
		return name
	}
	return label
}

var dayColumnIndicators = []string{"dow", "day_of_week", "dayofweek", "weekday", "day_week"}
var dayQuestionIndicators = []string{"day of week", "day of the week", "per day", "by day"}

func isDayOfWeekColumn(column, question string) bool {
	col := strings.ToLower(column)
	for _, ind := range dayColumnIndicators {
		if strings.Contains(col, ind) {
			return true
		}
	}
	q := strings.ToLower(question)
	for _, ind := range dayQuestionIndicators {
		if strings.Contains(q, ind) {
			return true
		}
	}
	return false
}

var idColumnPatterns = []string{"id", "_id", "key", "_key", "pk", "primary"}

func isIDColumn(column string) bool {
	col := strings.ToLower(column)
	for _, pat := range idColumnPatterns {
		if strings.Contains(col, pat) {
			return true
		}
	}
	return false
}

// labelColumnIndex picks the label column: the first column that does
// not look like an identifier, else the first column.
func labelColumnIndex(columns []string) int {
	for i, col := range columns {
		if !isIDColumn(col) {
			return i
		}
	}
	return 0
}

// safeFloat coerces any scalar to float64; unparseable values become 0.
func safeFloat(v types.Scalar) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case bool:
		if val {
			return 1
		}
		return 0
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

func isNumericScalar(v types.Scalar) bool {
	switch val := v.(type) {
	case float64, int, nil:
		return true
	case string:
		_, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return err == nil
	default:
		return false
	}
}

func scalarString(v types.Scalar) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", val)
	}
}

var aliasPrefix = regexp.MustCompile(`^[a-zA-Z]{1,3}\.`)

func stripAlias(column string) string {
	return aliasPrefix.ReplaceAllString(column, "")
}

// Format shapes query rows into chart points for the given chart type.
// The per-type cap is applied here as well as at query time, so charts
// built from oversized results stay drawable.
func Format(rows [][]types.Scalar, chartType, question string, columns []string) []types.ChartPoint {
	if len(rows) == 0 {
		return nil
	}
	if limit := PointCap(chartType); len(rows) > limit {
		rows = rows[:limit]
	}

	if chartType == "scatter" {
		return formatScatter(rows)
	}
	if chartType == "pie" && len(rows) == 1 && len(columns) >= 2 {
		if points := formatPivotedPie(rows[0], columns); points != nil {
			return points
		}
	}
	return formatLabeled(rows, question, columns)
}

// formatScatter builds {label, x, y} points from columns 0, 1, 2,
// skipping rows with fewer than three cells.
func formatScatter(rows [][]types.Scalar) []types.ChartPoint {
	var points []types.ChartPoint
	for _, row := range rows {
		if len(row) < 3 {
			continue
		}
		points = append(points, types.ChartPoint{
			Label: scalarString(row[0]),
			X:     safeFloat(row[1]),
			Y:     safeFloat(row[2]),
			HasXY: true,
		})
	}
	return points
}

// formatPivotedPie handles a single all-numeric row, the shape produced
// by CASE-pivoted queries: each column becomes a slice. Returns nil
// when the row is not fully numeric.
func formatPivotedPie(row []types.Scalar, columns []string) []types.ChartPoint {
	if len(row) != len(columns) {
		return nil
	}
	for _, cell := range row {
		if !isNumericScalar(cell) {
			return nil
		}
	}
	var points []types.ChartPoint
	for i, cell := range row {
		v := safeFloat(cell)
		if v <= 0 {
			continue
		}
		label := strings.TrimSpace(strings.NewReplacer("Population", "", "Speaker", "").Replace(columns[i]))
		points = append(points, types.ChartPoint{Label: label, Value: v})
	}
	return points
}

func formatLabeled(rows [][]types.Scalar, question string, columns []string) []types.ChartPoint {
	labelIdx := 0
	valueIdx := -1 // last cell
	if len(columns) > 0 {
		labelIdx = labelColumnIndex(columns)
		valueIdx = len(columns) - 1
	}
	dow := false
	if len(columns) > labelIdx {
		dow = isDayOfWeekColumn(columns[labelIdx], question)
	} else {
		dow = isDayOfWeekColumn("", question)
	}

	var points []types.ChartPoint
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}

		label := scalarString(row[0])
		if labelIdx < len(row) {
			label = scalarString(row[labelIdx])
		}
		if dow {
			label = dayName(label)
		}

		value := safeFloat(row[len(row)-1])
		if valueIdx >= 0 && valueIdx < len(row) {
			value = safeFloat(row[valueIdx])
		}

		// origin/destination rows read better as a combined label
		if len(row) >= 3 && isNumericScalar(row[len(row)-1]) &&
			!isNumericScalar(row[0]) && !isNumericScalar(row[1]) {
			label = scalarString(row[0]) + " → " + scalarString(row[1])
		}

		// an explicit name column beats everything else
		for i, col := range columns {
			if i >= len(row) {
				break
			}
			lower := strings.ToLower(stripAlias(col))
			if strings.Contains(lower, "name") && !strings.Contains(lower, "continent") {
				if s := scalarString(row[i]); s != "" {
					label = s
					if dow {
						label = dayName(label)
					}
				}
				break
			}
		}

		point := types.ChartPoint{Label: label, Value: value}
		attachExtras(&point, row, columns)
		points = append(points, point)
	}
	return points
}

// attachExtras carries additional columns into the point under cleaned
// names, skipping cells that merely repeat the label or value.
func attachExtras(point *types.ChartPoint, row []types.Scalar, columns []string) {
	if len(columns) <= 1 {
		for i := 2; i < len(row); i++ {
			if point.Extra == nil {
				point.Extra = map[string]types.Scalar{}
			}
			point.Extra["col_"+strconv.Itoa(i)] = row[i]
		}
		return
	}

	seen := map[string]struct{}{"label": {}, "value": {}}
	for i, cell := range row {
		if i >= len(columns) {
			break
		}
		name := stripAlias(columns[i])
		lower := strings.ToLower(name)

		// redundant copies of the label or value add noise
		if scalarString(cell) == point.Label && (lower == "region" || lower == "name" || lower == "title") {
			continue
		}
		if safeFloat(cell) == point.Value {
			switch lower {
			case "population", "total", "amount", "count":
				continue
			}
		}

		if _, dup := seen[lower]; dup {
			name = name + "_" + strconv.Itoa(i)
			lower = strings.ToLower(name)
		}
		if point.Extra == nil {
			point.Extra = map[string]types.Scalar{}
		}
		point.Extra[name] = cell
		seen[lower] = struct{}{}
	}
}
