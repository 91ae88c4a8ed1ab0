// Package types holds the shared value types and collaborator interfaces
// used across the answer pipeline. Everything downstream of the collaborator
// boundary works with these fixed shapes; the shape-shifting of raw API
// responses is normalized away before values reach this package.
package types

import "encoding/json"

// Scalar is a single cell of a query result after boundary normalization:
// string, float64, bool, or nil.
type Scalar interface{}

// QueryResult is the fixed shape every execution-collaborator response is
// normalized into: ordered rows of scalars plus column names.
type QueryResult struct {
	Rows    [][]Scalar
	Columns []string
}

// Empty reports whether the result carries no rows.
func (r QueryResult) Empty() bool {
	return len(r.Rows) == 0
}

// ChartPoint is one data point of a rendered chart. Bar/line/pie/table
// points carry Label+Value; scatter points carry Label+X+Y. Extra holds
// additional result columns attached under their cleaned names.
type ChartPoint struct {
	Label string
	Value float64
	X     float64
	Y     float64
	HasXY bool
	Extra map[string]Scalar
}

// MarshalJSON flattens Extra into the point object, matching the wire shape
// chart consumers expect ({"label":..., "value":..., "<extra_col>":...}).
func (p ChartPoint) MarshalJSON() ([]byte, error) {
	obj := make(map[string]interface{}, 4+len(p.Extra))
	obj["label"] = p.Label
	obj["value"] = p.Value
	if p.HasXY {
		obj["x"] = p.X
		obj["y"] = p.Y
	}
	for k, v := range p.Extra {
		if _, taken := obj[k]; taken {
			continue
		}
		obj[k] = v
	}
	return json.Marshal(obj)
}

// UnmarshalJSON rebuilds a point from its flattened wire shape. Unknown
// keys land back in Extra.
func (p *ChartPoint) UnmarshalJSON(data []byte) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*p = ChartPoint{}
	var hasX, hasY bool
	for k, raw := range obj {
		switch k {
		case "label":
			_ = json.Unmarshal(raw, &p.Label)
		case "value":
			_ = json.Unmarshal(raw, &p.Value)
		case "x":
			hasX = json.Unmarshal(raw, &p.X) == nil
		case "y":
			hasY = json.Unmarshal(raw, &p.Y) == nil
		default:
			var v interface{}
			if err := json.Unmarshal(raw, &v); err != nil {
				continue
			}
			if p.Extra == nil {
				p.Extra = make(map[string]Scalar)
			}
			p.Extra[k] = v
		}
	}
	p.HasXY = hasX && hasY
	return nil
}

// ChartRecord is a fully resolved chart: data points plus presentation
// metadata. Records with fewer than two points are discarded upstream and
// must never be persisted.
type ChartRecord struct {
	ID        string       `json:"id"`
	Title     string       `json:"title"`
	XAxis     string       `json:"x_axis"`
	YAxis     string       `json:"y_axis"`
	ChartType string       `json:"chart_type"`
	Data      []ChartPoint `json:"data"`
}

// Void reports whether the record resolved to too little data to be worth
// rendering (zero or one point).
func (c ChartRecord) Void() bool {
	return len(c.Data) <= 1
}

// ExplorationResult is the ephemeral grounding contract handed to answer
// generation: short facts plus the closed set of entity names the answer
// may mention.
type ExplorationResult struct {
	Facts           []string
	AllowedEntities map[string]struct{}
}

// AddEntity records an allowed entity name.
func (r *ExplorationResult) AddEntity(name string) {
	if r.AllowedEntities == nil {
		r.AllowedEntities = make(map[string]struct{})
	}
	r.AllowedEntities[name] = struct{}{}
}

// AnswerError is the structured error surfaced when a whole answer is
// impossible: a stable kind, a human-readable message, and a suggestion
// for the user.
type AnswerError struct {
	Kind       string `json:"error_type"`
	Message    string `json:"error"`
	Suggestion string `json:"suggestion"`
}

func (e *AnswerError) Error() string {
	return e.Kind + ": " + e.Message
}
