package model

// QueryMode distinguishes single-collection filters from multi-collection unions
type QueryMode string

const (
	ModeSingle QueryMode = "single"
	ModeUnion  QueryMode = "union"
)

// Stage is one match+projection against a single collection. Fields lists the
// projected field names, always restricted to the collection's own schema.
type Stage struct {
	Collection string         `json:"collection"`
	Filter     map[string]any `json:"filter"`
	Fields     []string       `json:"fields,omitempty"`
}

// QuerySpec is the decided, validated query shape ready for execution.
// For single mode Stages holds exactly one filter stage; for union mode the
// first stage targets Primary and the rest become unionWith references, each
// carrying its own constraints.
type QuerySpec struct {
	Mode    QueryMode `json:"mode"`
	Primary string    `json:"primary_collection"`
	Stages  []Stage   `json:"stages"`
}

// Secondaries returns the union stages after the primary one
func (q *QuerySpec) Secondaries() []Stage {
	if len(q.Stages) <= 1 {
		return nil
	}
	return q.Stages[1:]
}

// Document is one retrieved property record. Collections have heterogeneous
// schemas, so documents keep whatever fields their collection defines.
type Document map[string]any
