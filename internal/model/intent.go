package model

// IntentKind classifies what a user turn is asking for
type IntentKind string

const (
	IntentGeneral       IntentKind = "general"
	IntentPropertyFetch IntentKind = "property_fetch"
	IntentUnknown       IntentKind = "unknown"
)

// Wire values of the query_type field in the classification contract
const (
	QueryTypeGeneral       = "general_query"
	QueryTypePropertyFetch = "property_fetch_request"
)

// Intent represents the parsed result of classifying one user turn.
// Payload carries the free-form entities extracted by the model, e.g.
// a cleaned property description or the response text for general replies.
type Intent struct {
	Kind    IntentKind        `json:"kind"`
	Payload map[string]string `json:"payload"`
}

// Response returns the model-drafted reply for general intents
func (i *Intent) Response() string {
	if i == nil || i.Payload == nil {
		return ""
	}
	return i.Payload["response"]
}

// EntityText returns the cleaned property description for fetch intents,
// falling back through the payload keys the prompt contract allows.
func (i *Intent) EntityText() string {
	if i == nil || i.Payload == nil {
		return ""
	}
	for _, key := range []string{"description", "query", "response"} {
		if v := i.Payload[key]; v != "" {
			return v
		}
	}
	return ""
}
