package service

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"estatechat/internal/model"
	"estatechat/internal/utils"
)

// IntentParser extracts a structured Intent from raw model output. The
// output may be clean JSON, JSON buried in markdown fences or prose, or no
// JSON at all; free text that isn't JSON is a legitimate general answer,
// not a parse failure.
type IntentParser struct {
	log *zap.Logger
}

// NewIntentParser creates a new intent parser
func NewIntentParser(log *zap.Logger) *IntentParser {
	return &IntentParser{log: log}
}

// Parse classifies one raw collaborator response.
// Strategy, in order: strict JSON parse of the full text; extraction of a
// fenced block or the first balanced object; otherwise the whole text is
// treated as a plain-language answer. Text that is JSON-shaped but broken
// (e.g. truncated braces) surfaces as MalformedIntentError with the raw
// text attached.
func (p *IntentParser) Parse(raw string) (*model.Intent, error) {
	var parsed map[string]any
	if err := utils.ParseModelJSON(raw, &parsed); err != nil {
		if utils.LooksLikeJSON(raw) {
			p.log.Warn("model output was JSON-shaped but unparseable",
				zap.String("raw", utils.TruncateString(raw, 200)))
			return nil, &MalformedIntentError{Raw: raw}
		}
		return &model.Intent{
			Kind:    model.IntentGeneral,
			Payload: map[string]string{"response": raw},
		}, nil
	}

	intent := &model.Intent{
		Kind:    model.IntentUnknown,
		Payload: make(map[string]string, len(parsed)),
	}

	for key, value := range parsed {
		if key == "query_type" {
			continue
		}
		intent.Payload[key] = stringify(value)
	}

	switch parsed["query_type"] {
	case model.QueryTypeGeneral:
		intent.Kind = model.IntentGeneral
	case model.QueryTypePropertyFetch:
		intent.Kind = model.IntentPropertyFetch
	default:
		intent.Kind = model.IntentUnknown
	}

	return intent, nil
}

// stringify flattens a payload value to a string. Nested objects keep
// their JSON form so downstream consumers (e.g. a model-suggested filter)
// can re-parse them.
func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case nil:
		return ""
	case float64, bool:
		return fmt.Sprint(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	}
}
