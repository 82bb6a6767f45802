package service

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"estatechat/internal/model"
	"estatechat/internal/schema"
	"estatechat/internal/utils"
)

// QueryBuilder turns extracted entity text into a validated QuerySpec. The
// shape decision is deterministic: it counts the distinct collections the
// text refers to and emits either a single-collection filter or a union
// pipeline. The model's own claimed query is only a hint and is always
// re-validated against the catalog.
type QueryBuilder struct {
	catalog *schema.Catalog
	log     *zap.Logger
}

// NewQueryBuilder creates a new query builder
func NewQueryBuilder(catalog *schema.Catalog, log *zap.Logger) *QueryBuilder {
	return &QueryBuilder{catalog: catalog, log: log}
}

// unsafeTokens are operators and verbs that indicate a write attempt.
// Their presence anywhere in the inputs rejects the whole build; this is a
// hard boundary, not a best-effort filter.
var unsafeTokens = []string{
	"$set", "$unset", "$push", "$pull", "$pop", "$rename", "$inc",
	"$out", "$merge", "$addfields", "$replaceroot",
}

var unsafeVerbRe = regexp.MustCompile(`(?i)\b(delete|drop|insert|truncate|updateone|updatemany|deleteone|deletemany|findandmodify)\b`)

// Build constructs a QuerySpec from entity text plus an optional
// model-suggested filter (raw JSON from the intent payload).
func (b *QueryBuilder) Build(entityText, suggestedFilter string) (*model.QuerySpec, error) {
	if err := b.rejectUnsafe(entityText); err != nil {
		return nil, err
	}
	if err := b.rejectUnsafe(suggestedFilter); err != nil {
		return nil, err
	}

	collections := b.catalog.ResolveMentions(entityText)
	if len(collections) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoCollectionResolved, utils.TruncateString(entityText, 80))
	}

	suggested := b.parseSuggestedFilter(suggestedFilter)

	var stages []model.Stage
	var dropped int
	for i, collection := range collections {
		filter := b.deriveFilter(entityText, collection)
		if i == 0 && len(suggested) > 0 {
			// The model's filter targets the primary collection; merge
			// only after validating every claimed field name.
			for key, value := range suggested {
				filter[key] = value
			}
		}

		stage := model.Stage{
			Collection: collection,
			Filter:     filter,
			Fields:     b.permittedFields(collection),
		}
		if err := b.validateStage(stage); err != nil {
			b.log.Warn("dropping query stage with invalid field reference",
				zap.String("collection", collection),
				zap.Error(err))
			dropped++
			continue
		}
		stages = append(stages, stage)
	}

	if len(stages) == 0 {
		if dropped > 0 {
			return nil, fmt.Errorf("%w: all stages dropped", ErrInvalidFieldReference)
		}
		return nil, ErrNoCollectionResolved
	}

	spec := &model.QuerySpec{
		Mode:    model.ModeSingle,
		Primary: stages[0].Collection,
		Stages:  stages,
	}
	if len(stages) > 1 {
		spec.Mode = model.ModeUnion
	}
	return spec, nil
}

// rejectUnsafe fails when the input resembles a write instruction
func (b *QueryBuilder) rejectUnsafe(text string) error {
	if text == "" {
		return nil
	}
	lower := strings.ToLower(text)
	for _, token := range unsafeTokens {
		if strings.Contains(lower, token) {
			b.log.Warn("rejected write-shaped query", zap.String("token", token))
			return fmt.Errorf("%w: %s", ErrUnsafeOperationRejected, token)
		}
	}
	if m := unsafeVerbRe.FindString(text); m != "" {
		b.log.Warn("rejected write-shaped query", zap.String("token", m))
		return fmt.Errorf("%w: %s", ErrUnsafeOperationRejected, strings.ToLower(m))
	}
	return nil
}

// parseSuggestedFilter parses the model-claimed filter JSON. An
// unparseable hint is ignored: the derived filter still stands on its own.
func (b *QueryBuilder) parseSuggestedFilter(raw string) map[string]any {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var parsed map[string]any
	if err := utils.ParseModelJSON(raw, &parsed); err != nil {
		b.log.Warn("ignoring unparseable model filter hint",
			zap.String("raw", utils.TruncateString(raw, 120)))
		return nil
	}
	return parsed
}

// validateStage checks every referenced field against the collection's
// schema. Operator keys describe structure, not fields, and are skipped.
func (b *QueryBuilder) validateStage(stage model.Stage) error {
	if !b.catalog.Has(stage.Collection) {
		return fmt.Errorf("%w: %s", schema.ErrUnknownCollection, stage.Collection)
	}
	for _, field := range filterFieldNames(stage.Filter) {
		if !b.catalog.HasField(stage.Collection, field) {
			return fmt.Errorf("%w: %s.%s", ErrInvalidFieldReference, stage.Collection, field)
		}
	}
	for _, field := range stage.Fields {
		if !b.catalog.HasField(stage.Collection, field) {
			return fmt.Errorf("%w: %s.%s", ErrInvalidFieldReference, stage.Collection, field)
		}
	}
	return nil
}

// filterFieldNames collects the non-operator keys at every nesting level
func filterFieldNames(filter map[string]any) []string {
	var names []string
	for key, value := range filter {
		if strings.HasPrefix(key, "$") {
			if items, ok := value.([]any); ok {
				for _, item := range items {
					if sub, ok := item.(map[string]any); ok {
						names = append(names, filterFieldNames(sub)...)
					}
				}
			}
			continue
		}
		names = append(names, key)
	}
	return names
}

// permittedFields is the projection for a collection: its full schema.
// Metadata fields are excluded by construction.
func (b *QueryBuilder) permittedFields(collection string) []string {
	fields, err := b.catalog.FieldsOf(collection)
	if err != nil {
		return nil
	}
	return fields
}

// Entity text extraction patterns. Amounts accept Pakistani real-estate
// units (lakh, crore) alongside k/m shorthand.
var (
	priceMaxRe  = regexp.MustCompile(`(?i)(?:under|below|less than|up ?to|within|max(?:imum)?)\s*(?:pkr|rs\.?)?\s*([\d,]+(?:\.\d+)?)\s*(lakh|lac|crore|k|m|million)?`)
	priceMinRe  = regexp.MustCompile(`(?i)(?:over|above|more than|at least|min(?:imum)?|starting(?: from)?)\s*(?:pkr|rs\.?)?\s*([\d,]+(?:\.\d+)?)\s*(lakh|lac|crore|k|m|million)?`)
	bedroomsRe  = regexp.MustCompile(`(?i)(\d+)\s*(?:bed(?:room)?s?\b|bhk\b)`)
	bathroomsRe = regexp.MustCompile(`(?i)(\d+)\s*bath(?:room)?s?\b`)
	marlaRe     = regexp.MustCompile(`(?i)([\d.]+)\s*marla`)
	kanalRe     = regexp.MustCompile(`(?i)([\d.]+)\s*kanal`)
	sqftRe      = regexp.MustCompile(`(?i)([\d,]+)\s*(?:sq\.? ?ft|sqft|square f(?:ee|oo)t)`)
	locationRe  = regexp.MustCompile(`(?i)\bin\s+([a-z][a-z0-9 \-]*?)(?:\s+(?:with|under|over|below|above|for|near|around|between|up ?to)\b|[.,;!?]|$)`)
	cornerRe    = regexp.MustCompile(`(?i)\bcorner\b`)
)

// deriveFilter extracts structured constraints from free entity text,
// keeping only fields the target collection's schema permits
func (b *QueryBuilder) deriveFilter(text, collection string) map[string]any {
	filter := map[string]any{}

	setRange := func(field string, op string, value float64) {
		if !b.catalog.HasField(collection, field) {
			return
		}
		bounds, ok := filter[field].(map[string]any)
		if !ok {
			bounds = map[string]any{}
			filter[field] = bounds
		}
		bounds[op] = value
	}

	if m := priceMaxRe.FindStringSubmatch(text); m != nil {
		if v, ok := parseAmount(m[1], m[2]); ok {
			setRange("price", "$lte", v)
		}
	}
	if m := priceMinRe.FindStringSubmatch(text); m != nil {
		if v, ok := parseAmount(m[1], m[2]); ok {
			setRange("price", "$gte", v)
		}
	}

	if m := bedroomsRe.FindStringSubmatch(text); m != nil && b.catalog.HasField(collection, "bedrooms") {
		if v, err := strconv.Atoi(m[1]); err == nil {
			filter["bedrooms"] = v
		}
	}
	if m := bathroomsRe.FindStringSubmatch(text); m != nil && b.catalog.HasField(collection, "bathrooms") {
		if v, err := strconv.Atoi(m[1]); err == nil {
			filter["bathrooms"] = v
		}
	}

	if m := marlaRe.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			setRange("area_marla", "$gte", v)
		}
	}
	if m := kanalRe.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			// 1 kanal = 20 marla
			setRange("area_marla", "$gte", v*20)
		}
	}
	if m := sqftRe.FindStringSubmatch(text); m != nil {
		if v, ok := parseAmount(m[1], ""); ok {
			setRange("area_sqft", "$gte", v)
		}
	}

	if m := locationRe.FindStringSubmatch(text); m != nil && b.catalog.HasField(collection, "location") {
		loc := strings.TrimSpace(m[1])
		if loc != "" {
			filter["location"] = map[string]any{"$regex": regexp.QuoteMeta(loc), "$options": "i"}
		}
	}

	if b.catalog.HasField(collection, "furnished") {
		lower := strings.ToLower(text)
		if strings.Contains(lower, "unfurnished") {
			filter["furnished"] = false
		} else if strings.Contains(lower, "furnished") {
			filter["furnished"] = true
		}
	}
	if b.catalog.HasField(collection, "corner") && cornerRe.MatchString(text) {
		filter["corner"] = true
	}

	return filter
}

// parseAmount converts a number with an optional unit suffix to a plain
// value (lakh = 1e5, crore = 1e7)
func parseAmount(num, unit string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(num, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	switch strings.ToLower(unit) {
	case "k":
		v *= 1_000
	case "lakh", "lac":
		v *= 100_000
	case "m", "million":
		v *= 1_000_000
	case "crore":
		v *= 10_000_000
	}
	return v, true
}
