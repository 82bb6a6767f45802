package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"estatechat/internal/model"
	"estatechat/internal/schema"
)

func newTestBuilder() *QueryBuilder {
	return NewQueryBuilder(schema.NewCatalog(), zap.NewNop())
}

func TestQueryBuilder_SingleCollection(t *testing.T) {
	builder := newTestBuilder()

	spec, err := builder.Build("2 bedroom apartment in phase 4 under 80 lakh", "")
	require.NoError(t, err)

	assert.Equal(t, model.ModeSingle, spec.Mode)
	assert.Equal(t, "apartments", spec.Primary)
	require.Len(t, spec.Stages, 1)

	filter := spec.Stages[0].Filter
	assert.Equal(t, 2, filter["bedrooms"])
	price, ok := filter["price"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 8_000_000.0, price["$lte"])
	loc, ok := filter["location"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "i", loc["$options"])
}

func TestQueryBuilder_UnionMode(t *testing.T) {
	builder := newTestBuilder()

	spec, err := builder.Build("show me a home or apartment in bahria town with 5 marla", "")
	require.NoError(t, err)

	assert.Equal(t, model.ModeUnion, spec.Mode)
	assert.Equal(t, "homes", spec.Primary)
	require.Len(t, spec.Stages, 2)
	assert.Equal(t, "apartments", spec.Stages[1].Collection)

	// Schemas differ: area_marla belongs to homes, not apartments
	_, hasMarla := spec.Stages[0].Filter["area_marla"]
	assert.True(t, hasMarla)
	_, hasMarlaApartments := spec.Stages[1].Filter["area_marla"]
	assert.False(t, hasMarlaApartments)

	// Each stage projects only its own collection's fields
	assert.Contains(t, spec.Stages[0].Fields, "area_marla")
	assert.NotContains(t, spec.Stages[1].Fields, "area_marla")
	assert.Contains(t, spec.Stages[1].Fields, "area_sqft")
}

func TestQueryBuilder_NoCollectionResolved(t *testing.T) {
	builder := newTestBuilder()

	_, err := builder.Build("what is the weather like today", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoCollectionResolved))
}

func TestQueryBuilder_UnsafeRejected(t *testing.T) {
	builder := newTestBuilder()

	tests := []struct {
		name string
		text string
	}{
		{"drop verb", "drop the homes collection"},
		{"delete verb", "delete all plots in sector c"},
		{"update operator in hint", `a flat {"$set": {"price": 1}}`},
		{"merge operator", "apartments $merge into homes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := builder.Build(tt.text, "")
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUnsafeOperationRejected), "got %v", err)
		})
	}
}

func TestQueryBuilder_UnsafeSuggestedFilterRejected(t *testing.T) {
	builder := newTestBuilder()

	_, err := builder.Build("a house in bahria", `{"$set": {"price": 0}}`)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsafeOperationRejected))
}

func TestQueryBuilder_InvalidFieldDropsStage(t *testing.T) {
	builder := newTestBuilder()

	// The model claims a field that no collection has; the only stage is
	// dropped and the build fails rather than executing a bad query.
	_, err := builder.Build("a house in bahria", `{"swimming_pools": 3}`)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidFieldReference), "got %v", err)
}

func TestQueryBuilder_ValidSuggestedFilterMerged(t *testing.T) {
	builder := newTestBuilder()

	spec, err := builder.Build("a furnished house", `{"sector": "C"}`)
	require.NoError(t, err)
	require.Len(t, spec.Stages, 1)
	assert.Equal(t, "C", spec.Stages[0].Filter["sector"])
	assert.Equal(t, true, spec.Stages[0].Filter["furnished"])
}

func TestQueryBuilder_AmountUnits(t *testing.T) {
	tests := []struct {
		num, unit string
		want      float64
	}{
		{"50", "lakh", 5_000_000},
		{"1.5", "crore", 15_000_000},
		{"800", "k", 800_000},
		{"2", "million", 2_000_000},
		{"90,000", "", 90_000},
	}

	for _, tt := range tests {
		got, ok := parseAmount(tt.num, tt.unit)
		require.True(t, ok)
		assert.Equal(t, tt.want, got, "%s %s", tt.num, tt.unit)
	}

	_, ok := parseAmount("not-a-number", "")
	assert.False(t, ok)
}

func TestQueryBuilder_ProjectionsExcludeMetadata(t *testing.T) {
	builder := newTestBuilder()

	spec, err := builder.Build("plots in sector e", "")
	require.NoError(t, err)
	for _, stage := range spec.Stages {
		assert.NotContains(t, stage.Fields, "_id")
		assert.NotContains(t, stage.Fields, "property_type")
	}
}
