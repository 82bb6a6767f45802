package repository

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestSanitizeFilter_DropsWriteOperators(t *testing.T) {
	filter := map[string]any{
		"price":  map[string]any{"$lte": 5000000.0},
		"$set":   map[string]any{"price": 1},
		"$merge": "somewhere",
		"$or": []any{
			map[string]any{"location": "phase 4"},
			map[string]any{"$out": "elsewhere", "sector": "c"},
		},
	}

	got := sanitizeFilter(filter)

	require.NotContains(t, got, "$set")
	require.NotContains(t, got, "$merge")
	require.Contains(t, got, "price")

	or, ok := got["$or"].([]any)
	require.True(t, ok)
	require.Len(t, or, 2)
	second, ok := or[1].(map[string]any)
	require.True(t, ok)
	require.NotContains(t, second, "$out")
	require.Contains(t, second, "sector")
}

func TestSanitizeFilter_KeepsReadOperators(t *testing.T) {
	filter := map[string]any{
		"bedrooms": map[string]any{"$gte": 2, "$lte": 4},
		"location": map[string]any{"$regex": "bahria", "$options": "i"},
	}

	got := sanitizeFilter(filter)

	bedrooms := got["bedrooms"].(map[string]any)
	require.Equal(t, 2, bedrooms["$gte"])
	require.Equal(t, 4, bedrooms["$lte"])
	location := got["location"].(map[string]any)
	require.Equal(t, "bahria", location["$regex"])
}

func TestSanitizeFilter_Nil(t *testing.T) {
	got := sanitizeFilter(nil)
	require.NotNil(t, got)
	require.Empty(t, got)
}

func TestExclusionProjection_AlwaysStripsID(t *testing.T) {
	proj := exclusionProjection([]string{"property_type"})
	require.Contains(t, proj, bson.E{Key: "property_type", Value: 0})
	require.Contains(t, proj, bson.E{Key: "_id", Value: 0})

	// _id listed explicitly is not duplicated
	proj = exclusionProjection([]string{"_id", "property_type"})
	count := 0
	for _, e := range proj {
		if e.Key == "_id" {
			count++
		}
	}
	require.Equal(t, 1, count)
}

func TestProjectionFor(t *testing.T) {
	proj := projectionFor([]string{"title", "price"}, nil)
	require.Equal(t, bson.E{Key: "_id", Value: 0}, proj[0])
	require.Contains(t, proj, bson.E{Key: "title", Value: 1})
	require.Contains(t, proj, bson.E{Key: "price", Value: 1})

	// No fields: falls back to exclusion form
	proj = projectionFor(nil, []string{"property_type"})
	require.Contains(t, proj, bson.E{Key: "property_type", Value: 0})
}
