package schema

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// ErrUnknownCollection indicates a collection name missing from the catalog
var ErrUnknownCollection = errors.New("unknown collection")

// MetadataFields are always excluded from projections regardless of schema:
// internal identifiers and the type discriminator never reach the caller.
var MetadataFields = []string{"_id", "property_type"}

// Catalog is the static registry of collection names and their permitted
// field sets. Defined at startup, never mutated, safe for concurrent reads.
type Catalog struct {
	collections map[string][]string
	aliases     map[string]string
}

// defaultCollections describes the property corpus. Schemas differ on
// purpose: homes and plots measure area in marla, apartments in sqft, and
// only apartments carry building/floor.
var defaultCollections = map[string][]string{
	"homes": {
		"title", "location", "sector", "price", "bedrooms", "bathrooms",
		"area_marla", "furnished", "description",
	},
	"apartments": {
		"title", "location", "building", "floor", "price", "bedrooms",
		"bathrooms", "area_sqft", "description",
	},
	"plots": {
		"title", "location", "sector", "plot_number", "price", "area_marla",
		"corner", "description",
	},
}

// defaultAliases maps free-text mentions to canonical collection names
var defaultAliases = map[string][]string{
	"homes":      {"home", "homes", "house", "houses", "villa", "villas", "bungalow", "bungalows"},
	"apartments": {"apartment", "apartments", "flat", "flats", "penthouse", "studio"},
	"plots":      {"plot", "plots", "land"},
}

// NewCatalog builds the default property catalog
func NewCatalog() *Catalog {
	return NewCatalogWith(defaultCollections, defaultAliases)
}

// NewCatalogWith builds a catalog from explicit schemas and alias tables.
// Field sets and aliases are copied so callers cannot mutate the catalog.
func NewCatalogWith(collections map[string][]string, aliases map[string][]string) *Catalog {
	c := &Catalog{
		collections: make(map[string][]string, len(collections)),
		aliases:     make(map[string]string),
	}
	for name, fields := range collections {
		copied := make([]string, len(fields))
		copy(copied, fields)
		c.collections[name] = copied
		// A collection's own name always resolves to itself
		c.aliases[name] = name
	}
	for name, words := range aliases {
		if _, ok := c.collections[name]; !ok {
			continue
		}
		for _, w := range words {
			c.aliases[strings.ToLower(w)] = name
		}
	}
	return c
}

// Collections returns the catalog's collection names, sorted
func (c *Catalog) Collections() []string {
	names := make([]string, 0, len(c.collections))
	for name := range c.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether the collection exists
func (c *Catalog) Has(name string) bool {
	_, ok := c.collections[name]
	return ok
}

// FieldsOf returns the permitted field set of a collection
func (c *Catalog) FieldsOf(name string) ([]string, error) {
	fields, ok := c.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCollection, name)
	}
	out := make([]string, len(fields))
	copy(out, fields)
	return out, nil
}

// HasField reports whether a field belongs to a collection's schema.
// Metadata fields are never considered part of any schema.
func (c *Catalog) HasField(collection, field string) bool {
	fields, ok := c.collections[collection]
	if !ok {
		return false
	}
	for _, m := range MetadataFields {
		if field == m {
			return false
		}
	}
	for _, f := range fields {
		if f == field {
			return true
		}
	}
	return false
}

var wordRe = regexp.MustCompile(`[a-z][a-z_]*`)

// ResolveMentions finds the distinct collections the text plausibly refers
// to, in order of first mention. The model's claimed collection list is only
// a hint; this is the validated resolution used for the query shape decision.
func (c *Catalog) ResolveMentions(text string) []string {
	lower := strings.ToLower(text)
	first := make(map[string]int)
	for _, loc := range wordRe.FindAllStringIndex(lower, -1) {
		word := lower[loc[0]:loc[1]]
		name, ok := c.aliases[word]
		if !ok {
			continue
		}
		if _, seen := first[name]; !seen {
			first[name] = loc[0]
		}
	}
	names := make([]string, 0, len(first))
	for name := range first {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return first[names[i]] < first[names[j]] })
	return names
}
