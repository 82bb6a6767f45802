package schema

import (
	"errors"
	"testing"
)

func TestCatalog_FieldsOf(t *testing.T) {
	catalog := NewCatalog()

	fields, err := catalog.FieldsOf("apartments")
	if err != nil {
		t.Fatalf("FieldsOf(apartments) returned error: %v", err)
	}
	if len(fields) == 0 {
		t.Fatal("Expected non-empty field set for apartments")
	}

	_, err = catalog.FieldsOf("boats")
	if !errors.Is(err, ErrUnknownCollection) {
		t.Errorf("Expected ErrUnknownCollection, got %v", err)
	}
}

func TestCatalog_HasField(t *testing.T) {
	catalog := NewCatalog()

	tests := []struct {
		name       string
		collection string
		field      string
		want       bool
	}{
		{"known field", "homes", "bedrooms", true},
		{"field from another collection", "plots", "bedrooms", false},
		{"metadata id never valid", "homes", "_id", false},
		{"discriminator never valid", "apartments", "property_type", false},
		{"unknown collection", "boats", "price", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := catalog.HasField(tt.collection, tt.field); got != tt.want {
				t.Errorf("HasField(%s, %s) = %v, want %v", tt.collection, tt.field, got, tt.want)
			}
		})
	}
}

func TestCatalog_ResolveMentions(t *testing.T) {
	catalog := NewCatalog()

	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "single collection via alias",
			text: "a 2 bedroom flat in phase 4",
			want: []string{"apartments"},
		},
		{
			name: "two collections in mention order",
			text: "show me a home or an apartment with 5 marla area",
			want: []string{"homes", "apartments"},
		},
		{
			name: "duplicate mentions count once",
			text: "houses, more houses, and a villa",
			want: []string{"homes"},
		},
		{
			name: "no collection",
			text: "what is the weather today",
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := catalog.ResolveMentions(tt.text)
			if len(got) != len(tt.want) {
				t.Fatalf("ResolveMentions(%q) = %v, want %v", tt.text, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("ResolveMentions(%q)[%d] = %s, want %s", tt.text, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestCatalog_ImmutableFieldSets(t *testing.T) {
	catalog := NewCatalog()
	fields, err := catalog.FieldsOf("homes")
	if err != nil {
		t.Fatal(err)
	}
	fields[0] = "tampered"

	again, _ := catalog.FieldsOf("homes")
	if again[0] == "tampered" {
		t.Error("Mutating a returned field set must not affect the catalog")
	}
}
