package prompt

import (
	"errors"
	"testing"

	"estatechat/internal/model"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name     string
		template string
		values   map[string]string
		want     string
		wantErr  bool
	}{
		{
			name:     "all placeholders substituted",
			template: "History:\n{history}\n\nTurn {turn}: {user_input}",
			values:   map[string]string{"history": "user: hi", "turn": "2", "user_input": "any flats?"},
			want:     "History:\nuser: hi\n\nTurn 2: any flats?",
		},
		{
			name:     "extra values ignored",
			template: "Hello {name}",
			values:   map[string]string{"name": "world", "unused": "x"},
			want:     "Hello world",
		},
		{
			name:     "no placeholders",
			template: "static text",
			values:   nil,
			want:     "static text",
		},
		{
			name:     "missing placeholder fails",
			template: "Turn {turn}: {user_input}",
			values:   map[string]string{"turn": "1"},
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Render(tt.template, tt.values)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected error, got nil")
				}
				var fieldErr *FieldMissingError
				if !errors.As(err, &fieldErr) {
					t.Fatalf("Expected FieldMissingError, got %T", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Render returned error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Render() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRender_MissingFieldNamed(t *testing.T) {
	_, err := Render("{user_input}", map[string]string{})
	var fieldErr *FieldMissingError
	if !errors.As(err, &fieldErr) {
		t.Fatalf("Expected FieldMissingError, got %v", err)
	}
	if fieldErr.Field != "user_input" {
		t.Errorf("Expected field user_input, got %s", fieldErr.Field)
	}
}

func TestFormatHistory(t *testing.T) {
	turns := []model.Turn{
		{Role: model.RoleUser, Text: "hi"},
		{Role: model.RoleAssistant, Text: "hello"},
	}
	want := "user: hi\nassistant: hello"
	if got := FormatHistory(turns); got != want {
		t.Errorf("FormatHistory() = %q, want %q", got, want)
	}

	if got := FormatHistory(nil); got != "" {
		t.Errorf("FormatHistory(nil) = %q, want empty", got)
	}
}
