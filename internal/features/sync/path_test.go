package sync

import (
	"reflect"
	"testing"
)

func TestExtractPath(t *testing.T) {
	doc := map[string]any{
		"name": "Ace Bakery",
		"profile": map[string]any{
			"description": "Fresh bread daily",
		},
		"photos": []any{
			map[string]any{"url": "https://cdn.example.com/a.jpg"},
			map[string]any{"url": "https://cdn.example.com/b.jpg"},
		},
		"regular_hours": map[string]any{
			"periods": map[string]any{
				"monday": map[string]any{"open": "09:00", "close": "17:00"},
			},
		},
		"empty": nil,
	}

	tests := []struct {
		name   string
		path   string
		want   any
		wantOK bool
	}{
		{
			name:   "top level",
			path:   "name",
			want:   "Ace Bakery",
			wantOK: true,
		},
		{
			name:   "nested",
			path:   "profile.description",
			want:   "Fresh bread daily",
			wantOK: true,
		},
		{
			name:   "deeply nested",
			path:   "regular_hours.periods.monday.open",
			want:   "09:00",
			wantOK: true,
		},
		{
			name:   "array index bracket form",
			path:   "photos[1].url",
			want:   "https://cdn.example.com/b.jpg",
			wantOK: true,
		},
		{
			name:   "array index dot form",
			path:   "photos.0.url",
			want:   "https://cdn.example.com/a.jpg",
			wantOK: true,
		},
		{
			name:   "array index out of range",
			path:   "photos[5].url",
			wantOK: false,
		},
		{
			name:   "missing key",
			path:   "profile.phone",
			wantOK: false,
		},
		{
			name:   "traverse through scalar",
			path:   "name.length",
			wantOK: false,
		},
		{
			name:   "nil value treated as absent",
			path:   "empty",
			wantOK: false,
		},
		{
			name:   "empty path",
			path:   "",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractPath(doc, tt.path)
			if ok != tt.wantOK {
				t.Fatalf("ExtractPath(%q) ok = %v, want %v", tt.path, ok, tt.wantOK)
			}
			if ok && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractPath(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}
