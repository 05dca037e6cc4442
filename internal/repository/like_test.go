package repository

import "testing"

func TestLikePattern(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Smith", "%smith%"},
		{"50%", `%50\%%`},
		{"a_b", `%a\_b%`},
		{`back\slash`, `%back\\slash%`},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := LikePattern(tt.in); got != tt.want {
				t.Errorf("LikePattern(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
