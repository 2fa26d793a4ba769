package channels

import (
	"testing"
	"unicode/utf8"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"short", "Olá", 10, "Olá"},
		{"exact", "Olá", 4, "Olá"},
		{"ascii", "hello world", 5, "hello..."},
		{"inside multibyte rune", "Olá mundo", 3, "Ol..."},
		{"after multibyte rune", "Olá mundo", 4, "Olá..."},
		{"emoji", "👋 oi", 2, "..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Truncate(tt.in, tt.max)
			if got != tt.want {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("Truncate(%q, %d) = %q is not valid UTF-8", tt.in, tt.max, got)
			}
		})
	}
}

func TestDigitsOnly(t *testing.T) {
	if got := DigitsOnly("+55 (11) 99999-9999"); got != "5511999999999" {
		t.Errorf("DigitsOnly = %q", got)
	}
}
