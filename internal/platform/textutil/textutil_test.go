package textutil

import (
	"reflect"
	"strings"
	"testing"
)

func TestNormalizeSelection(t *testing.T) {
	t.Run("trims names and keeps values verbatim", func(t *testing.T) {
		input := map[string]string{
			" Size ": "M",
			"color":  "Red",
			"empty":  " ",
			" ":      "ignored",
		}
		expected := map[string]string{
			"Size":  "M",
			"color": "Red",
		}
		if actual := NormalizeSelection(input); !reflect.DeepEqual(actual, expected) {
			t.Fatalf("expected %#v got %#v", expected, actual)
		}
	})

	t.Run("returns nil for nil or empty input", func(t *testing.T) {
		if NormalizeSelection(nil) != nil {
			t.Fatalf("expected nil for nil input")
		}
		if NormalizeSelection(map[string]string{"": "x"}) != nil {
			t.Fatalf("expected nil when every entry is dropped")
		}
	})
}

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"0551 23 45 67", "0551234567"},
		{"+213 551-23-45-67", "0551234567"},
		{"00213551234567", "0551234567"},
		{"+2130551234567", "0551234567"},
		{"\uff10\uff15\uff15\uff11\uff12\uff13\uff14\uff15\uff16\uff17", "0551234567"},
		{"+33 6 12 34 56 78", "+33612345678"},
		{"   ", ""},
		{"n/a", ""},
	}
	for _, tc := range cases {
		if got := NormalizePhone(tc.input); got != tc.want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestSanitizeNote(t *testing.T) {
	got := SanitizeNote("  <b>Call</b>   back <script>alert(1)</script>after 18h & ask for Amine ")
	if got != "Call back after 18h & ask for Amine" {
		t.Fatalf("unexpected sanitised note %q", got)
	}

	long := strings.Repeat("é", MaxNoteLength+20)
	if n := len([]rune(SanitizeNote(long))); n != MaxNoteLength {
		t.Fatalf("expected %d runes, got %d", MaxNoteLength, n)
	}
}
