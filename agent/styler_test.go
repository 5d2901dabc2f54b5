package agent

import "testing"

func TestVocabularyStyler(t *testing.T) {
	styler := NewVocabularyStyler(map[string]string{
		"good":      "splendid",
		"bad":       "dreadful",
		"very good": "magnificent",
	})

	tests := []struct {
		in   string
		want string
	}{
		{"good", "splendid"},
		{"Good morning", "Splendid morning"},
		{"GOOD LUCK", "SPLENDID LUCK"},
		{"goodness me", "goodness me"},
		{"not bad, very good", "not dreadful, magnificent"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := styler.Style(tt.in); got != tt.want {
				t.Errorf("Style(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestVocabularyStyler_EmptyReplacement(t *testing.T) {
	styler := NewVocabularyStyler(map[string]string{"very": ""})

	if got, want := styler.Style("Very good, VERY nice, very well"), " good,  nice,  well"; got != want {
		t.Errorf("Style() = %q, want %q", got, want)
	}
}

func TestNoopStyler(t *testing.T) {
	if got := (NoopStyler{}).Style("As is"); got != "As is" {
		t.Errorf("NoopStyler changed text: %q", got)
	}
}
