package common

import "testing"

func TestCanonicalName(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "empty input",
			raw:  "",
			want: "",
		},
		{
			name: "simple name",
			raw:  "marie curie",
			want: "Marie Curie",
		},
		{
			name: "collapses whitespace",
			raw:  "  marie   curie ",
			want: "Marie Curie",
		},
		{
			name: "function word in the middle stays lower",
			raw:  "theory of relativity",
			want: "Theory of Relativity",
		},
		{
			name: "function word at first position is capitalized",
			raw:  "the hague",
			want: "The Hague",
		},
		{
			name: "function word at last position is capitalized",
			raw:  "what dreams are for",
			want: "What Dreams Are For",
		},
		{
			name: "all caps input normalizes",
			raw:  "ACME CORPORATION",
			want: "Acme Corporation",
		},
		{
			name: "hyphenated compound",
			raw:  "jean-paul sartre",
			want: "Jean-Paul Sartre",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CanonicalName(tt.raw)
			if got != tt.want {
				t.Errorf("CanonicalName(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestCanonicalNameIdempotent(t *testing.T) {
	inputs := []string{
		"marie curie",
		"Theory of Relativity",
		"THE ORIGIN OF SPECIES",
		"a tale of two cities",
		"Jean-Paul Sartre",
		"  spaced   out  ",
	}
	for _, input := range inputs {
		once := CanonicalName(input)
		twice := CanonicalName(once)
		if once != twice {
			t.Errorf("CanonicalName not idempotent for %q: %q != %q", input, once, twice)
		}
	}
}

func TestCanonicalNameCaseInsensitiveEquality(t *testing.T) {
	pairs := [][2]string{
		{"marie curie", "MARIE CURIE"},
		{"theory OF relativity", "Theory of Relativity"},
		{"acme  corp", " ACME CORP "},
	}
	for _, pair := range pairs {
		left, right := CanonicalName(pair[0]), CanonicalName(pair[1])
		if left != right {
			t.Errorf("CanonicalName(%q) = %q, CanonicalName(%q) = %q; want equal", pair[0], left, pair[1], right)
		}
	}
}
