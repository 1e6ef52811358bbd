package domain

import "testing"

func TestMatchChoice(t *testing.T) {
	choices := []string{"Yes", "No"}

	cases := []struct {
		utterance string
		want      string
		matched   bool
	}{
		{"Yes", "Yes", true},
		{"yes", "Yes", true},
		{"YES", "Yes", true},
		{"  no  ", "No", true},
		{"yess", "", false},
		{"", "", false},
		{"maybe", "", false},
	}

	for _, tc := range cases {
		got, ok := MatchChoice(choices, tc.utterance)
		if ok != tc.matched || got != tc.want {
			t.Fatalf("MatchChoice(%q) = (%q, %v), want (%q, %v)", tc.utterance, got, ok, tc.want, tc.matched)
		}
	}
}

func TestMatchChoiceNoChoices(t *testing.T) {
	if _, ok := MatchChoice(nil, "Yes"); ok {
		t.Fatal("matched against empty choice list")
	}
}

func TestSeverityValid(t *testing.T) {
	for _, s := range []Severity{SeverityInfo, SeverityWarning, SeverityDanger} {
		if !s.Valid() {
			t.Fatalf("%s should be valid", s)
		}
	}
	if Severity("URGENT").Valid() {
		t.Fatal("URGENT should not be valid")
	}
	if Severity("").Valid() {
		t.Fatal("empty severity should not be valid")
	}
}
