package clarify

import "testing"

func TestMatchLabel(t *testing.T) {
	options := linksPanels()
	tests := []struct {
		input string
		want  string
		ok    bool
	}{
		{input: "links panel b", want: "opt-1", ok: true},
		{input: "open Links Panel D please", want: "opt-2", ok: true},
		{input: "the second one", want: "opt-1", ok: true},
		{input: "panel a", want: "opt-0", ok: true},
		{input: "links panel", ok: false},
		{input: "blue thing", ok: false},
		{input: "", ok: false},
	}
	for _, tc := range tests {
		got, ok := MatchLabel(tc.input, options)
		if ok != tc.ok {
			t.Fatalf("%q: expected ok=%v, got %v (%+v)", tc.input, tc.ok, ok, got)
		}
		if ok && got.ID != tc.want {
			t.Fatalf("%q: expected %s, got %s", tc.input, tc.want, got.ID)
		}
	}
}

func TestCandidateKeyIgnoresDisplayOrder(t *testing.T) {
	options := linksPanels()
	reordered := orderSuggestedFirst(options, "opt-2")
	if CandidateKey(options) != CandidateKey(reordered) {
		t.Fatal("expected reordered candidates to share a key")
	}
	renamed := linksPanels()
	renamed[2].Label = "Links Panel E"
	if CandidateKey(options) == CandidateKey(renamed) {
		t.Fatal("expected a relabelled option to change the key")
	}
}
