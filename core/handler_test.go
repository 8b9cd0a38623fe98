package core

import "testing"

func TestCapability_Matches(t *testing.T) {
	cap := Capability{
		Description: "Places orders for tracks",
		Keywords:    []string{"order", "buy"},
	}

	cases := []struct {
		text string
		want bool
	}{
		{"I want to order two tracks", true},
		{"Can I BUY this?", true},
		{"in order to do that", true},
		{"reorder my list", false},
		{"borderline case", false},
		{"", false},
	}

	for _, tc := range cases {
		if got := cap.Matches(tc.text); got != tc.want {
			t.Errorf("Matches(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestCapability_Score(t *testing.T) {
	cap := Capability{Keywords: []string{"invoice", "invoices", "customer", "count"}}

	if got := cap.Score("How many invoices does customer 12 have?"); got != 2 {
		t.Errorf("Score = %d, want 2", got)
	}
	if got := cap.Score("play some rock"); got != 0 {
		t.Errorf("Score = %d, want 0", got)
	}
	// repeated words count once
	if got := cap.Score("customer customer customer"); got != 1 {
		t.Errorf("Score = %d, want 1", got)
	}
}
