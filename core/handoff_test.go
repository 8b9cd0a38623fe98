package core

import "testing"

func TestHandoffRecord_Validate(t *testing.T) {
	valid := NewHandoffRecord(1, "query", "fallback")
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid record, got %v", err)
	}

	cases := []struct {
		name string
		rec  HandoffRecord
	}{
		{"zero turn", HandoffRecord{Handler: "query", Reason: "fallback"}},
		{"missing handler", HandoffRecord{Turn: 1, Reason: "fallback"}},
		{"missing reason", HandoffRecord{Turn: 1, Handler: "query"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.rec.Validate(); err == nil {
				t.Errorf("expected validation error for %+v", tc.rec)
			}
		})
	}
}
