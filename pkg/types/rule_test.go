package types

import (
	"encoding/json"
	"testing"
)

func TestRuleType_String(t *testing.T) {
	tests := []struct {
		rt   RuleType
		want string
	}{
		{RuleSig, "sig"},
		{RuleSigOrSlash, "sigOrSlash"},
		{RuleType(0xff), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.rt.String(); got != tt.want {
			t.Errorf("RuleType(%d).String() = %s, want %s", tt.rt, got, tt.want)
		}
	}
}

func TestRule_JSON_RoundTrip(t *testing.T) {
	r := Rule{Type: RuleSigOrSlash, Data: []byte{0x01, 0x02, 0x03}}
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded Rule
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Type != r.Type || string(decoded.Data) != string(r.Data) {
		t.Errorf("roundtrip mismatch: got %+v, want %+v", decoded, r)
	}
}

func TestRule_JSON_EmptyData(t *testing.T) {
	r := Rule{Type: RuleSig}
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded Rule
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Type != RuleSig || len(decoded.Data) != 0 {
		t.Errorf("roundtrip mismatch: got %+v", decoded)
	}
}
