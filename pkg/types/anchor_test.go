package types

import (
	"encoding/json"
	"testing"
)

func TestAnchor_IsZero(t *testing.T) {
	var zero Anchor
	if !zero.IsZero() {
		t.Error("zero-value Anchor should be zero")
	}

	nonZero := Anchor{Height: 1}
	if nonZero.IsZero() {
		t.Error("non-zero Anchor should not be zero")
	}
}

func TestAnchor_StringRoundTrip(t *testing.T) {
	a := Anchor{Height: 42, TxIndex: 3, OutputIndex: 1}
	s := a.String()
	if s != "42-3-1" {
		t.Errorf("String() = %s, want 42-3-1", s)
	}

	parsed, err := ParseAnchor(s)
	if err != nil {
		t.Fatalf("ParseAnchor(%q): %v", s, err)
	}
	if parsed != a {
		t.Errorf("roundtrip mismatch: got %+v, want %+v", parsed, a)
	}
}

func TestParseAnchor_Invalid(t *testing.T) {
	for _, s := range []string{"", "abc", "1-2", "1-2-3-4"} {
		if _, err := ParseAnchor(s); err == nil {
			t.Errorf("ParseAnchor(%q) should fail", s)
		}
	}
}

func TestAnchor_JSON_RoundTrip(t *testing.T) {
	a := Anchor{Height: 7, TxIndex: 0, OutputIndex: 2}
	data, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `"7-0-2"` {
		t.Errorf("Marshal = %s, want \"7-0-2\"", data)
	}

	var decoded Anchor
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded != a {
		t.Errorf("roundtrip mismatch: got %+v, want %+v", decoded, a)
	}
}
