package types

import "fmt"

// Anchor is the immutable triple that identifies a UTXO for its entire
// lifetime: the height of the block that minted it, the index of its
// minting transaction within that block, and the index of the output
// within that transaction.
type Anchor struct {
	Height      uint64 `json:"height"`
	TxIndex     uint32 `json:"tx_index"`
	OutputIndex uint32 `json:"output_index"`
}

// IsZero returns true if the anchor is the zero value.
func (a Anchor) IsZero() bool {
	return a == Anchor{}
}

// String returns the compact canonical form "height-txIndex-outputIndex".
func (a Anchor) String() string {
	return fmt.Sprintf("%d-%d-%d", a.Height, a.TxIndex, a.OutputIndex)
}

// ParseAnchor parses the compact canonical form produced by String().
func ParseAnchor(s string) (Anchor, error) {
	var a Anchor
	n, err := fmt.Sscanf(s, "%d-%d-%d", &a.Height, &a.TxIndex, &a.OutputIndex)
	if err != nil || n != 3 {
		return Anchor{}, fmt.Errorf("invalid anchor %q", s)
	}
	return a, nil
}

// MarshalJSON encodes the anchor as its compact string form.
func (a Anchor) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// UnmarshalJSON decodes an anchor from its compact string form.
func (a *Anchor) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("anchor must be a JSON string")
	}
	parsed, err := ParseAnchor(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
