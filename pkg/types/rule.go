package types

import (
	"encoding/hex"
	"encoding/json"
)

// RuleType identifies the spending condition attached to a UTXO (spec §3:
// "rule ∈ {sig, sigOrSlash, ...}").
type RuleType uint8

const (
	// RuleSig is the ordinary condition: spendable by a witness matching
	// the output's address.
	RuleSig RuleType = 0x01
	// RuleSigOrSlash marks a stake output: spendable by its owner's
	// witness, or destroyable ("slashed") by the protocol when a
	// misbehaving proposal by that validator is proven. Subject to the
	// confirmation-depth maturity rule (internal/utxo).
	RuleSigOrSlash RuleType = 0x02
)

// String returns a human-readable rule name.
func (r RuleType) String() string {
	switch r {
	case RuleSig:
		return "sig"
	case RuleSigOrSlash:
		return "sigOrSlash"
	default:
		return "unknown"
	}
}

// Rule defines the locking condition for a UTXO. Data carries rule-specific
// auxiliary payload (currently unused by sig/sigOrSlash, reserved for
// future rule types).
type Rule struct {
	Type RuleType `json:"type"`
	Data []byte   `json:"data"`
}

type ruleJSON struct {
	Type RuleType `json:"type"`
	Data string   `json:"data"`
}

// MarshalJSON encodes the rule with hex-encoded data.
func (r Rule) MarshalJSON() ([]byte, error) {
	return json.Marshal(ruleJSON{Type: r.Type, Data: hex.EncodeToString(r.Data)})
}

// UnmarshalJSON decodes a rule with hex-encoded data.
func (r *Rule) UnmarshalJSON(data []byte) error {
	var j ruleJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	r.Type = j.Type
	if j.Data != "" {
		b, err := hex.DecodeString(j.Data)
		if err != nil {
			return err
		}
		r.Data = b
	}
	return nil
}
