package tx

import (
	"encoding/hex"
	"fmt"
	"math"

	"github.com/Klingon-tech/klingnet-chain/config"
	"github.com/Klingon-tech/klingnet-chain/internal/address"
	"github.com/Klingon-tech/klingnet-chain/internal/kind"
	"github.com/Klingon-tech/klingnet-chain/pkg/crypto"
	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

// UTXOProvider resolves the output a spent anchor minted. Implemented by
// internal/utxo's cache; kept minimal here so pkg/tx doesn't depend on a
// storage backend.
type UTXOProvider interface {
	Get(anchor types.Anchor) (Output, bool)
}

// ValidateConformity is validation stage 1 (spec §4.6): cheap structural
// checks that don't require a UTXO lookup or signature verification.
func ValidateConformity(t *Transaction) error {
	if t.Version == 0 {
		return kind.Wrap(kind.Malformed, fmt.Errorf("version must be positive"))
	}
	if len(t.Inputs) == 0 {
		return kind.Wrap(kind.Malformed, fmt.Errorf("transaction has no inputs"))
	}
	if len(t.Outputs) == 0 {
		return kind.Wrap(kind.Malformed, fmt.Errorf("transaction has no outputs"))
	}
	if len(t.Inputs) > config.MaxTxInputs {
		return kind.Wrap(kind.Malformed, fmt.Errorf("%d inputs, max %d", len(t.Inputs), config.MaxTxInputs))
	}
	if len(t.Outputs) > config.MaxTxOutputs {
		return kind.Wrap(kind.Malformed, fmt.Errorf("%d outputs, max %d", len(t.Outputs), config.MaxTxOutputs))
	}

	if t.IsSpecial() {
		if len(t.Outputs) != 1 {
			return kind.Wrap(kind.Malformed, fmt.Errorf("coinbase/PoS-reward transaction must have exactly 1 output, got %d", len(t.Outputs)))
		}
	} else {
		seen := make(map[types.Anchor]bool, len(t.Inputs))
		for i, in := range t.Inputs {
			if in.IsZero() {
				return kind.Wrap(kind.Malformed, fmt.Errorf("input %d: zero anchor only valid in a coinbase/PoS-reward transaction", i))
			}
			if seen[in] {
				return kind.Wrap(kind.Malformed, fmt.Errorf("input %d: duplicate anchor %s", i, in))
			}
			seen[in] = true
		}
	}

	var total uint64
	for i, out := range t.Outputs {
		if out.Amount == 0 {
			return kind.Wrap(kind.Malformed, fmt.Errorf("output %d: amount must be positive", i))
		}
		if !out.Address.Type.IsValid() {
			return kind.Wrap(kind.Malformed, fmt.Errorf("output %d: invalid address type", i))
		}
		if len(out.Rule.Data) > config.MaxRuleData {
			return kind.Wrap(kind.Malformed, fmt.Errorf("output %d: rule data %d bytes, max %d", i, len(out.Rule.Data), config.MaxRuleData))
		}
		if out.Rule.Type == types.RuleSigOrSlash && i != 0 {
			return kind.Wrap(kind.Malformed, fmt.Errorf("output %d: sigOrSlash only permitted on output 0", i))
		}
		if total > math.MaxUint64-out.Amount {
			return kind.Wrap(kind.Malformed, fmt.Errorf("output %d: total amount overflow", i))
		}
		total += out.Amount
	}

	return nil
}

// ComputeFee is validation stage 2: fee = Σinputs − Σoutputs, which must be
// a positive integer. Coinbase/PoS-reward transactions bypass this (they
// mint rather than spend).
func ComputeFee(t *Transaction, utxos UTXOProvider) (uint64, error) {
	if t.IsSpecial() {
		return 0, nil
	}

	var totalIn uint64
	for i, anchor := range t.Inputs {
		out, ok := utxos.Get(anchor)
		if !ok {
			return 0, kind.Wrap(kind.UnknownUtxo, fmt.Errorf("input %d: anchor %s not found", i, anchor))
		}
		if totalIn > math.MaxUint64-out.Amount {
			return 0, kind.Wrap(kind.Malformed, fmt.Errorf("input total overflow"))
		}
		totalIn += out.Amount
	}

	totalOut, err := t.TotalOutputValue()
	if err != nil {
		return 0, kind.Wrap(kind.Malformed, err)
	}

	if totalOut >= totalIn {
		return 0, kind.Wrap(kind.InsufficientFunds, fmt.Errorf("inputs %d <= outputs %d", totalIn, totalOut))
	}
	return totalIn - totalOut, nil
}

// VerifyWitnessSignatures is validation stage 3: recompute id, verify every
// "signature:pubKeyHex" witness against it.
func VerifyWitnessSignatures(t *Transaction) error {
	id := t.HashID()
	if len(t.Witnesses) == 0 {
		if t.IsSpecial() {
			return nil
		}
		return kind.Wrap(kind.InvalidSignature, fmt.Errorf("transaction has no witnesses"))
	}
	for i, w := range t.Witnesses {
		parsed, err := parseWitness(w)
		if err != nil {
			return kind.Wrap(kind.Malformed, fmt.Errorf("witness %d: %w", i, err))
		}
		pubKey, err := hex.DecodeString(parsed.pubKeyHex)
		if err != nil {
			return kind.Wrap(kind.Malformed, fmt.Errorf("witness %d: invalid public key hex: %w", i, err))
		}
		if !crypto.VerifySignature(id[:], parsed.signature, pubKey) {
			return kind.Wrap(kind.InvalidSignature, fmt.Errorf("witness %d: signature does not verify against id %s", i, id))
		}
	}
	return nil
}

// VerifyOwnership is validation stage 4: every input UTXO's address must be
// claimed by one of the transaction's witnesses, and no witness pubkey may
// repeat.
func VerifyOwnership(t *Transaction, utxos UTXOProvider, cache *address.Cache) error {
	if t.IsSpecial() {
		return nil
	}

	witnessAddrs := make(map[types.Address]bool, len(t.Witnesses))
	seenPubKeys := make(map[string]bool, len(t.Witnesses))
	for i, w := range t.Witnesses {
		parsed, err := parseWitness(w)
		if err != nil {
			return kind.Wrap(kind.Malformed, fmt.Errorf("witness %d: %w", i, err))
		}
		if seenPubKeys[parsed.pubKeyHex] {
			return kind.Wrap(kind.Malformed, fmt.Errorf("witness %d: duplicate public key", i))
		}
		seenPubKeys[parsed.pubKeyHex] = true
	}

	for i, anchor := range t.Inputs {
		out, ok := utxos.Get(anchor)
		if !ok {
			return kind.Wrap(kind.UnknownUtxo, fmt.Errorf("input %d: anchor %s not found", i, anchor))
		}
		if !witnessAddrs[out.Address] {
			// Resolve lazily: derive each witness's address once, under the
			// input's own claimed type, and cache the result.
			claimed := false
			for w := range seenPubKeys {
				addr, err := cache.Resolve(w, out.Address.Type)
				if err == nil {
					witnessAddrs[addr] = true
					if addr == out.Address {
						claimed = true
					}
				}
			}
			if !claimed {
				return kind.Wrap(kind.InvalidSignature, fmt.Errorf("input %d: no witness claims address %s", i, out.Address))
			}
		}
	}
	return nil
}

// ValidateOutputRules is validation stage 5: rule-specific output
// constraints. Currently this is only the sigOrSlash fee requirement:
// remaining fee must be at least the staked amount.
func ValidateOutputRules(t *Transaction, utxos UTXOProvider) error {
	if t.IsSpecial() || len(t.Outputs) == 0 {
		return nil
	}
	if t.Outputs[0].Rule.Type != types.RuleSigOrSlash {
		return nil
	}

	fee, err := ComputeFee(t, utxos)
	if err != nil {
		return err
	}
	if fee < t.Outputs[0].Amount {
		return kind.Wrap(kind.RuleViolation, fmt.Errorf("sigOrSlash requires fee >= amount: fee %d, amount %d", fee, t.Outputs[0].Amount))
	}
	return nil
}

// Validate runs the first five stages of the pipeline (spec §4.6) in
// order, stopping at the first failure. Stage 6 (block-level
// double-spend) is the digestion layer's responsibility, since it spans
// every transaction in a block.
func Validate(t *Transaction, utxos UTXOProvider, cache *address.Cache) error {
	if err := ValidateConformity(t); err != nil {
		return err
	}
	if _, err := ComputeFee(t, utxos); err != nil {
		return err
	}
	if err := VerifyWitnessSignatures(t); err != nil {
		return err
	}
	if err := VerifyOwnership(t, utxos, cache); err != nil {
		return err
	}
	if err := ValidateOutputRules(t, utxos); err != nil {
		return err
	}
	return nil
}
