package tx

import (
	"encoding/hex"
	"fmt"

	"github.com/Klingon-tech/klingnet-chain/internal/kind"
	"github.com/Klingon-tech/klingnet-chain/pkg/crypto"
	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

// SpendableUTXO is a candidate input for transaction construction: an
// anchor, the amount it carries, and the address that owns it.
type SpendableUTXO struct {
	Anchor  types.Anchor
	Amount  uint64
	Address types.Address
}

// selectUTXOs greedily accumulates utxos, in the order given, until the
// total covers want plus the fee the selection itself incurs at feePerByte
// (estimated assuming a trailing change output, since that's the worst
// case for size). Returns the selected utxos and their total.
func selectUTXOs(utxos []SpendableUTXO, wantOut uint64, numOutputs int, feePerByte uint64) ([]SpendableUTXO, uint64, error) {
	var selected []SpendableUTXO
	var total uint64

	for _, u := range utxos {
		selected = append(selected, u)
		total += u.Amount

		fee := EstimateTxFee(len(selected), numOutputs+1, feePerByte)
		if total >= wantOut+fee {
			return selected, total, nil
		}
	}

	fee := EstimateTxFee(len(selected), numOutputs+1, feePerByte)
	return nil, 0, kind.Wrap(kind.InsufficientFunds, fmt.Errorf("available %d < needed %d (outputs %d + fee %d)", total, wantOut+fee, wantOut, fee))
}

// CreateTransfer selects from utxos (spec §4.5 createTransfer) greedily
// until Σinputs ≥ Σoutputs + fee, emitting a change output back to
// changeAddress when a remainder is left over. Returns the built,
// unsigned transaction along with the inputs selected so the caller can
// sign them.
func CreateTransfer(utxos []SpendableUTXO, outputs []Output, changeAddress types.Address, feePerByte uint64) (*Transaction, []SpendableUTXO, error) {
	wantOut, err := (&Transaction{Outputs: outputs}).TotalOutputValue()
	if err != nil {
		return nil, nil, kind.Wrap(kind.Malformed, err)
	}

	selected, total, err := selectUTXOs(utxos, wantOut, len(outputs), feePerByte)
	if err != nil {
		return nil, nil, err
	}

	fee := EstimateTxFee(len(selected), len(outputs)+1, feePerByte)
	change := total - wantOut - fee

	finalOutputs := make([]Output, len(outputs), len(outputs)+1)
	copy(finalOutputs, outputs)
	if change > 0 {
		finalOutputs = append(finalOutputs, Output{
			Amount:  change,
			Address: changeAddress,
			Rule:    types.Rule{Type: types.RuleSig},
		})
	}

	t := &Transaction{
		Version: 1,
		Inputs:  anchorsOf(selected),
		Outputs: finalOutputs,
	}
	t.SetID()
	return t, selected, nil
}

// CreateStakeNewVss builds a transaction staking amount to stakingAddress
// (spec §4.5 createStakeNewVss): the sole output carries rule sigOrSlash,
// and the remaining fee must be at least amount.
func CreateStakeNewVss(utxos []SpendableUTXO, stakingAddress types.Address, amount uint64, feePerByte uint64) (*Transaction, []SpendableUTXO, error) {
	stakeOutput := Output{
		Amount:  amount,
		Address: stakingAddress,
		Rule:    types.Rule{Type: types.RuleSigOrSlash},
	}

	selected, total, err := selectUTXOs(utxos, amount, 1, feePerByte)
	if err != nil {
		return nil, nil, err
	}

	// sigOrSlash requires fee >= amount (spec §4.6 stage 5), not merely a
	// positive fee, so the naive estimate may undershoot. Top up with
	// further utxos until that holds.
	fee := EstimateTxFee(len(selected), 1, feePerByte)
	for total < amount+fee || fee < amount {
		if len(selected) == len(utxos) {
			return nil, nil, kind.Wrap(kind.InsufficientFunds, fmt.Errorf("available %d insufficient to cover stake %d and its required fee", total, amount))
		}
		next := utxos[len(selected)]
		selected = append(selected, next)
		total += next.Amount
		fee = EstimateTxFee(len(selected), 1, feePerByte)
	}

	t := &Transaction{
		Version: 1,
		Inputs:  anchorsOf(selected),
		Outputs: []Output{stakeOutput},
	}
	t.SetID()
	return t, selected, nil
}

// anchorsOf projects a SpendableUTXO slice to its anchors, in order.
func anchorsOf(utxos []SpendableUTXO) []types.Anchor {
	anchors := make([]types.Anchor, len(utxos))
	for i, u := range utxos {
		anchors[i] = u.Anchor
	}
	return anchors
}

// Sign appends one "signature:pubKeyHex" witness per distinct address
// among spent, each signing t's id (spec §4.5 sign). signers must have an
// entry for every distinct address in spent.
func Sign(t *Transaction, spent []SpendableUTXO, signers map[types.Address]*crypto.PrivateKey) error {
	id := t.HashID()

	seen := make(map[types.Address]bool)
	for _, u := range spent {
		if seen[u.Address] {
			continue
		}
		seen[u.Address] = true

		key, ok := signers[u.Address]
		if !ok {
			return fmt.Errorf("no signer for address %s", u.Address)
		}
		sig, err := key.Sign(id[:])
		if err != nil {
			return fmt.Errorf("sign for address %s: %w", u.Address, err)
		}
		pubKeyHex := hex.EncodeToString(key.PublicKey())
		t.Witnesses = append(t.Witnesses, FormatWitness(sig, pubKeyHex))
	}
	return nil
}
