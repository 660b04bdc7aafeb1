package tx

import (
	"errors"
	"testing"

	"github.com/Klingon-tech/klingnet-chain/internal/kind"
	"github.com/Klingon-tech/klingnet-chain/pkg/crypto"
	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

func TestCreateTransfer_WithChange(t *testing.T) {
	sender, key := testAddress(t)
	recipient, _ := testAddress(t)

	utxos := []SpendableUTXO{
		{Anchor: types.Anchor{Height: 1, TxIndex: 0, OutputIndex: 0}, Amount: 10_000, Address: sender},
	}
	outputs := []Output{{Amount: 1000, Address: recipient, Rule: types.Rule{Type: types.RuleSig}}}

	transaction, spent, err := CreateTransfer(utxos, outputs, sender, 10)
	if err != nil {
		t.Fatalf("CreateTransfer: %v", err)
	}
	if len(transaction.Outputs) != 2 {
		t.Fatalf("expected change output, got %d outputs", len(transaction.Outputs))
	}
	if transaction.Outputs[1].Address != sender {
		t.Errorf("change should return to sender")
	}

	signers := map[types.Address]*crypto.PrivateKey{sender: key}
	if err := Sign(transaction, spent, signers); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if len(transaction.Witnesses) != 1 {
		t.Fatalf("expected 1 witness for single-address spend, got %d", len(transaction.Witnesses))
	}

	fakeStore := fakeUTXOs{utxos[0].Anchor: {Amount: utxos[0].Amount, Address: sender, Rule: types.Rule{Type: types.RuleSig}}}
	fee, err := ComputeFee(transaction, fakeStore)
	if err != nil {
		t.Fatalf("ComputeFee: %v", err)
	}
	if fee == 0 {
		t.Error("expected positive fee")
	}
}

func TestCreateTransfer_NoChangeWhenExact(t *testing.T) {
	sender, _ := testAddress(t)
	recipient, _ := testAddress(t)

	want := EstimateTxFee(1, 1, 10) + 1000
	utxos := []SpendableUTXO{
		{Anchor: types.Anchor{Height: 1, TxIndex: 0, OutputIndex: 0}, Amount: want, Address: sender},
	}
	outputs := []Output{{Amount: 1000, Address: recipient, Rule: types.Rule{Type: types.RuleSig}}}

	transaction, _, err := CreateTransfer(utxos, outputs, sender, 10)
	if err != nil {
		t.Fatalf("CreateTransfer: %v", err)
	}
	if len(transaction.Outputs) != 1 {
		t.Errorf("expected no change output when exact, got %d outputs", len(transaction.Outputs))
	}
}

func TestCreateTransfer_InsufficientFunds(t *testing.T) {
	sender, _ := testAddress(t)
	recipient, _ := testAddress(t)

	utxos := []SpendableUTXO{
		{Anchor: types.Anchor{Height: 1, TxIndex: 0, OutputIndex: 0}, Amount: 10, Address: sender},
	}
	outputs := []Output{{Amount: 1000, Address: recipient, Rule: types.Rule{Type: types.RuleSig}}}

	_, _, err := CreateTransfer(utxos, outputs, sender, 10)
	if !errors.Is(err, kind.InsufficientFunds) {
		t.Errorf("expected InsufficientFunds, got %v", err)
	}
}

func TestCreateStakeNewVss_RequiresFeeAtLeastAmount(t *testing.T) {
	sender, key := testAddress(t)
	stakeAddr, _ := testAddress(t)

	utxos := []SpendableUTXO{
		{Anchor: types.Anchor{Height: 1, TxIndex: 0, OutputIndex: 0}, Amount: 5000, Address: sender},
		{Anchor: types.Anchor{Height: 2, TxIndex: 0, OutputIndex: 0}, Amount: 5000, Address: sender},
	}

	transaction, spent, err := CreateStakeNewVss(utxos, stakeAddr, 1000, 10)
	if err != nil {
		t.Fatalf("CreateStakeNewVss: %v", err)
	}
	if transaction.Outputs[0].Rule.Type != types.RuleSigOrSlash {
		t.Fatalf("stake output should carry sigOrSlash rule")
	}

	signers := map[types.Address]*crypto.PrivateKey{sender: key}
	if err := Sign(transaction, spent, signers); err != nil {
		t.Fatalf("Sign: %v", err)
	}

	store := make(fakeUTXOs, len(spent))
	for _, u := range spent {
		store[u.Anchor] = Output{Amount: u.Amount, Address: u.Address, Rule: types.Rule{Type: types.RuleSig}}
	}

	if err := ValidateOutputRules(transaction, store); err != nil {
		t.Errorf("stake tx should satisfy sigOrSlash fee rule: %v", err)
	}
}

func TestCreateStakeNewVss_InsufficientFunds(t *testing.T) {
	sender, _ := testAddress(t)
	stakeAddr, _ := testAddress(t)

	utxos := []SpendableUTXO{
		{Anchor: types.Anchor{Height: 1, TxIndex: 0, OutputIndex: 0}, Amount: 100, Address: sender},
	}

	_, _, err := CreateStakeNewVss(utxos, stakeAddr, 1000, 10)
	if !errors.Is(err, kind.InsufficientFunds) {
		t.Errorf("expected InsufficientFunds, got %v", err)
	}
}

func TestSign_MissingSigner(t *testing.T) {
	sender, _ := testAddress(t)
	recipient, _ := testAddress(t)

	transaction := &Transaction{
		Version: 1,
		Inputs:  []types.Anchor{{Height: 1, TxIndex: 0, OutputIndex: 0}},
		Outputs: []Output{{Amount: 1, Address: recipient}},
	}
	spent := []SpendableUTXO{{Anchor: transaction.Inputs[0], Amount: 1000, Address: sender}}

	err := Sign(transaction, spent, map[types.Address]*crypto.PrivateKey{})
	if err == nil {
		t.Fatal("expected error for missing signer")
	}
}
