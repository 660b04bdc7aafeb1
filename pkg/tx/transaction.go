// Package tx defines transaction types, construction, and validation.
package tx

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"strings"

	"github.com/Klingon-tech/klingnet-chain/pkg/crypto"
	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

// Transaction represents a blockchain transaction (spec §3). Coinbase and
// PoS-reward transactions carry a single zero-value Anchor marker in
// Inputs instead of a real spend.
type Transaction struct {
	ID        types.Hash     `json:"id"`
	Version   uint32         `json:"version"`
	Inputs    []types.Anchor `json:"inputs"`
	Outputs   []Output       `json:"outputs"`
	Witnesses []string       `json:"witnesses"`
}

// Output is a UTXO template minted by a transaction.
type Output struct {
	Amount  uint64        `json:"amount"`
	Address types.Address `json:"address"`
	Rule    types.Rule    `json:"rule"`
}

// IsCoinbaseInput reports whether in is the special marker used by
// coinbase and PoS-reward transactions in place of a real anchor.
func IsCoinbaseInput(in types.Anchor) bool {
	return in.IsZero()
}

// IsSpecial reports whether tx is a coinbase or PoS-reward transaction: it
// carries exactly one input, and that input is the zero-anchor marker.
func (tx *Transaction) IsSpecial() bool {
	return len(tx.Inputs) == 1 && IsCoinbaseInput(tx.Inputs[0])
}

// canonicalBytes returns the byte representation hashed to produce the
// transaction id: version, inputs, and outputs, excluding witnesses and
// the id field itself (spec §4.5 hashId).
func (tx *Transaction) canonicalBytes() []byte {
	var buf []byte

	buf = binary.LittleEndian.AppendUint32(buf, tx.Version)

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(tx.Inputs)))
	for _, in := range tx.Inputs {
		buf = binary.LittleEndian.AppendUint64(buf, in.Height)
		buf = binary.LittleEndian.AppendUint32(buf, in.TxIndex)
		buf = binary.LittleEndian.AppendUint32(buf, in.OutputIndex)
	}

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(tx.Outputs)))
	for _, out := range tx.Outputs {
		buf = binary.LittleEndian.AppendUint64(buf, out.Amount)
		buf = append(buf, byte(out.Address.Type))
		buf = append(buf, out.Address.Hash[:]...)
		buf = append(buf, byte(out.Rule.Type))
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(out.Rule.Data)))
		buf = append(buf, out.Rule.Data...)
	}

	return buf
}

// HashID computes the canonical transaction id: sha256 of the
// input-free-of-witnesses, id-free body (spec §4.5 hashId).
func (tx *Transaction) HashID() types.Hash {
	return crypto.Hash(tx.canonicalBytes())
}

// SetID recomputes and stores tx.ID.
func (tx *Transaction) SetID() {
	tx.ID = tx.HashID()
}

// EncodedLen returns the byte length of the canonical (hashed) encoding,
// used for block size accounting and fee-rate calculations.
func (tx *Transaction) EncodedLen() int {
	return len(tx.canonicalBytes())
}

// TotalOutputValue returns the sum of all output amounts, erroring on
// overflow.
func (tx *Transaction) TotalOutputValue() (uint64, error) {
	var total uint64
	for _, out := range tx.Outputs {
		if total > math.MaxUint64-out.Amount {
			return 0, fmt.Errorf("output value overflow")
		}
		total += out.Amount
	}
	return total, nil
}

// witness is a parsed "signature:pubKeyHex" entry.
type witness struct {
	signature []byte
	pubKeyHex string
}

// parseWitness splits a "sig:pubHex" string into its components.
func parseWitness(s string) (witness, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return witness{}, fmt.Errorf("malformed witness %q: want \"signature:pubKeyHex\"", s)
	}
	sigHex, pubHex := parts[0], parts[1]
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return witness{}, fmt.Errorf("malformed witness signature: %w", err)
	}
	return witness{signature: sig, pubKeyHex: pubHex}, nil
}

// FormatWitness builds the canonical "sig:pubHex" string for a signature
// and compressed public key.
func FormatWitness(signature []byte, pubKeyHex string) string {
	return hex.EncodeToString(signature) + ":" + pubKeyHex
}
