package codec

import (
	"encoding/json"

	"github.com/Klingon-tech/klingnet-chain/pkg/block"
	"github.com/Klingon-tech/klingnet-chain/pkg/tx"
)

// EncodeTxText produces the structured text form used for diagnostics and
// JSON storage: Transaction's own JSON tags, which already hex/base58
// encode their binary fields.
func EncodeTxText(t *tx.Transaction) ([]byte, error) {
	return json.Marshal(t)
}

// DecodeTxText parses the form produced by EncodeTxText.
func DecodeTxText(data []byte) (*tx.Transaction, error) {
	var t tx.Transaction
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, ErrMalformedField
	}
	return &t, nil
}

// EncodeBlockText produces the structured text form of a block.
func EncodeBlockText(b *block.Block) ([]byte, error) {
	return json.Marshal(b)
}

// DecodeBlockText parses the form produced by EncodeBlockText.
func DecodeBlockText(data []byte) (*block.Block, error) {
	var b block.Block
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, ErrMalformedField
	}
	return &b, nil
}
