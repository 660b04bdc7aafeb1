package codec

import (
	"encoding/binary"

	"github.com/Klingon-tech/klingnet-chain/pkg/block"
	"github.com/Klingon-tech/klingnet-chain/pkg/tx"
	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

// EncodeBlock produces the full wire form of b: header fields followed by
// a varint-counted, length-prefixed list of encoded transactions.
func EncodeBlock(b *block.Block) []byte {
	h := b.Header
	buf := make([]byte, 0, 128)
	buf = binary.LittleEndian.AppendUint32(buf, h.Version)
	buf = append(buf, h.PrevHash[:]...)
	buf = append(buf, h.MerkleRoot[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, h.Timestamp)
	buf = binary.LittleEndian.AppendUint64(buf, h.PosTimestamp)
	buf = binary.LittleEndian.AppendUint64(buf, h.Height)
	buf = binary.LittleEndian.AppendUint64(buf, h.Difficulty)
	buf = binary.LittleEndian.AppendUint64(buf, h.Legitimacy)
	buf = binary.LittleEndian.AppendUint64(buf, h.Nonce)
	buf = appendUvarint(buf, uint64(len(h.ValidatorSig)))
	buf = append(buf, h.ValidatorSig...)

	buf = appendUvarint(buf, uint64(len(b.Transactions)))
	for _, t := range b.Transactions {
		encoded := EncodeTx(t)
		buf = appendUvarint(buf, uint64(len(encoded)))
		buf = append(buf, encoded...)
	}

	return buf
}

// DecodeBlock parses the form produced by EncodeBlock.
func DecodeBlock(data []byte) (*block.Block, error) {
	r := newReader(data)

	version, err := r.uint32()
	if err != nil {
		return nil, err
	}
	if version == 0 || version > MaxBlockVersion {
		return nil, ErrUnknownVersion
	}

	prevHashBytes, err := r.take(types.HashSize)
	if err != nil {
		return nil, err
	}
	merkleRootBytes, err := r.take(types.HashSize)
	if err != nil {
		return nil, err
	}
	timestamp, err := r.uint64()
	if err != nil {
		return nil, err
	}
	posTimestamp, err := r.uint64()
	if err != nil {
		return nil, err
	}
	height, err := r.uint64()
	if err != nil {
		return nil, err
	}
	difficulty, err := r.uint64()
	if err != nil {
		return nil, err
	}
	legitimacy, err := r.uint64()
	if err != nil {
		return nil, err
	}
	nonce, err := r.uint64()
	if err != nil {
		return nil, err
	}
	sigLen, err := r.uvarint()
	if err != nil {
		return nil, err
	}
	sigBytes, err := r.take(int(sigLen))
	if err != nil {
		return nil, err
	}

	h := &block.Header{
		Version:      version,
		Timestamp:    timestamp,
		PosTimestamp: posTimestamp,
		Height:       height,
		Difficulty:   difficulty,
		Legitimacy:   legitimacy,
		Nonce:        nonce,
	}
	copy(h.PrevHash[:], prevHashBytes)
	copy(h.MerkleRoot[:], merkleRootBytes)
	if sigLen > 0 {
		h.ValidatorSig = append([]byte(nil), sigBytes...)
	}

	txCount, err := r.uvarint()
	if err != nil {
		return nil, err
	}
	txs := make([]*tx.Transaction, txCount)
	for i := range txs {
		txLen, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		txBytes, err := r.take(int(txLen))
		if err != nil {
			return nil, err
		}
		decoded, err := DecodeTx(txBytes)
		if err != nil {
			return nil, err
		}
		txs[i] = decoded
	}

	if r.remaining() != 0 {
		return nil, ErrMalformedField
	}

	return &block.Block{Header: h, Transactions: txs}, nil
}
