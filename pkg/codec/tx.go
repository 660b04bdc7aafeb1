package codec

import (
	"encoding/binary"

	"github.com/Klingon-tech/klingnet-chain/pkg/tx"
	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

// EncodeTx produces the full wire form of t: version, id, inputs, outputs,
// and witnesses, varint-counted and length-prefixed where the field is
// variable-width. Unlike Transaction.HashID's preimage, this form carries
// everything needed to reconstruct t exactly.
func EncodeTx(t *tx.Transaction) []byte {
	buf := make([]byte, 0, 64+64*len(t.Inputs)+64*len(t.Outputs))
	buf = binary.LittleEndian.AppendUint32(buf, t.Version)
	buf = append(buf, t.ID[:]...)

	buf = appendUvarint(buf, uint64(len(t.Inputs)))
	for _, in := range t.Inputs {
		buf = binary.LittleEndian.AppendUint64(buf, in.Height)
		buf = binary.LittleEndian.AppendUint32(buf, in.TxIndex)
		buf = binary.LittleEndian.AppendUint32(buf, in.OutputIndex)
	}

	buf = appendUvarint(buf, uint64(len(t.Outputs)))
	for _, out := range t.Outputs {
		buf = binary.LittleEndian.AppendUint64(buf, out.Amount)
		buf = append(buf, byte(out.Address.Type))
		buf = append(buf, out.Address.Hash[:]...)
		buf = append(buf, byte(out.Rule.Type))
		buf = appendUvarint(buf, uint64(len(out.Rule.Data)))
		buf = append(buf, out.Rule.Data...)
	}

	buf = appendUvarint(buf, uint64(len(t.Witnesses)))
	for _, w := range t.Witnesses {
		buf = appendUvarint(buf, uint64(len(w)))
		buf = append(buf, w...)
	}

	return buf
}

// DecodeTx parses the form produced by EncodeTx.
func DecodeTx(data []byte) (*tx.Transaction, error) {
	r := newReader(data)

	version, err := r.uint32()
	if err != nil {
		return nil, err
	}
	if version == 0 || version > MaxTxVersion {
		return nil, ErrUnknownVersion
	}

	idBytes, err := r.take(types.HashSize)
	if err != nil {
		return nil, err
	}
	var id types.Hash
	copy(id[:], idBytes)

	inCount, err := r.uvarint()
	if err != nil {
		return nil, err
	}
	inputs := make([]types.Anchor, inCount)
	for i := range inputs {
		height, err := r.uint64()
		if err != nil {
			return nil, err
		}
		txIndex, err := r.uint32()
		if err != nil {
			return nil, err
		}
		outputIndex, err := r.uint32()
		if err != nil {
			return nil, err
		}
		inputs[i] = types.Anchor{Height: height, TxIndex: txIndex, OutputIndex: outputIndex}
	}

	outCount, err := r.uvarint()
	if err != nil {
		return nil, err
	}
	outputs := make([]tx.Output, outCount)
	for i := range outputs {
		amount, err := r.uint64()
		if err != nil {
			return nil, err
		}
		addrType, err := r.byte()
		if err != nil {
			return nil, err
		}
		addrHash, err := r.take(types.AddressHashSize)
		if err != nil {
			return nil, err
		}
		ruleType, err := r.byte()
		if err != nil {
			return nil, err
		}
		ruleDataLen, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		ruleData, err := r.take(int(ruleDataLen))
		if err != nil {
			return nil, err
		}

		var addr types.Address
		addr.Type = types.AddressType(addrType)
		copy(addr.Hash[:], addrHash)

		outputs[i] = tx.Output{
			Amount:  amount,
			Address: addr,
			Rule:    types.Rule{Type: types.RuleType(ruleType), Data: append([]byte(nil), ruleData...)},
		}
	}

	witCount, err := r.uvarint()
	if err != nil {
		return nil, err
	}
	witnesses := make([]string, witCount)
	for i := range witnesses {
		wLen, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		w, err := r.take(int(wLen))
		if err != nil {
			return nil, err
		}
		witnesses[i] = string(w)
	}

	if r.remaining() != 0 {
		return nil, ErrMalformedField
	}

	return &tx.Transaction{
		ID:        id,
		Version:   version,
		Inputs:    inputs,
		Outputs:   outputs,
		Witnesses: witnesses,
	}, nil
}
