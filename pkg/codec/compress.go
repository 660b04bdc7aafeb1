package codec

import (
	"bytes"
	"compress/gzip"
	"io"

	"github.com/Klingon-tech/klingnet-chain/pkg/block"
	"github.com/Klingon-tech/klingnet-chain/pkg/crypto"
	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

// CompressBlock gzips the binary wire form of b, producing the on-disk
// block format (spec §4.2), and appends a trailing BLAKE3 checksum of the
// gzipped payload so DecompressBlock can catch on-disk corruption before
// it ever reaches the gzip/decode layer.
func CompressBlock(b *block.Block) ([]byte, error) {
	var out bytes.Buffer
	w := gzip.NewWriter(&out)
	if _, err := w.Write(EncodeBlock(b)); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	sum := crypto.DiagnosticHash(out.Bytes())
	return append(out.Bytes(), sum[:]...), nil
}

// DecompressBlock reverses CompressBlock, rejecting data whose trailing
// checksum doesn't match its gzipped payload.
func DecompressBlock(data []byte) (*block.Block, error) {
	if len(data) < types.HashSize {
		return nil, ErrMalformedField
	}
	split := len(data) - types.HashSize
	payload, sum := data[:split], data[split:]

	var want types.Hash
	copy(want[:], sum)
	if crypto.DiagnosticHash(payload) != want {
		return nil, ErrMalformedField
	}

	r, err := gzip.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, ErrMalformedField
	}
	defer r.Close()

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, ErrMalformedField
	}
	return DecodeBlock(raw)
}
