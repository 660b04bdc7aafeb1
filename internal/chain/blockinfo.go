package chain

import (
	"fmt"
	"io"
	"os"

	"github.com/Klingon-tech/klingnet-chain/pkg/block"
)

// BlockInfoWriter appends one CSV row per digested block (spec §6):
// blockIndex,coinbaseReward,timestamp,difficulty,timeBetweenBlocks.
type BlockInfoWriter struct {
	w io.Writer
	f *os.File
}

// blockInfoHeader is written once, the first time a row is appended to a
// freshly created file.
const blockInfoHeader = "blockIndex,coinbaseReward,timestamp,difficulty,timeBetweenBlocks\n"

// NewBlockInfoWriter opens (creating if needed) the CSV file at path and
// returns a writer appending to it.
func NewBlockInfoWriter(path string) (*BlockInfoWriter, error) {
	fi, statErr := os.Stat(path)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open blockchain-info csv: %w", err)
	}
	bw := &BlockInfoWriter{w: f, f: f}
	if statErr != nil || fi.Size() == 0 {
		if _, err := f.WriteString(blockInfoHeader); err != nil {
			f.Close()
			return nil, fmt.Errorf("write blockchain-info csv header: %w", err)
		}
	}
	return bw, nil
}

// Close closes the underlying file.
func (bw *BlockInfoWriter) Close() error {
	if bw.f == nil {
		return nil
	}
	return bw.f.Close()
}

// Append writes one row for blk, given the coinbase reward it paid and the
// number of seconds since the previous block (0 for genesis).
func (bw *BlockInfoWriter) Append(blk *block.Block, coinbaseReward uint64, timeBetweenBlocks uint64) error {
	row := fmt.Sprintf("%d,%d,%d,%d,%d\n",
		blk.Header.Height, coinbaseReward, blk.Header.Timestamp, blk.Header.Difficulty, timeBetweenBlocks)
	_, err := bw.w.Write([]byte(row))
	return err
}
