package tx

import "testing"

func TestEstimateTxFee(t *testing.T) {
	const overhead = 12
	const perInput = 16
	const perOutput = 34

	tests := []struct {
		name       string
		numInputs  int
		numOutputs int
		feeRate    uint64
		want       uint64
	}{
		{"zero rate", 1, 2, 0, 0},
		{"simple 1-in 2-out", 1, 2, 10, uint64(overhead+perInput*1+perOutput*2) * 10},
		{"2-in 2-out", 2, 2, 10, uint64(overhead+perInput*2+perOutput*2) * 10},
		{"consolidate 10-in 1-out", 10, 1, 10, uint64(overhead+perInput*10+perOutput*1) * 10},
		{"rate 1", 1, 1, 1, uint64(overhead + perInput*1 + perOutput*1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EstimateTxFee(tt.numInputs, tt.numOutputs, tt.feeRate)
			if got != tt.want {
				t.Errorf("EstimateTxFee(%d, %d, %d) = %d, want %d",
					tt.numInputs, tt.numOutputs, tt.feeRate, got, tt.want)
			}
		})
	}
}

func TestEstimateTxFee_ExtraRuleBytes(t *testing.T) {
	base := EstimateTxFee(1, 1, 10)
	withExtra := EstimateTxFee(1, 1, 10, 33)
	if withExtra <= base {
		t.Errorf("extra rule bytes should increase the estimate: base=%d withExtra=%d", base, withExtra)
	}
	if withExtra-base != 330 {
		t.Errorf("extra rule bytes delta = %d, want 330", withExtra-base)
	}
}
