package tx

// EstimateTxFee returns the minimum fee for a transaction with the given
// number of inputs and outputs at the given fee rate (base units per byte
// of the canonical encoding).
//
//	version(4) + inputCount(4) + inputs(16*n) + outputCount(4) + outputs(perOut*n)
//
// perOutput = 8 (amount) + 1 (address type) + 20 (address hash) + 1 (rule
// type) + 4 (rule data length) = 34. Pass extraRuleBytes to account for
// outputs whose rule carries data (e.g. a sigOrSlash staker pubkey).
func EstimateTxFee(numInputs, numOutputs int, feeRate uint64, extraRuleBytes ...int) uint64 {
	const overhead = 4 + 4 + 4 // version + inputCount + outputCount
	const perInput = 8 + 4 + 4 // Anchor: height + txIndex + outputIndex
	const perOutput = 8 + 1 + 20 + 1 + 4

	extra := 0
	if len(extraRuleBytes) > 0 {
		extra = extraRuleBytes[0]
	}

	size := overhead + perInput*numInputs + (perOutput+extra)*numOutputs
	return uint64(size) * feeRate
}

// RequiredFee returns the exact minimum fee for a fully built transaction
// at the given fee rate (base units per byte of its canonical encoding).
func RequiredFee(transaction *Transaction, feeRate uint64) uint64 {
	return uint64(transaction.EncodedLen()) * feeRate
}
