// Package kind defines the closed set of error kinds the protocol surfaces
// to callers. Every consensus-facing package wraps its errors in one of
// these rather than returning ad-hoc sentinels, so that RPC handlers and
// tests can classify a failure by Is(err, kind.X) without parsing strings.
package kind

import "errors"

// The closed set of error kinds.
var (
	Malformed           = errors.New("malformed")
	InvalidSignature    = errors.New("invalid signature")
	UnknownUtxo         = errors.New("unknown utxo")
	DoubleSpend         = errors.New("double spend")
	InsufficientFunds   = errors.New("insufficient funds")
	RuleViolation       = errors.New("rule violation")
	BadDifficulty       = errors.New("bad difficulty")
	StaleCandidate      = errors.New("stale candidate")
	ReorgRejected       = errors.New("reorg rejected")
	InconsistentDigest  = errors.New("inconsistent digest")
	Timeout             = errors.New("timeout")
	DerivationExhausted = errors.New("derivation exhausted")
	MempoolFull         = errors.New("mempool full")
	IoError             = errors.New("io error")
)

// Wrap annotates err with a kind so errors.Is(result, k) succeeds while
// errors.Unwrap(result) still reaches the original cause.
func Wrap(k error, err error) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: k, cause: err}
}

type kindError struct {
	kind  error
	cause error
}

func (e *kindError) Error() string {
	return e.kind.Error() + ": " + e.cause.Error()
}

func (e *kindError) Is(target error) bool {
	return e.kind == target
}

func (e *kindError) Unwrap() error {
	return e.cause
}
