package crypto

import "golang.org/x/crypto/argon2"

// Argon2idParams names the tunable cost parameters of an Argon2id call.
// internal/address and internal/wallet each hold their own named instance
// of this struct; consensus-critical callers (address derivation) must use
// a fixed protocol instance, never a runtime-configurable one, since
// changing any field changes every derived address.
type Argon2idParams struct {
	TimeCost    uint32
	MemoryKiB   uint32
	Parallelism uint8
	HashLen     uint32
}

// Argon2id computes an Argon2id digest of password under salt with the
// given cost parameters. This is the sole memory-hard primitive used both
// for address derivation (pkg §4.1/§4.3) and for wallet-at-rest key
// derivation (internal/wallet) — the two use independent Argon2idParams
// instances and must never share one, since the two have entirely
// different security/performance tradeoffs and changing the address one
// invalidates every address on the chain.
func Argon2id(password, salt []byte, p Argon2idParams) []byte {
	return argon2.IDKey(password, salt, p.TimeCost, p.MemoryKiB, p.Parallelism, p.HashLen)
}
