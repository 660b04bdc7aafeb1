// Package address implements deterministic, argon2id-gated address
// derivation (spec §4.3): an address is a type byte followed by a
// base58-encoded argon2id image of a public key, accepted only once it
// passes both a conformity check (shape) and a security check (the image
// must begin with the address type's required number of zero bits).
package address

import (
	"fmt"

	"github.com/Klingon-tech/klingnet-chain/pkg/crypto"
	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

// Network distinguishes mainnet from test/dev contexts. devArgon2 (a fast
// Argon2id profile) is only ever accepted off Mainnet — see Params.Validate.
type Network int

const (
	Mainnet Network = iota
	Testnet
	Devnet
)

// protocolSalt is the fixed domain-separation salt folded into every
// protocol address derivation. It is a consensus constant: changing it
// invalidates every address ever derived.
var protocolSalt = []byte("klingnet-chain/address/v1")

// Params are the Argon2id cost parameters used to compute an address's
// image from a public key. The protocol parameters are fixed constants;
// DevParams is a fast substitute accepted only on non-Mainnet networks, so
// tests don't pay the full memory-hard cost.
type Params struct {
	crypto.Argon2idParams
	Network Network
}

// ProtocolParams returns the fixed, consensus-critical Argon2id parameters
// used for address derivation on Mainnet and Testnet alike. Any deviation
// from these values invalidates every derived address (spec §4.1).
func ProtocolParams(network Network) Params {
	return Params{
		Argon2idParams: crypto.Argon2idParams{
			TimeCost:    3,
			MemoryKiB:   64 * 1024,
			Parallelism: 2,
			HashLen:     uint32(types.AddressHashSize),
		},
		Network: network,
	}
}

// DevParams returns a fast Argon2id profile for tests. It must never be
// used on Mainnet — Validate rejects it there.
func DevParams() Params {
	return Params{
		Argon2idParams: crypto.Argon2idParams{
			TimeCost:    1,
			MemoryKiB:   8,
			Parallelism: 1,
			HashLen:     uint32(types.AddressHashSize),
		},
		Network: Devnet,
	}
}

// Validate rejects any non-protocol parameter set used on Mainnet.
func (p Params) Validate() error {
	protocol := ProtocolParams(p.Network)
	if p.Network == Mainnet && p.Argon2idParams != protocol.Argon2idParams {
		return fmt.Errorf("address: devArgon2 parameters are not permitted on mainnet")
	}
	return nil
}

// image computes the argon2id image of a public key under the given
// parameters and protocol salt.
func image(pubKeyHex string, p Params) []byte {
	return crypto.Argon2id([]byte(pubKeyHex), protocolSalt, p.Argon2idParams)
}

// Derive computes the address of the given type for a public key (hex
// encoded), using the argon2id parameters in p.
func Derive(pubKeyHex string, typ types.AddressType, p Params) (types.Address, error) {
	if err := p.Validate(); err != nil {
		return types.Address{}, err
	}
	if !typ.IsValid() {
		return types.Address{}, fmt.Errorf("address: invalid type %q", typ)
	}
	img := image(pubKeyHex, p)
	if len(img) != types.AddressHashSize {
		return types.Address{}, fmt.Errorf("address: argon2id image must be %d bytes, got %d", types.AddressHashSize, len(img))
	}
	var a types.Address
	a.Type = typ
	copy(a.Hash[:], img)
	if !SecurityCheck(pubKeyHex, a, p) {
		return types.Address{}, fmt.Errorf("Address does not meet the security level required for type %c", typ)
	}
	return a, nil
}

// ConformityCheck delegates to types.ConformityCheck: the address string
// has the right shape (valid type char, base58 body of the right length).
func ConformityCheck(addrStr string) bool {
	return types.ConformityCheck(addrStr)
}

// SecurityCheck recomputes the argon2id image of pubKeyHex and asserts
// that it matches addr's stored hash and that the first ZeroBits(addr.Type)
// bits of that image are zero (spec §4.3). This is the "small PoW" that
// bounds on-chain address-grinding cost.
func SecurityCheck(pubKeyHex string, addr types.Address, p Params) bool {
	img := image(pubKeyHex, p)
	if len(img) != types.AddressHashSize {
		return false
	}
	var recomputed [types.AddressHashSize]byte
	copy(recomputed[:], img)
	if recomputed != addr.Hash {
		return false
	}
	return leadingZeroBits(img) >= addr.Type.ZeroBits()
}

// Accept reports whether addrStr is a valid address for pubKeyHex: it must
// parse (ConformityCheck) and pass SecurityCheck against the claimed type.
func Accept(addrStr, pubKeyHex string, p Params) bool {
	addr, err := types.ParseAddress(addrStr)
	if err != nil {
		return false
	}
	return SecurityCheck(pubKeyHex, addr, p)
}

// leadingZeroBits counts the number of leading zero bits in b.
func leadingZeroBits(b []byte) int {
	count := 0
	for _, byt := range b {
		if byt == 0 {
			count += 8
			continue
		}
		for mask := byte(0x80); mask > 0; mask >>= 1 {
			if byt&mask != 0 {
				return count
			}
			count++
		}
	}
	return count
}
