package wallet

import (
	"encoding/hex"

	"github.com/Klingon-tech/klingnet-chain/pkg/crypto"
)

// MasterHexSize is the length in bytes of a wallet's master key material.
const MasterHexSize = 30

var masterSalt = []byte("klingnet-chain/wallet/master/v1")

// MasterParams returns the Argon2id cost parameters used to stretch a
// BIP-39 seed into wallet master key material. This is a wallet-at-rest
// concern, independent of (and never shared with) internal/address's
// protocol Argon2id parameters — changing this never affects a derived
// address.
func MasterParams() crypto.Argon2idParams {
	return crypto.Argon2idParams{
		TimeCost:    3,
		MemoryKiB:   64 * 1024,
		Parallelism: 2,
		HashLen:     MasterHexSize,
	}
}

// DevMasterParams returns a fast Argon2id profile for tests.
func DevMasterParams() crypto.Argon2idParams {
	return crypto.Argon2idParams{
		TimeCost:    1,
		MemoryKiB:   8,
		Parallelism: 1,
		HashLen:     MasterHexSize,
	}
}

// DeriveMasterHex stretches a BIP-39 seed into the wallet's master hex
// string (spec §3: "master hex, 30 bytes from argon2id of mnemonic").
func DeriveMasterHex(seed []byte, p crypto.Argon2idParams) string {
	img := crypto.Argon2id(seed, masterSalt, p)
	return hex.EncodeToString(img)
}
