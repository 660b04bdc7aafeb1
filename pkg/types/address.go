package types

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/mr-tron/base58"
)

// AddressHashSize is the length in bytes of the argon2id image carried by
// an address (truncated/derived per internal/address's protocol parameters).
const AddressHashSize = 20

// AddressType is the single leading character of an address string that
// identifies the purpose of the key it was derived for.
type AddressType byte

// Address types recognized by the protocol (spec §3).
const (
	AddressWallet   AddressType = 'W' // ordinary wallet account
	AddressContract AddressType = 'C' // contract-reserved, unused by CORE
	AddressStake    AddressType = 'S' // stake sink
	AddressProtocol AddressType = 'P' // protocol/treasury
	AddressUnknown  AddressType = 'U' // decode-time fallback, never minted
)

// IsValid reports whether t is one of the recognized address types.
func (t AddressType) IsValid() bool {
	switch t {
	case AddressWallet, AddressContract, AddressStake, AddressProtocol, AddressUnknown:
		return true
	default:
		return false
	}
}

// ZeroBits returns the number of leading zero bits the argon2id image of
// an address of this type must have to pass the security check (§4.3).
// Higher-privilege address types require a more expensive derivation.
func (t AddressType) ZeroBits() int {
	switch t {
	case AddressStake:
		return 12
	case AddressProtocol:
		return 16
	case AddressContract:
		return 10
	default: // AddressWallet, AddressUnknown
		return 8
	}
}

// Address is a type-prefixed, base58-encoded argon2id image of a public
// key (spec §3: "first character encodes type ... remainder is a
// base58-encoded argon2id of the public key").
type Address struct {
	Type AddressType
	Hash [AddressHashSize]byte
}

// IsZero returns true if the address is the zero value.
func (a Address) IsZero() bool {
	return a.Type == 0 && a.Hash == [AddressHashSize]byte{}
}

// String returns the canonical address string: type char + base58(hash).
func (a Address) String() string {
	return string(a.Type) + base58.Encode(a.Hash[:])
}

// Hex returns the raw hex encoding of the address hash, without the type
// character. Used for diagnostics and storage keys.
func (a Address) Hex() string {
	return hex.EncodeToString(a.Hash[:])
}

// Bytes returns a copy of the address hash.
func (a Address) Bytes() []byte {
	b := make([]byte, AddressHashSize)
	copy(b, a.Hash[:])
	return b
}

// MarshalJSON encodes the address as its canonical string form.
func (a Address) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON decodes a canonical address string.
func (a *Address) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*a = Address{}
		return nil
	}
	parsed, err := ParseAddress(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ParseAddress parses a canonical address string ("<type><base58>").
// ConformityCheck (length/alphabet) per spec §3/§4.3 lives here; the
// accompanying SecurityCheck (zero-bits of the argon2id image) is in
// internal/address since it requires the protocol's argon2id parameters.
func ParseAddress(s string) (Address, error) {
	if len(s) < 2 {
		return Address{}, fmt.Errorf("address too short: %q", s)
	}
	t := AddressType(s[0])
	if !t.IsValid() {
		return Address{}, fmt.Errorf("unknown address type %q", s[0])
	}
	decoded, err := base58.Decode(s[1:])
	if err != nil {
		return Address{}, fmt.Errorf("invalid base58 address body: %w", err)
	}
	if len(decoded) != AddressHashSize {
		return Address{}, fmt.Errorf("address hash must be %d bytes, got %d", AddressHashSize, len(decoded))
	}
	var a Address
	a.Type = t
	copy(a.Hash[:], decoded)
	return a, nil
}

// ConformityCheck reports whether s has the correct shape to be an address
// string: a valid type character followed by a base58 body that decodes to
// exactly AddressHashSize bytes. It does not check the security (zero-bits)
// condition — see internal/address.SecurityCheck for that.
func ConformityCheck(s string) bool {
	_, err := ParseAddress(s)
	return err == nil
}
