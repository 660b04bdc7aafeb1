package wallet

import "github.com/Klingon-tech/klingnet-chain/pkg/types"

// Account represents a wallet account: a derived address of a given type,
// together with the index it was derived at within that type's sequence.
type Account struct {
	Index   uint32
	Type    types.AddressType
	Name    string
	Address types.Address
}
