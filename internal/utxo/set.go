// Package utxo manages the anchor-keyed UTXO set (spec §4.7): lookup,
// per-address balance/spendable queries, and atomic block digestion.
package utxo

import "github.com/Klingon-tech/klingnet-chain/pkg/types"

// UTXO is an unspent output together with the height it was minted at,
// used to enforce sigOrSlash's confirmation-depth maturity rule.
type UTXO struct {
	Anchor     types.Anchor  `json:"anchor"`
	Amount     uint64        `json:"amount"`
	Address    types.Address `json:"address"`
	Rule       types.Rule    `json:"rule"`
	MintHeight uint64        `json:"mint_height"`
}

// Set is the interface for UTXO storage.
type Set interface {
	Get(anchor types.Anchor) (*UTXO, error)
	Put(u *UTXO) error
	Delete(anchor types.Anchor) error
	Has(anchor types.Anchor) (bool, error)
}
