package wallet

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/Klingon-tech/klingnet-chain/internal/address"
	"github.com/Klingon-tech/klingnet-chain/internal/kind"
	"github.com/Klingon-tech/klingnet-chain/pkg/crypto"
	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

// DerivedAccount is the result of a successful account derivation: a usable
// keypair plus the metadata needed to rederive it on a later load.
type DerivedAccount struct {
	PrivateKey      *crypto.PrivateKey
	Address         types.Address
	SeedModifierHex string
}

// seedModifierHex encodes the (i, k) derivation coordinates into the
// modifier folded into the seed hash (spec §4.4).
func seedModifierHex(i, k uint32) string {
	var b [8]byte
	binary.BigEndian.PutUint32(b[0:4], i)
	binary.BigEndian.PutUint32(b[4:8], k)
	return hex.EncodeToString(b[:])
}

// DeriveAccount computes the account at index i of type typ: it retries
// successive seed modifiers k = 0, 1, 2, … until one derives an address
// that passes the address package's security check, up to
// 65536·2^zeroBits(typ) attempts (spec §4.4). masterHex comes from
// DeriveMasterHex.
func DeriveAccount(masterHex string, i uint32, typ types.AddressType, params address.Params) (*DerivedAccount, error) {
	maxIterations := uint64(65536) << uint(typ.ZeroBits())

	for k := uint32(0); uint64(k) < maxIterations; k++ {
		modifier := seedModifierHex(i, k)
		seed := sha256.Sum256([]byte(masterHex + modifier))

		priv, err := crypto.PrivateKeyFromBytes(seed[:])
		if err != nil {
			continue
		}
		pubKeyHex := hex.EncodeToString(priv.PublicKey())

		addr, err := address.Derive(pubKeyHex, typ, params)
		if err != nil {
			// A security-check miss is an expected retry outcome, not a
			// failure worth surfacing (spec §7).
			priv.Zero()
			continue
		}

		return &DerivedAccount{
			PrivateKey:      priv,
			Address:         addr,
			SeedModifierHex: modifier,
		}, nil
	}

	return nil, kind.Wrap(kind.DerivationExhausted,
		fmt.Errorf("no address of type %c found for index %d after %d attempts", typ, i, maxIterations))
}

// RederiveAccount recomputes the keypair for a previously-recorded account
// entry without searching: seedModifierHex is already known, so this is a
// single Argon2id + keypair computation rather than a retry loop.
func RederiveAccount(masterHex, seedModifierHex string, typ types.AddressType, params address.Params) (*DerivedAccount, error) {
	seed := sha256.Sum256([]byte(masterHex + seedModifierHex))
	priv, err := crypto.PrivateKeyFromBytes(seed[:])
	if err != nil {
		return nil, fmt.Errorf("rederive key: %w", err)
	}
	pubKeyHex := hex.EncodeToString(priv.PublicKey())

	addr, err := address.Derive(pubKeyHex, typ, params)
	if err != nil {
		priv.Zero()
		return nil, fmt.Errorf("rederive address: %w", err)
	}

	return &DerivedAccount{
		PrivateKey:      priv,
		Address:         addr,
		SeedModifierHex: seedModifierHex,
	}, nil
}

// DeriveAccounts derives accounts [existingCount, n) of type typ for wallet
// walletName, persisting each as it succeeds (spec §4.4's deriveAccounts).
// masterHex must come from DeriveMasterHex applied to the wallet's loaded
// seed.
func (ks *Keystore) DeriveAccounts(walletName, masterHex string, typ types.AddressType, n uint32, params address.Params) ([]DerivedAccount, error) {
	typeKey := string(typ)
	existing, err := ks.GetNextIndex(walletName, typeKey)
	if err != nil {
		return nil, err
	}

	var derived []DerivedAccount
	for i := existing; i < n; i++ {
		acct, err := DeriveAccount(masterHex, i, typ, params)
		if err != nil {
			return derived, fmt.Errorf("derive account %d: %w", i, err)
		}

		entry := AccountEntry{
			Index:           i,
			Type:            typeKey,
			Name:            fmt.Sprintf("%s-%d", typeKey, i),
			Address:         acct.Address.String(),
			SeedModifierHex: acct.SeedModifierHex,
		}
		if err := ks.AddAccount(walletName, entry); err != nil {
			return derived, fmt.Errorf("persist account %d: %w", i, err)
		}
		if err := ks.SetNextIndex(walletName, typeKey, i+1); err != nil {
			return derived, fmt.Errorf("advance next index: %w", err)
		}

		derived = append(derived, *acct)
	}

	return derived, nil
}
