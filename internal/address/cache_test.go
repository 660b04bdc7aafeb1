package address

import (
	"encoding/hex"
	"testing"

	"github.com/Klingon-tech/klingnet-chain/pkg/crypto"
	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

func TestCache_ResolveMatchesDerive(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	pubHex := hex.EncodeToString(key.PublicKey())
	params := DevParams()

	want, err := Derive(pubHex, types.AddressWallet, params)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}

	c := NewCache(params)
	got, err := c.Resolve(pubHex, types.AddressWallet)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != want {
		t.Errorf("Resolve = %v, want %v", got, want)
	}

	// Second call should hit the memoized entry and return the same value.
	got2, err := c.Resolve(pubHex, types.AddressWallet)
	if err != nil {
		t.Fatalf("Resolve (cached): %v", err)
	}
	if got2 != want {
		t.Errorf("cached Resolve = %v, want %v", got2, want)
	}
}

func TestCache_DistinctTypesDistinctEntries(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	pubHex := hex.EncodeToString(key.PublicKey())
	c := NewCache(DevParams())

	wallet, err := c.Resolve(pubHex, types.AddressWallet)
	if err != nil {
		t.Fatalf("Resolve(wallet): %v", err)
	}
	contract, err := c.Resolve(pubHex, types.AddressContract)
	if err != nil {
		t.Fatalf("Resolve(contract): %v", err)
	}
	if wallet == contract {
		t.Error("different types should derive to different addresses")
	}
}

func TestCache_ResetDiscardsEntries(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	pubHex := hex.EncodeToString(key.PublicKey())
	c := NewCache(DevParams())

	if _, err := c.Resolve(pubHex, types.AddressWallet); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(c.m) != 1 {
		t.Fatalf("len(c.m) = %d, want 1 before Reset", len(c.m))
	}

	c.Reset()

	if len(c.m) != 0 {
		t.Errorf("len(c.m) = %d, want 0 after Reset", len(c.m))
	}

	if _, err := c.Resolve(pubHex, types.AddressWallet); err != nil {
		t.Fatalf("Resolve after Reset: %v", err)
	}
	if len(c.m) != 1 {
		t.Errorf("len(c.m) = %d, want 1 after re-resolving post-Reset", len(c.m))
	}
}
