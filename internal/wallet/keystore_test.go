package wallet

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/Klingon-tech/klingnet-chain/internal/address"
	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

func testKeystore(t *testing.T) *Keystore {
	t.Helper()
	dir := t.TempDir()
	ks, err := NewKeystore(dir)
	if err != nil {
		t.Fatalf("NewKeystore() error: %v", err)
	}
	return ks
}

func testSeedBytes(t *testing.T) []byte {
	t.Helper()
	mnemonic := "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	seed, err := SeedFromMnemonic(mnemonic, "")
	if err != nil {
		t.Fatalf("SeedFromMnemonic() error: %v", err)
	}
	return seed
}

func TestKeystore_CreateAndLoad(t *testing.T) {
	ks := testKeystore(t)
	seed := testSeedBytes(t)
	password := []byte("test-password")

	err := ks.Create("mywallet", seed, password, fastParams())
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	loaded, err := ks.Load("mywallet", password)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if !bytes.Equal(loaded, seed) {
		t.Error("loaded seed does not match original")
	}
}

func TestKeystore_CreateDuplicate(t *testing.T) {
	ks := testKeystore(t)
	seed := testSeedBytes(t)

	err := ks.Create("dup", seed, []byte("pass"), fastParams())
	if err != nil {
		t.Fatalf("first Create() error: %v", err)
	}

	err = ks.Create("dup", seed, []byte("pass"), fastParams())
	if err == nil {
		t.Error("second Create() should fail for duplicate name")
	}
}

func TestKeystore_LoadWrongPassword(t *testing.T) {
	ks := testKeystore(t)
	seed := testSeedBytes(t)

	ks.Create("wallet", seed, []byte("correct"), fastParams())

	_, err := ks.Load("wallet", []byte("wrong"))
	if err == nil {
		t.Error("Load() with wrong password should fail")
	}
}

func TestKeystore_LoadNonexistent(t *testing.T) {
	ks := testKeystore(t)

	_, err := ks.Load("doesnotexist", []byte("pass"))
	if err == nil {
		t.Error("Load() for nonexistent wallet should fail")
	}
}

func TestKeystore_List(t *testing.T) {
	ks := testKeystore(t)
	seed := testSeedBytes(t)

	// Empty at first.
	names, err := ks.List()
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("expected 0 wallets, got %d", len(names))
	}

	// Create two wallets.
	ks.Create("alpha", seed, []byte("p"), fastParams())
	ks.Create("beta", seed, []byte("p"), fastParams())

	names, err = ks.List()
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(names) != 2 {
		t.Errorf("expected 2 wallets, got %d", len(names))
	}
}

func TestKeystore_Delete(t *testing.T) {
	ks := testKeystore(t)
	seed := testSeedBytes(t)

	ks.Create("todelete", seed, []byte("p"), fastParams())

	err := ks.Delete("todelete")
	if err != nil {
		t.Fatalf("Delete() error: %v", err)
	}

	// Should be gone.
	_, err = ks.Load("todelete", []byte("p"))
	if err == nil {
		t.Error("wallet should be deleted")
	}
}

func TestKeystore_DeleteNonexistent(t *testing.T) {
	ks := testKeystore(t)

	err := ks.Delete("ghost")
	if err == nil {
		t.Error("Delete() for nonexistent wallet should fail")
	}
}

func TestKeystore_AddAccount(t *testing.T) {
	ks := testKeystore(t)
	seed := testSeedBytes(t)

	ks.Create("wallet", seed, []byte("p"), fastParams())

	err := ks.AddAccount("wallet", AccountEntry{
		Index:           0,
		Type:            "W",
		Name:            "default",
		Address:         "Wabcdef0123456789abcdef0123456789abcdef01",
		SeedModifierHex: "00",
	})
	if err != nil {
		t.Fatalf("AddAccount() error: %v", err)
	}

	accounts, err := ks.ListAccounts("wallet")
	if err != nil {
		t.Fatalf("ListAccounts() error: %v", err)
	}
	if len(accounts) != 1 {
		t.Fatalf("expected 1 account, got %d", len(accounts))
	}
	if accounts[0].Name != "default" {
		t.Errorf("account name = %q, want %q", accounts[0].Name, "default")
	}
}

func TestKeystore_AddAccountDuplicateIndex(t *testing.T) {
	ks := testKeystore(t)
	seed := testSeedBytes(t)

	ks.Create("wallet", seed, []byte("p"), fastParams())

	ks.AddAccount("wallet", AccountEntry{Index: 0, Type: "W", Name: "first", Address: "Waa"})

	err := ks.AddAccount("wallet", AccountEntry{Index: 0, Type: "W", Name: "second", Address: "Wbb"})
	if err == nil {
		t.Error("should reject duplicate account index within the same type")
	}
}

func TestKeystore_AddAccountSameIndexDifferentType(t *testing.T) {
	ks := testKeystore(t)
	seed := testSeedBytes(t)

	ks.Create("wallet", seed, []byte("p"), fastParams())

	if err := ks.AddAccount("wallet", AccountEntry{Index: 0, Type: "W", Name: "wallet0", Address: "Waa"}); err != nil {
		t.Fatalf("AddAccount(W): %v", err)
	}
	if err := ks.AddAccount("wallet", AccountEntry{Index: 0, Type: "S", Name: "stake0", Address: "Sbb"}); err != nil {
		t.Fatalf("AddAccount(S) with same index but different type should succeed: %v", err)
	}

	accounts, _ := ks.ListAccounts("wallet")
	if len(accounts) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(accounts))
	}
}

func TestKeystore_ListAccountsByType(t *testing.T) {
	ks := testKeystore(t)
	seed := testSeedBytes(t)

	ks.Create("wallet", seed, []byte("p"), fastParams())
	ks.AddAccount("wallet", AccountEntry{Index: 0, Type: "W", Name: "w0", Address: "Waa"})
	ks.AddAccount("wallet", AccountEntry{Index: 1, Type: "W", Name: "w1", Address: "Wbb"})
	ks.AddAccount("wallet", AccountEntry{Index: 0, Type: "S", Name: "s0", Address: "Scc"})

	wallets, err := ks.ListAccountsByType("wallet", "W")
	if err != nil {
		t.Fatalf("ListAccountsByType: %v", err)
	}
	if len(wallets) != 2 {
		t.Errorf("expected 2 W accounts, got %d", len(wallets))
	}

	stakes, err := ks.ListAccountsByType("wallet", "S")
	if err != nil {
		t.Fatalf("ListAccountsByType: %v", err)
	}
	if len(stakes) != 1 {
		t.Errorf("expected 1 S account, got %d", len(stakes))
	}

	contracts, err := ks.ListAccountsByType("wallet", "C")
	if err != nil {
		t.Fatalf("ListAccountsByType: %v", err)
	}
	if len(contracts) != 0 {
		t.Errorf("expected 0 C accounts, got %d", len(contracts))
	}
}

func TestKeystore_FilePermissions(t *testing.T) {
	ks := testKeystore(t)
	seed := testSeedBytes(t)

	ks.Create("secure", seed, []byte("p"), fastParams())

	path := filepath.Join(ks.path, "secure.wallet")
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error: %v", err)
	}

	perm := info.Mode().Perm()
	if perm&0077 != 0 {
		t.Errorf("wallet file should be 0600, got %o", perm)
	}
}

func TestKeystore_NextIndex(t *testing.T) {
	ks := testKeystore(t)
	seed := testSeedBytes(t)

	ks.Create("wallet", seed, []byte("p"), fastParams())

	// Initially zero.
	idx, err := ks.GetNextIndex("wallet", "W")
	if err != nil {
		t.Fatalf("GetNextIndex: %v", err)
	}
	if idx != 0 {
		t.Errorf("initial next index = %d, want 0", idx)
	}

	// Increment.
	if err := ks.IncrementNextIndex("wallet", "W"); err != nil {
		t.Fatalf("IncrementNextIndex: %v", err)
	}

	idx, _ = ks.GetNextIndex("wallet", "W")
	if idx != 1 {
		t.Errorf("after first increment: index = %d, want 1", idx)
	}

	// Increment again.
	ks.IncrementNextIndex("wallet", "W")
	idx, _ = ks.GetNextIndex("wallet", "W")
	if idx != 2 {
		t.Errorf("after second increment: index = %d, want 2", idx)
	}
}

func TestKeystore_NextIndex_Nonexistent(t *testing.T) {
	ks := testKeystore(t)

	_, err := ks.GetNextIndex("ghost", "W")
	if err == nil {
		t.Error("GetNextIndex for nonexistent wallet should fail")
	}

	err = ks.IncrementNextIndex("ghost", "W")
	if err == nil {
		t.Error("IncrementNextIndex for nonexistent wallet should fail")
	}
}

func TestKeystore_SetNextIndex(t *testing.T) {
	ks := testKeystore(t)
	seed := testSeedBytes(t)

	ks.Create("wallet", seed, []byte("p"), fastParams())

	// Set to 5.
	if err := ks.SetNextIndex("wallet", "W", 5); err != nil {
		t.Fatalf("SetNextIndex: %v", err)
	}
	idx, _ := ks.GetNextIndex("wallet", "W")
	if idx != 5 {
		t.Errorf("next index = %d, want 5", idx)
	}

	// Set to 0 (reset).
	if err := ks.SetNextIndex("wallet", "W", 0); err != nil {
		t.Fatalf("SetNextIndex to 0: %v", err)
	}
	idx, _ = ks.GetNextIndex("wallet", "W")
	if idx != 0 {
		t.Errorf("next index = %d, want 0", idx)
	}

	// Nonexistent wallet.
	if err := ks.SetNextIndex("ghost", "W", 1); err == nil {
		t.Error("SetNextIndex for nonexistent wallet should fail")
	}
}

func TestKeystore_NextIndex_IndependentAcrossTypes(t *testing.T) {
	ks := testKeystore(t)
	seed := testSeedBytes(t)

	ks.Create("wallet", seed, []byte("p"), fastParams())

	// Advance W.
	ks.IncrementNextIndex("wallet", "W")
	ks.IncrementNextIndex("wallet", "W")

	// S should still be 0.
	sIdx, _ := ks.GetNextIndex("wallet", "S")
	if sIdx != 0 {
		t.Errorf("S next index = %d, want 0 (should be independent of W)", sIdx)
	}

	// Advance S.
	ks.IncrementNextIndex("wallet", "S")

	// W should still be 2.
	wIdx, _ := ks.GetNextIndex("wallet", "W")
	if wIdx != 2 {
		t.Errorf("W next index = %d, want 2 (should be independent of S)", wIdx)
	}
}

func TestKeystore_FullFlow(t *testing.T) {
	ks := testKeystore(t)
	password := []byte("strong-password")

	// Generate mnemonic and seed.
	mnemonic, _ := GenerateMnemonic()
	seed, _ := SeedFromMnemonic(mnemonic, "")

	// Create wallet.
	err := ks.Create("main", seed, password, fastParams())
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	// Derive an address of type W and add an account for it.
	params := address.DevParams()
	pubKeyHex := "02aabbccddeeff00112233445566778899aabbccddeeff001122334455667788"
	addr, err := address.Derive(pubKeyHex, types.AddressWallet, params)
	if err != nil {
		t.Fatalf("Derive() error: %v", err)
	}

	err = ks.AddAccount("main", AccountEntry{
		Index:           0,
		Type:            string(types.AddressWallet),
		Name:            "default",
		Address:         addr.String(),
		SeedModifierHex: "00",
	})
	if err != nil {
		t.Fatalf("AddAccount() error: %v", err)
	}

	// Reload and verify seed matches.
	loaded, err := ks.Load("main", password)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !bytes.Equal(loaded, seed) {
		t.Error("loaded seed mismatch")
	}

	// Verify accounts persisted.
	accounts, _ := ks.ListAccounts("main")
	if len(accounts) != 1 || accounts[0].Address != addr.String() {
		t.Error("account not persisted correctly")
	}
}
