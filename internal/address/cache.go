package address

import (
	"sync"

	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

// Cache memoizes pubKeyHex+type → address derivations so repeated ownership
// checks against the same witness don't each pay the argon2id cost (spec
// §4.6 stage 4: "a process-level pubKey→address table to amortize
// argon2id").
type Cache struct {
	mu     sync.RWMutex
	params Params
	m      map[cacheKey]types.Address
}

type cacheKey struct {
	pubKeyHex string
	typ       types.AddressType
}

// NewCache returns a Cache that derives addresses under params.
func NewCache(params Params) *Cache {
	return &Cache{params: params, m: make(map[cacheKey]types.Address)}
}

// Resolve returns the address of the given type for pubKeyHex, computing
// and memoizing it on first use.
func (c *Cache) Resolve(pubKeyHex string, typ types.AddressType) (types.Address, error) {
	key := cacheKey{pubKeyHex: pubKeyHex, typ: typ}

	c.mu.RLock()
	if a, ok := c.m[key]; ok {
		c.mu.RUnlock()
		return a, nil
	}
	c.mu.RUnlock()

	a, err := Derive(pubKeyHex, typ, c.params)
	if err != nil {
		return types.Address{}, err
	}

	c.mu.Lock()
	c.m[key] = a
	c.mu.Unlock()
	return a, nil
}

// Reset discards every memoized derivation. Called on reorg so a rebuilt
// chain never reads an address computed under a stale view of the world.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.m = make(map[cacheKey]types.Address)
	c.mu.Unlock()
}
