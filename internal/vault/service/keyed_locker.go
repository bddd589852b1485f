package service

import (
	"hash/maphash"
	"sync"
)

// DefaultLockStripes is the stripe count used when none is configured.
const DefaultLockStripes = 256

// KeyedLocker serializes work per key using a fixed set of striped mutexes. Two keys
// may share a stripe, so a caller must never hold two locks of the same locker at
// once; use separate lockers for tokens and fingerprints.
type KeyedLocker struct {
	seed    maphash.Seed
	stripes []sync.Mutex
}

// NewKeyedLocker creates a locker with the given number of stripes.
func NewKeyedLocker(stripes int) *KeyedLocker {
	if stripes <= 0 {
		stripes = DefaultLockStripes
	}
	return &KeyedLocker{
		seed:    maphash.MakeSeed(),
		stripes: make([]sync.Mutex, stripes),
	}
}

func (k *KeyedLocker) stripe(key string) *sync.Mutex {
	return &k.stripes[maphash.String(k.seed, key)%uint64(len(k.stripes))]
}

// Lock acquires the stripe for key and returns its unlock function.
func (k *KeyedLocker) Lock(key string) func() {
	mu := k.stripe(key)
	mu.Lock()
	return mu.Unlock
}
