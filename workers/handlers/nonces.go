package handlers

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// MaxSignatureLifetime bounds how far in the future a request deadline may be
const MaxSignatureLifetime = time.Hour

// SignatureNonces remembers which nonces each signer has spent
type SignatureNonces interface {
	// UseSignatureNonce returns false if signer already spent nonce. The
	// record may be dropped after ttl.
	UseSignatureNonce(signer common.Address, nonce uint64, ttl time.Duration) (bool, error)
}

type nonceKey struct {
	signer common.Address
	nonce  uint64
}

// MemoryNonces is a SignatureNonces kept in process memory
type MemoryNonces struct {
	mu     sync.Mutex
	used   map[nonceKey]time.Time
	sweeps int
}

func NewMemoryNonces() *MemoryNonces {
	return &MemoryNonces{used: make(map[nonceKey]time.Time)}
}

func (m *MemoryNonces) UseSignatureNonce(signer common.Address, nonce uint64, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	key := nonceKey{signer, nonce}
	if expiry, ok := m.used[key]; ok && now.Before(expiry) {
		return false, nil
	}
	m.used[key] = now.Add(ttl)

	// expired entries are swept every 256 uses
	m.sweeps++
	if m.sweeps%256 == 0 {
		for k, expiry := range m.used {
			if !now.Before(expiry) {
				delete(m.used, k)
			}
		}
	}
	return true, nil
}
