package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const identityFile = "identity.json"

// Identity is the LP's persisted addresses and public keys, one per
// ledger. key material lives in files with 0600
// permission and the core never rotates them; Identity holds only the
// public half needed to reconstruct counterparties' view of the LP —
// private keys are supplied at process start via configuration, never
// written here.
type Identity struct {
	BTCRefundAddress string `json:"btc_refund_address"`
	BTCClaimPubKey   string `json:"btc_claim_pubkey_hex"`
	M1ClaimAddress   string `json:"m1_claim_address"`
	EVMAddress       string `json:"evm_address"`
}

func (s *Store) identityPath() string {
	return filepath.Join(s.root, identityFile)
}

// SaveIdentity persists the LP's identity file.
func (s *Store) SaveIdentity(id Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return atomicWriteJSON(s.identityPath(), id)
}

// LoadIdentity reads the LP's identity file, if one exists.
func (s *Store) LoadIdentity() (*Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.identityPath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read identity file: %w", err)
	}
	var id Identity
	if err := json.Unmarshal(data, &id); err != nil {
		return nil, fmt.Errorf("unmarshal identity file: %w", err)
	}
	return &id, nil
}
