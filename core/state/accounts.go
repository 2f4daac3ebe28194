package state

import (
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"contractorium/core/types"
)

var accountPrefix = []byte("account:")

func accountStateKey(addr [20]byte) []byte {
	buf := make([]byte, len(accountPrefix)+len(addr))
	copy(buf, accountPrefix)
	copy(buf[len(accountPrefix):], addr[:])
	return ethcrypto.Keccak256(buf)
}

type storedAccount struct {
	Nonce   uint64
	Balance uint64
}

// GetAccount returns the account for addr. Unknown addresses yield a zero
// account rather than an error.
func (m *Manager) GetAccount(addr [20]byte) (*types.Account, error) {
	data, err := m.trie.Get(accountStateKey(addr))
	if err != nil {
		return nil, err
	}
	acc := &types.Account{}
	if len(data) == 0 {
		return acc, nil
	}
	var stored storedAccount
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return nil, err
	}
	acc.Nonce = stored.Nonce
	acc.Balance = stored.Balance
	return acc, nil
}

// PutAccount persists the account. An empty account is removed from the trie.
func (m *Manager) PutAccount(addr [20]byte, acc *types.Account) error {
	if acc == nil || (acc.Nonce == 0 && acc.Balance == 0) {
		return m.trie.Delete(accountStateKey(addr))
	}
	encoded, err := rlp.EncodeToBytes(storedAccount{Nonce: acc.Nonce, Balance: acc.Balance})
	if err != nil {
		return err
	}
	return m.trie.Update(accountStateKey(addr), encoded)
}

// IncrementNonce bumps the account nonce after an accepted transaction.
func (m *Manager) IncrementNonce(addr [20]byte) error {
	acc, err := m.GetAccount(addr)
	if err != nil {
		return err
	}
	acc.Nonce++
	return m.PutAccount(addr, acc)
}

// Balance returns the native balance of addr.
func (m *Manager) Balance(addr [20]byte) (uint64, error) {
	acc, err := m.GetAccount(addr)
	if err != nil {
		return 0, err
	}
	return acc.Balance, nil
}

// SetBalance overwrites the native balance of addr, keeping its nonce.
func (m *Manager) SetBalance(addr [20]byte, amount uint64) error {
	acc, err := m.GetAccount(addr)
	if err != nil {
		return err
	}
	acc.Balance = amount
	return m.PutAccount(addr, acc)
}
