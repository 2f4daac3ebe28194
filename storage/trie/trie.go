package trie

import (
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	gethtrie "github.com/ethereum/go-ethereum/trie"
	"github.com/ethereum/go-ethereum/trie/trienode"
	"github.com/ethereum/go-ethereum/triedb"

	"contractorium/storage"
)

// Trie wraps go-ethereum's Merkle Patricia trie behind the handful of
// operations the ledger needs. Keys are expected to be keccak256 hashed by the
// caller.
//
// The wrapper tracks the last committed root and reopens the underlying trie
// after every commit so one instance serves the whole lifetime of a node.
//
// Trie is not safe for concurrent use.
type Trie struct {
	store  storage.Database
	trieDB *triedb.Database
	trie   *gethtrie.Trie
	root   common.Hash
}

// NewTrie opens a trie backed by store at root. A nil or empty root denotes
// the empty trie.
func NewTrie(store storage.Database, root []byte) (*Trie, error) {
	trieDB := store.TrieDB()
	rootHash := gethtypes.EmptyRootHash
	if len(root) > 0 {
		rootHash = common.BytesToHash(root)
	}
	underlying, err := gethtrie.New(gethtrie.TrieID(rootHash), trieDB)
	if err != nil {
		return nil, err
	}
	return &Trie{
		store:  store,
		trieDB: trieDB,
		trie:   underlying,
		root:   rootHash,
	}, nil
}

// Get returns the value stored under key, or nil when absent.
func (t *Trie) Get(key []byte) ([]byte, error) {
	return t.trie.Get(key)
}

// Update inserts or replaces the value under key. An empty value removes the
// entry.
func (t *Trie) Update(key, value []byte) error {
	if len(value) == 0 {
		return t.trie.Delete(key)
	}
	return t.trie.Update(key, value)
}

// Delete removes key from the trie. Deleting a missing key is not an error.
func (t *Trie) Delete(key []byte) error {
	return t.trie.Delete(key)
}

// Hash returns the root hash including uncommitted mutations.
func (t *Trie) Hash() common.Hash {
	return t.trie.Hash()
}

// Root returns the last committed root hash.
func (t *Trie) Root() common.Hash {
	return t.root
}

// Reset discards in-memory changes and reopens the trie at root.
func (t *Trie) Reset(root common.Hash) error {
	underlying, err := gethtrie.New(gethtrie.TrieID(root), t.trieDB)
	if err != nil {
		return err
	}
	t.trie = underlying
	t.root = root
	return nil
}

// Snapshot captures the current in-memory trie, including uncommitted
// mutations, so a failed batch can be rolled back with Restore.
func (t *Trie) Snapshot() *gethtrie.Trie {
	return t.trie.Copy()
}

// Restore replaces the working trie with a snapshot taken earlier.
func (t *Trie) Restore(snapshot *gethtrie.Trie) {
	if snapshot == nil {
		return
	}
	t.trie = snapshot
}

// Commit flushes pending nodes to the backing database and returns the new
// root.
func (t *Trie) Commit(parent common.Hash, height uint64) (common.Hash, error) {
	newRoot, nodes := t.trie.Commit(false)
	if nodes != nil {
		merged := trienode.NewMergedNodeSet()
		if err := merged.Merge(nodes); err != nil {
			return common.Hash{}, err
		}
		if err := t.trieDB.Update(newRoot, parent, height, merged, nil); err != nil {
			return common.Hash{}, err
		}
		if err := t.trieDB.Commit(newRoot, false); err != nil {
			return common.Hash{}, err
		}
	}
	underlying, err := gethtrie.New(gethtrie.TrieID(newRoot), t.trieDB)
	if err != nil {
		return common.Hash{}, err
	}
	t.trie = underlying
	t.root = newRoot
	return newRoot, nil
}

// Store exposes the backing key-value store.
func (t *Trie) Store() storage.Database {
	return t.store
}
