package trie

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"contractorium/storage"
)

func TestTrieCommitFlushPersistsData(t *testing.T) {
	dir := t.TempDir()

	db1, err := storage.NewLevelDB(dir)
	require.NoError(t, err)

	tr, err := NewTrie(db1, nil)
	require.NoError(t, err)

	key := crypto.Keccak256Hash([]byte("claim/1"))
	value := []byte("report")

	require.NoError(t, tr.Update(key.Bytes(), value))
	root, err := tr.Commit(common.Hash{}, 1)
	require.NoError(t, err)

	db1.Close()

	db2, err := storage.NewLevelDB(dir)
	require.NoError(t, err)
	defer db2.Close()

	restored, err := NewTrie(db2, root.Bytes())
	require.NoError(t, err)

	got, err := restored.Get(key.Bytes())
	require.NoError(t, err)
	require.Equal(t, value, got)
}

func TestTrieDeleteAndEmptyUpdate(t *testing.T) {
	tr, err := NewTrie(storage.NewMemDB(), nil)
	require.NoError(t, err)
	empty := tr.Hash()

	a := crypto.Keccak256([]byte("a"))
	b := crypto.Keccak256([]byte("b"))
	require.NoError(t, tr.Update(a, []byte{1}))
	require.NoError(t, tr.Update(b, []byte{2}))

	require.NoError(t, tr.Delete(a))
	got, err := tr.Get(a)
	require.NoError(t, err)
	require.Nil(t, got)

	require.NoError(t, tr.Update(b, nil))
	require.Equal(t, empty, tr.Hash())
}

func TestTrieSnapshotRestore(t *testing.T) {
	tr, err := NewTrie(storage.NewMemDB(), nil)
	require.NoError(t, err)

	key := crypto.Keccak256([]byte("balance"))
	require.NoError(t, tr.Update(key, []byte{10}))
	before := tr.Hash()

	snap := tr.Snapshot()
	require.NoError(t, tr.Update(key, []byte{99}))
	require.NotEqual(t, before, tr.Hash())

	tr.Restore(snap)
	require.Equal(t, before, tr.Hash())
	got, err := tr.Get(key)
	require.NoError(t, err)
	require.Equal(t, []byte{10}, got)
}

func TestTrieResetDiscardsPending(t *testing.T) {
	tr, err := NewTrie(storage.NewMemDB(), nil)
	require.NoError(t, err)

	key := crypto.Keccak256([]byte("k"))
	require.NoError(t, tr.Update(key, []byte("v1")))
	root, err := tr.Commit(common.Hash{}, 1)
	require.NoError(t, err)

	require.NoError(t, tr.Update(key, []byte("v2")))
	require.NoError(t, tr.Reset(root))
	got, err := tr.Get(key)
	require.NoError(t, err)
	require.Equal(t, []byte("v1"), got)
	require.Equal(t, root, tr.Root())
}
