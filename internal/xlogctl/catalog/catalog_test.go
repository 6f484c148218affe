package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ankur-anand/xlogview/pkg/xlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const snapshotTOML = `
[[database]]
oid = 5
name = "postgres"

[[database]]
oid = 16401
name = "shop"

[[relation]]
relfilenode = 16384
oid = 16384
name = "accounts"

[[relation]]
relfilenode = 16500
oid = 16390
name = "orders"
`

func writeSnapshot(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.toml")
	require.NoError(t, os.WriteFile(path, []byte(snapshotTOML), 0o644))
	return path
}

func TestLoadSnapshot(t *testing.T) {
	snap, err := LoadSnapshot(writeSnapshot(t))
	require.NoError(t, err)

	require.Len(t, snap.Databases, 2)
	require.Len(t, snap.Relations, 2)
	assert.Equal(t, Database{OID: 16401, Name: "shop"}, snap.Databases[1])
	assert.Equal(t, Relation{RelFileNode: 16500, OID: 16390, Name: "orders"}, snap.Relations[1])

	_, err = LoadSnapshot(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	_, err = ParseSnapshot([]byte("[[database]\n"))
	assert.ErrorContains(t, err, "failed to parse catalog snapshot")
}

func TestNames_Label(t *testing.T) {
	snap, err := ParseSnapshot([]byte(snapshotTOML))
	require.NoError(t, err)
	names := NewNames(snap)

	tests := []struct {
		name string
		node xlog.RelFileNode
		raw  bool
		want string
	}{
		{"simplified", xlog.RelFileNode{SpcNode: 1663, DBNode: 5, RelNode: 16384}, false, "postgres:accounts"},
		{"raw", xlog.RelFileNode{SpcNode: 1663, DBNode: 5, RelNode: 16384}, true, "1663/5(postgres)/16384(accounts)"},
		{"filenode differs from oid", xlog.RelFileNode{SpcNode: 1663, DBNode: 16401, RelNode: 16500}, false, "shop:orders"},
		{"oid match is marked", xlog.RelFileNode{SpcNode: 1663, DBNode: 16401, RelNode: 16390}, false, "shop:orders*"},
		{"raw oid match is marked", xlog.RelFileNode{SpcNode: 1663, DBNode: 16401, RelNode: 16390}, true, "1663/16401(shop)/16390(orders*)"},
		{"unknown parts", xlog.RelFileNode{SpcNode: 1664, DBNode: 1, RelNode: 1259}, false, "1:1259"},
		{"raw unknown parts", xlog.RelFileNode{SpcNode: 1664, DBNode: 1, RelNode: 1259}, true, "1664/1/1259"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, names.Label(tt.node, tt.raw))
		})
	}

	t.Run("nil names render numbers", func(t *testing.T) {
		var empty *Names
		node := xlog.RelFileNode{SpcNode: 1663, DBNode: 5, RelNode: 16384}
		assert.Equal(t, "5:16384", empty.Label(node, false))
		assert.Equal(t, "1663/5/16384", empty.Label(node, true))
	})
}

func TestStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")

	t.Run("read only open of missing store", func(t *testing.T) {
		_, err := OpenStore(path, true)
		assert.ErrorIs(t, err, ErrCatalogNotFound)
	})

	t.Run("import and resolve", func(t *testing.T) {
		snap, err := ParseSnapshot([]byte(snapshotTOML))
		require.NoError(t, err)

		store, err := OpenStore(path, false)
		require.NoError(t, err)
		require.NoError(t, store.Import(snap))
		at, err := store.ImportedAt()
		require.NoError(t, err)
		assert.False(t, at.IsZero())
		require.NoError(t, store.Close())

		store, err = OpenStore(path, true)
		require.NoError(t, err)
		defer store.Close()

		names, err := store.Names()
		require.NoError(t, err)
		dbs, rels := names.Len()
		assert.Equal(t, 2, dbs)
		assert.Equal(t, 2, rels)
		assert.Equal(t, "shop:orders", names.Label(xlog.RelFileNode{DBNode: 16401, RelNode: 16500}, false))
	})

	t.Run("import replaces previous content", func(t *testing.T) {
		store, err := OpenStore(path, false)
		require.NoError(t, err)
		defer store.Close()

		require.NoError(t, store.Import(&Snapshot{
			Databases: []Database{{OID: 7, Name: "other"}},
		}))

		names, err := store.Names()
		require.NoError(t, err)
		dbs, rels := names.Len()
		assert.Equal(t, 1, dbs)
		assert.Equal(t, 0, rels)
		assert.Equal(t, "5:16384", names.Label(xlog.RelFileNode{DBNode: 5, RelNode: 16384}, false))
	})

	t.Run("empty store", func(t *testing.T) {
		store, err := OpenStore(filepath.Join(t.TempDir(), "empty.db"), false)
		require.NoError(t, err)
		defer store.Close()

		names, err := store.Names()
		require.NoError(t, err)
		dbs, _ := names.Len()
		assert.Zero(t, dbs)

		at, err := store.ImportedAt()
		require.NoError(t, err)
		assert.True(t, at.IsZero())
	})
}
