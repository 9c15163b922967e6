package registry

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	bbolt "go.etcd.io/bbolt"
	"golang.org/x/xerrors"
)

func testRaffle(creator string) *Raffle {
	return &Raffle{
		Creator:     creator,
		Prize:       Prize{Custodian: "escrow", AssetID: "nft-" + creator},
		Capacity:    2,
		TicketPrice: 100,
		Status:      Opened,
	}
}

func openBoltStore(t *testing.T) *BoltStore {
	dir, err := ioutil.TempDir("", "registry-test")
	require.NoError(t, err)
	db, err := bbolt.Open(filepath.Join(dir, "registry.db"), 0600, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, db.Close())
		require.NoError(t, os.RemoveAll(dir))
	})
	store, err := NewBoltStore(db, []byte("raffles"))
	require.NoError(t, err)
	return store
}

func testStores(t *testing.T) map[string]Store {
	return map[string]Store{
		"bolt": openBoltStore(t),
		"mem":  NewMemStore(),
	}
}

func TestRegistry_CreateGet(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			reg := NewRegistry(store)
			first, err := reg.Create(testRaffle("alice"))
			require.NoError(t, err)
			second, err := reg.Create(testRaffle("bob"))
			require.NoError(t, err)
			require.NotEqual(t, first, second)

			raf, err := reg.Get(first)
			require.NoError(t, err)
			require.Equal(t, "alice", raf.Creator)
			raf, err = reg.Get(second)
			require.NoError(t, err)
			require.Equal(t, "bob", raf.Creator)

			_, err = reg.Get(second + 1)
			require.Equal(t, ErrNotFound, err)
		})
	}
}

func TestRegistry_Update(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			reg := NewRegistry(store)
			id, err := reg.Create(testRaffle("alice"))
			require.NoError(t, err)

			raf, err := reg.Get(id)
			require.NoError(t, err)
			raf.Participants = append(raf.Participants, "bob")
			require.NoError(t, reg.Update(id, raf))

			raf, err = reg.Get(id)
			require.NoError(t, err)
			require.Equal(t, []string{"bob"}, raf.Participants)

			require.Equal(t, ErrNotFound, reg.Update(id+1, raf))
		})
	}
}

func TestRegistry_ListOpen(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			reg := NewRegistry(store)
			first, err := reg.Create(testRaffle("alice"))
			require.NoError(t, err)
			second, err := reg.Create(testRaffle("bob"))
			require.NoError(t, err)

			open, err := reg.ListOpen()
			require.NoError(t, err)
			require.Len(t, open, 2)
			require.Equal(t, first, open[0].ID)
			require.Equal(t, second, open[1].ID)

			raf, err := reg.Get(first)
			require.NoError(t, err)
			raf.Status = Closed
			raf.Winner = "carol"
			require.NoError(t, reg.Update(first, raf))

			// Closing removes a raffle from the listing but not from the
			// registry.
			open, err = reg.ListOpen()
			require.NoError(t, err)
			require.Len(t, open, 1)
			require.Equal(t, second, open[0].ID)
			raf, err = reg.Get(first)
			require.NoError(t, err)
			require.Equal(t, Closed, raf.Status)
			require.Equal(t, "carol", raf.Winner)
		})
	}
}

func TestStore_UpdateRollback(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			reg := NewRegistry(store)
			id, err := reg.Create(testRaffle("alice"))
			require.NoError(t, err)

			boom := xerrors.New("boom")
			err = store.Update(func(st StoreTxn) error {
				raf, err := GetTxn(st, id)
				require.NoError(t, err)
				raf.Participants = append(raf.Participants, "bob")
				require.NoError(t, PutTxn(st, id, raf))
				if _, err := CreateTxn(st, testRaffle("carol")); err != nil {
					return err
				}
				return boom
			})
			require.Equal(t, boom, err)

			// Both writes of the failed transaction are gone.
			raf, err := reg.Get(id)
			require.NoError(t, err)
			require.Empty(t, raf.Participants)
			open, err := reg.ListOpen()
			require.NoError(t, err)
			require.Len(t, open, 1)

			// And the id counter did not advance.
			next, err := reg.Create(testRaffle("dave"))
			require.NoError(t, err)
			require.Equal(t, id+1, next)
		})
	}
}
