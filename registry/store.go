package registry

import (
	"encoding/binary"
	"sort"
	"sync"

	bbolt "go.etcd.io/bbolt"
	"golang.org/x/xerrors"
)

// StoreTxn is the view of the store inside one transaction. Every engine
// call runs against exactly one StoreTxn, so an error from the enclosing
// closure discards all of the call's writes at once.
type StoreTxn interface {
	// NextID allocates the next raffle identifier.
	NextID() (uint64, error)
	// Get returns the stored record, or nil if the id is not known.
	Get(id uint64) ([]byte, error)
	Put(id uint64, buf []byte) error
	// ForEach visits all records in ascending id order.
	ForEach(fn func(id uint64, buf []byte) error) error
}

type Store interface {
	Update(fn func(StoreTxn) error) error
	View(fn func(StoreTxn) error) error
}

var nextIDKey = []byte("nextid")

// BoltStore is the durable store, one bucket inside a bbolt database.
// Raffle records are keyed by their big-endian identifier; the id counter
// lives under a separate reserved key.
type BoltStore struct {
	db     *bbolt.DB
	bucket []byte
}

func NewBoltStore(db *bbolt.DB, bucket []byte) (*BoltStore, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	})
	if err != nil {
		return nil, xerrors.Errorf("couldn't create bucket: %v", err)
	}
	return &BoltStore{db: db, bucket: bucket}, nil
}

func (s *BoltStore) Update(fn func(StoreTxn) error) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return fn(&boltTxn{b: tx.Bucket(s.bucket)})
	})
}

func (s *BoltStore) View(fn func(StoreTxn) error) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		return fn(&boltTxn{b: tx.Bucket(s.bucket)})
	})
}

type boltTxn struct {
	b *bbolt.Bucket
}

func (t *boltTxn) NextID() (uint64, error) {
	var id uint64
	if buf := t.b.Get(nextIDKey); buf != nil {
		id = binary.BigEndian.Uint64(buf)
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, id+1)
	if err := t.b.Put(nextIDKey, buf); err != nil {
		return 0, xerrors.Errorf("couldn't store id counter: %v", err)
	}
	return id, nil
}

func (t *boltTxn) Get(id uint64) ([]byte, error) {
	return t.b.Get(idKey(id)), nil
}

func (t *boltTxn) Put(id uint64, buf []byte) error {
	return t.b.Put(idKey(id), buf)
}

func (t *boltTxn) ForEach(fn func(id uint64, buf []byte) error) error {
	return t.b.ForEach(func(k, v []byte) error {
		if len(k) != 8 {
			// id counter
			return nil
		}
		return fn(binary.BigEndian.Uint64(k), v)
	})
}

func idKey(id uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, id)
	return buf
}

// MemStore keeps everything in memory. It is used by tests that need a
// deterministic store without a database file. Update stages its writes on
// a copy and commits only when the closure returns nil, mirroring the
// rollback behavior of BoltStore.
type MemStore struct {
	sync.Mutex
	nextID uint64
	data   map[uint64][]byte
}

func NewMemStore() *MemStore {
	return &MemStore{data: make(map[uint64][]byte)}
}

func (s *MemStore) Update(fn func(StoreTxn) error) error {
	s.Lock()
	defer s.Unlock()
	stage := &memTxn{nextID: s.nextID, data: s.clone()}
	if err := fn(stage); err != nil {
		return err
	}
	s.nextID = stage.nextID
	s.data = stage.data
	return nil
}

func (s *MemStore) View(fn func(StoreTxn) error) error {
	s.Lock()
	defer s.Unlock()
	return fn(&memTxn{nextID: s.nextID, data: s.clone()})
}

func (s *MemStore) clone() map[uint64][]byte {
	data := make(map[uint64][]byte, len(s.data))
	for id, buf := range s.data {
		cp := make([]byte, len(buf))
		copy(cp, buf)
		data[id] = cp
	}
	return data
}

type memTxn struct {
	nextID uint64
	data   map[uint64][]byte
}

func (t *memTxn) NextID() (uint64, error) {
	id := t.nextID
	t.nextID++
	return id, nil
}

func (t *memTxn) Get(id uint64) ([]byte, error) {
	return t.data[id], nil
}

func (t *memTxn) Put(id uint64, buf []byte) error {
	t.data[id] = buf
	return nil
}

func (t *memTxn) ForEach(fn func(id uint64, buf []byte) error) error {
	ids := make([]uint64, 0, len(t.data))
	for id := range t.data {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if err := fn(id, t.data[id]); err != nil {
			return err
		}
	}
	return nil
}
