package registry

import (
	"go.dedis.ch/protobuf"
	"golang.org/x/xerrors"
)

var ErrNotFound = xerrors.New("no raffle with such id")

// Registry owns all raffle records. Records are created by the intake
// handshake, mutated by the entry and settlement steps, and never deleted:
// closed raffles stay queryable as an audit trail.
type Registry struct {
	store Store
}

func NewRegistry(store Store) *Registry {
	return &Registry{store: store}
}

func (r *Registry) Create(raf *Raffle) (uint64, error) {
	var id uint64
	err := r.store.Update(func(st StoreTxn) error {
		var err error
		id, err = CreateTxn(st, raf)
		return err
	})
	return id, err
}

func (r *Registry) Get(id uint64) (*Raffle, error) {
	var raf *Raffle
	err := r.store.View(func(st StoreTxn) error {
		var err error
		raf, err = GetTxn(st, id)
		return err
	})
	return raf, err
}

// Update overwrites the stored record. The caller is responsible for
// preserving the record invariants (status monotonicity, single winner).
func (r *Registry) Update(id uint64, raf *Raffle) error {
	return r.store.Update(func(st StoreTxn) error {
		if _, err := GetTxn(st, id); err != nil {
			return err
		}
		return PutTxn(st, id, raf)
	})
}

// ListOpen returns the currently open raffles in creation order. The list
// is recomputed on every call.
func (r *Registry) ListOpen() ([]OpenRaffle, error) {
	var open []OpenRaffle
	err := r.store.View(func(st StoreTxn) error {
		return st.ForEach(func(id uint64, buf []byte) error {
			raf := &Raffle{}
			if err := protobuf.Decode(buf, raf); err != nil {
				return xerrors.Errorf("couldn't decode raffle %d: %v", id, err)
			}
			if raf.Status == Opened {
				open = append(open, OpenRaffle{ID: id, Raffle: raf})
			}
			return nil
		})
	})
	return open, err
}

// CreateTxn, GetTxn and PutTxn are the transaction-scoped counterparts of
// the Registry operations. The settlement engine uses them to run an entry
// and its triggered draw inside a single store transaction.

func CreateTxn(st StoreTxn, raf *Raffle) (uint64, error) {
	id, err := st.NextID()
	if err != nil {
		return 0, xerrors.Errorf("couldn't allocate id: %v", err)
	}
	if err := PutTxn(st, id, raf); err != nil {
		return 0, err
	}
	return id, nil
}

func GetTxn(st StoreTxn, id uint64) (*Raffle, error) {
	buf, err := st.Get(id)
	if err != nil {
		return nil, xerrors.Errorf("couldn't read raffle %d: %v", id, err)
	}
	if buf == nil {
		return nil, ErrNotFound
	}
	raf := &Raffle{}
	if err := protobuf.Decode(buf, raf); err != nil {
		return nil, xerrors.Errorf("couldn't decode raffle %d: %v", id, err)
	}
	return raf, nil
}

func PutTxn(st StoreTxn, id uint64, raf *Raffle) error {
	buf, err := protobuf.Encode(raf)
	if err != nil {
		return xerrors.Errorf("couldn't encode raffle %d: %v", id, err)
	}
	return st.Put(id, buf)
}
