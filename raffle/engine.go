package raffle

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ceyhunalp/raffle_code/entropy"
	"github.com/ceyhunalp/raffle_code/registry"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

// PriceUnit is the number of minor units in one whole base unit. Ticket
// prices arrive from the custodian in whole units and are stored in minor
// units.
const PriceUnit uint64 = 1000000

var (
	ErrRaffleClosed        = xerrors.New("raffle is not active anymore")
	ErrSelfEntry           = xerrors.New("raffle creator cannot buy a ticket")
	ErrInsufficientPayment = xerrors.New("payment is smaller than the ticket price")
)

// Ledger is the host-ledger collaborator: it reports the chain height and
// executes fungible transfers out of the unit's escrow account. A transfer
// failure inside a draw aborts the enclosing store transaction.
type Ledger interface {
	Height() (uint64, error)
	Transfer(to string, amount uint64) error
}

// AssetTransfer is the scheduled prize-release effect produced by the
// settlement step. It is dispatched only after the transaction that closed
// the raffle has committed, and its outcome is not observed.
type AssetTransfer struct {
	Recipient string
	Prize     registry.Prize
	Memo      string
}

// Custodian releases escrowed assets on behalf of the engine.
type Custodian interface {
	TransferAsset(tr AssetTransfer) error
}

// Engine runs the raffle state machine: intake, ticket entries, the draw
// and the settlement sequence. All collaborators are injected so tests run
// against an in-memory store and deterministic entropy.
type Engine struct {
	store     registry.Store
	reg       *registry.Registry
	ent       *entropy.Service
	ledger    Ledger
	custodian Custodian
}

func NewEngine(store registry.Store, ent *entropy.Service, ledger Ledger, custodian Custodian) *Engine {
	return &Engine{
		store:     store,
		reg:       registry.NewRegistry(store),
		ent:       ent,
		ledger:    ledger,
		custodian: custodian,
	}
}

// OpenRaffle handles the custodian's notification of a deposited asset. A
// validation failure is soft: the asset already moved at the custodian and
// cannot be rolled back from here, so the first return value instructs the
// custodian to send it back to the depositor.
func (e *Engine) OpenRaffle(custodian, depositor, prevOwner, assetID, msg string) (uint64, bool, error) {
	if custodian == depositor {
		log.Lvlf2("rejecting deposit of %s: custodian %s notified about its own deposit",
			assetID, custodian)
		return 0, true, nil
	}
	capacity, price, err := parseTerms(msg)
	if err != nil {
		log.Lvlf2("rejecting deposit of %s: %v", assetID, err)
		return 0, true, nil
	}
	raf := &registry.Raffle{
		Creator:     prevOwner,
		Prize:       registry.Prize{Custodian: custodian, AssetID: assetID},
		Capacity:    capacity,
		TicketPrice: price,
		Status:      registry.Opened,
	}
	id, err := e.reg.Create(raf)
	if err != nil {
		return 0, false, xerrors.Errorf("couldn't store raffle: %v", err)
	}
	log.Lvlf2("opened raffle %d for asset %s: %d tickets at %d", id, assetID,
		capacity, price)
	return id, false, nil
}

// parseTerms decodes the custodian's free-form message into the raffle
// terms: "<capacity>,<price>" with the price in whole base units.
func parseTerms(msg string) (uint32, uint64, error) {
	fields := strings.Split(msg, ",")
	if len(fields) != 2 {
		return 0, 0, xerrors.New("terms must be <capacity>,<price>")
	}
	capacity, err := strconv.ParseUint(fields[0], 10, 32)
	if err != nil {
		return 0, 0, xerrors.Errorf("invalid capacity: %v", err)
	}
	if capacity < 2 {
		return 0, 0, xerrors.New("capacity must be at least 2")
	}
	price, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return 0, 0, xerrors.Errorf("invalid ticket price: %v", err)
	}
	if price == 0 {
		return 0, 0, xerrors.New("ticket price must be positive")
	}
	if price > math.MaxUint64/PriceUnit {
		return 0, 0, xerrors.New("ticket price overflows the minor unit")
	}
	return uint32(capacity), price * PriceUnit, nil
}

// Join records a ticket purchase and triggers the draw when the entry
// fills the quota. The entry is persisted before the quota check, and the
// draw runs inside the same store transaction: a hard failure anywhere
// discards the entry together with every other write of the call, which
// is the host ledger's all-or-nothing commit.
func (e *Engine) Join(id uint64, caller string, payment uint64) (*registry.Raffle, error) {
	var raf *registry.Raffle
	var effect *AssetTransfer
	err := e.store.Update(func(st registry.StoreTxn) error {
		var err error
		raf, err = registry.GetTxn(st, id)
		if err != nil {
			return err
		}
		if raf.Status != registry.Opened {
			return ErrRaffleClosed
		}
		if caller == raf.Creator {
			return ErrSelfEntry
		}
		if payment < raf.TicketPrice {
			return ErrInsufficientPayment
		}
		if refund := payment - raf.TicketPrice; refund != 0 {
			// Best effort: the entry stands even if the refund fails.
			if err := e.ledger.Transfer(caller, refund); err != nil {
				log.Errorf("couldn't refund %d to %s: %v", refund, caller, err)
			}
		}
		raf.Participants = append(raf.Participants, caller)
		if err := registry.PutTxn(st, id, raf); err != nil {
			return err
		}
		log.Lvlf2("participant %s joined raffle %d (%d/%d)", caller, id,
			len(raf.Participants), raf.Capacity)
		if raf.Full() {
			effect, err = e.draw(st, id, raf)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if effect != nil {
		e.release(*effect)
	}
	return raf, nil
}

// draw selects the winner and settles the raffle. It is only reachable
// from Join, in the same transaction as the quota-filling entry.
func (e *Engine) draw(st registry.StoreTxn, id uint64, raf *registry.Raffle) (*AssetTransfer, error) {
	height, err := e.ledger.Height()
	if err != nil {
		return nil, xerrors.Errorf("couldn't read ledger height: %v", err)
	}
	index, err := e.ent.Draw(height, raf.Capacity)
	if err != nil {
		return nil, xerrors.Errorf("couldn't draw winner: %v", err)
	}
	winner := raf.Participants[index]
	payout := uint64(raf.Capacity) * raf.TicketPrice
	if raf.TicketPrice != 0 && payout/raf.TicketPrice != uint64(raf.Capacity) {
		return nil, xerrors.Errorf("payout of raffle %d overflows", id)
	}
	if err := e.ledger.Transfer(raf.Creator, payout); err != nil {
		return nil, xerrors.Errorf("couldn't pay proceeds to creator: %v", err)
	}
	raf.Winner = winner
	raf.Status = registry.Closed
	if err := registry.PutTxn(st, id, raf); err != nil {
		return nil, err
	}
	log.Lvlf2("raffle %d closed: index %d (%s) wins, %d paid to %s", id,
		index, winner, payout, raf.Creator)
	return &AssetTransfer{
		Recipient: winner,
		Prize:     raf.Prize,
		Memo:      fmt.Sprintf("raffle %d prize", id),
	}, nil
}

// release fires the prize transfer at the custodian. The raffle is
// already closed and the funds have moved: if this call fails there is no
// compensating transaction, only a log line for external reconciliation.
func (e *Engine) release(tr AssetTransfer) {
	if err := e.custodian.TransferAsset(tr); err != nil {
		log.Errorf("prize transfer of %s to %s failed: %v", tr.Prize.AssetID,
			tr.Recipient, err)
	}
}

func (e *Engine) ListOpen() ([]registry.OpenRaffle, error) {
	return e.reg.ListOpen()
}

func (e *Engine) GetRaffle(id uint64) (*registry.Raffle, error) {
	return e.reg.Get(id)
}
