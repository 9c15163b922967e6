package raffle

import (
	"sync"

	"github.com/ceyhunalp/raffle_code/entropy"
	"github.com/ceyhunalp/raffle_code/registry"
	"github.com/ceyhunalp/raffle_code/utils"
	"go.dedis.ch/cothority/v3"
	"go.dedis.ch/cothority/v3/byzcoin"
	"go.dedis.ch/cothority/v3/skipchain"
	"go.dedis.ch/kyber/v3/sign/schnorr"
	"go.dedis.ch/kyber/v3/util/encoding"
	"go.dedis.ch/onet/v3"
	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/onet/v3/network"
	"go.dedis.ch/protobuf"
	"golang.org/x/xerrors"
)

var ServiceName = "RaffleService"
var raffleID onet.ServiceID
var storageKey = []byte("storage")
var registryBucket = []byte("raffleRegistry")

func init() {
	var err error
	raffleID, err = onet.RegisterNewService(ServiceName, newService)
	log.ErrFatal(err)
	network.RegisterMessages(&storage{})
}

type storage struct {
	Genesis skipchain.SkipBlockID
	sync.Mutex
}

// Service exposes the raffle unit's ledger entry points. The host ledger
// serializes all calls against the unit state, which here is a single
// mutex around the handler bodies.
type Service struct {
	*onet.ServiceProcessor
	scService *skipchain.Service

	mu        sync.Mutex
	storage   *storage
	engine    *Engine
	ledger    Ledger
	custodian Custodian
}

// accountRegistrar is implemented by ledgers that need the mapping from
// an identity to its coin account before they can move funds to it.
type accountRegistrar interface {
	RegisterAccount(identity string, account []byte)
}

// InitUnit creates the unit chain and the empty registry. It fails if the
// unit state already exists.
func (s *Service) InitUnit(req *InitUnitRequest) (*InitUnitReply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.storage.Genesis != nil {
		return nil, xerrors.New("unit is already initialized")
	}
	genesisReply, err := utils.CreateGenesisBlock(s.scService, req.Cfg.ScCfg, req.Cfg.Roster)
	if err != nil {
		return nil, xerrors.Errorf("couldn't create genesis block: %v", err)
	}
	s.storage.Genesis = genesisReply.Latest.Hash
	if err := s.save(); err != nil {
		return nil, err
	}
	if s.ledger == nil {
		ledger := NewChainLedger(s.scService, s.storage.Genesis)
		if req.ByzID != nil {
			ledger.ConfigureCoins(byzcoin.NewClient(req.ByzID, *req.Cfg.Roster),
				byzcoin.NewInstanceID(req.Escrow), req.Signer)
		}
		s.ledger = ledger
	}
	if s.custodian == nil {
		if req.Custodian != nil {
			s.custodian = NewCustodianClient(req.CustodianService, req.Custodian)
		} else {
			s.custodian = logCustodian{}
		}
	}
	if err := s.buildEngine(); err != nil {
		return nil, err
	}
	return &InitUnitReply{Genesis: genesisReply.Latest.Hash}, nil
}

// NotifyDeposit is the custodian's notification that a prize asset was
// deposited into the unit's custody. The reply tells the custodian
// whether to keep the asset in escrow or return it to the depositor.
func (s *Service) NotifyDeposit(req *NotifyDepositRequest) (*NotifyDepositReply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine == nil {
		return nil, xerrors.New("unit is not initialized")
	}
	if ar, ok := s.ledger.(accountRegistrar); ok && req.CreatorAccount != nil {
		ar.RegisterAccount(req.PrevOwner, req.CreatorAccount)
	}
	id, returnAsset, err := s.engine.OpenRaffle(req.Custodian, req.Depositor,
		req.PrevOwner, req.AssetID, req.Msg)
	if err != nil {
		return nil, err
	}
	reply := &NotifyDepositReply{ReturnAsset: returnAsset}
	if !returnAsset {
		reply.RaffleID = id
		s.storeEvent(&RaffleEvent{Type: "opened", ID: id})
	}
	return reply, nil
}

// Join buys one ticket. The ticket's schnorr signature authenticates the
// caller; the payment amount is the attached deposit in minor units.
func (s *Service) Join(req *JoinRequest) (*JoinReply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine == nil {
		return nil, xerrors.New("unit is not initialized")
	}
	caller, err := verifyTicket(&req.Ticket)
	if err != nil {
		return nil, err
	}
	if ar, ok := s.ledger.(accountRegistrar); ok && req.Account != nil {
		ar.RegisterAccount(caller, req.Account)
	}
	raf, err := s.engine.Join(req.RaffleID, caller, req.Payment)
	if err != nil {
		return nil, err
	}
	if raf.Status == registry.Closed {
		s.storeEvent(&RaffleEvent{Type: "closed", ID: req.RaffleID, Winner: raf.Winner})
	}
	return &JoinReply{}, nil
}

func (s *Service) ListOpen(req *ListOpenRequest) (*ListOpenReply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine == nil {
		return nil, xerrors.New("unit is not initialized")
	}
	raffles, err := s.engine.ListOpen()
	if err != nil {
		return nil, err
	}
	return &ListOpenReply{Raffles: raffles}, nil
}

func (s *Service) GetRaffle(req *GetRaffleRequest) (*GetRaffleReply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine == nil {
		return nil, xerrors.New("unit is not initialized")
	}
	raf, err := s.engine.GetRaffle(req.ID)
	if err != nil {
		return nil, err
	}
	return &GetRaffleReply{Raffle: raf}, nil
}

func verifyTicket(t *Ticket) (string, error) {
	hash, err := utils.HashPoint(t.Key)
	if err != nil {
		return "", xerrors.Errorf("couldn't hash ticket key: %v", err)
	}
	if err := schnorr.Verify(cothority.Suite, t.Key, hash, t.Sig); err != nil {
		return "", xerrors.Errorf("couldn't verify ticket signature: %v", err)
	}
	return encoding.PointToStringHex(cothority.Suite, t.Key)
}

func (s *Service) buildEngine() error {
	db, bucket := s.GetAdditionalBucket(registryBucket)
	store, err := registry.NewBoltStore(db, bucket)
	if err != nil {
		return xerrors.Errorf("couldn't open registry store: %v", err)
	}
	provider := &chainProvider{sc: s.scService, genesis: s.storage.Genesis}
	s.engine = NewEngine(store, entropy.NewService(provider), s.ledger, s.custodian)
	return nil
}

// storeEvent appends a raffle event block to the unit chain. Event
// delivery is advisory: a failure only leaves a log line.
func (s *Service) storeEvent(ev *RaffleEvent) {
	buf, err := protobuf.Encode(ev)
	if err != nil {
		log.Errorf("couldn't encode %s event for raffle %d: %v", ev.Type, ev.ID, err)
		return
	}
	if err := utils.StoreBlock(s.scService, s.storage.Genesis, buf); err != nil {
		log.Errorf("couldn't store %s event for raffle %d: %v", ev.Type, ev.ID, err)
	}
}

func (s *Service) save() error {
	s.storage.Lock()
	defer s.storage.Unlock()
	err := s.Save(storageKey, s.storage)
	if err != nil {
		log.Errorf("Could not save data: %v", err)
		return err
	}
	return nil
}

func (s *Service) tryLoad() error {
	s.storage = &storage{}
	msg, err := s.Load(storageKey)
	if err != nil {
		log.Errorf("Load storage failed: %v", err)
		return err
	}
	if msg == nil {
		return nil
	}
	var ok bool
	s.storage, ok = msg.(*storage)
	if !ok {
		return xerrors.New("store of wrong type")
	}
	return nil
}

func newService(c *onet.Context) (onet.Service, error) {
	s := &Service{
		ServiceProcessor: onet.NewServiceProcessor(c),
		scService:        c.Service(skipchain.ServiceName).(*skipchain.Service),
	}
	err := s.RegisterHandlers(s.InitUnit, s.NotifyDeposit, s.Join, s.ListOpen,
		s.GetRaffle)
	if err != nil {
		return nil, xerrors.New("couldn't register handlers")
	}
	if err := s.tryLoad(); err != nil {
		return nil, err
	}
	if s.storage.Genesis != nil {
		// TODO: persist the coin-ledger and custodian configuration so a
		// restarted node does not come back in delegated mode.
		if s.ledger == nil {
			s.ledger = NewChainLedger(s.scService, s.storage.Genesis)
		}
		if s.custodian == nil {
			s.custodian = logCustodian{}
		}
		if err := s.buildEngine(); err != nil {
			return nil, err
		}
	}
	return s, nil
}
