package raffle

import (
	"github.com/ceyhunalp/raffle_code/registry"
	"github.com/ceyhunalp/raffle_code/sys"
	"go.dedis.ch/cothority/v3/darc"
	"go.dedis.ch/cothority/v3/skipchain"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/onet/v3/network"
)

func init() {
	network.RegisterMessages(&InitUnitRequest{}, &InitUnitReply{},
		&NotifyDepositRequest{}, &NotifyDepositReply{}, &JoinRequest{},
		&JoinReply{}, &ListOpenRequest{}, &ListOpenReply{},
		&GetRaffleRequest{}, &GetRaffleReply{}, &RaffleEvent{},
		&AssetTransferRequest{}, &AssetTransferReply{})
}

type InitUnitRequest struct {
	Cfg *sys.UnitConfig
	// Coin ledger used to settle refunds and payouts. When ByzID is empty
	// the unit runs in delegated mode and only records fund transfers.
	ByzID  skipchain.SkipBlockID
	Escrow []byte
	Signer darc.Signer
	// Endpoint of the asset custodian, used for prize release. When nil,
	// scheduled transfers are only logged.
	Custodian        *network.ServerIdentity
	CustodianService string
}

type InitUnitReply struct {
	Genesis []byte
}

type NotifyDepositRequest struct {
	// Custodian is the identity of the notifying custodian service,
	// Depositor the account that deposited the asset there. PrevOwner
	// becomes the raffle creator.
	Custodian string
	Depositor string
	PrevOwner string
	AssetID   string
	// Msg carries the raffle terms as "<capacity>,<price>".
	Msg string
	// CreatorAccount is the coin account that receives the proceeds.
	CreatorAccount []byte
}

type NotifyDepositReply struct {
	// ReturnAsset instructs the custodian to return the asset to the
	// depositor instead of keeping it in escrow.
	ReturnAsset bool
	RaffleID    uint64
}

// Ticket authenticates a participant: a public key and a schnorr
// signature over its hash.
type Ticket struct {
	Key kyber.Point
	Sig []byte
}

type JoinRequest struct {
	RaffleID uint64
	Ticket   Ticket
	// Payment is the attached amount in minor units.
	Payment uint64
	// Account is the coin account used for a refund of an overpayment.
	Account []byte
}

type JoinReply struct{}

type ListOpenRequest struct{}

type ListOpenReply struct {
	Raffles []registry.OpenRaffle
}

type GetRaffleRequest struct {
	ID uint64
}

type GetRaffleReply struct {
	Raffle *registry.Raffle
}

// RaffleEvent is appended to the unit chain when a raffle opens or
// closes.
type RaffleEvent struct {
	Type   string
	ID     uint64
	Winner string
}

// AssetTransferRequest instructs the custodian to move an escrowed asset
// to its recipient.
type AssetTransferRequest struct {
	Recipient string
	AssetID   string
	Memo      string
}

type AssetTransferReply struct{}
