package raffle

import (
	"github.com/ceyhunalp/raffle_code/registry"
	"github.com/ceyhunalp/raffle_code/sys"
	"github.com/ceyhunalp/raffle_code/utils"
	"go.dedis.ch/cothority/v3"
	"go.dedis.ch/cothority/v3/darc"
	"go.dedis.ch/cothority/v3/skipchain"
	"go.dedis.ch/kyber/v3/sign/schnorr"
	"go.dedis.ch/kyber/v3/util/encoding"
	"go.dedis.ch/onet/v3"
	"go.dedis.ch/onet/v3/network"
	"golang.org/x/xerrors"
)

// Client is a structure to communicate with the raffle service.
type Client struct {
	*onet.Client
	roster *onet.Roster
}

func NewClient(roster *onet.Roster) *Client {
	return &Client{
		Client: onet.NewClient(cothority.Suite, ServiceName),
		roster: roster,
	}
}

func (c *Client) InitUnit(cfg *sys.UnitConfig, byzID skipchain.SkipBlockID, escrow []byte, signer darc.Signer, custodian *network.ServerIdentity, custodianService string) (*InitUnitReply, error) {
	req := &InitUnitRequest{
		Cfg:              cfg,
		ByzID:            byzID,
		Escrow:           escrow,
		Signer:           signer,
		Custodian:        custodian,
		CustodianService: custodianService,
	}
	reply := &InitUnitReply{}
	err := c.SendProtobuf(c.roster.List[0], req, reply)
	return reply, err
}

// NotifyDeposit reports an asset deposit to the raffle unit. This is the
// custodian-facing call; depositors go through the custodian, not through
// this client.
func (c *Client) NotifyDeposit(custodian, depositor, prevOwner, assetID, msg string, creatorAccount []byte) (*NotifyDepositReply, error) {
	req := &NotifyDepositRequest{
		Custodian:      custodian,
		Depositor:      depositor,
		PrevOwner:      prevOwner,
		AssetID:        assetID,
		Msg:            msg,
		CreatorAccount: creatorAccount,
	}
	reply := &NotifyDepositReply{}
	err := c.SendProtobuf(c.roster.List[0], req, reply)
	return reply, err
}

// Join buys one ticket in the given raffle. The signer authenticates the
// participant and its public key becomes the stored identity.
func (c *Client) Join(id uint64, signer darc.Signer, payment uint64, account []byte) (*JoinReply, error) {
	ticket, err := makeTicket(signer)
	if err != nil {
		return nil, err
	}
	req := &JoinRequest{
		RaffleID: id,
		Ticket:   *ticket,
		Payment:  payment,
		Account:  account,
	}
	reply := &JoinReply{}
	err = c.SendProtobuf(c.roster.List[0], req, reply)
	return reply, err
}

func (c *Client) ListOpen() ([]registry.OpenRaffle, error) {
	reply := &ListOpenReply{}
	err := c.SendProtobuf(c.roster.List[0], &ListOpenRequest{}, reply)
	if err != nil {
		return nil, err
	}
	return reply.Raffles, nil
}

func (c *Client) GetRaffle(id uint64) (*registry.Raffle, error) {
	reply := &GetRaffleReply{}
	err := c.SendProtobuf(c.roster.List[0], &GetRaffleRequest{ID: id}, reply)
	if err != nil {
		return nil, err
	}
	return reply.Raffle, nil
}

func makeTicket(signer darc.Signer) (*Ticket, error) {
	if signer.Ed25519 == nil {
		return nil, xerrors.New("signer does not carry an Ed25519 key")
	}
	hash, err := utils.HashPoint(signer.Ed25519.Point)
	if err != nil {
		return nil, xerrors.Errorf("couldn't hash public key: %v", err)
	}
	sig, err := schnorr.Sign(cothority.Suite, signer.Ed25519.Secret, hash)
	if err != nil {
		return nil, xerrors.Errorf("couldn't sign ticket: %v", err)
	}
	return &Ticket{Key: signer.Ed25519.Point, Sig: sig}, nil
}

// Identity returns the participant identity string a signer's tickets
// resolve to.
func Identity(signer darc.Signer) (string, error) {
	if signer.Ed25519 == nil {
		return "", xerrors.New("signer does not carry an Ed25519 key")
	}
	return encoding.PointToStringHex(cothority.Suite, signer.Ed25519.Point)
}
