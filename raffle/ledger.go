package raffle

import (
	"encoding/binary"

	"github.com/ceyhunalp/raffle_code/utils"
	"go.dedis.ch/cothority/v3/byzcoin"
	"go.dedis.ch/cothority/v3/byzcoin/contracts"
	"go.dedis.ch/cothority/v3/darc"
	"go.dedis.ch/cothority/v3/skipchain"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

// ChainLedger adapts the unit chain and the coin ledger into the Ledger
// interface. Heights come from the unit's skipchain; fungible transfers
// are coin-contract invokes that move funds out of the escrow account.
// Without a configured coin ledger the unit runs in delegated mode: the
// host executes the transfers and the ledger only records them.
type ChainLedger struct {
	sc      *skipchain.Service
	genesis skipchain.SkipBlockID

	bc        *byzcoin.Client
	escrow    byzcoin.InstanceID
	signer    darc.Signer
	signerCtr uint64
	accounts  map[string]byzcoin.InstanceID
}

func NewChainLedger(sc *skipchain.Service, genesis skipchain.SkipBlockID) *ChainLedger {
	return &ChainLedger{
		sc:       sc,
		genesis:  genesis,
		accounts: make(map[string]byzcoin.InstanceID),
	}
}

// ConfigureCoins attaches the coin ledger that executes fund transfers
// from the escrow account.
func (l *ChainLedger) ConfigureCoins(bc *byzcoin.Client, escrow byzcoin.InstanceID, signer darc.Signer) {
	l.bc = bc
	l.escrow = escrow
	l.signer = signer
	l.signerCtr = 1
}

// RegisterAccount binds an identity to its coin instance so refunds and
// payouts know their destination.
func (l *ChainLedger) RegisterAccount(identity string, account []byte) {
	l.accounts[identity] = byzcoin.NewInstanceID(account)
}

func (l *ChainLedger) Height() (uint64, error) {
	latest, err := utils.GetLatestBlock(l.sc, l.genesis)
	if err != nil {
		return 0, err
	}
	return uint64(latest.Index), nil
}

func (l *ChainLedger) Transfer(to string, amount uint64) error {
	if l.bc == nil {
		log.Lvlf2("delegated mode: transfer of %d to %s left to the host", amount, to)
		return nil
	}
	dst, ok := l.accounts[to]
	if !ok {
		return xerrors.Errorf("no coin account registered for %s", to)
	}
	amountBuf := make([]byte, 8)
	binary.LittleEndian.PutUint64(amountBuf, amount)
	ctx, err := l.bc.CreateTransaction(byzcoin.Instruction{
		InstanceID: l.escrow,
		Invoke: &byzcoin.Invoke{
			ContractID: contracts.ContractCoinID,
			Command:    "transfer",
			Args: byzcoin.Arguments{
				{Name: "coins", Value: amountBuf},
				{Name: "destination", Value: dst.Slice()},
			},
		},
		SignerCounter: []uint64{l.signerCtr},
	})
	if err != nil {
		return xerrors.Errorf("couldn't create coin transaction: %v", err)
	}
	if err := ctx.FillSignersAndSignWith(l.signer); err != nil {
		return xerrors.Errorf("couldn't sign coin transaction: %v", err)
	}
	if _, err := l.bc.AddTransactionAndWait(ctx, 5); err != nil {
		return xerrors.Errorf("coin transfer failed: %v", err)
	}
	l.signerCtr++
	return nil
}

// chainProvider feeds the entropy service with the hash of the unit
// chain's block at the requested height.
type chainProvider struct {
	sc      *skipchain.Service
	genesis skipchain.SkipBlockID
}

func (p *chainProvider) Seed(height uint64) ([]byte, error) {
	reply, err := p.sc.GetSingleBlockByIndex(&skipchain.GetSingleBlockByIndex{
		Genesis: p.genesis,
		Index:   int(height),
	})
	if err != nil {
		return nil, xerrors.Errorf("couldn't fetch block at height %d: %v", height, err)
	}
	return reply.SkipBlock.Hash, nil
}
