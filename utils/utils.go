package utils

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/ceyhunalp/raffle_code/sys"
	"go.dedis.ch/cothority/v3/skipchain"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/onet/v3"
	"golang.org/x/xerrors"
)

func HashString(val string) []byte {
	h := sha256.New()
	h.Write([]byte(val))
	return h.Sum(nil)
}

func HashUint64(val uint64) []byte {
	h := sha256.New()
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, val)
	h.Write(buf)
	return h.Sum(nil)
}

func HashPoint(p kyber.Point) ([]byte, error) {
	buf, err := p.MarshalBinary()
	if err != nil {
		return nil, xerrors.Errorf("couldn't marshal point: %v", err)
	}
	h := sha256.New()
	h.Write(buf)
	return h.Sum(nil), nil
}

func CreateGenesisBlock(s *skipchain.Service, scCfg *sys.ScConfig, roster *onet.Roster) (*skipchain.StoreSkipBlockReply, error) {
	genesis := skipchain.NewSkipBlock()
	genesis.Roster = roster
	genesis.MaximumHeight = scCfg.MHeight
	genesis.BaseHeight = scCfg.BHeight
	genesis.VerifierIDs = skipchain.VerificationStandard
	reply, err := s.StoreSkipBlock(&skipchain.StoreSkipBlock{
		NewBlock: genesis,
	})
	return reply, err
}

func StoreBlock(s *skipchain.Service, genesis skipchain.SkipBlockID, data []byte) error {
	db := s.GetDB()
	latest, err := db.GetLatest(db.GetByID(genesis))
	if err != nil {
		return xerrors.Errorf("couldn't find latest block: %v", err)
	}
	block := latest.Copy()
	block.Data = data
	block.GenesisID = block.SkipChainID()
	block.Index++
	_, err = s.StoreSkipBlock(&skipchain.StoreSkipBlock{
		NewBlock:          block,
		TargetSkipChainID: latest.SkipChainID(),
	})
	return err
}

func GetLatestBlock(s *skipchain.Service, genesis skipchain.SkipBlockID) (*skipchain.SkipBlock, error) {
	db := s.GetDB()
	latest, err := db.GetLatest(db.GetByID(genesis))
	if err != nil {
		return nil, xerrors.Errorf("couldn't find latest block: %v", err)
	}
	return latest, nil
}
