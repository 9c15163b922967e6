package raffle

import (
	"go.dedis.ch/cothority/v3"
	"go.dedis.ch/onet/v3"
	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/onet/v3/network"
)

// custodianClient delivers prize-release instructions to the external
// custodian service. The engine fires it once after settlement and never
// retries; a failure surfaces as a log line only.
type custodianClient struct {
	*onet.Client
	dst *network.ServerIdentity
}

func NewCustodianClient(service string, dst *network.ServerIdentity) Custodian {
	return &custodianClient{
		Client: onet.NewClient(cothority.Suite, service),
		dst:    dst,
	}
}

func (c *custodianClient) TransferAsset(tr AssetTransfer) error {
	req := &AssetTransferRequest{
		Recipient: tr.Recipient,
		AssetID:   tr.Prize.AssetID,
		Memo:      tr.Memo,
	}
	return c.SendProtobuf(c.dst, req, nil)
}

// logCustodian stands in when no custodian endpoint is configured and
// only records the scheduled transfer.
type logCustodian struct{}

func (logCustodian) TransferAsset(tr AssetTransfer) error {
	log.Lvlf2("scheduled transfer of %s to %s (%s)", tr.Prize.AssetID,
		tr.Recipient, tr.Memo)
	return nil
}
