package sys

import (
	"time"

	"go.dedis.ch/onet/v3"
)

type ScConfig struct {
	MHeight int
	BHeight int
}

type UnitConfig struct {
	Roster       *onet.Roster
	ScCfg        *ScConfig
	BlkInterval  time.Duration
	DurationType time.Duration
}

// UnitTOML is the on-disk unit configuration, decoded from a TOML file.
type UnitTOML struct {
	MHeight     int `toml:"mheight"`
	BHeight     int `toml:"bheight"`
	BlkInterval int `toml:"blkinterval"`
}
