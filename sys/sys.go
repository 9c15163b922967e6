package sys

import (
	"time"

	"github.com/BurntSushi/toml"
	"go.dedis.ch/onet/v3"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

// PrepareUnitConfig reads the unit settings from a TOML file and combines
// them with the roster into the configuration used to initialize the unit.
func PrepareUnitConfig(roster *onet.Roster, cfgFile string) (*UnitConfig, error) {
	ut := &UnitTOML{}
	_, err := toml.DecodeFile(cfgFile, ut)
	if err != nil {
		log.Errorf("Cannot decode unit config %s: %v", cfgFile, err)
		return nil, xerrors.Errorf("decoding unit config: %v", err)
	}
	if ut.MHeight <= 0 || ut.BHeight <= 0 {
		return nil, xerrors.New("skipchain heights must be positive")
	}
	if ut.BlkInterval <= 0 {
		return nil, xerrors.New("block interval must be positive")
	}
	return &UnitConfig{
		Roster: roster,
		ScCfg: &ScConfig{
			MHeight: ut.MHeight,
			BHeight: ut.BHeight,
		},
		BlkInterval:  time.Duration(ut.BlkInterval),
		DurationType: time.Second,
	}, nil
}
