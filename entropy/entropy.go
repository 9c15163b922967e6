package entropy

import (
	"crypto/sha256"
	"encoding/binary"
	"io"

	"go.dedis.ch/kyber/v3/xof/blake2xb"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

// Provider supplies the ledger randomness for a given height. The
// production provider reads it from the unit's chain; tests inject a fixed
// one for reproducible draws.
type Provider interface {
	Seed(height uint64) ([]byte, error)
}

// Service derives bounded pseudo-random draws from the per-height ledger
// randomness. The seed is refreshed when a call observes a new height and
// perturbed after every draw, so two draws within the same height never
// consume an identical generator state.
type Service struct {
	provider   Provider
	lastHeight uint64
	seed       [32]byte
}

func NewService(provider Provider) *Service {
	return &Service{provider: provider}
}

// Draw returns a uniformly distributed value in [0, bound). A zero bound
// is a caller contract violation: the intake handshake guarantees a
// capacity of at least two.
func (s *Service) Draw(height uint64, bound uint32) (uint32, error) {
	if bound == 0 {
		return 0, xerrors.New("bound must be positive")
	}
	if height != s.lastHeight {
		buf, err := s.provider.Seed(height)
		if err != nil {
			return 0, xerrors.Errorf("couldn't refresh seed: %v", err)
		}
		s.seed = sha256.Sum256(buf)
		s.lastHeight = height
	}
	xof := blake2xb.New(s.seed[:])
	// The next draw at this height must not reuse the generator state.
	s.seed[0]++
	val, err := uniform(xof, bound)
	if err != nil {
		return 0, err
	}
	log.Lvlf3("drew %d with bound %d at height %d", val, bound, height)
	return val, nil
}

// uniform reduces the generator's output stream to [0, bound) by masking
// to the bound's bit width and rejecting out-of-range values, so every
// value including zero keeps probability 1/bound.
func uniform(xof io.Reader, bound uint32) (uint32, error) {
	mask := bound - 1
	mask |= mask >> 1
	mask |= mask >> 2
	mask |= mask >> 4
	mask |= mask >> 8
	mask |= mask >> 16
	buf := make([]byte, 4)
	for {
		if _, err := xof.Read(buf); err != nil {
			return 0, xerrors.Errorf("couldn't read generator: %v", err)
		}
		val := binary.BigEndian.Uint32(buf) & mask
		if val < bound {
			return val, nil
		}
	}
}
