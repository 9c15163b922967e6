package entropy

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type fixedProvider struct {
	calls int
}

func (p *fixedProvider) Seed(height uint64) ([]byte, error) {
	p.calls++
	buf := make([]byte, 32)
	buf[0] = byte(height)
	buf[1] = byte(height >> 8)
	return buf, nil
}

func TestDraw_ZeroBound(t *testing.T) {
	s := NewService(&fixedProvider{})
	_, err := s.Draw(1, 0)
	require.Error(t, err)
}

func TestDraw_InRange(t *testing.T) {
	s := NewService(&fixedProvider{})
	for i := 0; i < 1000; i++ {
		val, err := s.Draw(1, 7)
		require.NoError(t, err)
		require.True(t, val < 7)
	}
}

func TestDraw_Uniform(t *testing.T) {
	const bound = 10
	const draws = 10000
	s := NewService(&fixedProvider{})
	counts := make([]int, bound)
	for i := 0; i < draws; i++ {
		val, err := s.Draw(1, bound)
		require.NoError(t, err)
		counts[val]++
	}
	// Every value shows up roughly draws/bound times. The tolerance is
	// loose enough that the deterministic sequence never trips it.
	for val, cnt := range counts {
		require.True(t, cnt > draws/bound/2, "value %d drawn %d times", val, cnt)
		require.True(t, cnt < draws/bound*2, "value %d drawn %d times", val, cnt)
	}
}

func TestDraw_CoversFullRange(t *testing.T) {
	// Every value of the range must stay reachable, in particular index
	// zero: a generator that never yields it would always spare the first
	// participant of a raffle.
	const bound = 10
	s := NewService(&fixedProvider{})
	seen := make(map[uint32]bool)
	for i := 0; i < 2000; i++ {
		val, err := s.Draw(1, bound)
		require.NoError(t, err)
		seen[val] = true
	}
	for val := uint32(0); val < bound; val++ {
		require.True(t, seen[val], "value %d never drawn", val)
	}

	s2 := NewService(&fixedProvider{})
	twoSided := make(map[uint32]bool)
	for i := 0; i < 200; i++ {
		val, err := s2.Draw(1, 2)
		require.NoError(t, err)
		twoSided[val] = true
	}
	require.Len(t, twoSided, 2)
}

func TestDraw_Deterministic(t *testing.T) {
	s1 := NewService(&fixedProvider{})
	s2 := NewService(&fixedProvider{})
	for i := 0; i < 100; i++ {
		v1, err := s1.Draw(3, 1000000)
		require.NoError(t, err)
		v2, err := s2.Draw(3, 1000000)
		require.NoError(t, err)
		require.Equal(t, v1, v2)
	}
}

func TestDraw_PerturbsWithinHeight(t *testing.T) {
	// Two services observing the same height: the first draws twice, the
	// second once. If the perturbation works, the second service's first
	// draw matches the first service's first draw, and a fresh service
	// never reproduces the first service's second draw with its first.
	s1 := NewService(&fixedProvider{})
	s2 := NewService(&fixedProvider{})
	const bound = 1<<30

	a1, err := s1.Draw(5, bound)
	require.NoError(t, err)
	a2, err := s1.Draw(5, bound)
	require.NoError(t, err)

	b1, err := s2.Draw(5, bound)
	require.NoError(t, err)
	require.Equal(t, a1, b1)
	b2, err := s2.Draw(5, bound)
	require.NoError(t, err)
	require.Equal(t, a2, b2)
	// With a 2^30 bound a seed collision is the only way these match.
	require.NotEqual(t, a1, a2)
}

func TestDraw_RefreshesAcrossHeights(t *testing.T) {
	p := &fixedProvider{}
	s := NewService(p)
	_, err := s.Draw(1, 100)
	require.NoError(t, err)
	_, err = s.Draw(1, 100)
	require.NoError(t, err)
	require.Equal(t, 1, p.calls)
	_, err = s.Draw(2, 100)
	require.NoError(t, err)
	require.Equal(t, 2, p.calls)

	// s already consumed one draw at height 2, so its next draw must not
	// match the first draw of a service that just reached that height.
	fresh := NewService(&fixedProvider{})
	v1, err := fresh.Draw(2, 1<<30)
	require.NoError(t, err)
	v2, err := s.Draw(2, 1<<30)
	require.NoError(t, err)
	require.NotEqual(t, v1, v2) // s already drew once at height 2
}
