package evo

import (
	"context"
	"errors"
	"math/bits"

	"bitwalk/internal/artifact"
	"bitwalk/internal/entropy"
	"bitwalk/internal/magnitude"
)

// RandomMutator mutates an artifact one generation at a time: an
// optional resize by a signed magnitude, then FlipBudget independent
// bit flips at offsets drawn uniformly over the artifact's bit range.
// Flips may coincide and cancel out; that is accepted behavior.
type RandomMutator struct {
	Bits       *entropy.BitBuffer
	Magnitude  *magnitude.Generator
	Entropy    entropy.Source
	FlipBudget int
	Growth     bool
}

func (m *RandomMutator) Name() string {
	return "random_bitflip"
}

func (m *RandomMutator) Mutate(ctx context.Context, art *artifact.Artifact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m == nil || m.Bits == nil {
		return errors.New("bit buffer is required")
	}
	if m.Magnitude == nil {
		return errors.New("magnitude generator is required")
	}
	if m.Entropy == nil {
		return errors.New("entropy source is required")
	}
	if m.FlipBudget <= 0 {
		return errors.New("flip budget must be > 0")
	}
	if art == nil {
		return errors.New("artifact is required")
	}

	if m.Growth {
		if err := m.resize(art); err != nil {
			return err
		}
	}
	if art.Size() == 0 {
		return nil
	}

	for i := 0; i < m.FlipBudget; i++ {
		offset, err := m.randomOffset(art.Size() * 8)
		if err != nil {
			return err
		}
		if err := art.FlipBit(offset); err != nil {
			return err
		}
	}
	return nil
}

// resize optionally changes the artifact size. One gate bit decides
// whether this generation resizes at all; the delta is a signed
// magnitude in bytes, clamped so the target never goes negative. The
// resize is fully flushed before the first flip.
func (m *RandomMutator) resize(art *artifact.Artifact) error {
	gate, err := m.Bits.Bit()
	if err != nil {
		return err
	}
	if gate == 0 {
		return nil
	}
	delta, err := m.Magnitude.NextSigned()
	if err != nil {
		return err
	}
	target := art.Size() + delta
	if target < 0 {
		target = 0
	}
	switch {
	case target > art.Size():
		return art.Grow(target-art.Size(), m.Entropy)
	case target < art.Size():
		return art.Truncate(target)
	}
	return nil
}

// randomOffset draws an offset in [0, limit) from ceil(log2(limit))
// raw bits reduced modulo limit. The modulo bias is accepted, not
// corrected.
func (m *RandomMutator) randomOffset(limit int64) (int64, error) {
	width := bits.Len64(uint64(limit - 1))
	if width == 0 {
		width = 1
	}
	raw, err := m.Bits.Uint(width)
	if err != nil {
		return 0, err
	}
	return int64(raw % uint64(limit)), nil
}
