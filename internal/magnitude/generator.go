package magnitude

import (
	"errors"
	"math"

	"bitwalk/internal/entropy"
)

const (
	// MaxWidth bounds the adaptive bit width so a raw draw always fits
	// a signed 64-bit magnitude.
	MaxWidth = 63

	DefaultBaseWidth = 8
)

// Generator produces scale-smoothed integer magnitudes. Each draw
// consumes `width` raw bits and compresses the result on a logarithmic
// scale (base e^e), so most magnitudes are small. The width itself
// follows a bounded random walk driven by a second compressed draw,
// which correlates consecutive magnitudes instead of leaving them
// independently uniform: a step-size policy for local stochastic
// search, with rare large jumps.
type Generator struct {
	bits  *entropy.BitBuffer
	width int
}

func New(bits *entropy.BitBuffer, baseWidth int) (*Generator, error) {
	if bits == nil {
		return nil, errors.New("bit buffer is required")
	}
	if baseWidth <= 0 {
		return nil, errors.New("base width must be > 0")
	}
	if baseWidth > MaxWidth {
		baseWidth = MaxWidth
	}
	return &Generator{bits: bits, width: baseWidth}, nil
}

// Width reports the current adaptive bit width. Always in [1, MaxWidth].
func (g *Generator) Width() int {
	return g.width
}

// Next draws one magnitude and advances the width walk.
func (g *Generator) Next() (int64, error) {
	raw, err := g.bits.Uint(g.width)
	if err != nil {
		return 0, err
	}
	mag := compress(raw, g.width)

	step, err := g.bits.Uint(g.width)
	if err != nil {
		return 0, err
	}
	negative, err := g.bits.Bit()
	if err != nil {
		return 0, err
	}
	delta := compress(step, g.width)
	if negative == 1 {
		delta = -delta
	}
	g.width += int(delta)
	if g.width < 1 {
		g.width = 1
	}
	if g.width > MaxWidth {
		g.width = MaxWidth
	}
	return mag, nil
}

// NextSigned draws one magnitude plus one extra bit for its sign.
func (g *Generator) NextSigned() (int64, error) {
	mag, err := g.Next()
	if err != nil {
		return 0, err
	}
	negative, err := g.bits.Bit()
	if err != nil {
		return 0, err
	}
	if negative == 1 {
		return -mag, nil
	}
	return mag, nil
}

// compress applies the severe logarithm, ceil(log base e^e of raw).
// Raw values of 0 or 1 map to 0, where the log would be undefined or
// non-positive. At width 1 the raw bit passes through unchanged; the
// log is unstable at minimal resolution.
func compress(raw uint64, width int) int64 {
	if width < 2 {
		return int64(raw)
	}
	if raw < 2 {
		return 0
	}
	return int64(math.Ceil(math.Log(float64(raw)) / math.E))
}
