package entropy

import "errors"

// BitBuffer converts byte-granular entropy into an ordered, on-demand
// sequence of single bits. Bits within a byte are consumed most
// significant first, and the order is preserved across byte
// boundaries. The buffer refills from its source in 8-bit quanta on
// underflow.
type BitBuffer struct {
	src  Source
	cur  byte
	left int
}

func NewBitBuffer(src Source) *BitBuffer {
	return &BitBuffer{src: src}
}

// Bit returns the next bit as 0 or 1.
func (b *BitBuffer) Bit() (byte, error) {
	if b.left == 0 {
		if err := b.refill(); err != nil {
			return 0, err
		}
	}
	bit := b.cur >> 7
	b.cur <<= 1
	b.left--
	return bit, nil
}

// Bits returns the next n bits, each 0 or 1, in order.
func (b *BitBuffer) Bits(n int) ([]byte, error) {
	if n < 0 {
		return nil, errors.New("bit count must be >= 0")
	}
	out := make([]byte, n)
	for i := range out {
		bit, err := b.Bit()
		if err != nil {
			return nil, err
		}
		out[i] = bit
	}
	return out, nil
}

// Uint composes the next n bits into an unsigned integer, big bit
// first. n must be in [1, 64].
func (b *BitBuffer) Uint(n int) (uint64, error) {
	if n < 1 || n > 64 {
		return 0, errors.New("bit width must be in [1, 64]")
	}
	var v uint64
	for i := 0; i < n; i++ {
		bit, err := b.Bit()
		if err != nil {
			return 0, err
		}
		v = v<<1 | uint64(bit)
	}
	return v, nil
}

func (b *BitBuffer) refill() error {
	if b.src == nil {
		return errors.New("entropy source is required")
	}
	var buf [1]byte
	if err := b.src.Read(buf[:]); err != nil {
		return err
	}
	b.cur = buf[0]
	b.left = 8
	return nil
}
