package magnitude

import (
	"math"
	"testing"

	"bitwalk/internal/entropy"
)

func TestCompress(t *testing.T) {
	cases := []struct {
		raw   uint64
		width int
		want  int64
	}{
		{0, 8, 0},
		{1, 8, 0},
		{2, 8, 1},
		{255, 8, 3},
		{256, 16, 3},
		{65535, 16, 5},
		{math.MaxUint32, 32, 9},
		{1 << 62, 63, 16},
		// Width 1 passes the raw bit through.
		{0, 1, 0},
		{1, 1, 1},
	}
	for _, c := range cases {
		if got := compress(c.raw, c.width); got != c.want {
			t.Errorf("compress(%d, width=%d) = %d, want %d", c.raw, c.width, got, c.want)
		}
	}
}

func TestNewValidation(t *testing.T) {
	buf := entropy.NewBitBuffer(entropy.NewSeededSource(1))

	if _, err := New(nil, 8); err == nil {
		t.Fatal("nil bit buffer accepted")
	}
	if _, err := New(buf, 0); err == nil {
		t.Fatal("zero base width accepted")
	}
	g, err := New(buf, 1000)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if g.Width() != MaxWidth {
		t.Fatalf("width = %d, want cap %d", g.Width(), MaxWidth)
	}
}

func TestWidthStaysInBoundsOverLongSequences(t *testing.T) {
	for _, seed := range []int64{1, 2, 3, 99, 12345} {
		buf := entropy.NewBitBuffer(entropy.NewSeededSource(seed))
		g, err := New(buf, DefaultBaseWidth)
		if err != nil {
			t.Fatalf("new: %v", err)
		}
		for i := 0; i < 20000; i++ {
			if _, err := g.Next(); err != nil {
				t.Fatalf("seed %d draw %d: %v", seed, i, err)
			}
			if w := g.Width(); w < 1 || w > MaxWidth {
				t.Fatalf("seed %d draw %d: width %d out of [1, %d]", seed, i, w, MaxWidth)
			}
		}
	}
}

func TestMagnitudesAreNonNegative(t *testing.T) {
	buf := entropy.NewBitBuffer(entropy.NewSeededSource(7))
	g, err := New(buf, DefaultBaseWidth)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	for i := 0; i < 5000; i++ {
		mag, err := g.Next()
		if err != nil {
			t.Fatalf("draw %d: %v", i, err)
		}
		if mag < 0 {
			t.Fatalf("draw %d: magnitude %d < 0", i, mag)
		}
	}
}

func TestNextSignedProducesBothSigns(t *testing.T) {
	buf := entropy.NewBitBuffer(entropy.NewSeededSource(11))
	g, err := New(buf, DefaultBaseWidth)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	var sawPositive, sawNegative bool
	for i := 0; i < 5000 && !(sawPositive && sawNegative); i++ {
		mag, err := g.NextSigned()
		if err != nil {
			t.Fatalf("draw %d: %v", i, err)
		}
		if mag > 0 {
			sawPositive = true
		}
		if mag < 0 {
			sawNegative = true
		}
	}
	if !sawPositive || !sawNegative {
		t.Fatalf("signed draws one-sided: positive=%v negative=%v", sawPositive, sawNegative)
	}
}
