package entropy

import (
	cryptorand "crypto/rand"
	"errors"
	"fmt"
	mathrand "math/rand"
)

// ErrUnavailable reports that the underlying randomness source is
// exhausted or unreachable. It is fatal: a run cannot continue without
// entropy.
var ErrUnavailable = errors.New("entropy source unavailable")

// Source supplies raw random bytes. Read must fill p completely or
// return an error wrapping ErrUnavailable.
type Source interface {
	Read(p []byte) error
}

// CryptoSource reads from the operating system CSPRNG. This is the
// production source.
type CryptoSource struct{}

func (CryptoSource) Read(p []byte) error {
	if _, err := cryptorand.Read(p); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// SeededSource produces a deterministic byte stream from a seed, for
// reproducible runs and tests.
type SeededSource struct {
	rng *mathrand.Rand
}

func NewSeededSource(seed int64) *SeededSource {
	return &SeededSource{rng: mathrand.New(mathrand.NewSource(seed))}
}

func (s *SeededSource) Read(p []byte) error {
	if _, err := s.rng.Read(p); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
