package artifact

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/zeebo/blake3"

	"bitwalk/internal/entropy"
)

// Artifact is a growable, durably persisted byte sequence addressable
// at bit granularity over [0, Size()*8). Every mutating operation is
// flushed to durable storage before it returns, so the file on disk is
// whole-byte consistent between steps and an external observer never
// sees a torn write.
//
// An Artifact is exclusively owned by its caller for the duration of a
// run; it is not safe for concurrent use.
type Artifact struct {
	path string
	file *os.File
	size int64
}

// Open opens the artifact at path, creating an empty executable file
// if absent.
func Open(path string) (*Artifact, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o755)
	if err != nil {
		return nil, fmt.Errorf("open artifact %s: %w", path, err)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("stat artifact %s: %w", path, err)
	}
	return &Artifact{path: path, file: file, size: info.Size()}, nil
}

func (a *Artifact) Path() string {
	return a.path
}

// Size is the current length in bytes.
func (a *Artifact) Size() int64 {
	return a.size
}

// Grow appends n fresh random bytes from src and flushes.
func (a *Artifact) Grow(n int64, src entropy.Source) error {
	if n <= 0 {
		return errors.New("grow count must be > 0")
	}
	if src == nil {
		return errors.New("entropy source is required")
	}
	buf := make([]byte, n)
	if err := src.Read(buf); err != nil {
		return err
	}
	if _, err := a.file.WriteAt(buf, a.size); err != nil {
		return fmt.Errorf("append %d bytes to %s: %w", n, a.path, err)
	}
	if err := a.file.Sync(); err != nil {
		return fmt.Errorf("flush %s: %w", a.path, err)
	}
	a.size += n
	return nil
}

// Truncate shrinks the artifact to size bytes and flushes. Retained
// bytes are untouched.
func (a *Artifact) Truncate(size int64) error {
	if size < 0 {
		return errors.New("truncate size must be >= 0")
	}
	if size > a.size {
		return fmt.Errorf("truncate to %d exceeds artifact size %d", size, a.size)
	}
	if err := a.file.Truncate(size); err != nil {
		return fmt.Errorf("truncate %s to %d: %w", a.path, size, err)
	}
	if err := a.file.Sync(); err != nil {
		return fmt.Errorf("flush %s: %w", a.path, err)
	}
	a.size = size
	return nil
}

// FlipBit inverts the bit at offset and flushes before returning. The
// byte index is the floored quotient offset/8 and the bit within the
// byte is offset mod 8, counted from the most significant bit.
func (a *Artifact) FlipBit(offset int64) error {
	if offset < 0 || offset >= a.size*8 {
		return fmt.Errorf("bit offset %d out of range [0, %d)", offset, a.size*8)
	}
	byteIndex := offset / 8
	mask := byte(0x80) >> uint(offset%8)

	var b [1]byte
	if _, err := a.file.ReadAt(b[:], byteIndex); err != nil {
		return fmt.Errorf("read byte %d of %s: %w", byteIndex, a.path, err)
	}
	b[0] ^= mask
	if _, err := a.file.WriteAt(b[:], byteIndex); err != nil {
		return fmt.Errorf("write byte %d of %s: %w", byteIndex, a.path, err)
	}
	if err := a.file.Sync(); err != nil {
		return fmt.Errorf("flush %s: %w", a.path, err)
	}
	return nil
}

// Bytes returns the artifact's current content.
func (a *Artifact) Bytes() ([]byte, error) {
	buf := make([]byte, a.size)
	n, err := a.file.ReadAt(buf, 0)
	if err != nil && !(errors.Is(err, io.EOF) && int64(n) == a.size) {
		return nil, fmt.Errorf("read %s: %w", a.path, err)
	}
	return buf, nil
}

// Fingerprint returns the hex-encoded BLAKE3 digest of the current
// content.
func (a *Artifact) Fingerprint() (string, error) {
	data, err := a.Bytes()
	if err != nil {
		return "", err
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func (a *Artifact) Close() error {
	return a.file.Close()
}
