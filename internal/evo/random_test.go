package evo

import (
	"bytes"
	"context"
	"math/bits"
	"os"
	"path/filepath"
	"testing"

	"bitwalk/internal/artifact"
	"bitwalk/internal/entropy"
	"bitwalk/internal/magnitude"
)

func newMutator(t *testing.T, seed int64, flipBudget int, growth bool) *RandomMutator {
	t.Helper()
	src := entropy.NewSeededSource(seed)
	buf := entropy.NewBitBuffer(src)
	gen, err := magnitude.New(buf, magnitude.DefaultBaseWidth)
	if err != nil {
		t.Fatalf("magnitude generator: %v", err)
	}
	return &RandomMutator{
		Bits:       buf,
		Magnitude:  gen,
		Entropy:    src,
		FlipBudget: flipBudget,
		Growth:     growth,
	}
}

func openArtifact(t *testing.T, content []byte) *artifact.Artifact {
	t.Helper()
	path := filepath.Join(t.TempDir(), "artifact.bin")
	if err := os.WriteFile(path, content, 0o755); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	art, err := artifact.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() {
		_ = art.Close()
	})
	return art
}

func TestSingleFlipOnZeroByteProducesOneHotByte(t *testing.T) {
	for seed := int64(1); seed <= 32; seed++ {
		art := openArtifact(t, []byte{0x00})
		mut := newMutator(t, seed, 1, false)

		if err := mut.Mutate(context.Background(), art); err != nil {
			t.Fatalf("seed %d: mutate: %v", seed, err)
		}

		got, err := art.Bytes()
		if err != nil {
			t.Fatalf("seed %d: bytes: %v", seed, err)
		}
		if len(got) != 1 {
			t.Fatalf("seed %d: size changed with growth disabled: %d", seed, len(got))
		}
		if bits.OnesCount8(got[0]) != 1 {
			t.Fatalf("seed %d: byte %#02x is not one-hot", seed, got[0])
		}
	}
}

func TestFlipBudgetFlipsAtMostBudgetBits(t *testing.T) {
	original := make([]byte, 8)
	art := openArtifact(t, original)
	mut := newMutator(t, 5, 3, false)

	if err := mut.Mutate(context.Background(), art); err != nil {
		t.Fatalf("mutate: %v", err)
	}

	got, err := art.Bytes()
	if err != nil {
		t.Fatalf("bytes: %v", err)
	}
	changed := 0
	for i := range got {
		changed += bits.OnesCount8(got[i] ^ original[i])
	}
	// Coinciding flips cancel in pairs, so the changed-bit count has
	// the budget's parity and never exceeds it.
	if changed > 3 || changed%2 != 1 {
		t.Fatalf("changed bits = %d, want odd count <= 3", changed)
	}
}

func TestGrowthDisabledNeverResizes(t *testing.T) {
	art := openArtifact(t, []byte{1, 2, 3, 4})
	mut := newMutator(t, 21, 1, false)

	for i := 0; i < 100; i++ {
		if err := mut.Mutate(context.Background(), art); err != nil {
			t.Fatalf("generation %d: %v", i, err)
		}
		if art.Size() != 4 {
			t.Fatalf("generation %d: size = %d, want 4", i, art.Size())
		}
	}
}

func TestEmptyArtifactWithoutGrowthIsANoOp(t *testing.T) {
	art := openArtifact(t, nil)
	mut := newMutator(t, 13, 1, false)

	if err := mut.Mutate(context.Background(), art); err != nil {
		t.Fatalf("mutate: %v", err)
	}
	if art.Size() != 0 {
		t.Fatalf("size = %d, want 0", art.Size())
	}
}

func TestGrowthEventuallyGrowsAnEmptyArtifact(t *testing.T) {
	art := openArtifact(t, nil)
	mut := newMutator(t, 2, 1, true)

	for i := 0; i < 1000; i++ {
		if err := mut.Mutate(context.Background(), art); err != nil {
			t.Fatalf("generation %d: %v", i, err)
		}
		if art.Size() > 0 {
			return
		}
	}
	t.Fatal("artifact never grew in 1000 generations")
}

func TestSizeOnDiskMatchesArtifactSizeEveryGeneration(t *testing.T) {
	art := openArtifact(t, []byte{9, 9, 9})
	mut := newMutator(t, 77, 2, true)

	for i := 0; i < 200; i++ {
		if err := mut.Mutate(context.Background(), art); err != nil {
			t.Fatalf("generation %d: %v", i, err)
		}
		info, err := os.Stat(art.Path())
		if err != nil {
			t.Fatalf("generation %d: stat: %v", i, err)
		}
		if info.Size() != art.Size() {
			t.Fatalf("generation %d: disk size %d != artifact size %d", i, info.Size(), art.Size())
		}
	}
}

func TestMutateHonorsCancelledContext(t *testing.T) {
	art := openArtifact(t, []byte{0x00})
	mut := newMutator(t, 1, 1, false)

	before, err := art.Bytes()
	if err != nil {
		t.Fatalf("bytes: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := mut.Mutate(ctx, art); err == nil {
		t.Fatal("mutate with cancelled context succeeded")
	}

	after, err := art.Bytes()
	if err != nil {
		t.Fatalf("bytes: %v", err)
	}
	if !bytes.Equal(before, after) {
		t.Fatal("cancelled mutate modified the artifact")
	}
}

func TestMutateValidation(t *testing.T) {
	art := openArtifact(t, []byte{0x00})
	ctx := context.Background()

	mut := newMutator(t, 1, 0, false)
	if err := mut.Mutate(ctx, art); err == nil {
		t.Fatal("zero flip budget accepted")
	}

	mut = newMutator(t, 1, 1, false)
	mut.Bits = nil
	if err := mut.Mutate(ctx, art); err == nil {
		t.Fatal("nil bit buffer accepted")
	}

	mut = newMutator(t, 1, 1, false)
	if err := mut.Mutate(ctx, nil); err == nil {
		t.Fatal("nil artifact accepted")
	}
}
