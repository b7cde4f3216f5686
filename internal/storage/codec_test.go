package storage

import (
	"bytes"
	"errors"
	"testing"

	"bitwalk/internal/model"
)

func TestRunCodecRoundTrip(t *testing.T) {
	run := Stamp(model.RunRecord{
		ID:           "r1",
		CreatedAtUTC: "2026-08-26T00:00:00Z",
		ArtifactPath: "/tmp/a.bin",
		OracleName:   "delegated",
		MutatorName:  "random_bitflip",
		Seed:         99,
		FlipBudget:   2,
		Growth:       true,
		Generations:  7,
		Accepted:     true,
		FinalSize:    64,
		FinalDigest:  "deadbeef",
	})

	payload, err := EncodeRun(run)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeRun(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded != run {
		t.Fatalf("decoded = %+v, want %+v", decoded, run)
	}
}

func TestRunCodecIsDeterministic(t *testing.T) {
	run := Stamp(model.RunRecord{ID: "r1", Generations: 3})

	a, err := EncodeRun(run)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	b, err := EncodeRun(run)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatal("same record produced different bytes")
	}
}

func TestDecodeRunRejectsVersionMismatch(t *testing.T) {
	run := model.RunRecord{
		VersionedRecord: model.VersionedRecord{SchemaVersion: 99, CodecVersion: CurrentCodecVersion},
		ID:              "r1",
	}
	payload, err := EncodeRun(run)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodeRun(payload); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("err = %v, want ErrVersionMismatch", err)
	}
}

func TestGenerationCodecRoundTrip(t *testing.T) {
	record := model.GenerationRecord{
		Generation:  5,
		Size:        32,
		Digest:      "cafe",
		Passed:      false,
		ExitCode:    1,
		TimedOut:    true,
		LaunchError: "exec format error",
	}

	payload, err := EncodeGeneration(record)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeGeneration(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded != record {
		t.Fatalf("decoded = %+v, want %+v", decoded, record)
	}
}
