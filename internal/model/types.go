package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `cbor:"schema_version"`
	CodecVersion  int `cbor:"codec_version"`
}

// RunRecord summarizes one completed (or cancelled) evolution run.
type RunRecord struct {
	VersionedRecord
	ID           string `cbor:"id"`
	CreatedAtUTC string `cbor:"created_at_utc"`
	ArtifactPath string `cbor:"artifact_path"`
	OracleName   string `cbor:"oracle"`
	MutatorName  string `cbor:"mutator"`
	Seed         int64  `cbor:"seed"`
	FlipBudget   int    `cbor:"flip_budget"`
	Growth       bool   `cbor:"growth"`
	Generations  int    `cbor:"generations"`
	Accepted     bool   `cbor:"accepted"`
	FinalSize    int64  `cbor:"final_size"`
	FinalDigest  string `cbor:"final_digest"`
}

// GenerationRecord captures the artifact state and verdict observed at
// one generation boundary.
type GenerationRecord struct {
	Generation  int    `cbor:"generation"`
	Size        int64  `cbor:"size"`
	Digest      string `cbor:"digest"`
	Passed      bool   `cbor:"passed"`
	ExitCode    int    `cbor:"exit_code"`
	TimedOut    bool   `cbor:"timed_out"`
	LaunchError string `cbor:"launch_error,omitempty"`
}
