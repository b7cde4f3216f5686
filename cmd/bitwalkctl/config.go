package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/tidwall/jsonc"

	bitwalkapi "bitwalk/pkg/bitwalk"
)

// runConfig is the on-disk shape of a run request. The file is JSONC:
// JSON extended with // line comments, /* block comments */, and
// trailing commas.
type runConfig struct {
	RunID        string   `json:"run_id"`
	ArtifactPath string   `json:"artifact_path"`
	FlipBudget   int      `json:"flip_budget"`
	Growth       bool     `json:"growth"`
	Validator    []string `json:"validator"`
	ExpectCode   int      `json:"expect_code"`
	TimeoutMS    int      `json:"timeout_ms"`
	DelayMS      int      `json:"delay_ms"`
	Seed         int64    `json:"seed"`
	BaseBits     int      `json:"base_bits"`
}

func loadOrDefaultRunRequest(path string) (bitwalkapi.RunRequest, error) {
	if path == "" {
		return bitwalkapi.RunRequest{}, nil
	}
	return loadRunRequestFromConfig(path)
}

func loadRunRequestFromConfig(path string) (bitwalkapi.RunRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return bitwalkapi.RunRequest{}, err
	}

	var cfg runConfig
	if err := json.Unmarshal(jsonc.ToJSON(data), &cfg); err != nil {
		return bitwalkapi.RunRequest{}, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return bitwalkapi.RunRequest{
		RunID:        cfg.RunID,
		ArtifactPath: cfg.ArtifactPath,
		FlipBudget:   cfg.FlipBudget,
		Growth:       cfg.Growth,
		Validator:    cfg.Validator,
		ExpectCode:   cfg.ExpectCode,
		Timeout:      time.Duration(cfg.TimeoutMS) * time.Millisecond,
		Delay:        time.Duration(cfg.DelayMS) * time.Millisecond,
		Seed:         cfg.Seed,
		BaseBits:     cfg.BaseBits,
	}, nil
}
