// Package bitwalk evolves a binary artifact through randomized,
// locality-biased bit mutations until an oracle accepts it. Each run
// is a single forward random walk through mutation space: no
// populations, no backtracking, no rejection of worse generations.
package bitwalk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"bitwalk/internal/artifact"
	"bitwalk/internal/driver"
	"bitwalk/internal/entropy"
	"bitwalk/internal/evo"
	"bitwalk/internal/magnitude"
	"bitwalk/internal/model"
	"bitwalk/internal/oracle"
	"bitwalk/internal/storage"
)

const defaultDBPath = "bitwalk.db"

type Options struct {
	StoreKind string // memory|sqlite; empty selects the build default
	DBPath    string
	Logger    *slog.Logger
}

type Client struct {
	store  storage.Store
	logger *slog.Logger
}

func New(ctx context.Context, opts Options) (*Client, error) {
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	store, err := storage.NewStore(opts.StoreKind, dbPath)
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{store: store, logger: logger}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

// Reset drops all persisted run history.
func (c *Client) Reset(ctx context.Context) error {
	resetter, ok := c.store.(storage.Resetter)
	if !ok {
		return nil
	}
	return resetter.Reset(ctx)
}

type RunRequest struct {
	// RunID identifies the run in persisted history. Defaults to a
	// fresh UUID.
	RunID string

	// ArtifactPath locates the file under evolution; created if absent.
	ArtifactPath string

	// FlipBudget is the number of bit flips per generation. Default 1.
	FlipBudget int

	// Growth enables the optional resize step each generation.
	Growth bool

	// Validator is the delegated oracle's argument vector; occurrences
	// of oracle.Placeholder are replaced by the artifact path. Empty
	// selects self-test mode (the artifact itself is executed).
	Validator []string

	// ExpectCode is the exit status that counts as acceptance. Default 0.
	ExpectCode int

	// Timeout bounds each oracle evaluation. Zero means unbounded.
	Timeout time.Duration

	// Delay paces the loop between generations.
	Delay time.Duration

	// Seed selects a deterministic entropy stream; zero uses the
	// operating system CSPRNG.
	Seed int64

	// BaseBits is the magnitude generator's starting bit width.
	// Default magnitude.DefaultBaseWidth.
	BaseBits int
}

type RunSummary struct {
	RunID       string
	Generations int
	Accepted    bool
	FinalSize   int64
	FinalDigest string
}

// Run evolves the artifact until the oracle accepts it or ctx is
// cancelled. The run record is persisted in both cases.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if req.ArtifactPath == "" {
		return RunSummary{}, errors.New("artifact path is required")
	}
	if req.FlipBudget == 0 {
		req.FlipBudget = 1
	}
	if req.FlipBudget < 0 {
		return RunSummary{}, errors.New("flip budget must be > 0")
	}
	if req.BaseBits == 0 {
		req.BaseBits = magnitude.DefaultBaseWidth
	}
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}

	var src entropy.Source = entropy.CryptoSource{}
	if req.Seed != 0 {
		src = entropy.NewSeededSource(req.Seed)
	}
	bitBuf := entropy.NewBitBuffer(src)
	magGen, err := magnitude.New(bitBuf, req.BaseBits)
	if err != nil {
		return RunSummary{}, err
	}

	var orc oracle.Oracle
	if len(req.Validator) > 0 {
		orc = oracle.DelegatedOracle{Argv: req.Validator, Expect: req.ExpectCode, Timeout: req.Timeout}
	} else {
		orc = oracle.ExitCodeOracle{Expect: req.ExpectCode, Timeout: req.Timeout}
	}

	mut := &evo.RandomMutator{
		Bits:       bitBuf,
		Magnitude:  magGen,
		Entropy:    src,
		FlipBudget: req.FlipBudget,
		Growth:     req.Growth,
	}

	art, err := artifact.Open(req.ArtifactPath)
	if err != nil {
		return RunSummary{}, err
	}
	defer func() {
		_ = art.Close()
	}()

	drv, err := driver.New(driver.Config{
		Oracle:   orc,
		Mutator:  mut,
		Artifact: art,
		Delay:    req.Delay,
		Store:    c.store,
		RunID:    req.RunID,
		Logger:   c.logger,
	})
	if err != nil {
		return RunSummary{}, err
	}

	result, runErr := drv.Run(ctx)

	record := storage.Stamp(model.RunRecord{
		ID:           result.RunID,
		CreatedAtUTC: time.Now().UTC().Format(time.RFC3339),
		ArtifactPath: req.ArtifactPath,
		OracleName:   orc.Name(),
		MutatorName:  mut.Name(),
		Seed:         req.Seed,
		FlipBudget:   req.FlipBudget,
		Growth:       req.Growth,
		Generations:  result.Generations,
		Accepted:     result.Accepted,
		FinalSize:    result.FinalSize,
		FinalDigest:  result.FinalDigest,
	})
	// Persist the record even when the run was cancelled.
	if err := c.store.SaveRun(context.WithoutCancel(ctx), record); err != nil && runErr == nil {
		return RunSummary{}, fmt.Errorf("save run %s: %w", result.RunID, err)
	}
	if runErr != nil {
		return RunSummary{}, runErr
	}

	return RunSummary{
		RunID:       result.RunID,
		Generations: result.Generations,
		Accepted:    result.Accepted,
		FinalSize:   result.FinalSize,
		FinalDigest: result.FinalDigest,
	}, nil
}

// Runs lists persisted run records, newest first. A non-positive
// limit returns everything.
func (c *Client) Runs(ctx context.Context, limit int) ([]model.RunRecord, error) {
	return c.store.ListRuns(ctx, limit)
}

// Generations returns the per-generation history of one run.
func (c *Client) Generations(ctx context.Context, runID string) ([]model.GenerationRecord, error) {
	if runID == "" {
		return nil, errors.New("run id is required")
	}
	records, ok, err := c.store.GetGenerations(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("no history for run %s", runID)
	}
	return records, nil
}
