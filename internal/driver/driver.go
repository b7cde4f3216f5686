package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"bitwalk/internal/artifact"
	"bitwalk/internal/evo"
	"bitwalk/internal/model"
	"bitwalk/internal/oracle"
	"bitwalk/internal/storage"
)

// Config wires one evolution run.
type Config struct {
	Oracle   oracle.Oracle
	Mutator  evo.Mutator
	Artifact *artifact.Artifact

	// Delay paces the loop between generations. Zero disables pacing.
	Delay time.Duration

	// Store, when set, receives one GenerationRecord per evaluation.
	Store storage.Store
	RunID string

	Logger *slog.Logger
}

// Result reports the outcome of a run. Generations counts the
// mutations applied before acceptance, so an artifact the oracle
// already accepts reports zero.
type Result struct {
	RunID       string
	Generations int
	Accepted    bool
	FinalSize   int64
	FinalDigest string
}

type Driver struct {
	cfg Config
}

func New(cfg Config) (*Driver, error) {
	if cfg.Oracle == nil {
		return nil, errors.New("oracle is required")
	}
	if cfg.Mutator == nil {
		return nil, errors.New("mutator is required")
	}
	if cfg.Artifact == nil {
		return nil, errors.New("artifact is required")
	}
	if cfg.Delay < 0 {
		return nil, errors.New("delay must be >= 0")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &Driver{cfg: cfg}, nil
}

// Run alternates oracle evaluation with mutation until the oracle
// accepts. The loop is unbounded by design; it honors cancellation
// only at generation boundaries, never mid-mutation, so the artifact
// is always left in its last fully flushed state.
func (d *Driver) Run(ctx context.Context) (Result, error) {
	art := d.cfg.Artifact
	generation := 0

	for {
		if err := ctx.Err(); err != nil {
			return Result{RunID: d.cfg.RunID, Generations: generation, FinalSize: art.Size()}, err
		}

		verdict, err := d.cfg.Oracle.Evaluate(ctx, art.Path())
		if err != nil {
			return Result{RunID: d.cfg.RunID, Generations: generation, FinalSize: art.Size()},
				fmt.Errorf("evaluate generation %d: %w", generation, err)
		}
		if err := d.record(ctx, generation, verdict); err != nil {
			return Result{RunID: d.cfg.RunID, Generations: generation, FinalSize: art.Size()}, err
		}
		if verdict.Passed {
			digest, err := art.Fingerprint()
			if err != nil {
				return Result{RunID: d.cfg.RunID, Generations: generation, FinalSize: art.Size()}, err
			}
			d.cfg.Logger.Info("artifact accepted",
				"run_id", d.cfg.RunID,
				"generations", generation,
				"size", art.Size(),
				"digest", digest)
			return Result{
				RunID:       d.cfg.RunID,
				Generations: generation,
				Accepted:    true,
				FinalSize:   art.Size(),
				FinalDigest: digest,
			}, nil
		}

		d.cfg.Logger.Debug("generation rejected",
			"run_id", d.cfg.RunID,
			"generation", generation,
			"size", art.Size(),
			"exit_code", verdict.ExitCode,
			"timed_out", verdict.TimedOut,
			"launch_error", verdict.LaunchError)

		if err := d.cfg.Mutator.Mutate(ctx, art); err != nil {
			return Result{RunID: d.cfg.RunID, Generations: generation, FinalSize: art.Size()},
				fmt.Errorf("mutate generation %d: %w", generation, err)
		}
		generation++

		if d.cfg.Delay > 0 {
			select {
			case <-time.After(d.cfg.Delay):
			case <-ctx.Done():
				// The boundary check at the top of the loop reports it.
			}
		}
	}
}

func (d *Driver) record(ctx context.Context, generation int, verdict oracle.Verdict) error {
	if d.cfg.Store == nil {
		return nil
	}
	digest, err := d.cfg.Artifact.Fingerprint()
	if err != nil {
		return err
	}
	record := model.GenerationRecord{
		Generation:  generation,
		Size:        d.cfg.Artifact.Size(),
		Digest:      digest,
		Passed:      verdict.Passed,
		ExitCode:    verdict.ExitCode,
		TimedOut:    verdict.TimedOut,
		LaunchError: verdict.LaunchError,
	}
	if err := d.cfg.Store.AppendGeneration(ctx, d.cfg.RunID, record); err != nil {
		return fmt.Errorf("record generation %d: %w", generation, err)
	}
	return nil
}
