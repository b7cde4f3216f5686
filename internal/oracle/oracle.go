package oracle

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"
)

// Verdict is the outcome of one oracle evaluation. Launch failures and
// timeouts are failing verdicts, never errors: the evolution loop
// treats them as ordinary rejections and continues.
type Verdict struct {
	Passed      bool
	ExitCode    int
	TimedOut    bool
	LaunchError string
}

// Oracle decides whether the artifact at path is acceptable.
// Evaluate returns an error only for internal failures such as
// context cancellation, never for a rejected artifact.
type Oracle interface {
	Name() string
	Evaluate(ctx context.Context, path string) (Verdict, error)
}

// Placeholder marks where the artifact path is substituted into a
// delegated validator's arguments.
const Placeholder = "%s"

// ExitCodeOracle executes the artifact itself and compares its exit
// status to Expect. A zero Timeout means evaluations are unbounded.
type ExitCodeOracle struct {
	Expect  int
	Timeout time.Duration
}

func (o ExitCodeOracle) Name() string {
	return "exit_code"
}

func (o ExitCodeOracle) Evaluate(ctx context.Context, path string) (Verdict, error) {
	return runAndCompare(ctx, []string{path}, o.Expect, o.Timeout)
}

// DelegatedOracle executes a validator command with Placeholder
// occurrences in its arguments replaced by the artifact path, and
// compares the validator's exit status to Expect.
type DelegatedOracle struct {
	Argv    []string
	Expect  int
	Timeout time.Duration
}

func (o DelegatedOracle) Name() string {
	return "delegated"
}

func (o DelegatedOracle) Evaluate(ctx context.Context, path string) (Verdict, error) {
	if len(o.Argv) == 0 {
		return Verdict{}, errors.New("validator argv is required")
	}
	argv := make([]string, len(o.Argv))
	for i, arg := range o.Argv {
		argv[i] = strings.ReplaceAll(arg, Placeholder, path)
	}
	return runAndCompare(ctx, argv, o.Expect, o.Timeout)
}

// runAndCompare launches argv, waits for exit (bounded by timeout when
// set), and compares the exit status to expect. Overrunning the bound
// is a fail, never a pass.
func runAndCompare(ctx context.Context, argv []string, expect int, timeout time.Duration) (Verdict, error) {
	if err := ctx.Err(); err != nil {
		return Verdict{}, err
	}
	evalCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		evalCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(evalCtx, argv[0], argv[1:]...)
	err := cmd.Run()
	if err == nil {
		return Verdict{Passed: expect == 0}, nil
	}

	var exitErr *exec.ExitError
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		return Verdict{}, ctx.Err()
	case errors.Is(evalCtx.Err(), context.DeadlineExceeded):
		return Verdict{TimedOut: true}, nil
	case errors.As(err, &exitErr):
		code := exitErr.ExitCode()
		return Verdict{Passed: code == expect, ExitCode: code}, nil
	default:
		return Verdict{LaunchError: err.Error()}, nil
	}
}
