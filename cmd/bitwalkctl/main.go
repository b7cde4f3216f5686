// bitwalkctl evolves a binary artifact by randomized bit mutation
// until an acceptance oracle passes it.
//
// Usage:
//
//	bitwalkctl run --artifact <path> [flags] [-- validator args...]
//	bitwalkctl runs [--limit n]
//	bitwalkctl generations --run <id>
//	bitwalkctl init | reset
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/lmittmann/tint"
	"github.com/spf13/pflag"

	"bitwalk/internal/storage"
	bitwalkapi "bitwalk/pkg/bitwalk"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}
	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "reset":
		return runReset(ctx, args[1:])
	case "run":
		return runRun(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "generations":
		return runGenerations(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func storeFlags(fs *pflag.FlagSet) (storeKind, dbPath *string) {
	storeKind = fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath = fs.String("db-path", "bitwalk.db", "sqlite database path")
	return storeKind, dbPath
}

func newLogger(level string) (*slog.Logger, error) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "", "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level: %s", level)
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      lvl,
		TimeFormat: "15:04:05",
	})), nil
}

func runInit(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("init", pflag.ContinueOnError)
	storeKind, dbPath := storeFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := bitwalkapi.New(ctx, bitwalkapi.Options{StoreKind: *storeKind, DBPath: *dbPath})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	fmt.Printf("initialized store=%s\n", *storeKind)
	return nil
}

func runReset(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("reset", pflag.ContinueOnError)
	storeKind, dbPath := storeFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := bitwalkapi.New(ctx, bitwalkapi.Options{StoreKind: *storeKind, DBPath: *dbPath})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Reset(ctx); err != nil {
		return err
	}
	fmt.Printf("reset store=%s\n", *storeKind)
	return nil
}

func runRun(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("run", pflag.ContinueOnError)
	storeKind, dbPath := storeFlags(fs)
	configPath := fs.String("config", "", "optional JSONC run config file")
	logLevel := fs.String("log-level", "info", "log level: debug|info|warn|error")
	artifactPath := fs.String("artifact", "", "artifact file path (created if absent)")
	runID := fs.String("run-id", "", "run identifier (default: fresh UUID)")
	flipBudget := fs.Int("flips", 1, "bit flips per generation")
	growth := fs.Bool("growth", false, "allow the artifact to grow and shrink")
	expectCode := fs.Int("expect", 0, "exit status that counts as acceptance")
	timeout := fs.Duration("timeout", 0, "per-evaluation timeout (0 = unbounded)")
	delay := fs.Duration("delay", 0, "pause between generations")
	seed := fs.Int64("seed", 0, "deterministic entropy seed (0 = system CSPRNG)")
	baseBits := fs.Int("base-bits", 0, "magnitude generator starting bit width")
	if err := fs.Parse(args); err != nil {
		return err
	}

	req, err := loadOrDefaultRunRequest(*configPath)
	if err != nil {
		return err
	}
	applyRunFlags(&req, fs, runFlagValues{
		ArtifactPath: *artifactPath,
		RunID:        *runID,
		FlipBudget:   *flipBudget,
		Growth:       *growth,
		ExpectCode:   *expectCode,
		Timeout:      *timeout,
		Delay:        *delay,
		Seed:         *seed,
		BaseBits:     *baseBits,
	})
	if validator := validatorAfterDash(fs); len(validator) > 0 {
		req.Validator = validator
	}
	if req.ArtifactPath == "" {
		return usageError("run requires --artifact (or artifact_path in --config)")
	}

	logger, err := newLogger(*logLevel)
	if err != nil {
		return err
	}

	client, err := bitwalkapi.New(ctx, bitwalkapi.Options{
		StoreKind: *storeKind,
		DBPath:    *dbPath,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	oracleMode := "self-test"
	if len(req.Validator) > 0 {
		oracleMode = "delegated"
	}
	logger.Info("starting run",
		"artifact", req.ArtifactPath,
		"oracle", oracleMode,
		"flips", req.FlipBudget,
		"growth", req.Growth)

	summary, err := client.Run(ctx, req)
	if err != nil {
		return err
	}

	fmt.Printf("run=%s accepted after %d generations, final size %s, digest %s\n",
		summary.RunID, summary.Generations, humanize.Bytes(uint64(summary.FinalSize)), summary.FinalDigest)
	return nil
}

// validatorAfterDash returns the positional arguments following "--",
// which form the delegated validator's argument vector.
func validatorAfterDash(fs *pflag.FlagSet) []string {
	at := fs.ArgsLenAtDash()
	if at < 0 {
		return nil
	}
	return fs.Args()[at:]
}

func runRuns(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("runs", pflag.ContinueOnError)
	storeKind, dbPath := storeFlags(fs)
	limit := fs.Int("limit", 20, "maximum runs to list (0 = all)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := bitwalkapi.New(ctx, bitwalkapi.Options{StoreKind: *storeKind, DBPath: *dbPath})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	runs, err := client.Runs(ctx, *limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs recorded")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tCREATED\tORACLE\tGENERATIONS\tACCEPTED\tSIZE\tDIGEST")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%v\t%s\t%.12s\n",
			run.ID, run.CreatedAtUTC, run.OracleName, run.Generations, run.Accepted,
			humanize.Bytes(uint64(run.FinalSize)), run.FinalDigest)
	}
	return w.Flush()
}

func runGenerations(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("generations", pflag.ContinueOnError)
	storeKind, dbPath := storeFlags(fs)
	runID := fs.String("run", "", "run identifier")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID == "" {
		return usageError("generations requires --run")
	}

	client, err := bitwalkapi.New(ctx, bitwalkapi.Options{StoreKind: *storeKind, DBPath: *dbPath})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	records, err := client.Generations(ctx, *runID)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "GEN\tSIZE\tPASSED\tEXIT\tTIMED OUT\tDIGEST")
	for _, record := range records {
		fmt.Fprintf(w, "%d\t%s\t%v\t%d\t%v\t%.12s\n",
			record.Generation, humanize.Bytes(uint64(record.Size)), record.Passed,
			record.ExitCode, record.TimedOut, record.Digest)
	}
	return w.Flush()
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: bitwalkctl <init|reset|run|runs|generations> [flags]", msg)
}

// runFlagValues carries the parsed run flags so applyRunFlags can
// overlay only the ones the user actually set onto a config-file
// request.
type runFlagValues struct {
	ArtifactPath string
	RunID        string
	FlipBudget   int
	Growth       bool
	ExpectCode   int
	Timeout      time.Duration
	Delay        time.Duration
	Seed         int64
	BaseBits     int
}

func applyRunFlags(req *bitwalkapi.RunRequest, fs *pflag.FlagSet, values runFlagValues) {
	if fs.Changed("artifact") || req.ArtifactPath == "" {
		req.ArtifactPath = values.ArtifactPath
	}
	if fs.Changed("run-id") {
		req.RunID = values.RunID
	}
	if fs.Changed("flips") || req.FlipBudget == 0 {
		req.FlipBudget = values.FlipBudget
	}
	if fs.Changed("growth") {
		req.Growth = values.Growth
	}
	if fs.Changed("expect") {
		req.ExpectCode = values.ExpectCode
	}
	if fs.Changed("timeout") {
		req.Timeout = values.Timeout
	}
	if fs.Changed("delay") {
		req.Delay = values.Delay
	}
	if fs.Changed("seed") {
		req.Seed = values.Seed
	}
	if fs.Changed("base-bits") {
		req.BaseBits = values.BaseBits
	}
}
