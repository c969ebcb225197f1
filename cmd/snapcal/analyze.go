package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/snapcal/snapcal/internal/analyzer"
	"github.com/snapcal/snapcal/internal/batch"
	"github.com/snapcal/snapcal/internal/display"
	"github.com/snapcal/snapcal/internal/image"
	"github.com/snapcal/snapcal/internal/keys"
	"github.com/snapcal/snapcal/internal/netcheck"
	"github.com/snapcal/snapcal/internal/provider"
)

var (
	flagDemo        bool
	flagBatch       bool
	flagNoSave      bool
	flagAPIKey      string
	flagVerbose     bool
	flagParallel    int
	flagStopOnError bool
)

// resolvedCred adapts a key picked once at startup to the pipeline's
// credential interface.
type resolvedCred struct {
	key string
}

func (c resolvedCred) Get() string   { return c.key }
func (c resolvedCred) IsValid() bool { return keys.Valid(c.key) }

// demoCred forces the offline path regardless of any stored key.
type demoCred struct{}

func (demoCred) Get() string   { return "" }
func (demoCred) IsValid() bool { return false }

func newAnalyzeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <photo>",
		Short: "Estimate the nutrition of a meal from a photo",
		Long: `Analyze sends a food photo to the vision model and logs the
estimated meal. Without a usable API key the built-in demo estimate is
returned instead, so the command always produces a result.

With --batch the argument is a directory of photos or a text file
listing photo paths (one per line, # comments allowed).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd.Context(), args[0], app)
		},
	}

	cmd.Flags().BoolVar(&flagDemo, "demo", false, "use the built-in demo estimate, no network call")
	cmd.Flags().BoolVar(&flagBatch, "batch", false, "treat the argument as a directory or list file of photos")
	cmd.Flags().BoolVar(&flagNoSave, "no-save", false, "print the estimate without logging it")
	cmd.Flags().StringVar(&flagAPIKey, "api-key", "", "API key (overrides stored key and OPENAI_API_KEY)")
	cmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "log HTTP requests and responses")
	cmd.Flags().IntVar(&flagParallel, "parallel", 1, "concurrent analyses in batch mode")
	cmd.Flags().BoolVar(&flagStopOnError, "stop-on-error", false, "abort the batch on the first failure")

	return cmd
}

func runAnalyze(parent context.Context, path string, app *App) error {
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	svc, monitor := buildService(ctx, app)
	if monitor != nil {
		defer monitor.Close()
	}

	if flagBatch {
		return runAnalyzeBatch(ctx, path, svc, app)
	}

	img, err := image.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load photo: %w", err)
	}

	analysis, err := svc.Analyze(ctx, img)
	if err != nil {
		return humanize(err)
	}

	if !flagNoSave {
		store, err := app.NewHistory()
		if err != nil {
			return fmt.Errorf("failed to open meal log: %w", err)
		}
		defer store.Close()

		if err := store.Create(ctx, analysis); err != nil {
			return fmt.Errorf("failed to log meal: %w", err)
		}
	}

	display.New(app.Out).Analysis(analysis, app.Config.Model)
	return nil
}

func runAnalyzeBatch(ctx context.Context, path string, svc *analyzer.Service, app *App) error {
	items, err := batch.Collect(path)
	if err != nil {
		return err
	}

	store, err := app.NewHistory()
	if err != nil {
		return fmt.Errorf("failed to open meal log: %w", err)
	}
	defer store.Close()

	proc := batch.NewProcessor(svc, store, app.Out, app.Err)
	results, err := proc.Process(ctx, items, &batch.Options{
		Parallel:    flagParallel,
		StopOnError: flagStopOnError,
		NoSave:      flagNoSave,
	})
	if err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if r.Error != nil {
			failed++
		}
	}
	fmt.Fprintf(app.Out, "Done: %d analyzed, %d failed\n", len(results)-failed, failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d photos failed", failed, len(results))
	}
	return nil
}

// buildService assembles the analysis pipeline for one command run. The
// connectivity monitor is nil in demo mode; the caller must Close it
// otherwise.
func buildService(ctx context.Context, app *App) (*analyzer.Service, *netcheck.Monitor) {
	newProvider := func(apiKey string) (provider.Analyzer, error) {
		return app.NewProvider(apiKey, flagVerbose)
	}

	if flagDemo {
		svc := analyzer.NewService(demoCred{}, alwaysOnline{}, app.imageOptions(), newProvider, app.NewDemo())
		return svc, nil
	}

	key, _ := keys.GetAPIKey(flagAPIKey, "OPENAI_API_KEY", app.GetEnv)

	monitor := netcheck.NewMonitor(netcheck.WithProbe(app.Probe))
	monitor.Start(ctx)

	svc := analyzer.NewService(resolvedCred{key: key}, monitor, app.imageOptions(), newProvider, app.NewDemo())
	return svc, monitor
}

type alwaysOnline struct{}

func (alwaysOnline) Available() bool { return true }
