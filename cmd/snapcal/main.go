package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/snapcal/snapcal/internal/config"
	"github.com/snapcal/snapcal/internal/history"
	"github.com/snapcal/snapcal/internal/image"
	"github.com/snapcal/snapcal/internal/netcheck"
	"github.com/snapcal/snapcal/internal/provider"
	"github.com/snapcal/snapcal/internal/provider/demo"
	"github.com/snapcal/snapcal/internal/provider/openai"
)

var (
	version = "dev"
	commit  = "none"
)

// App carries the process-level dependencies so tests can swap the
// provider, the store, and the connectivity probe.
type App struct {
	Out    io.Writer
	Err    io.Writer
	GetEnv func(string) string
	Config config.Config

	NewHistory  func() (*history.Store, error)
	NewProvider func(apiKey string, verbose bool) (provider.Analyzer, error)
	NewDemo     func() provider.Analyzer
	Probe       netcheck.ProbeFunc
}

func DefaultApp() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	app := &App{
		Out:    os.Stdout,
		Err:    os.Stderr,
		GetEnv: os.Getenv,
		Config: cfg,
		NewHistory: func() (*history.Store, error) {
			return history.NewStoreWithPath(cfg.DatabasePath)
		},
		NewProvider: func(apiKey string, verbose bool) (provider.Analyzer, error) {
			return openai.New(&provider.Config{
				APIKey:      apiKey,
				BaseURL:     cfg.BaseURL,
				Model:       cfg.Model,
				MaxTokens:   cfg.MaxTokens,
				MaxAttempts: cfg.MaxAttempts,
				RetryDelay:  cfg.RetryDelay,
				Timeout:     cfg.RequestTimeout,
				Verbose:     verbose,
			})
		},
		NewDemo: func() provider.Analyzer {
			return demo.New(cfg.DemoDelay)
		},
		Probe: netcheck.DialProbe("api.openai.com:443", 3*time.Second),
	}
	return app, nil
}

func (a *App) imageOptions() image.Options {
	return image.Options{
		MaxBytes:      a.Config.MaxImageBytes,
		StartQuality:  a.Config.StartQuality,
		QualityStep:   a.Config.QualityStep,
		QualityFloor:  a.Config.QualityFloor,
		ResizeWidth:   a.Config.ResizeWidth,
		ResizeHeight:  a.Config.ResizeHeight,
		ResizeQuality: a.Config.ResizeQuality,
	}
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is the normal case.
	_ = godotenv.Load()

	app, err := DefaultApp()
	if err != nil {
		return err
	}
	return newRootCmd(app).Execute()
}

func newRootCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapcal",
		Short: "Log meals from food photos",
		Long: `snapcal estimates the nutritional content of a meal from a photo
and keeps a local log of everything you eat.

Examples:
  snapcal analyze lunch.jpg
  snapcal analyze --demo dinner.jpg
  snapcal history --week
  snapcal show 3f2a1b9c --image`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(
		newAnalyzeCmd(app),
		newHistoryCmd(app),
		newShowCmd(app),
		newDeleteCmd(app),
		newIngredientCmd(app),
		newExportCmd(app),
		newImportCmd(app),
		newKeysCmd(app),
	)

	return cmd
}

// humanize translates pipeline sentinels into messages that tell the
// user what to do, not what the code hit.
func humanize(err error) error {
	switch {
	case errors.Is(err, provider.ErrNoConnection):
		return fmt.Errorf("no internet connection: connect to a network, or rerun with --demo")
	case errors.Is(err, provider.ErrInvalidCredential):
		return fmt.Errorf("the API key was rejected: check it with 'snapcal keys show' and set a new one with 'snapcal keys set'")
	case errors.Is(err, provider.ErrRateLimited):
		return fmt.Errorf("the API rate limit was hit: wait a moment and try again")
	case errors.Is(err, provider.ErrImageTooLarge):
		return fmt.Errorf("the photo could not be compressed enough to upload: try a smaller image")
	case errors.Is(err, provider.ErrDecoding):
		return fmt.Errorf("the analysis response could not be understood: try again")
	case errors.Is(err, provider.ErrNetwork):
		return fmt.Errorf("the analysis service could not be reached: %w", err)
	default:
		return err
	}
}
