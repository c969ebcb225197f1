package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/snapcal/snapcal/internal/security"
)

func newExportCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Export the meal log as JSON",
		Long: `Export writes every logged meal, photos included, to a JSON file.
Without an argument a dated filename is generated in the working
directory.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return runExport(cmd.Context(), path, app)
		},
	}
}

func runExport(ctx context.Context, path string, app *App) error {
	if path == "" {
		path = security.ExportFilename("meals", time.Now())
	}
	if err := security.ValidateExportPath(path); err != nil {
		return fmt.Errorf("invalid export path: %w", err)
	}

	store, err := app.NewHistory()
	if err != nil {
		return fmt.Errorf("failed to open meal log: %w", err)
	}
	defer store.Close()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer f.Close()

	if err := store.ExportJSON(ctx, f); err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	fmt.Fprintf(app.Out, "Exported meal log to %s\n", path)
	return nil
}

func newImportCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import meals from a JSON export",
		Long: `Import reads a JSON export and merges it into the meal log.
Existing records with matching IDs are overwritten.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), args[0], app)
		},
	}
}

func runImport(ctx context.Context, path string, app *App) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open import file: %w", err)
	}
	defer f.Close()

	store, err := app.NewHistory()
	if err != nil {
		return fmt.Errorf("failed to open meal log: %w", err)
	}
	defer store.Close()

	n, err := store.ImportJSON(ctx, f)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	fmt.Fprintf(app.Out, "Imported %d meal(s) from %s\n", n, path)
	return nil
}
