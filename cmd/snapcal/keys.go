package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/snapcal/snapcal/internal/keys"
)

func newKeysCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage the stored API key",
		Long: `Keys manages the API key used for photo analysis. The key is kept in
a config file readable only by you; without one, analyses fall back to
the built-in demo estimate.`,
	}

	cmd.AddCommand(
		newKeysSetCmd(app),
		newKeysShowCmd(app),
		newKeysClearCmd(app),
	)
	return cmd
}

func newKeysSetCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "set <api-key>",
		Short: "Store an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			key := args[0]
			if !keys.Valid(key) {
				return fmt.Errorf("key does not look like an OpenAI API key (expects an sk- prefix)")
			}

			store, err := keys.NewStore()
			if err != nil {
				return err
			}
			if err := store.Set(key); err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "Stored key %s\n", keys.MaskKey(key))
			return nil
		},
	}
}

func newKeysShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the stored API key (masked)",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			store, err := keys.NewStore()
			if err != nil {
				return err
			}

			key := store.Get()
			if key == "" {
				fmt.Fprintln(app.Out, "No API key stored. Analyses will use the demo estimate.")
				return nil
			}
			fmt.Fprintf(app.Out, "%s (%s)\n", keys.MaskKey(key), store.Path())
			if !keys.Valid(key) {
				fmt.Fprintln(app.Err, "Warning: the stored key does not look valid")
			}
			return nil
		},
	}
}

func newKeysClearCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove the stored API key",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			store, err := keys.NewStore()
			if err != nil {
				return err
			}
			if err := store.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(app.Out, "Stored key removed.")
			return nil
		},
	}
}
