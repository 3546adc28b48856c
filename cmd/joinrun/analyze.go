package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kjoin/joinrun/internal/join"
)

func newAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <schema-file>",
		Short: "Activate a schema document once and report analyzer warnings and errors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}

			format := "json"
			switch strings.ToLower(filepath.Ext(path)) {
			case ".yaml", ".yml":
				format = "yaml"
			}
			cfg, err := join.ParseSchemaDocument(data, format)
			if err != nil {
				return fmt.Errorf("cannot parse %s: %w", path, err)
			}

			// A throwaway definition is activated just to drive the
			// analyzer, then torn down again.
			dm := join.NewDefinitionManager()
			defer dm.Close()
			_, wae, err := dm.Apply(join.DefinitionID("analyze"), cfg)
			if err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "activation refused: %v\n", err)
				return err
			}

			if len(wae.Warnings) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "schema %q: no warnings\n", cfg.Name)
				return nil
			}
			for _, w := range wae.Warnings {
				fmt.Fprintf(cmd.OutOrStdout(), "warning: %s\n", w)
			}
			return nil
		},
	}
	return cmd
}
