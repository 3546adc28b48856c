package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kjoin/joinrun/internal/demo"
)

func newCounterCmd() *cobra.Command {
	var initial, decrements int

	cmd := &cobra.Command{
		Use:   "counter",
		Short: "Run the counter demo: Counter(n) + Decr/Fetch reactions",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := demo.RunCounter(initial, decrements)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "counter after %d decrements: %d\n", decrements, v)
			return nil
		},
	}

	cmd.Flags().IntVar(&initial, "initial", 3, "initial counter value")
	cmd.Flags().IntVar(&decrements, "decrements", 3, "number of Decr() molecules to emit")
	return cmd
}
