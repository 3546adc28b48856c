package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kjoin/joinrun/internal/demo"
)

func newMapReduceCmd() *cobra.Command {
	var upperBound int

	cmd := &cobra.Command{
		Use:   "mapreduce",
		Short: "Run the map/reduce demo: sum of squares via fan-out/fan-in reactions",
		RunE: func(cmd *cobra.Command, args []string) error {
			sum, err := demo.RunSumOfSquares(upperBound)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sum of squares 1..%d = %d\n", upperBound, sum)
			return nil
		},
	}

	cmd.Flags().IntVar(&upperBound, "n", 100, "upper bound of the 1..n range")
	return cmd
}
