package main

import (
	"fmt"
	"math/rand"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/kjoin/joinrun/internal/demo"
)

func newMergeSortCmd() *cobra.Command {
	var size int
	var seed int64

	cmd := &cobra.Command{
		Use:   "mergesort [values...]",
		Short: "Run the merge-sort demo: one nested definition per recursion level",
		RunE: func(cmd *cobra.Command, args []string) error {
			var xs []int
			if len(args) > 0 {
				for _, arg := range args {
					v, err := strconv.Atoi(arg)
					if err != nil {
						return fmt.Errorf("not an integer: %q", arg)
					}
					xs = append(xs, v)
				}
			} else {
				rng := rand.New(rand.NewSource(seed))
				xs = make([]int, size)
				for i := range xs {
					xs[i] = rng.Intn(1000)
				}
			}

			sorted, err := demo.MergeSort(xs)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "input:  %v\nsorted: %v\n", xs, sorted)
			return nil
		},
	}

	cmd.Flags().IntVar(&size, "size", 16, "number of random values to sort when none are given")
	cmd.Flags().Int64Var(&seed, "seed", 1, "random seed for generated input")
	return cmd
}
