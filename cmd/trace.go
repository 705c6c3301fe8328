package main

import (
	"fmt"

	"lm-go/internal/service/lm"

	"github.com/spf13/cobra"
)

func (c *CLI) newTraceCommand() *cobra.Command {
	var input string

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Print the held-out hyperparameter search of a smoothed model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			model, _, err := lm.LoadFromFile(input)
			if err != nil {
				return err
			}
			stats := lm.Stats(model)
			trace := lm.Trace(model)

			if c.jsonOutput {
				return c.printJSON(map[string]any{"model": stats, "trace": trace})
			}

			param, selected := "", 0.0
			switch model.Kind() {
			case lm.KindInterpolated:
				param, selected = "gamma", stats.Gamma
			case lm.KindBackOff:
				param, selected = "beta", stats.Beta
			default:
				fmt.Printf("%s models have no hyperparameters\n", model.Kind())
				return nil
			}
			if len(trace) == 0 {
				fmt.Printf("%s=%g was given explicitly; no search was run\n", param, selected)
				return nil
			}

			fmt.Printf("%-5s  %-12s  %s\n", "step", param, "held-out log-likelihood")
			for i, step := range trace {
				marker := ""
				if step.Value == selected {
					marker = "  *"
				}
				fmt.Printf("%-5d  %-12.6g  %.6f%s\n", i+1, step.Value, float64(step.LogLikelihood), marker)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "Model file")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}
