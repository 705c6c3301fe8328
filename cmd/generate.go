package main

import (
	"fmt"
	"time"

	"lm-go/internal/service"
	"lm-go/internal/service/lm"
	"lm-go/internal/util"

	"github.com/spf13/cobra"
)

func (c *CLI) newGenerateCommand() *cobra.Command {
	var (
		input string
		count int
		seed  int64
	)

	cmd := &cobra.Command{
		Use:     "generate",
		Short:   "Sample sentences from a model",
		Args:    cobra.NoArgs,
		Example: `  lm generate -i es.gob -n 10 --seed 42`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 1 {
				return fmt.Errorf("count must be positive, got %d", count)
			}
			model, _, err := lm.LoadFromFile(input)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("seed") {
				seed = time.Now().UnixNano()
			}

			gen := lm.NewGenerator(model, seed, c.logger)
			result := service.GenerationResult{Model: input, Seed: seed}
			for i := 0; i < count; i++ {
				sent := gen.GenerateSentence()
				result.Sentences = append(result.Sentences, service.GeneratedSentence{
					Tokens: sent,
					Text:   util.Detokenize(sent),
				})
			}

			if c.jsonOutput {
				return c.printJSON(result)
			}
			for _, sent := range result.Sentences {
				fmt.Println(sent.Text)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "Model file")
	cmd.Flags().IntVarP(&count, "count", "n", 1, "Number of sentences to generate")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Random seed (defaults to the clock)")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}
