package main

import (
	"fmt"

	"lm-go/internal/service"
	"lm-go/internal/service/lm"
	"lm-go/internal/service/tokenizer"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (c *CLI) newEvalCommand() *cobra.Command {
	var (
		input     string
		language  string
		lowercase bool
		threads   int
	)

	cmd := &cobra.Command{
		Use:     "eval PATH...",
		Short:   "Compute the cross-entropy and perplexity of a model on test data",
		Args:    cobra.MinimumNArgs(1),
		Example: `  lm eval -i es.gob corpus/es-test`,
		RunE: func(cmd *cobra.Command, args []string) error {
			model, meta, err := lm.LoadFromFile(input)
			if err != nil {
				return err
			}
			if language == "" {
				language = meta.Language
			}
			c.logger.Debug("Model loaded",
				zap.String("path", input),
				zap.String("kind", string(model.Kind())),
				zap.String("language", language))

			registry, err := tokenizer.NewDefaultRegistry(lowercase)
			if err != nil {
				return err
			}
			corpus := service.NewCorpusManager(registry, threads, c.logger)
			sents, _, err := c.loadCorpora(cmd.Context(), corpus, args, language)
			if err != nil {
				return err
			}

			report := lm.Evaluate(model, sents)
			if c.jsonOutput {
				return c.printJSON(report)
			}
			fmt.Printf("Sentences: %d\n", report.Sentences)
			fmt.Printf("Tokens: %d\n", report.Tokens)
			if report.ZeroProbability > 0 {
				fmt.Printf("Zero-probability sentences: %d\n", report.ZeroProbability)
			}
			fmt.Printf("Log probability: %.4f\n", float64(report.LogProbability))
			fmt.Printf("Cross entropy: %.4f\n", float64(report.CrossEntropy))
			fmt.Printf("Perplexity: %.4f\n", float64(report.Perplexity))
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "Model file")
	cmd.Flags().StringVar(&language, "language", "", "Tokenizer for every file (defaults to the model's language)")
	cmd.Flags().BoolVar(&lowercase, "lowercase", false, "Lowercase natural-language tokens")
	cmd.Flags().IntVar(&threads, "threads", 2, "Number of files tokenized concurrently")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}
