package main

import (
	"context"
	"fmt"
	"time"

	"lm-go/internal/model/ngram"
	"lm-go/internal/service"
	"lm-go/internal/service/lm"
	"lm-go/internal/service/tokenizer"
	"lm-go/internal/util"

	"github.com/cheggaaa/pb/v3"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type trainSummary struct {
	Output string           `json:"output"`
	Model  lm.ModelStats    `json:"model"`
	Meta   lm.ModelMetadata `json:"metadata"`
	Trace  []lm.SearchStep  `json:"trace,omitempty"`
}

func (c *CLI) newTrainCommand() *cobra.Command {
	var (
		n         int
		kind      string
		output    string
		gamma     float64
		beta      float64
		addOne    bool
		language  string
		lowercase bool
		threads   int
		name      string
	)

	cmd := &cobra.Command{
		Use:   "train PATH...",
		Short: "Train an n-gram model on files or directories",
		Args:  cobra.MinimumNArgs(1),
		Example: `  lm train -n 3 -m backoff -o es.gob corpus/es
  lm train -n 2 -m interpolated --gamma 2.5 --language text -o news.gob news.txt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := lm.ParseKind(kind)
			if err != nil {
				return err
			}
			opts := lm.Options{Kind: parsed, N: n}
			if cmd.Flags().Changed("gamma") {
				opts.Gamma = util.Ptr(gamma)
			}
			if cmd.Flags().Changed("beta") {
				opts.Beta = util.Ptr(beta)
			}
			if cmd.Flags().Changed("addone") {
				opts.AddOne = util.Ptr(addOne)
			}

			registry, err := tokenizer.NewDefaultRegistry(lowercase)
			if err != nil {
				return err
			}
			corpus := service.NewCorpusManager(registry, threads, c.logger)

			ctx := cmd.Context()
			sents, detected, err := c.loadCorpora(ctx, corpus, args, language)
			if err != nil {
				return err
			}
			if len(sents) == 0 {
				return fmt.Errorf("no sentences found in %v", args)
			}

			start := time.Now()
			model, err := lm.Train(sents, opts, c.logger)
			if err != nil {
				return err
			}
			c.logger.Info("Model trained",
				zap.String("kind", string(model.Kind())),
				zap.Int("n", model.N()),
				zap.Duration("duration", time.Since(start)))

			if name == "" {
				name = output
			}
			meta := lm.ModelMetadata{
				ID:              uuid.New().String(),
				Name:            name,
				Language:        detected,
				Sentences:       len(sents),
				CreatedAt:       time.Now().UTC(),
				TrainingEntropy: lm.Evaluate(model, sents).Entropy,
			}
			for _, sent := range sents {
				meta.Tokens += len(sent)
			}

			if err := lm.SaveToFile(output, model, meta); err != nil {
				return err
			}
			c.logger.Info("Model saved", zap.String("path", output))

			summary := trainSummary{Output: output, Model: lm.Stats(model), Meta: meta, Trace: lm.Trace(model)}
			if c.jsonOutput {
				return c.printJSON(summary)
			}
			printTrainSummary(summary)
			return nil
		},
	}

	cmd.Flags().IntVarP(&n, "order", "n", 3, "Order of the model")
	cmd.Flags().StringVarP(&kind, "model", "m", string(lm.KindUnsmoothed), "Model to use: ngram, addone, interpolated or backoff")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output model file")
	cmd.Flags().Float64Var(&gamma, "gamma", 0, "Interpolation gamma (searched on held-out data when unset)")
	cmd.Flags().Float64Var(&beta, "beta", 0, "Back-off discount beta (searched on held-out data when unset)")
	cmd.Flags().BoolVar(&addOne, "addone", true, "Use add-one smoothing for the unigram level")
	cmd.Flags().StringVar(&language, "language", "", "Tokenizer for every file (detected from extensions when empty)")
	cmd.Flags().BoolVar(&lowercase, "lowercase", false, "Lowercase natural-language tokens")
	cmd.Flags().IntVar(&threads, "threads", 2, "Number of files tokenized concurrently")
	cmd.Flags().StringVar(&name, "name", "", "Model name stored in the metadata (defaults to the output path)")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

// loadCorpora loads every path in argument order, showing a progress bar over
// the files. The language of the first file is returned when none is given.
func (c *CLI) loadCorpora(ctx context.Context, corpus *service.CorpusManager, paths []string, language string) ([]ngram.Sentence, string, error) {
	total := 0
	for _, path := range paths {
		files, err := corpus.ListFiles(ctx, path, language)
		if err != nil {
			return nil, "", err
		}
		total += len(files)
	}

	bar := pb.StartNew(total)
	defer bar.Finish()

	var sents []ngram.Sentence
	detected := language
	for _, path := range paths {
		loaded, err := corpus.LoadPathWithProgress(ctx, path, language, func(string) {
			bar.Increment()
		})
		if err != nil {
			return nil, "", err
		}
		sents = append(sents, loaded.Sentences...)
		if detected == "" && len(loaded.Files) > 0 {
			detected = loaded.Files[0].Language
		}
	}
	return sents, detected, nil
}

func printTrainSummary(s trainSummary) {
	fmt.Printf("Model: %s %d-gram\n", s.Model.Kind, s.Model.Store.N)
	fmt.Printf("Sentences: %d\n", s.Meta.Sentences)
	fmt.Printf("Tokens: %d\n", s.Meta.Tokens)
	fmt.Printf("Vocabulary: %d\n", s.Model.Store.VocabularySize)
	switch s.Model.Kind {
	case lm.KindInterpolated:
		fmt.Printf("Gamma: %g\n", s.Model.Gamma)
	case lm.KindBackOff:
		fmt.Printf("Beta: %g\n", s.Model.Beta)
	}
	fmt.Printf("Saved to %s\n", relative(s.Output))
}
