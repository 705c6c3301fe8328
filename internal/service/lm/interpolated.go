package lm

import (
	"fmt"

	"lm-go/internal/model/ngram"

	"go.uber.org/zap"
)

// InterpolationConfig configures an interpolated model
type InterpolationConfig struct {
	Gamma  *float64 // Fixed gamma; searched on held-out data when nil
	AddOne bool     // Add-one smoothing for the unigram estimate
	Base   float64  // Exponential search base
	Steps  int      // Hill-climbing refinement steps
}

// DefaultInterpolationConfig returns the default interpolation settings
func DefaultInterpolationConfig() InterpolationConfig {
	return InterpolationConfig{
		AddOne: true,
		Base:   10,
		Steps:  10,
	}
}

// InterpolatedModel mixes the maximum-likelihood estimates of every order
type InterpolatedModel struct {
	n      int
	counts *CountStore
	v      int
	gamma  float64
	addOne bool
	trace  []SearchStep
}

// NewInterpolatedModel counts the sentences and fixes gamma, searching it on the
// last tenth of the sentences when not supplied
func NewInterpolatedModel(n int, sents []ngram.Sentence, cfg InterpolationConfig, logger *zap.Logger) (*InterpolatedModel, error) {
	if n < 1 {
		return nil, fmt.Errorf("model order must be positive, got %d", n)
	}
	if cfg.Gamma != nil && *cfg.Gamma < 0 {
		return nil, fmt.Errorf("gamma must be non-negative, got %v", *cfg.Gamma)
	}
	if cfg.Base <= 1 {
		cfg.Base = 10
	}

	train, heldOut := sents, []ngram.Sentence(nil)
	search := cfg.Gamma == nil && n > 1
	if search {
		train, heldOut = SplitHeldOut(sents)
	}

	counts := NewCountStore(n, AllOrderCounts, train)
	m := &InterpolatedModel{
		n:      n,
		counts: counts,
		v:      counts.VocabularySize(),
		gamma:  defaultGamma,
		addOne: cfg.AddOne,
	}

	if cfg.Gamma != nil {
		m.gamma = *cfg.Gamma
	} else if search {
		m.gamma, m.trace = searchGamma(m, heldOut, cfg.Base, cfg.Steps, logger)
	}

	logger.Info("Built interpolated model",
		zap.Int("n", n),
		zap.Int("train_sentences", len(train)),
		zap.Int("held_out_sentences", len(heldOut)),
		zap.Float64("gamma", m.gamma),
	)
	return m, nil
}

func (m *InterpolatedModel) N() int                 { return m.n }
func (m *InterpolatedModel) Kind() Kind             { return KindInterpolated }
func (m *InterpolatedModel) Counts() *CountStore    { return m.counts }
func (m *InterpolatedModel) Count(t []string) int64 { return m.counts.Count(t) }

// Gamma returns the fitted mixing hyperparameter
func (m *InterpolatedModel) Gamma() float64 { return m.gamma }

// Trace returns the held-out log-likelihood of every gamma tried during fitting
func (m *InterpolatedModel) Trace() []SearchStep { return m.trace }

// CondProb returns sum(lambda_i * P_ML(token | context suffix of length n-i))
func (m *InterpolatedModel) CondProb(token string, context []string) float64 {
	checkContext(m.n, context)

	prob := 0.0
	lambdaSum := 0.0
	for i := 0; i < m.n; i++ {
		suffix := context[i:]

		var lambda float64
		if i < m.n-1 {
			c := float64(m.counts.Count(suffix))
			if c > 0 {
				lambda = (1 - lambdaSum) * c / (c + m.gamma)
			}
		} else {
			lambda = 1 - lambdaSum
		}
		lambdaSum += lambda

		if lambda == 0 {
			continue
		}
		prob += lambda * m.mlProb(token, suffix)
	}
	return prob
}

// mlProb is the maximum-likelihood estimate for one order; the unigram
// estimate is add-one smoothed when configured
func (m *InterpolatedModel) mlProb(token string, suffix []string) float64 {
	num := float64(m.counts.Count(extend(suffix, token)))
	den := float64(m.counts.Count(suffix))
	if len(suffix) == 0 && m.addOne {
		return (num + 1) / (den + float64(m.v) + 1)
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// Support returns the vocabulary plus the end marker
func (m *InterpolatedModel) Support(context []string) []string {
	return predictable(m.counts)
}
