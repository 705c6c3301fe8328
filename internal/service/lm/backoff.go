package lm

import (
	"fmt"

	"lm-go/internal/model/ngram"

	"go.uber.org/zap"
)

// BackOffConfig configures a back-off model
type BackOffConfig struct {
	Beta       *float64 // Fixed discount; searched on held-out data when nil
	AddOne     bool     // Add-one smoothing for the unigram estimate
	Decay      float64  // Candidates are 1 - Decay^i
	Iterations int      // Maximum number of candidates
}

// DefaultBackOffConfig returns the default back-off settings
func DefaultBackOffConfig() BackOffConfig {
	return BackOffConfig{
		AddOne:     true,
		Decay:      0.8,
		Iterations: 10,
	}
}

// minDenominator treats residual lower-order mass below it as exhausted
const minDenominator = 1e-12

// backOffCache holds the per-context values that depend on beta
type backOffCache struct {
	continuations map[string][]string // A(context)
	denominators  map[string]float64  // 1 - sum of lower-order mass over A(context)
}

// BackOffModel discounts observed counts by beta and hands the withheld mass
// to the next lower order
type BackOffModel struct {
	n      int
	counts *CountStore
	v      int
	beta   float64
	addOne bool
	cache  backOffCache
	trace  []SearchStep
}

// ValidateBeta checks that a discount lies in [0, 1)
func ValidateBeta(beta float64) error {
	if beta < 0 || beta >= 1 {
		return fmt.Errorf("beta must be in [0, 1), got %v", beta)
	}
	return nil
}

// NewBackOffModel counts the sentences and fixes beta, searching it on the
// last tenth of the sentences when not supplied
func NewBackOffModel(n int, sents []ngram.Sentence, cfg BackOffConfig, logger *zap.Logger) (*BackOffModel, error) {
	if n < 1 {
		return nil, fmt.Errorf("model order must be positive, got %d", n)
	}
	if cfg.Beta != nil {
		if err := ValidateBeta(*cfg.Beta); err != nil {
			return nil, err
		}
	}
	if cfg.Decay <= 0 || cfg.Decay >= 1 {
		cfg.Decay = 0.8
	}
	if cfg.Iterations < 1 {
		cfg.Iterations = 10
	}

	train, heldOut := sents, []ngram.Sentence(nil)
	search := cfg.Beta == nil && n > 1
	if search {
		train, heldOut = SplitHeldOut(sents)
	}

	counts := NewCountStore(n, AllOrderCounts, train)
	m := &BackOffModel{
		n:      n,
		counts: counts,
		v:      counts.VocabularySize(),
		addOne: cfg.AddOne,
	}

	switch {
	case cfg.Beta != nil:
		m.setBeta(*cfg.Beta)
	case search:
		beta, trace := searchBeta(m, heldOut, cfg.Decay, cfg.Iterations, logger)
		m.trace = trace
		m.setBeta(beta)
	default:
		m.setBeta(defaultBeta)
	}

	logger.Info("Built back-off model",
		zap.Int("n", n),
		zap.Int("train_sentences", len(train)),
		zap.Int("held_out_sentences", len(heldOut)),
		zap.Float64("beta", m.beta),
		zap.Int("cached_contexts", len(m.cache.continuations)),
	)
	return m, nil
}

func (m *BackOffModel) N() int                 { return m.n }
func (m *BackOffModel) Kind() Kind             { return KindBackOff }
func (m *BackOffModel) Counts() *CountStore    { return m.counts }
func (m *BackOffModel) Count(t []string) int64 { return m.counts.Count(t) }

// Beta returns the fitted discount
func (m *BackOffModel) Beta() float64 { return m.beta }

// Trace returns the held-out log-likelihood of every beta tried during fitting
func (m *BackOffModel) Trace() []SearchStep { return m.trace }

// setBeta fixes the discount and rebuilds every cache that depends on it.
// Contexts are processed by increasing length because each denominator
// needs the lower-order probabilities.
func (m *BackOffModel) setBeta(beta float64) {
	m.beta = beta
	m.cache = backOffCache{
		continuations: make(map[string][]string),
		denominators:  make(map[string]float64),
	}

	for length := 1; length < m.n; length++ {
		for _, context := range m.counts.Contexts(length) {
			key := context.Key()
			cont := m.counts.Continuations(context)
			m.cache.continuations[key] = cont

			mass := 0.0
			for _, token := range cont {
				mass += m.prob(token, context[1:])
			}
			m.cache.denominators[key] = 1 - mass
		}
	}
}

// CondProb returns the back-off probability of token given n-1 previous tokens
func (m *BackOffModel) CondProb(token string, context []string) float64 {
	checkContext(m.n, context)
	return m.prob(token, context)
}

func (m *BackOffModel) prob(token string, context []string) float64 {
	if len(context) == 0 {
		num := float64(m.counts.Count([]string{token}))
		den := float64(m.counts.Total())
		if m.addOne {
			return (num + 1) / (den + float64(m.v) + 1)
		}
		if den == 0 {
			return 0
		}
		return num / den
	}

	if c := m.counts.Count(context); c > 0 {
		if tc := m.counts.Count(extend(context, token)); tc > 0 {
			if m.saturated(context) {
				return float64(tc) / float64(c)
			}
			return (float64(tc) - m.beta) / float64(c)
		}
	}

	denom := m.Denom(context)
	if denom <= minDenominator {
		return 0
	}
	return m.Alpha(context) / denom * m.prob(token, context[1:])
}

// A returns the tokens observed after the context
func (m *BackOffModel) A(context []string) []string {
	return m.cache.continuations[ngram.NGram(context).Key()]
}

// Alpha returns the probability mass withheld by discounting after the context.
// Saturated contexts are not discounted.
func (m *BackOffModel) Alpha(context []string) float64 {
	cont := m.A(context)
	if len(cont) == 0 {
		return 1
	}
	if m.saturated(context) {
		return 0
	}
	return m.beta * float64(len(cont)) / float64(m.counts.Count(context))
}

// Denom returns the lower-order mass left for tokens outside A(context)
func (m *BackOffModel) Denom(context []string) float64 {
	if d, ok := m.cache.denominators[ngram.NGram(context).Key()]; ok {
		return d
	}
	return 1
}

// saturated reports whether A(context) already covers every token the lower
// order can predict, leaving nowhere to hand discounted mass
func (m *BackOffModel) saturated(context []string) bool {
	d, ok := m.cache.denominators[ngram.NGram(context).Key()]
	return ok && d <= minDenominator
}

// Support returns the vocabulary plus the end marker
func (m *BackOffModel) Support(context []string) []string {
	return predictable(m.counts)
}
