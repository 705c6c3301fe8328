package lm

import (
	"fmt"

	"lm-go/internal/model/ngram"

	"go.uber.org/zap"
)

// Kind identifies a smoothing strategy
type Kind string

const (
	KindUnsmoothed   Kind = "ngram"
	KindAddOne       Kind = "addone"
	KindInterpolated Kind = "interpolated"
	KindBackOff      Kind = "backoff"
)

// ParseKind validates a model kind name
func ParseKind(name string) (Kind, error) {
	switch Kind(name) {
	case KindUnsmoothed, KindAddOne, KindInterpolated, KindBackOff:
		return Kind(name), nil
	case "":
		return KindUnsmoothed, nil
	default:
		return "", fmt.Errorf("unknown model kind: %s", name)
	}
}

// ConditionalModel is the capability shared by every smoothing variant
type ConditionalModel interface {
	// N returns the order of the model
	N() int

	// Kind returns the smoothing strategy
	Kind() Kind

	// CondProb returns the probability of token given exactly n-1 previous tokens.
	// It panics if the context has the wrong length.
	CondProb(token string, context []string) float64

	// Count returns the count of an n-gram or shorter key
	Count(tokens []string) int64

	// Counts returns the underlying count store
	Counts() *CountStore

	// Support returns the tokens the model distributes probability over
	// after the given context
	Support(context []string) []string
}

// checkContext enforces the context length precondition
func checkContext(n int, context []string) {
	if len(context) != n-1 {
		panic(fmt.Sprintf("lm: context has %d tokens, model of order %d needs %d", len(context), n, n-1))
	}
}

// extend returns context+token without aliasing the caller's slice
func extend(context []string, token string) []string {
	key := make([]string, len(context)+1)
	copy(key, context)
	key[len(context)] = token
	return key
}

// Options selects and configures a smoothing model
type Options struct {
	Kind   Kind     `json:"kind" yaml:"kind"`
	N      int      `json:"n" yaml:"n"`
	Gamma  *float64 `json:"gamma,omitempty" yaml:"gamma"`
	Beta   *float64 `json:"beta,omitempty" yaml:"beta"`
	AddOne *bool    `json:"addone,omitempty" yaml:"addone"`
}

// DefaultOptions returns a trigram unsmoothed configuration
func DefaultOptions() Options {
	return Options{Kind: KindUnsmoothed, N: 3}
}

// Train builds the model selected by opts from the training sentences
func Train(sents []ngram.Sentence, opts Options, logger *zap.Logger) (ConditionalModel, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch opts.Kind {
	case KindUnsmoothed, "":
		return NewUnsmoothedModel(opts.N, sents)
	case KindAddOne:
		return NewAddOneModel(opts.N, sents)
	case KindInterpolated:
		cfg := DefaultInterpolationConfig()
		cfg.Gamma = opts.Gamma
		if opts.AddOne != nil {
			cfg.AddOne = *opts.AddOne
		}
		return NewInterpolatedModel(opts.N, sents, cfg, logger)
	case KindBackOff:
		cfg := DefaultBackOffConfig()
		cfg.Beta = opts.Beta
		if opts.AddOne != nil {
			cfg.AddOne = *opts.AddOne
		}
		return NewBackOffModel(opts.N, sents, cfg, logger)
	default:
		return nil, fmt.Errorf("unknown model kind: %s", opts.Kind)
	}
}

// UnsmoothedModel estimates conditional probabilities by maximum likelihood
type UnsmoothedModel struct {
	n      int
	counts *CountStore
}

// NewUnsmoothedModel counts the sentences for an unsmoothed model of order n
func NewUnsmoothedModel(n int, sents []ngram.Sentence) (*UnsmoothedModel, error) {
	if n < 1 {
		return nil, fmt.Errorf("model order must be positive, got %d", n)
	}
	return &UnsmoothedModel{n: n, counts: NewCountStore(n, PrefixCounts, sents)}, nil
}

func (m *UnsmoothedModel) N() int                 { return m.n }
func (m *UnsmoothedModel) Kind() Kind             { return KindUnsmoothed }
func (m *UnsmoothedModel) Counts() *CountStore    { return m.counts }
func (m *UnsmoothedModel) Count(t []string) int64 { return m.counts.Count(t) }

// CondProb returns count(context+token)/count(context). An unseen context yields NaN.
func (m *UnsmoothedModel) CondProb(token string, context []string) float64 {
	checkContext(m.n, context)
	return float64(m.counts.Count(extend(context, token))) / float64(m.counts.Count(context))
}

// Support returns the observed continuations of the context
func (m *UnsmoothedModel) Support(context []string) []string {
	return m.counts.Continuations(context)
}

// AddOneModel applies Laplace smoothing on top of the unsmoothed counts
type AddOneModel struct {
	n      int
	counts *CountStore
	v      int // Vocabulary size, reserved markers excluded
}

// NewAddOneModel counts the sentences for an add-one model of order n
func NewAddOneModel(n int, sents []ngram.Sentence) (*AddOneModel, error) {
	if n < 1 {
		return nil, fmt.Errorf("model order must be positive, got %d", n)
	}
	counts := NewCountStore(n, PrefixCounts, sents)
	return &AddOneModel{n: n, counts: counts, v: counts.VocabularySize()}, nil
}

func (m *AddOneModel) N() int                 { return m.n }
func (m *AddOneModel) Kind() Kind             { return KindAddOne }
func (m *AddOneModel) Counts() *CountStore    { return m.counts }
func (m *AddOneModel) Count(t []string) int64 { return m.counts.Count(t) }

// V returns the vocabulary size used in the denominator
func (m *AddOneModel) V() int { return m.v }

// CondProb returns (count(context+token)+1)/(count(context)+V+1)
func (m *AddOneModel) CondProb(token string, context []string) float64 {
	checkContext(m.n, context)
	num := float64(m.counts.Count(extend(context, token))) + 1
	den := float64(m.counts.Count(context)) + float64(m.v) + 1
	return num / den
}

// Support returns the vocabulary plus the end marker
func (m *AddOneModel) Support(context []string) []string {
	return predictable(m.counts)
}

// predictable returns every token a smoothed model can emit
func predictable(counts *CountStore) []string {
	return append(counts.Vocabulary(), ngram.EndTag)
}

// Stats returns statistics about a fitted model
func Stats(m ConditionalModel) ModelStats {
	stats := ModelStats{
		Kind:  m.Kind(),
		Store: m.Counts().Stats(),
	}
	switch typed := m.(type) {
	case *InterpolatedModel:
		stats.Gamma = typed.Gamma()
		stats.AddOne = typed.addOne
	case *BackOffModel:
		stats.Beta = typed.Beta()
		stats.AddOne = typed.addOne
	case *AddOneModel:
		stats.AddOne = true
	}
	return stats
}

// ModelStats contains statistics about a fitted model
type ModelStats struct {
	Kind   Kind       `json:"kind"`
	Gamma  float64    `json:"gamma,omitempty"`
	Beta   float64    `json:"beta,omitempty"`
	AddOne bool       `json:"addone"`
	Store  StoreStats `json:"store"`
}
