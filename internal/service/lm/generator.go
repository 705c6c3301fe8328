package lm

import (
	"math"
	"math/rand"
	"sort"

	"lm-go/internal/model/ngram"

	"go.uber.org/zap"
)

// maxSentenceTokens bounds generated sentences of smoothed models, which can
// keep drawing tokens other than the end marker
const maxSentenceTokens = 1000

// massTolerance is the largest deviation from 1 a context's distribution may
// show before it is reported
const massTolerance = 1e-9

// TokenProb is one entry of a next-token distribution
type TokenProb struct {
	Token string  `json:"token"`
	Prob  float64 `json:"prob"`
}

// DistributionTable holds the next-token distribution of every observed
// context, sorted by probability descending and then token ascending
type DistributionTable struct {
	model  ConditionalModel
	probs  map[string]map[string]float64
	sorted map[string][]TokenProb
	logger *zap.Logger
}

// NewDistributionTable builds the table from every context of length n-1 that
// has at least one observed continuation
func NewDistributionTable(model ConditionalModel, logger *zap.Logger) *DistributionTable {
	if logger == nil {
		logger = zap.NewNop()
	}
	table := &DistributionTable{
		model:  model,
		probs:  make(map[string]map[string]float64),
		sorted: make(map[string][]TokenProb),
		logger: logger,
	}

	for _, context := range model.Counts().Contexts(model.N() - 1) {
		dist := distribution(model, context)
		table.checkMass(context, dist)
		key := context.Key()
		table.sorted[key] = dist

		probs := make(map[string]float64, len(dist))
		for _, tp := range dist {
			probs[tp.Token] = tp.Prob
		}
		table.probs[key] = probs
	}
	return table
}

// distribution evaluates the model over its support for one context
func distribution(model ConditionalModel, context []string) []TokenProb {
	support := model.Support(context)
	dist := make([]TokenProb, 0, len(support))
	for _, token := range support {
		if p := model.CondProb(token, context); p > 0 {
			dist = append(dist, TokenProb{Token: token, Prob: p})
		}
	}
	sort.Slice(dist, func(i, j int) bool {
		if dist[i].Prob != dist[j].Prob {
			return dist[i].Prob > dist[j].Prob
		}
		return dist[i].Token < dist[j].Token
	})
	return dist
}

// mass returns the total probability of a distribution
func mass(dist []TokenProb) float64 {
	total := 0.0
	for _, tp := range dist {
		total += tp.Prob
	}
	return total
}

func (t *DistributionTable) checkMass(context []string, dist []TokenProb) {
	if len(dist) == 0 {
		return
	}
	if total := mass(dist); math.Abs(total-1) > massTolerance {
		t.logger.Warn("Next-token distribution does not sum to one",
			zap.String("kind", string(t.model.Kind())),
			zap.Strings("context", context),
			zap.Float64("mass", total),
		)
	}
}

// Contexts returns the number of contexts in the table
func (t *DistributionTable) Contexts() int {
	return len(t.sorted)
}

// Probs returns token -> probability for a context, nil if it was never observed
func (t *DistributionTable) Probs(context []string) map[string]float64 {
	return t.probs[ngram.NGram(context).Key()]
}

// Sorted returns the sorted distribution for a context. Contexts missing from
// the table are evaluated on the fly and not stored.
func (t *DistributionTable) Sorted(context []string) []TokenProb {
	if dist, ok := t.sorted[ngram.NGram(context).Key()]; ok {
		return dist
	}
	dist := distribution(t.model, context)
	t.checkMass(context, dist)
	return dist
}

// Generator samples tokens and sentences from a fitted model
type Generator struct {
	n     int
	table *DistributionTable
	rng   *rand.Rand
}

// NewGenerator builds the distribution table of the model and seeds the sampler
func NewGenerator(model ConditionalModel, seed int64, logger *zap.Logger) *Generator {
	return &Generator{
		n:     model.N(),
		table: NewDistributionTable(model, logger),
		rng:   rand.New(rand.NewSource(seed)),
	}
}

// WithSeed returns a generator sharing the same table with a fresh random source
func (g *Generator) WithSeed(seed int64) *Generator {
	return &Generator{
		n:     g.n,
		table: g.table,
		rng:   rand.New(rand.NewSource(seed)),
	}
}

// Table returns the distribution table
func (g *Generator) Table() *DistributionTable {
	return g.table
}

// GenerateToken draws a token after the given n-1 previous tokens. The draw
// is scaled by the distribution's mass so rounding never favours the last token.
func (g *Generator) GenerateToken(context []string) string {
	checkContext(g.n, context)

	dist := g.table.Sorted(context)
	if len(dist) == 0 {
		return ngram.EndTag
	}

	u := g.rng.Float64() * mass(dist)
	cumulative := 0.0
	for _, tp := range dist {
		cumulative += tp.Prob
		if cumulative >= u {
			return tp.Token
		}
	}
	return dist[len(dist)-1].Token
}

// GenerateSentence draws tokens starting from n-1 start markers until the end
// marker is drawn. Markers are not part of the result.
func (g *Generator) GenerateSentence() ngram.Sentence {
	context := make([]string, g.n-1)
	for i := range context {
		context[i] = ngram.StartTag
	}

	var sent ngram.Sentence
	for len(sent) < maxSentenceTokens {
		token := g.GenerateToken(context)
		if token == ngram.EndTag {
			break
		}
		sent = append(sent, token)
		if g.n > 1 {
			context = append(context[1:], token)
		}
	}
	return sent
}
