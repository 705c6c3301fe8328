package lm

import (
	"math"

	"lm-go/internal/model/ngram"

	"go.uber.org/zap"
)

const (
	defaultGamma   = 1.0
	defaultBeta    = 0.0
	heldOutRatio   = 0.9
	maxGammaProbes = 20
)

// SearchStep records the held-out log-likelihood of one hyperparameter value
type SearchStep struct {
	Value         float64 `json:"value"`
	LogLikelihood Float   `json:"log_likelihood"`
}

// SplitHeldOut reserves the last tenth of the sentences for hyperparameter search
func SplitHeldOut(sents []ngram.Sentence) (train, heldOut []ngram.Sentence) {
	cut := int(heldOutRatio * float64(len(sents)))
	return sents[:cut], sents[cut:]
}

// searchGamma probes gamma = 1, base, base^2, ... while the held-out
// log-likelihood improves, then refines inside the bracket by hill climbing
// with a halving step
func searchGamma(m *InterpolatedModel, heldOut []ngram.Sentence, base float64, steps int, logger *zap.Logger) (float64, []SearchStep) {
	if m.n == 1 {
		return defaultGamma, nil
	}
	if len(heldOut) == 0 {
		logger.Warn("No held-out sentences, using default gamma", zap.Float64("gamma", defaultGamma))
		return defaultGamma, nil
	}

	var trace []SearchStep
	evaluate := func(gamma float64) float64 {
		m.gamma = gamma
		ll := LogProbability(m, heldOut)
		trace = append(trace, SearchStep{Value: gamma, LogLikelihood: Float(ll)})
		logger.Debug("Gamma search step", zap.Float64("gamma", gamma), zap.Float64("log_likelihood", ll))
		return ll
	}

	gamma := defaultGamma
	best := evaluate(gamma)
	for i := 0; i < maxGammaProbes; i++ {
		next := gamma * base
		ll := evaluate(next)
		if ll <= best {
			break
		}
		gamma, best = next, ll
	}

	lo, hi := gamma/base, gamma*base
	step := (hi - lo) / 4
	for i := 0; i < steps; i++ {
		for _, candidate := range []float64{gamma - step, gamma + step} {
			if candidate <= lo || candidate >= hi || candidate <= 0 {
				continue
			}
			if ll := evaluate(candidate); ll > best {
				gamma, best = candidate, ll
			}
		}
		step /= 2
	}

	m.gamma = gamma
	logger.Info("Selected gamma",
		zap.Float64("gamma", gamma),
		zap.Float64("log_likelihood", best),
		zap.Int("evaluations", len(trace)),
	)
	return gamma, trace
}

// searchBeta tries beta = 1 - decay^i for i = 1..iterations and stops at the
// first candidate that does not improve the held-out log-likelihood
func searchBeta(m *BackOffModel, heldOut []ngram.Sentence, decay float64, iterations int, logger *zap.Logger) (float64, []SearchStep) {
	if m.n == 1 {
		return defaultBeta, nil
	}
	if len(heldOut) == 0 {
		logger.Warn("No held-out sentences, using default beta", zap.Float64("beta", defaultBeta))
		return defaultBeta, nil
	}

	var trace []SearchStep
	bestBeta := defaultBeta
	best := math.Inf(-1)
	for i := 1; i <= iterations; i++ {
		beta := 1 - math.Pow(decay, float64(i))
		m.setBeta(beta)
		ll := LogProbability(m, heldOut)
		trace = append(trace, SearchStep{Value: beta, LogLikelihood: Float(ll)})
		logger.Debug("Beta search step", zap.Float64("beta", beta), zap.Float64("log_likelihood", ll))

		if i > 1 && ll <= best {
			break
		}
		bestBeta, best = beta, ll
	}

	logger.Info("Selected beta",
		zap.Float64("beta", bestBeta),
		zap.Float64("log_likelihood", best),
		zap.Int("evaluations", len(trace)),
	)
	return bestBeta, trace
}
