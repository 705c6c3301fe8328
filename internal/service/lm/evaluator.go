package lm

import (
	"math"

	"lm-go/internal/model/ngram"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// log2 treats log2(0) as negative infinity
func log2(x float64) float64 {
	if x == 0 {
		return math.Inf(-1)
	}
	return math.Log2(x)
}

// SentenceProbability multiplies the conditional probability of every token
// of the tagged sentence. It stops as soon as the product reaches zero, since
// the next context may never have been observed.
func SentenceProbability(m ConditionalModel, sent ngram.Sentence) float64 {
	n := m.N()
	tagged := sent.Tag(n)

	probability := 1.0
	for i := n - 1; i < len(tagged); i++ {
		if probability == 0 {
			break
		}
		probability *= m.CondProb(tagged[i], tagged[i-n+1:i])
	}
	return probability
}

// SentenceLogProbability sums the log2 conditional probabilities of the
// tagged sentence, stopping at negative infinity
func SentenceLogProbability(m ConditionalModel, sent ngram.Sentence) float64 {
	n := m.N()
	tagged := sent.Tag(n)
	negInf := math.Inf(-1)

	logProb := 0.0
	for i := n - 1; i < len(tagged); i++ {
		if logProb == negInf {
			break
		}
		logProb += log2(m.CondProb(tagged[i], tagged[i-n+1:i]))
	}
	return logProb
}

// LogProbability returns the log2 probability of a corpus
func LogProbability(m ConditionalModel, sents []ngram.Sentence) float64 {
	total := 0.0
	for _, sent := range sents {
		total += SentenceLogProbability(m, sent)
	}
	return total
}

// tokenCount returns the number of untagged tokens of a corpus
func tokenCount(sents []ngram.Sentence) int {
	total := 0
	for _, sent := range sents {
		total += len(sent)
	}
	return total
}

// CrossEntropy returns the corpus log-probability divided by its untagged token count
func CrossEntropy(m ConditionalModel, sents []ngram.Sentence) float64 {
	tokens := tokenCount(sents)
	if tokens == 0 {
		return 0
	}
	return LogProbability(m, sents) / float64(tokens)
}

// Perplexity returns 2 raised to the negative cross-entropy
func Perplexity(m ConditionalModel, sents []ngram.Sentence) float64 {
	return math.Pow(2, -CrossEntropy(m, sents))
}

// EvaluationReport summarizes a model on a corpus
type EvaluationReport struct {
	Sentences       int          `json:"sentences"`
	Tokens          int          `json:"tokens"`
	LogProbability  Float        `json:"log_probability"`
	CrossEntropy    Float        `json:"cross_entropy"`
	Perplexity      Float        `json:"perplexity"`
	ZeroProbability int          `json:"zero_probability_sentences"`
	Entropy         EntropyStats `json:"entropy"`
}

// EntropyStats contains per-sentence entropy statistics for z-score calculation
type EntropyStats struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Count  int     `json:"count"`
}

// ZScore returns how many standard deviations an entropy lies from the mean.
// Without spread a finite entropy scores 0 and an infinite one keeps its sign.
func (s EntropyStats) ZScore(entropy float64) float64 {
	if s.StdDev == 0 {
		if math.IsInf(entropy, 0) || math.IsNaN(entropy) {
			return entropy
		}
		return 0
	}
	return (entropy - s.Mean) / s.StdDev
}

// SentenceEntropy returns the negative log2 probability per token of a sentence
func SentenceEntropy(m ConditionalModel, sent ngram.Sentence) float64 {
	if len(sent) == 0 {
		return 0
	}
	return -SentenceLogProbability(m, sent) / float64(len(sent))
}

// Evaluate computes corpus-level metrics and per-sentence entropy statistics
func Evaluate(m ConditionalModel, sents []ngram.Sentence) EvaluationReport {
	report := EvaluationReport{
		Sentences: len(sents),
		Tokens:    tokenCount(sents),
	}

	total := 0.0
	entropies := make([]float64, 0, len(sents))
	for _, sent := range sents {
		logProb := SentenceLogProbability(m, sent)
		total += logProb
		if math.IsInf(logProb, -1) {
			report.ZeroProbability++
			continue
		}
		if len(sent) > 0 {
			entropies = append(entropies, -logProb/float64(len(sent)))
		}
	}

	crossEntropy := 0.0
	if report.Tokens > 0 {
		crossEntropy = total / float64(report.Tokens)
	}
	report.LogProbability = Float(total)
	report.CrossEntropy = Float(crossEntropy)
	report.Perplexity = Float(math.Pow(2, -crossEntropy))
	report.Entropy = CalculateEntropyStats(entropies)
	return report
}

// CalculateEntropyStats computes mean, population std-dev, min and max
func CalculateEntropyStats(entropies []float64) EntropyStats {
	if len(entropies) == 0 {
		return EntropyStats{}
	}
	return EntropyStats{
		Mean:   stat.Mean(entropies, nil),
		StdDev: math.Sqrt(stat.PopVariance(entropies, nil)),
		Min:    floats.Min(entropies),
		Max:    floats.Max(entropies),
		Count:  len(entropies),
	}
}
