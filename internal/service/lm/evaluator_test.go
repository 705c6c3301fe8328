package lm

import (
	"math"
	"testing"

	"lm-go/internal/model/ngram"
)

func TestSentenceProbability(t *testing.T) {
	tests := []struct {
		n        int
		sentence string
		expected float64
	}{
		{1, "el gato come pescado .", math.Pow(1.0/6, 3) * math.Pow(1.0/12, 3)},
		{1, "la la la", (1.0 / 6) * math.Pow(1.0/12, 3)},
		{2, "el gato come pescado .", 0.25},
		{2, "la gata come salmón .", 0.25},
		{2, "el gato come salmón .", 0.25},
		{2, "la gata come pescado .", 0.25},
		{2, "la la la", 0},
		{3, "el gato come pescado .", 0.5},
		{3, "el gato come salmón .", 0},
	}

	for _, tt := range tests {
		m := mustUnsmoothed(t, tt.n)
		sent := sentences(tt.sentence)[0]
		if p := SentenceProbability(m, sent); !almostEqual(p, tt.expected) {
			t.Fatalf("n=%d: expected P(%q) = %v, got %v", tt.n, tt.sentence, tt.expected, p)
		}
	}
}

func TestSentenceProbability_StopsAtZero(t *testing.T) {
	// The second context is never observed; without the early exit 0 * NaN would be NaN
	m := mustUnsmoothed(t, 2)
	if p := SentenceProbability(m, ngram.Sentence{"salame", "salame"}); p != 0 {
		t.Fatalf("Expected 0, got %v", p)
	}
}

func TestSentenceLogProbability(t *testing.T) {
	tests := []struct {
		n        int
		sentence string
		expected float64
	}{
		{1, "el gato come pescado .", 3*math.Log2(1.0/6) + 3*math.Log2(1.0/12)},
		{1, "la la la", math.Log2(1.0/6) + 3*math.Log2(1.0/12)},
		{2, "el gato come pescado .", -2},
		{3, "el gato come pescado .", -1},
	}

	for _, tt := range tests {
		m := mustUnsmoothed(t, tt.n)
		sent := sentences(tt.sentence)[0]
		if lp := SentenceLogProbability(m, sent); !almostEqual(lp, tt.expected) {
			t.Fatalf("n=%d: expected log P(%q) = %v, got %v", tt.n, tt.sentence, tt.expected, lp)
		}
	}

	m := mustUnsmoothed(t, 2)
	if lp := SentenceLogProbability(m, sentences("la la la")[0]); !math.IsInf(lp, -1) {
		t.Fatalf("Expected -Inf, got %v", lp)
	}
	m3 := mustUnsmoothed(t, 3)
	if lp := SentenceLogProbability(m3, sentences("el gato come salmón .")[0]); !math.IsInf(lp, -1) {
		t.Fatalf("Expected -Inf, got %v", lp)
	}
}

func TestCrossEntropyAndPerplexity(t *testing.T) {
	m := mustUnsmoothed(t, 1)
	test := sentences("el gato come pescado .", "la gata come salmón .", "la la la")

	expectedLogProb := 0.0
	for _, sent := range test {
		expectedLogProb += SentenceLogProbability(m, sent)
	}
	if lp := LogProbability(m, test); !almostEqual(lp, expectedLogProb) {
		t.Fatalf("Expected log probability %v, got %v", expectedLogProb, lp)
	}

	expectedEntropy := expectedLogProb / 13
	if ce := CrossEntropy(m, test); !almostEqual(ce, expectedEntropy) {
		t.Fatalf("Expected cross-entropy %v, got %v", expectedEntropy, ce)
	}
	if pp := Perplexity(m, test); !almostEqual(pp, math.Pow(2, -expectedEntropy)) {
		t.Fatalf("Expected perplexity %v, got %v", math.Pow(2, -expectedEntropy), pp)
	}

	if ce := CrossEntropy(m, nil); ce != 0 {
		t.Fatalf("Expected cross-entropy 0 for an empty corpus, got %v", ce)
	}
}

func TestEvaluate(t *testing.T) {
	m := mustUnsmoothed(t, 2)
	test := sentences("el gato come pescado .", "la gata come salmón .", "la la la")

	report := Evaluate(m, test)
	if report.Sentences != 3 || report.Tokens != 13 {
		t.Fatalf("Expected 3 sentences and 13 tokens, got %d and %d", report.Sentences, report.Tokens)
	}
	if report.ZeroProbability != 1 {
		t.Fatalf("Expected 1 zero-probability sentence, got %d", report.ZeroProbability)
	}
	if !math.IsInf(float64(report.LogProbability), -1) {
		t.Fatalf("Expected -Inf log probability, got %v", report.LogProbability)
	}
	if report.Perplexity != 0 && !math.IsInf(float64(report.Perplexity), 1) {
		t.Fatalf("Expected infinite perplexity, got %v", report.Perplexity)
	}

	// Both finite sentences have entropy 2/5
	if report.Entropy.Count != 2 {
		t.Fatalf("Expected entropy stats over 2 sentences, got %d", report.Entropy.Count)
	}
	if !almostEqual(report.Entropy.Mean, 0.4) || report.Entropy.StdDev != 0 {
		t.Fatalf("Expected mean 0.4 and no deviation, got %+v", report.Entropy)
	}
}

func TestEntropyStats(t *testing.T) {
	stats := CalculateEntropyStats([]float64{1, 2, 3, 4})

	if !almostEqual(stats.Mean, 2.5) {
		t.Fatalf("Expected mean 2.5, got %v", stats.Mean)
	}
	if !almostEqual(stats.StdDev, math.Sqrt(1.25)) {
		t.Fatalf("Expected population std-dev sqrt(1.25), got %v", stats.StdDev)
	}
	if stats.Min != 1 || stats.Max != 4 || stats.Count != 4 {
		t.Fatalf("Expected min 1, max 4, count 4, got %+v", stats)
	}
	if z := stats.ZScore(2.5 + math.Sqrt(1.25)); !almostEqual(z, 1) {
		t.Fatalf("Expected z-score 1, got %v", z)
	}

	empty := CalculateEntropyStats(nil)
	if empty.Count != 0 || empty.ZScore(3) != 0 {
		t.Fatalf("Expected empty stats with zero z-score, got %+v", empty)
	}
}

func TestEntropyStats_ZScoreWithoutSpread(t *testing.T) {
	stats := EntropyStats{Mean: 0.4, Min: 0.4, Max: 0.4, Count: 2}

	if z := stats.ZScore(0.4); z != 0 {
		t.Fatalf("Expected z-score 0 at the mean, got %v", z)
	}
	if z := stats.ZScore(math.Inf(1)); !math.IsInf(z, 1) {
		t.Fatalf("Expected +Inf z-score for infinite entropy, got %v", z)
	}
	if z := stats.ZScore(math.NaN()); !math.IsNaN(z) {
		t.Fatalf("Expected NaN z-score for NaN entropy, got %v", z)
	}

	spread := EntropyStats{Mean: 1, StdDev: 0.5, Count: 3}
	if z := spread.ZScore(math.Inf(1)); !math.IsInf(z, 1) {
		t.Fatalf("Expected +Inf z-score with spread, got %v", z)
	}
}

func TestFloat_JSON(t *testing.T) {
	for _, v := range []float64{1.5, math.Inf(-1), math.Inf(1)} {
		data, err := Float(v).MarshalJSON()
		if err != nil {
			t.Fatalf("Failed to marshal %v: %v", v, err)
		}
		var decoded Float
		if err := decoded.UnmarshalJSON(data); err != nil {
			t.Fatalf("Failed to unmarshal %s: %v", data, err)
		}
		if float64(decoded) != v {
			t.Fatalf("Expected %v, got %v", v, decoded)
		}
	}

	data, _ := Float(math.NaN()).MarshalJSON()
	if string(data) != `"NaN"` {
		t.Fatalf(`Expected "NaN", got %s`, data)
	}
}
