package lm

import (
	"testing"

	"lm-go/internal/model/ngram"

	"go.uber.org/zap"
)

func mustInterpolated(t *testing.T, n int, gamma float64) *InterpolatedModel {
	t.Helper()
	cfg := DefaultInterpolationConfig()
	cfg.Gamma = &gamma
	m, err := NewInterpolatedModel(n, spanishCorpus(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to build interpolated model: %v", err)
	}
	return m
}

func TestInterpolatedModel_CondProb(t *testing.T) {
	bigram := mustInterpolated(t, 2, 1.0)
	// 2/3 * 1/2 + 1/3 * 2/21
	if p := bigram.CondProb("pescado", key("come")); !almostEqual(p, 23.0/63) {
		t.Fatalf("Expected 23/63, got %v", p)
	}
	// Unseen context falls through to the add-one unigram
	if p := bigram.CondProb("come", key("salame")); !almostEqual(p, 3.0/21) {
		t.Fatalf("Expected 3/21, got %v", p)
	}

	trigram := mustInterpolated(t, 3, 1.0)
	// 2/3 * 1/2 + 2/9 * 1/2 + 1/9 * 2/21
	if p := trigram.CondProb("el", key("<s>", "<s>")); !almostEqual(p, 86.0/189) {
		t.Fatalf("Expected 86/189, got %v", p)
	}
}

func TestInterpolatedModel_UnigramIgnoresGamma(t *testing.T) {
	low := mustInterpolated(t, 1, 0.01)
	high := mustInterpolated(t, 1, 1000)

	for _, token := range []string{"el", "come", ".", "</s>", "salame"} {
		if low.CondProb(token, nil) != high.CondProb(token, nil) {
			t.Fatalf("Expected gamma to have no effect on a unigram model for %s", token)
		}
	}
}

func TestInterpolatedModel_WithoutAddOne(t *testing.T) {
	gamma := 1.0
	cfg := InterpolationConfig{Gamma: &gamma, AddOne: false}
	m, err := NewInterpolatedModel(1, spanishCorpus(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to build model: %v", err)
	}
	if p := m.CondProb("el", nil); !almostEqual(p, 1.0/12) {
		t.Fatalf("Expected 1/12, got %v", p)
	}
	if p := m.CondProb("salame", nil); p != 0 {
		t.Fatalf("Expected 0 for unseen token, got %v", p)
	}
}

func TestInterpolatedModel_NegativeGamma(t *testing.T) {
	gamma := -1.0
	cfg := DefaultInterpolationConfig()
	cfg.Gamma = &gamma
	if _, err := NewInterpolatedModel(2, spanishCorpus(), cfg, zap.NewNop()); err == nil {
		t.Fatalf("Expected error for negative gamma")
	}
}

func TestInterpolatedModel_GammaSearch(t *testing.T) {
	m, err := NewInterpolatedModel(2, spanishCorpus(), DefaultInterpolationConfig(), zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to build model: %v", err)
	}

	trace := m.Trace()
	if len(trace) < 2 {
		t.Fatalf("Expected at least two search steps, got %d", len(trace))
	}
	if trace[0].Value != 1 {
		t.Fatalf("Expected search to start at gamma 1, got %v", trace[0].Value)
	}
	if m.Gamma() <= 0 {
		t.Fatalf("Expected positive gamma, got %v", m.Gamma())
	}

	// Only the first sentence is used for counting
	if got := m.Count(key("la")); got != 0 {
		t.Fatalf("Expected held-out sentence to be excluded from counts, got %d", got)
	}

	best := trace[0].LogLikelihood
	for _, step := range trace {
		if step.LogLikelihood > best {
			best = step.LogLikelihood
		}
	}
	var selected Float
	for _, step := range trace {
		if step.Value == m.Gamma() {
			selected = step.LogLikelihood
		}
	}
	if selected != best {
		t.Fatalf("Expected selected gamma to have the best log-likelihood %v, got %v", best, selected)
	}
}

func TestInterpolatedModel_UnigramSkipsSearch(t *testing.T) {
	m, err := NewInterpolatedModel(1, spanishCorpus(), DefaultInterpolationConfig(), zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to build model: %v", err)
	}
	if m.Trace() != nil {
		t.Fatalf("Expected no search for a unigram model")
	}
	// Every sentence is counted
	if got := m.Count(key("la")); got != 1 {
		t.Fatalf("Expected count 1, got %d", got)
	}
}

func TestSplitHeldOut(t *testing.T) {
	sents := make([]ngram.Sentence, 10)
	train, heldOut := SplitHeldOut(sents)
	if len(train) != 9 || len(heldOut) != 1 {
		t.Fatalf("Expected 9/1 split, got %d/%d", len(train), len(heldOut))
	}

	train, heldOut = SplitHeldOut(sents[:2])
	if len(train) != 1 || len(heldOut) != 1 {
		t.Fatalf("Expected 1/1 split, got %d/%d", len(train), len(heldOut))
	}
}
