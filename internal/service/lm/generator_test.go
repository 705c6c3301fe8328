package lm

import (
	"math"
	"strings"
	"testing"

	"lm-go/internal/model/ngram"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestDistributionTable_Unsmoothed(t *testing.T) {
	table := NewDistributionTable(mustUnsmoothed(t, 2), zap.NewNop())

	probs := table.Probs(key("come"))
	if len(probs) != 2 || probs["pescado"] != 0.5 || probs["salmón"] != 0.5 {
		t.Fatalf("Expected {pescado: 0.5, salmón: 0.5}, got %v", probs)
	}

	sorted := table.Sorted(key("<s>"))
	if len(sorted) != 2 || sorted[0].Token != "el" || sorted[1].Token != "la" {
		t.Fatalf("Expected [el la] ordered by token on ties, got %v", sorted)
	}

	if probs := table.Probs(key("salame")); probs != nil {
		t.Fatalf("Expected no entry for unseen context, got %v", probs)
	}
	if table.Contexts() != 9 {
		t.Fatalf("Expected 9 contexts, got %d", table.Contexts())
	}
}

func TestDistributionTable_SortedByProbability(t *testing.T) {
	table := NewDistributionTable(mustUnsmoothed(t, 1), zap.NewNop())

	sorted := table.Sorted(nil)
	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1], sorted[i]
		if prev.Prob < cur.Prob || (prev.Prob == cur.Prob && prev.Token > cur.Token) {
			t.Fatalf("Expected descending probability then ascending token, got %v", sorted)
		}
	}
	if sorted[0].Prob != 2.0/12 {
		t.Fatalf("Expected the most likely token to have probability 1/6, got %v", sorted[0])
	}
}

func TestDistributionTable_SmoothedUnseenContext(t *testing.T) {
	table := NewDistributionTable(mustAddOne(t, 2), zap.NewNop())
	contexts := table.Contexts()

	dist := table.Sorted(key("salame"))
	if len(dist) != 9 {
		t.Fatalf("Expected 9 tokens for an unseen context, got %d", len(dist))
	}
	sum := 0.0
	for _, tp := range dist {
		sum += tp.Prob
	}
	if !almostEqual(sum, 1) {
		t.Fatalf("Expected distribution to sum to 1, got %v", sum)
	}
	if table.Contexts() != contexts {
		t.Fatalf("Expected unseen context not to be stored")
	}
}

func TestGenerator_GenerateSentence(t *testing.T) {
	valid := map[string]bool{
		"el gato come pescado .": true,
		"el gato come salmón .":  true,
		"la gata come pescado .": true,
		"la gata come salmón .":  true,
	}

	g := NewGenerator(mustUnsmoothed(t, 2), 42, zap.NewNop())
	for i := 0; i < 50; i++ {
		sent := strings.Join(g.GenerateSentence(), " ")
		if !valid[sent] {
			t.Fatalf("Generated sentence %q is not possible under the model", sent)
		}
	}

	g3 := NewGenerator(mustUnsmoothed(t, 3), 7, zap.NewNop())
	for i := 0; i < 20; i++ {
		sent := strings.Join(g3.GenerateSentence(), " ")
		if sent != "el gato come pescado ." && sent != "la gata come salmón ." {
			t.Fatalf("Generated sentence %q is not a training sentence", sent)
		}
	}
}

func TestGenerator_Deterministic(t *testing.T) {
	first := NewGenerator(mustUnsmoothed(t, 1), 1234, zap.NewNop())
	second := first.WithSeed(1234)

	for i := 0; i < 10; i++ {
		a := strings.Join(first.GenerateSentence(), " ")
		b := strings.Join(second.GenerateSentence(), " ")
		if a != b {
			t.Fatalf("Expected identical sentences for the same seed, got %q and %q", a, b)
		}
	}
	if first.Table() != second.Table() {
		t.Fatalf("Expected WithSeed to share the distribution table")
	}
}

func TestGenerator_Frequencies(t *testing.T) {
	g := NewGenerator(mustUnsmoothed(t, 2), 99, zap.NewNop())

	const draws = 10000
	counts := map[string]int{}
	for i := 0; i < draws; i++ {
		counts[g.GenerateToken(key("come"))]++
	}
	if len(counts) != 2 {
		t.Fatalf("Expected only pescado and salmón, got %v", counts)
	}
	if freq := float64(counts["pescado"]) / draws; math.Abs(freq-0.5) > 0.03 {
		t.Fatalf("Expected pescado frequency near 0.5, got %v", freq)
	}
}

func TestGenerator_SmoothedFrequencies(t *testing.T) {
	corpus := randomCorpus(17, 60)
	models := []ConditionalModel{
		mustTrain(t, corpus, Options{Kind: KindBackOff, N: 3, Beta: floatPtr(0.4)}),
		mustTrain(t, corpus, Options{Kind: KindInterpolated, N: 3, Gamma: floatPtr(1)}),
	}

	const draws = 50000
	for _, m := range models {
		core, logs := observer.New(zap.WarnLevel)
		g := NewGenerator(m, 11, zap.New(core))
		if logs.Len() != 0 {
			t.Fatalf("%s: expected every distribution to sum to 1, got %d warnings", m.Kind(), logs.Len())
		}

		contexts := [][]string{key("<s>", "<s>")}
		for _, context := range m.Counts().Contexts(2) {
			if len(contexts) == 4 {
				break
			}
			if !ngram.IsReserved(context[0]) {
				contexts = append(contexts, context)
			}
		}

		for _, context := range contexts {
			counts := map[string]int{}
			for i := 0; i < draws; i++ {
				counts[g.GenerateToken(context)]++
			}
			for _, token := range m.Support(context) {
				p := m.CondProb(token, context)
				freq := float64(counts[token]) / draws
				if math.Abs(freq-p) > 0.015 {
					t.Fatalf("%s: expected frequency of %s after %v near %v, got %v", m.Kind(), token, context, p, freq)
				}
			}
		}
	}
}

// halvedModel reports half of every probability, leaving each distribution
// with mass 0.5
type halvedModel struct {
	*UnsmoothedModel
}

func (m halvedModel) CondProb(token string, context []string) float64 {
	return m.UnsmoothedModel.CondProb(token, context) / 2
}

func TestGenerator_DeficientDistribution(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	g := NewGenerator(halvedModel{mustUnsmoothed(t, 2)}, 99, zap.New(core))

	warnings := logs.FilterMessage("Next-token distribution does not sum to one").Len()
	if warnings != g.Table().Contexts() {
		t.Fatalf("Expected a warning for each of %d contexts, got %d", g.Table().Contexts(), warnings)
	}

	const draws = 10000
	counts := map[string]int{}
	for i := 0; i < draws; i++ {
		counts[g.GenerateToken(key("come"))]++
	}
	if freq := float64(counts["pescado"]) / draws; math.Abs(freq-0.5) > 0.03 {
		t.Fatalf("Expected missing mass to be spread proportionally, got pescado frequency %v", freq)
	}
}

func TestGenerator_UnigramEndsSentences(t *testing.T) {
	g := NewGenerator(mustUnsmoothed(t, 1), 5, zap.NewNop())
	for i := 0; i < 20; i++ {
		sent := g.GenerateSentence()
		for _, token := range sent {
			if ngram.IsReserved(token) {
				t.Fatalf("Expected no markers in generated sentence, got %v", sent)
			}
		}
		if len(sent) > maxSentenceTokens {
			t.Fatalf("Expected at most %d tokens, got %d", maxSentenceTokens, len(sent))
		}
	}
}

func TestGenerator_SmoothedModelsTerminate(t *testing.T) {
	models := []ConditionalModel{
		mustAddOne(t, 2),
		mustInterpolated(t, 3, 1.0),
		mustBackOff(t, 3, 0.5),
	}
	for _, m := range models {
		g := NewGenerator(m, 3, zap.NewNop())
		for i := 0; i < 5; i++ {
			if sent := g.GenerateSentence(); len(sent) > maxSentenceTokens {
				t.Fatalf("%s: expected at most %d tokens, got %d", m.Kind(), maxSentenceTokens, len(sent))
			}
		}
	}
}
