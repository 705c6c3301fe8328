package lm

import (
	"math"
	"strings"
	"testing"

	"lm-go/internal/model/ngram"
)

func sentences(lines ...string) []ngram.Sentence {
	sents := make([]ngram.Sentence, 0, len(lines))
	for _, line := range lines {
		sents = append(sents, ngram.Sentence(strings.Fields(line)))
	}
	return sents
}

func spanishCorpus() []ngram.Sentence {
	return sentences("el gato come pescado .", "la gata come salmón .")
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func key(tokens ...string) []string {
	return tokens
}

func TestCountStore_PrefixCounts(t *testing.T) {
	tests := []struct {
		n      int
		counts map[string]int64
	}{
		{
			n: 1,
			counts: map[string]int64{
				"":        12,
				"el":      1,
				"gato":    1,
				"come":    2,
				"pescado": 1,
				".":       2,
				"</s>":    2,
				"la":      1,
				"gata":    1,
				"salmón":  1,
			},
		},
		{
			n: 2,
			counts: map[string]int64{
				"<s>":          2,
				"el":           1,
				"come":         2,
				".":            2,
				"</s>":         0,
				"<s> el":       1,
				"el gato":      1,
				"gato come":    1,
				"come pescado": 1,
				"pescado .":    1,
				". </s>":       2,
				"<s> la":       1,
				"come salmón":  1,
			},
		},
		{
			n: 3,
			counts: map[string]int64{
				"<s> <s>":           2,
				"<s> el":            1,
				"el gato":           1,
				"gato come":         1,
				"come pescado":      1,
				"pescado .":         1,
				"<s> <s> el":        1,
				"<s> el gato":       1,
				"el gato come":      1,
				"gato come pescado": 1,
				"come pescado .":    1,
				"pescado . </s>":    1,
				"<s> <s> la":        1,
				"gata come salmón":  1,
				"salmón . </s>":     1,
			},
		},
	}

	for _, tt := range tests {
		store := NewCountStore(tt.n, PrefixCounts, spanishCorpus())
		for k, expected := range tt.counts {
			if got := store.Count(strings.Fields(k)); got != expected {
				t.Fatalf("n=%d: expected count(%q) = %d, got %d", tt.n, k, expected, got)
			}
		}
	}
}

func TestCountStore_AllOrderCounts(t *testing.T) {
	store := NewCountStore(2, AllOrderCounts, spanishCorpus())

	expected := map[string]int64{
		"":          12,
		"<s>":       2,
		"come":      2,
		".":         2,
		"</s>":      2,
		"<s> el":    1,
		". </s>":    2,
		"gato come": 1,
	}
	for k, count := range expected {
		if got := store.Count(strings.Fields(k)); got != count {
			t.Fatalf("Expected count(%q) = %d, got %d", k, count, got)
		}
	}

	store3 := NewCountStore(3, AllOrderCounts, spanishCorpus())
	if got := store3.Count(key("<s>", "<s>")); got != 2 {
		t.Fatalf("Expected count(<s> <s>) = 2, got %d", got)
	}
	if got := store3.Count(key("<s>")); got != 2 {
		t.Fatalf("Expected count(<s>) = 2, got %d", got)
	}
	if got := store3.Total(); got != 12 {
		t.Fatalf("Expected total 12, got %d", got)
	}
}

func TestCountStore_ParentDominatesContinuations(t *testing.T) {
	for _, mode := range []CountMode{PrefixCounts, AllOrderCounts} {
		for n := 1; n <= 3; n++ {
			store := NewCountStore(n, mode, spanishCorpus())
			// Prefix mode only maintains the (n-1)-gram counts
			first := n - 1
			if mode == AllOrderCounts {
				first = 0
			}
			for length := first; length < n; length++ {
				for _, context := range store.Contexts(length) {
					var sum int64
					for _, token := range store.Continuations(context) {
						sum += store.Count(extend(context, token))
					}
					if parent := store.Count(context); parent < sum {
						t.Fatalf("mode=%d n=%d: count(%v) = %d is less than continuation sum %d", mode, n, context, parent, sum)
					}
				}
			}
		}
	}
}

func TestCountStore_CountDoesNotCreateKeys(t *testing.T) {
	store := NewCountStore(2, PrefixCounts, spanishCorpus())
	before := store.Stats().Keys

	if got := store.Count(key("salame", "come")); got != 0 {
		t.Fatalf("Expected 0 for unseen key, got %d", got)
	}
	if got := store.Count(key("come", "gato")); got != 0 {
		t.Fatalf("Expected 0 for unseen bigram of seen tokens, got %d", got)
	}

	if after := store.Stats().Keys; after != before {
		t.Fatalf("Expected %d keys after lookups, got %d", before, after)
	}
}

func TestCountStore_Vocabulary(t *testing.T) {
	store := NewCountStore(3, AllOrderCounts, spanishCorpus())

	vocab := store.Vocabulary()
	if len(vocab) != 8 {
		t.Fatalf("Expected vocabulary of 8 tokens, got %d: %v", len(vocab), vocab)
	}
	for _, token := range vocab {
		if ngram.IsReserved(token) {
			t.Fatalf("Expected vocabulary without markers, found %s", token)
		}
	}
	if store.VocabularySize() != 8 {
		t.Fatalf("Expected vocabulary size 8, got %d", store.VocabularySize())
	}
}

func TestCountStore_Continuations(t *testing.T) {
	store := NewCountStore(3, AllOrderCounts, spanishCorpus())

	cont := store.Continuations(key("come"))
	if len(cont) != 2 || cont[0] != "pescado" || cont[1] != "salmón" {
		t.Fatalf("Expected [pescado salmón], got %v", cont)
	}

	// The start marker is counted after itself but never predicted
	cont = store.Continuations(key("<s>"))
	if len(cont) != 2 || cont[0] != "el" || cont[1] != "la" {
		t.Fatalf("Expected [el la], got %v", cont)
	}

	if cont := store.Continuations(key("salame")); cont != nil {
		t.Fatalf("Expected no continuations for unseen context, got %v", cont)
	}
}

func TestCountStore_Contexts(t *testing.T) {
	store := NewCountStore(2, PrefixCounts, spanishCorpus())

	contexts := store.Contexts(1)
	// <s> el gato come pescado . la gata salmón; </s> has no continuation
	if len(contexts) != 9 {
		t.Fatalf("Expected 9 contexts, got %d: %v", len(contexts), contexts)
	}
	for i := 1; i < len(contexts); i++ {
		if contexts[i-1].Key() >= contexts[i].Key() {
			t.Fatalf("Expected contexts sorted by key, got %v", contexts)
		}
	}
	for _, context := range contexts {
		if context.LastToken() == ngram.EndTag {
			t.Fatalf("Expected no context ending in the end marker")
		}
	}
}
