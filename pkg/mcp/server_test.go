package mcp

import (
	"context"
	"strings"
	"testing"

	"lm-go/internal/model/ngram"
	"lm-go/internal/service"
	"lm-go/internal/service/lm"
	"lm-go/internal/service/tokenizer"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) *LMServer {
	t.Helper()
	registry, err := tokenizer.NewDefaultRegistry(false)
	if err != nil {
		t.Fatalf("Failed to create registry: %v", err)
	}
	persistence, err := lm.NewModelPersistence(t.TempDir(), zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to create persistence: %v", err)
	}
	corpus := service.NewCorpusManager(registry, 1, zap.NewNop())
	lmService := service.NewLMService(corpus, persistence, lm.Options{Kind: lm.KindAddOne, N: 2}, zap.NewNop())

	sents := []ngram.Sentence{
		strings.Fields("el gato come pescado ."),
		strings.Fields("la gata come salmón ."),
	}
	if _, err := lmService.Train(context.Background(), "es", tokenizer.LanguageWhitespace, sents, lm.Options{}); err != nil {
		t.Fatalf("Failed to train model: %v", err)
	}
	return NewLMServer(lmService, nil, zap.NewNop())
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) != 1 {
		t.Fatalf("Expected one content item, got %d", len(result.Content))
	}
	text, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("Expected text content, got %T", result.Content[0])
	}
	return text.Text
}

func TestHandleListModels(t *testing.T) {
	s := newTestServer(t)
	result, _, err := s.handleListModels(context.Background(), nil, ListModelsParams{})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	text := resultText(t, result)
	if !strings.HasPrefix(text, "es: addone 2-gram (whitespace)") {
		t.Fatalf("Unexpected model listing: %q", text)
	}
}

func TestHandleScoreText(t *testing.T) {
	s := newTestServer(t)
	result, _, err := s.handleScoreText(context.Background(), nil, ScoreTextParams{Model: "es", Text: "el gato come salmón ."})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	text := resultText(t, result)
	if !strings.Contains(text, "Sentence 1: el gato come salmón .") || !strings.Contains(text, "P(salmón | come)") {
		t.Fatalf("Unexpected score output: %q", text)
	}

	result, _, _ = s.handleScoreText(context.Background(), nil, ScoreTextParams{Model: "missing", Text: "x"})
	if !result.IsError {
		t.Fatalf("Expected an error result for a missing model")
	}
}

func TestHandleCondProb(t *testing.T) {
	s := newTestServer(t)
	result, _, err := s.handleCondProb(context.Background(), nil, CondProbParams{Model: "es", Token: "pescado", Context: []string{"come"}})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	// (1 + 1) / (2 + 8 + 1)
	if text := resultText(t, result); text != "P(pescado | come) = 0.18181818181818182" {
		t.Fatalf("Unexpected probability output: %q", text)
	}

	result, _, _ = s.handleCondProb(context.Background(), nil, CondProbParams{Model: "es", Token: "pescado"})
	if !result.IsError {
		t.Fatalf("Expected an error result for a missing context")
	}
}

func TestHandleGenerate(t *testing.T) {
	s := newTestServer(t)
	result, _, err := s.handleGenerate(context.Background(), nil, GenerateParams{Model: "es", Count: 3, Seed: 7})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if lines := strings.Split(resultText(t, result), "\n"); len(lines) != 3 {
		t.Fatalf("Expected 3 sentences, got %q", lines)
	}
}
