package mcp

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"lm-go/internal/config"
	"lm-go/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

const maxTokenScores = 50

type LMServer struct {
	server    *mcp.Server
	lmService *service.LMService
	config    *config.Config
	logger    *zap.Logger
	handler   *mcp.StreamableHTTPHandler
}

type ListModelsParams struct{}

type ScoreTextParams struct {
	Model    string `json:"model" jsonschema:"the name of the language model"`
	Text     string `json:"text" jsonschema:"the text to score; one sentence per line for whitespace models"`
	Language string `json:"language,omitempty" jsonschema:"tokenizer language, defaults to the model's language"`
}

type CondProbParams struct {
	Model   string   `json:"model" jsonschema:"the name of the language model"`
	Token   string   `json:"token" jsonschema:"the token whose probability is requested"`
	Context []string `json:"context,omitempty" jsonschema:"the n-1 preceding tokens"`
}

type GenerateParams struct {
	Model string `json:"model" jsonschema:"the name of the language model"`
	Count int    `json:"count,omitempty" jsonschema:"number of sentences to generate (default 1)"`
	Seed  int64  `json:"seed,omitempty" jsonschema:"random seed for reproducible output"`
}

func NewLMServer(lmService *service.LMService, cfg *config.Config, logger *zap.Logger) *LMServer {
	server := &LMServer{
		lmService: lmService,
		config:    cfg,
		logger:    logger,
	}

	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    "NGramLM",
		Version: "1.0.0",
	}, nil)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "listModels",
		Description: "List the trained n-gram language models with their order, smoothing and training statistics",
	}, server.handleListModels)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "scoreText",
		Description: "Score a text against a language model. Returns per-sentence probability, entropy and a z-score against the training corpus, plus cross-entropy and perplexity",
	}, server.handleScoreText)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "condProb",
		Description: "Return the conditional probability of a token given its n-1 preceding tokens",
	}, server.handleCondProb)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "generateSentences",
		Description: "Sample random sentences from a language model",
	}, server.handleGenerate)

	server.handler = mcp.NewStreamableHTTPHandler(func(req *http.Request) *mcp.Server {
		return mcpServer
	}, nil)

	server.server = mcpServer
	return server
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func errorResult(text string) *mcp.CallToolResult {
	result := textResult(text)
	result.IsError = true
	return result
}

func (s *LMServer) handleListModels(ctx context.Context, req *mcp.CallToolRequest, args ListModelsParams) (*mcp.CallToolResult, any, error) {
	s.logger.Info("Handling listModels request")

	models, err := s.lmService.ListModels()
	if err != nil {
		s.logger.Error("Failed to list models", zap.Error(err))
		return errorResult(fmt.Sprintf("Failed to list models: %v", err)), nil, nil
	}
	if len(models) == 0 {
		return textResult("No language models available."), nil, nil
	}

	var result strings.Builder
	for _, m := range models {
		fmt.Fprintf(&result, "%s: %s %d-gram", m.Name, m.Kind, m.N)
		if m.Language != "" {
			fmt.Fprintf(&result, " (%s)", m.Language)
		}
		fmt.Fprintf(&result, ", %d sentences, %d tokens, vocabulary %d", m.Sentences, m.Tokens, m.VocabularySize)
		if m.Gamma != 0 {
			fmt.Fprintf(&result, ", gamma=%g", m.Gamma)
		}
		if m.Beta != 0 {
			fmt.Fprintf(&result, ", beta=%g", m.Beta)
		}
		result.WriteString("\n")
	}
	return textResult(result.String()), nil, nil
}

func (s *LMServer) handleScoreText(ctx context.Context, req *mcp.CallToolRequest, args ScoreTextParams) (*mcp.CallToolResult, any, error) {
	s.logger.Info("Handling scoreText request", zap.String("model", args.Model), zap.Int("text_length", len(args.Text)))

	score, err := s.lmService.Score(ctx, args.Model, args.Text, args.Language)
	if err != nil {
		s.logger.Error("Failed to score text", zap.String("model", args.Model), zap.Error(err))
		return errorResult(fmt.Sprintf("Failed to score text: %v", err)), nil, nil
	}

	return textResult(formatScore(score)), nil, nil
}

func formatScore(score *service.ScoreResult) string {
	var result strings.Builder
	fmt.Fprintf(&result, "Model: %s\n", score.Model)
	fmt.Fprintf(&result, "Tokens: %d\n", score.Tokens)
	fmt.Fprintf(&result, "Log probability: %.4f\n", float64(score.LogProbability))
	fmt.Fprintf(&result, "Cross entropy: %.4f bits/token\n", float64(score.CrossEntropy))
	fmt.Fprintf(&result, "Perplexity: %.4f\n", float64(score.Perplexity))

	for i, sent := range score.Sentences {
		fmt.Fprintf(&result, "\nSentence %d: %s\n", i+1, strings.Join(sent.Tokens, " "))
		fmt.Fprintf(&result, "  probability=%.6g entropy=%.4f z-score=%.2f\n",
			float64(sent.Probability), float64(sent.Entropy), float64(sent.ZScore))
		fmt.Fprintf(&result, "  %s: %s\n", sent.Interpretation.Level, sent.Interpretation.Description)

		for j, ts := range sent.TokenScores {
			if j == maxTokenScores {
				fmt.Fprintf(&result, "    ... %d more tokens\n", len(sent.TokenScores)-j)
				break
			}
			fmt.Fprintf(&result, "    P(%s | %s) = %.6g\n", ts.Token, strings.Join(ts.Context, " "), float64(ts.Probability))
		}
	}
	return result.String()
}

func (s *LMServer) handleCondProb(ctx context.Context, req *mcp.CallToolRequest, args CondProbParams) (*mcp.CallToolResult, any, error) {
	s.logger.Info("Handling condProb request", zap.String("model", args.Model), zap.String("token", args.Token))

	history := args.Context
	if history == nil {
		history = []string{}
	}
	p, err := s.lmService.CondProb(args.Model, args.Token, history)
	if err != nil {
		s.logger.Error("Failed to compute probability", zap.String("model", args.Model), zap.Error(err))
		return errorResult(fmt.Sprintf("Failed to compute probability: %v", err)), nil, nil
	}

	return textResult(fmt.Sprintf("P(%s | %s) = %g", args.Token, strings.Join(history, " "), p)), nil, nil
}

func (s *LMServer) handleGenerate(ctx context.Context, req *mcp.CallToolRequest, args GenerateParams) (*mcp.CallToolResult, any, error) {
	s.logger.Info("Handling generateSentences request", zap.String("model", args.Model), zap.Int("count", args.Count))

	count := args.Count
	if count == 0 {
		count = 1
	}
	generated, err := s.lmService.Generate(ctx, args.Model, count, args.Seed)
	if err != nil {
		s.logger.Error("Failed to generate sentences", zap.String("model", args.Model), zap.Error(err))
		return errorResult(fmt.Sprintf("Failed to generate sentences: %v", err)), nil, nil
	}

	lines := make([]string, len(generated.Sentences))
	for i, sent := range generated.Sentences {
		lines[i] = sent.Text
	}
	return textResult(strings.Join(lines, "\n")), nil, nil
}

// Handler returns the streamable HTTP handler serving the MCP protocol
func (s *LMServer) Handler() http.Handler {
	return s.handler
}

// SetupHTTPRoutes mounts the MCP handler at /mcp. A configured MCP port also
// gets a dedicated listener.
func (s *LMServer) SetupHTTPRoutes(router *gin.Engine) {
	router.Any("/mcp", gin.WrapH(s.handler))

	if s.config == nil || s.config.Mcp.Port == 0 {
		return
	}
	go func() {
		address := s.config.Mcp.GetAddress()
		s.logger.Info("MCP Server going to listen", zap.String("address", address))
		if err := http.ListenAndServe(address, s.handler); err != nil {
			s.logger.Fatal("MCP Server failed", zap.Error(err))
		}
	}()
}
