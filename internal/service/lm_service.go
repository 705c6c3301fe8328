package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"lm-go/internal/config"
	"lm-go/internal/model/ngram"
	"lm-go/internal/service/lm"
	"lm-go/internal/service/tokenizer"
	"lm-go/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxGenerateCount = 1000

var (
	// ErrModelNotFound is returned for names that are neither loaded nor saved
	ErrModelNotFound = errors.New("model not found")
	// ErrInvalidArgument marks requests the caller has to fix
	ErrInvalidArgument = errors.New("invalid argument")
)

// ModelInfo describes a trained model
type ModelInfo struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Language        string          `json:"language"`
	Kind            lm.Kind         `json:"kind"`
	N               int             `json:"n"`
	Gamma           float64         `json:"gamma,omitempty"`
	Beta            float64         `json:"beta,omitempty"`
	AddOne          bool            `json:"addone"`
	Sentences       int             `json:"sentences"`
	Tokens          int             `json:"tokens"`
	VocabularySize  int             `json:"vocabulary_size"`
	CreatedAt       time.Time       `json:"created_at"`
	TrainingEntropy lm.EntropyStats `json:"training_entropy"`
	Trace           []lm.SearchStep `json:"trace,omitempty"`
}

// TokenScore is the probability of one token after its context
type TokenScore struct {
	Context     []string `json:"context"`
	Token       string   `json:"token"`
	Probability lm.Float `json:"probability"`
	Surprisal   lm.Float `json:"surprisal"`
}

// ZScoreInterpretation provides a human-readable reading of a z-score
type ZScoreInterpretation struct {
	Level       string  `json:"level"`
	Description string  `json:"description"`
	Percentile  float64 `json:"percentile"`
}

// SentenceScore scores one sentence against a model
type SentenceScore struct {
	Tokens         []string             `json:"tokens"`
	Probability    lm.Float             `json:"probability"`
	LogProbability lm.Float             `json:"log_probability"`
	Entropy        lm.Float             `json:"entropy"`
	ZScore         lm.Float             `json:"z_score"`
	Interpretation ZScoreInterpretation `json:"interpretation"`
	TokenScores    []TokenScore         `json:"token_scores"`
}

// ScoreResult scores a text against a model
type ScoreResult struct {
	Model          string          `json:"model"`
	Tokens         int             `json:"tokens"`
	LogProbability lm.Float        `json:"log_probability"`
	CrossEntropy   lm.Float        `json:"cross_entropy"`
	Perplexity     lm.Float        `json:"perplexity"`
	Sentences      []SentenceScore `json:"sentences"`
}

// GeneratedSentence is one sampled sentence
type GeneratedSentence struct {
	Tokens []string `json:"tokens"`
	Text   string   `json:"text"`
}

// GenerationResult holds sentences sampled from a model
type GenerationResult struct {
	Model     string              `json:"model"`
	Seed      int64               `json:"seed"`
	Sentences []GeneratedSentence `json:"sentences"`
}

type namedModel struct {
	model         lm.ConditionalModel
	meta          lm.ModelMetadata
	generatorOnce sync.Once
	generator     *lm.Generator
}

// sampler returns the model's generator, building its distribution table once
func (nm *namedModel) sampler(logger *zap.Logger) *lm.Generator {
	nm.generatorOnce.Do(func() {
		nm.generator = lm.NewGenerator(nm.model, 0, logger)
	})
	return nm.generator
}

// LMService trains, stores and queries named language models
type LMService struct {
	models      map[string]*namedModel
	corpus      *CorpusManager
	persistence *lm.ModelPersistence
	defaults    lm.Options
	logger      *zap.Logger
	mu          sync.RWMutex
}

// NewLMService creates a service over an existing corpus manager and model store
func NewLMService(corpus *CorpusManager, persistence *lm.ModelPersistence, defaults lm.Options, logger *zap.Logger) *LMService {
	if defaults.N < 1 {
		defaults.N = lm.DefaultOptions().N
	}
	return &LMService{
		models:      make(map[string]*namedModel),
		corpus:      corpus,
		persistence: persistence,
		defaults:    defaults,
		logger:      logger,
	}
}

// NewLMServiceFromConfig wires the tokenizers, corpus manager and model store
// described by the configuration
func NewLMServiceFromConfig(cfg *config.Config, logger *zap.Logger) (*LMService, error) {
	registry, err := tokenizer.NewDefaultRegistry(cfg.Defaults.Lowercase)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokenizers: %w", err)
	}

	persistence, err := lm.NewModelPersistence(cfg.ResolvedModelDir(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create persistence: %w", err)
	}

	defaults, err := OptionsFromConfig(cfg.Defaults)
	if err != nil {
		return nil, err
	}

	corpus := NewCorpusManager(registry, cfg.App.NumFileThreads, logger)
	return NewLMService(corpus, persistence, defaults, logger), nil
}

// OptionsFromConfig converts configured model defaults to model options
func OptionsFromConfig(d config.ModelDefaults) (lm.Options, error) {
	kind, err := lm.ParseKind(d.Kind)
	if err != nil {
		return lm.Options{}, err
	}
	return lm.Options{Kind: kind, N: d.N, Gamma: d.Gamma, Beta: d.Beta, AddOne: d.AddOne}, nil
}

// CorpusManager returns the corpus manager
func (s *LMService) CorpusManager() *CorpusManager {
	return s.corpus
}

// Defaults returns the model options used for unset fields
func (s *LMService) Defaults() lm.Options {
	return s.defaults
}

// resolveOptions fills the unset fields of opts from the defaults
func (s *LMService) resolveOptions(opts lm.Options) lm.Options {
	if opts.Kind == "" {
		opts.Kind = s.defaults.Kind
	}
	if opts.N == 0 {
		opts.N = s.defaults.N
	}
	if opts.Gamma == nil {
		opts.Gamma = s.defaults.Gamma
	}
	if opts.Beta == nil {
		opts.Beta = s.defaults.Beta
	}
	if opts.AddOne == nil {
		opts.AddOne = s.defaults.AddOne
	}
	return opts
}

// TrainCorpus builds the model of a configured corpus. Unless override is set,
// a model saved under the corpus name is loaded instead.
func (s *LMService) TrainCorpus(ctx context.Context, corpus *config.Corpus, opts lm.Options, override bool) (*ModelInfo, error) {
	s.logger.Info("Processing corpus for language model",
		zap.String("corpus", corpus.Name),
		zap.String("path", corpus.Path),
		zap.Bool("override", override),
	)

	if !override && s.persistence.ModelExists(corpus.Name) {
		s.logger.Info("Loading existing language model from disk", zap.String("corpus", corpus.Name))
		nm, err := s.getModel(corpus.Name)
		if err == nil {
			info := newModelInfo(nm)
			return &info, nil
		}
		s.logger.Warn("Failed to load existing model, will rebuild",
			zap.String("corpus", corpus.Name),
			zap.Error(err))
	}

	return s.TrainPath(ctx, corpus.Name, corpus.Path, corpus.Language, opts)
}

// TrainCorpora builds or loads the model of every enabled configured corpus.
// A failing corpus is logged and skipped.
func (s *LMService) TrainCorpora(ctx context.Context, cfg *config.Config, override bool) []ModelInfo {
	var infos []ModelInfo
	for i := range cfg.Source.Corpora {
		corpus := &cfg.Source.Corpora[i]
		if corpus.Disabled {
			continue
		}
		opts, err := OptionsFromConfig(cfg.ModelOptions(corpus))
		if err == nil {
			var info *ModelInfo
			info, err = s.TrainCorpus(ctx, corpus, opts, override)
			if err == nil {
				infos = append(infos, *info)
				continue
			}
		}
		s.logger.Error("Failed to build corpus model",
			zap.String("corpus", corpus.Name),
			zap.Error(err))
	}
	return infos
}

// TrainPath loads a file or directory and trains a model on it
func (s *LMService) TrainPath(ctx context.Context, name, path, language string, opts lm.Options) (*ModelInfo, error) {
	if err := s.checkLanguage(language); err != nil {
		return nil, err
	}
	loaded, err := s.corpus.LoadPath(ctx, path, language)
	if err != nil {
		return nil, fmt.Errorf("failed to load corpus: %w", err)
	}
	if language == "" && len(loaded.Files) > 0 {
		language = loaded.Files[0].Language
	}
	return s.Train(ctx, name, language, loaded.Sentences, opts)
}

// TrainText trains a model on an in-memory document
func (s *LMService) TrainText(ctx context.Context, name, text, language string, opts lm.Options) (*ModelInfo, error) {
	if language == "" {
		language = tokenizer.LanguageWhitespace
	}
	if err := s.checkLanguage(language); err != nil {
		return nil, err
	}
	sents, err := s.corpus.LoadSource(ctx, []byte(text), language)
	if err != nil {
		return nil, err
	}
	return s.Train(ctx, name, language, sents, opts)
}

// Train fits, saves and registers a model under name, replacing any model of
// the same name
func (s *LMService) Train(ctx context.Context, name, language string, sents []ngram.Sentence, opts lm.Options) (*ModelInfo, error) {
	if err := validateModelName(name); err != nil {
		return nil, err
	}
	if len(sents) == 0 {
		return nil, fmt.Errorf("%w: no sentences to train model %s", ErrInvalidArgument, name)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts = s.resolveOptions(opts)
	start := time.Now()
	model, err := lm.Train(sents, opts, s.logger)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to train model %s: %v", ErrInvalidArgument, name, err)
	}

	tokens := 0
	for _, sent := range sents {
		tokens += len(sent)
	}
	meta := lm.ModelMetadata{
		ID:              uuid.New().String(),
		Name:            name,
		Language:        language,
		Sentences:       len(sents),
		Tokens:          tokens,
		CreatedAt:       time.Now().UTC(),
		TrainingEntropy: lm.Evaluate(model, sents).Entropy,
	}

	if err := s.persistence.SaveModel(model, meta); err != nil {
		return nil, err
	}

	nm := &namedModel{model: model, meta: meta}
	s.mu.Lock()
	s.models[name] = nm
	s.mu.Unlock()

	s.logger.Info("Trained language model",
		zap.String("name", name),
		zap.String("id", meta.ID),
		zap.String("kind", string(model.Kind())),
		zap.Int("n", model.N()),
		zap.Int("sentences", meta.Sentences),
		zap.Int("tokens", meta.Tokens),
		zap.Duration("duration", time.Since(start)),
	)

	info := newModelInfo(nm)
	return &info, nil
}

// checkLanguage accepts "" (detect per file) and every registered language
func (s *LMService) checkLanguage(language string) error {
	if language == "" {
		return nil
	}
	if _, ok := s.corpus.Registry().GetTokenizer(language); !ok {
		return fmt.Errorf("%w: unsupported language %s", ErrInvalidArgument, language)
	}
	return nil
}

func validateModelName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: model name is required", ErrInvalidArgument)
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("%w: invalid model name %q", ErrInvalidArgument, name)
	}
	return nil
}

// getModel returns a registered model, loading it from disk on first use
func (s *LMService) getModel(name string) (*namedModel, error) {
	s.mu.RLock()
	nm, ok := s.models[name]
	s.mu.RUnlock()
	if ok {
		return nm, nil
	}

	if err := validateModelName(name); err != nil || !s.persistence.ModelExists(name) {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, name)
	}

	model, meta, err := s.persistence.LoadModel(name)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.models[name]; ok {
		return existing, nil
	}
	nm = &namedModel{model: model, meta: *meta}
	s.models[name] = nm
	return nm, nil
}

func newModelInfo(nm *namedModel) ModelInfo {
	stats := lm.Stats(nm.model)
	return ModelInfo{
		ID:              nm.meta.ID,
		Name:            nm.meta.Name,
		Language:        nm.meta.Language,
		Kind:            nm.model.Kind(),
		N:               nm.model.N(),
		Gamma:           stats.Gamma,
		Beta:            stats.Beta,
		AddOne:          stats.AddOne,
		Sentences:       nm.meta.Sentences,
		Tokens:          nm.meta.Tokens,
		VocabularySize:  stats.Store.VocabularySize,
		CreatedAt:       nm.meta.CreatedAt,
		TrainingEntropy: nm.meta.TrainingEntropy,
		Trace:           lm.Trace(nm.model),
	}
}

// GetModel returns the description of a model
func (s *LMService) GetModel(name string) (*ModelInfo, error) {
	nm, err := s.getModel(name)
	if err != nil {
		return nil, err
	}
	info := newModelInfo(nm)
	return &info, nil
}

// Model returns the fitted model registered under name
func (s *LMService) Model(name string) (lm.ConditionalModel, error) {
	nm, err := s.getModel(name)
	if err != nil {
		return nil, err
	}
	return nm.model, nil
}

// ListModels describes every loaded or saved model, sorted by name
func (s *LMService) ListModels() ([]ModelInfo, error) {
	names, err := s.persistence.ListModels()
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	for name := range s.models {
		names = append(names, name)
	}
	s.mu.RUnlock()
	sort.Strings(names)

	infos := make([]ModelInfo, 0, len(names))
	for i, name := range names {
		if i > 0 && names[i-1] == name {
			continue
		}
		nm, err := s.getModel(name)
		if err != nil {
			s.logger.Warn("Skipping unreadable model", zap.String("name", name), zap.Error(err))
			continue
		}
		infos = append(infos, newModelInfo(nm))
	}
	return infos, nil
}

// DeleteModel unregisters a model and removes it from disk
func (s *LMService) DeleteModel(name string) error {
	if err := validateModelName(name); err != nil {
		return err
	}

	s.mu.Lock()
	_, loaded := s.models[name]
	delete(s.models, name)
	s.mu.Unlock()

	if !loaded && !s.persistence.ModelExists(name) {
		return fmt.Errorf("%w: %s", ErrModelNotFound, name)
	}
	return s.persistence.DeleteModel(name)
}

// CondProb returns the probability of token after context. Unlike the model
// itself it reports a wrong context length as an error.
func (s *LMService) CondProb(name, token string, context []string) (float64, error) {
	nm, err := s.getModel(name)
	if err != nil {
		return 0, err
	}
	if n := nm.model.N(); len(context) != n-1 {
		return 0, fmt.Errorf("%w: model %s of order %d needs %d context tokens, got %d", ErrInvalidArgument, name, n, n-1, len(context))
	}
	if token == "" {
		return 0, fmt.Errorf("%w: token is required", ErrInvalidArgument)
	}
	return nm.model.CondProb(token, context), nil
}

// Tokenize splits text into normalized sentences with the model's language
// unless another language is given
func (s *LMService) Tokenize(ctx context.Context, name, text, language string) ([]ngram.Sentence, error) {
	if language == "" {
		nm, err := s.getModel(name)
		if err != nil {
			return nil, err
		}
		language = nm.meta.Language
	}
	if language == "" {
		language = tokenizer.LanguageWhitespace
	}
	if err := s.checkLanguage(language); err != nil {
		return nil, err
	}
	return s.corpus.LoadSource(ctx, []byte(text), language)
}

// Score rates every sentence of a text against a model
func (s *LMService) Score(ctx context.Context, name, text, language string) (*ScoreResult, error) {
	nm, err := s.getModel(name)
	if err != nil {
		return nil, err
	}
	sents, err := s.Tokenize(ctx, name, text, language)
	if err != nil {
		return nil, err
	}

	model := nm.model
	result := &ScoreResult{Model: name, Sentences: make([]SentenceScore, 0, len(sents))}
	total := 0.0
	for _, sent := range sents {
		logProb := lm.SentenceLogProbability(model, sent)
		entropy := lm.SentenceEntropy(model, sent)
		zScore := nm.meta.TrainingEntropy.ZScore(entropy)
		total += logProb
		result.Tokens += len(sent)

		result.Sentences = append(result.Sentences, SentenceScore{
			Tokens:         sent,
			Probability:    lm.Float(lm.SentenceProbability(model, sent)),
			LogProbability: lm.Float(logProb),
			Entropy:        lm.Float(entropy),
			ZScore:         lm.Float(zScore),
			Interpretation: interpretZScore(zScore),
			TokenScores:    tokenScores(model, sent),
		})
	}

	crossEntropy := 0.0
	if result.Tokens > 0 {
		crossEntropy = total / float64(result.Tokens)
	}
	result.LogProbability = lm.Float(total)
	result.CrossEntropy = lm.Float(crossEntropy)
	result.Perplexity = lm.Float(math.Pow(2, -crossEntropy))

	s.logger.Debug("Scored text",
		zap.String("model", name),
		zap.Int("sentences", len(sents)),
		zap.Int("tokens", result.Tokens),
		zap.Float64("cross_entropy", crossEntropy),
	)
	return result, nil
}

// tokenScores returns the conditional probability of every token of the
// tagged sentence, end marker included. Scoring stops at the first token with
// zero probability.
func tokenScores(model lm.ConditionalModel, sent ngram.Sentence) []TokenScore {
	n := model.N()
	tagged := sent.Tag(n)
	scores := make([]TokenScore, 0, len(tagged)-n+1)
	for i := n - 1; i < len(tagged); i++ {
		context := tagged[i-n+1 : i]
		p := model.CondProb(tagged[i], context)
		scores = append(scores, TokenScore{
			Context:     append([]string(nil), context...),
			Token:       tagged[i],
			Probability: lm.Float(p),
			Surprisal:   lm.Float(-math.Log2(p)),
		})
		if p == 0 {
			break
		}
	}
	return scores
}

// interpretZScore provides human-readable interpretation of z-score
func interpretZScore(zScore float64) ZScoreInterpretation {
	var level, description string
	var percentile float64

	switch {
	case math.IsNaN(zScore):
		level = "unknown"
		description = "No training entropy statistics to compare against"
	case zScore < -2.0:
		level = "very_low"
		description = "Extremely typical text - more predictable than 97.5% of the training corpus"
		percentile = 2.5
	case zScore < -1.0:
		level = "low"
		description = "More typical than average - more predictable than 84% of the training corpus"
		percentile = 16.0
	case zScore <= 1.0:
		level = "normal"
		description = "Normal entropy - within 1 standard deviation of the training mean"
		percentile = 50.0
	case zScore <= 2.0:
		level = "high"
		description = "Unusual text - less predictable than 84% of the training corpus"
		percentile = 84.0
	default:
		level = "very_high"
		description = "Highly unusual text - less predictable than 97.5% of the training corpus"
		percentile = 97.5
	}

	return ZScoreInterpretation{
		Level:       level,
		Description: description,
		Percentile:  percentile,
	}
}

// Evaluate loads a test corpus and reports the model's cross-entropy and perplexity on it
func (s *LMService) Evaluate(ctx context.Context, name, path, language string) (*lm.EvaluationReport, error) {
	nm, err := s.getModel(name)
	if err != nil {
		return nil, err
	}
	if language == "" {
		language = nm.meta.Language
	}
	if err := s.checkLanguage(language); err != nil {
		return nil, err
	}

	corpus, err := s.corpus.LoadPath(ctx, path, language)
	if err != nil {
		return nil, fmt.Errorf("failed to load test corpus: %w", err)
	}

	report := lm.Evaluate(nm.model, corpus.Sentences)
	s.logger.Info("Evaluated language model",
		zap.String("model", name),
		zap.String("path", path),
		zap.Int("sentences", report.Sentences),
		zap.Float64("cross_entropy", float64(report.CrossEntropy)),
		zap.Float64("perplexity", float64(report.Perplexity)),
	)
	return &report, nil
}

// Generate samples count sentences. A zero seed picks one from the clock.
func (s *LMService) Generate(ctx context.Context, name string, count int, seed int64) (*GenerationResult, error) {
	if count < 1 || count > maxGenerateCount {
		return nil, fmt.Errorf("%w: count must be between 1 and %d, got %d", ErrInvalidArgument, maxGenerateCount, count)
	}
	nm, err := s.getModel(name)
	if err != nil {
		return nil, err
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	gen := nm.sampler(s.logger).WithSeed(seed)
	result := &GenerationResult{Model: name, Seed: seed, Sentences: make([]GeneratedSentence, 0, count)}
	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sent := gen.GenerateSentence()
		result.Sentences = append(result.Sentences, GeneratedSentence{
			Tokens: sent,
			Text:   util.Detokenize(sent),
		})
	}
	return result, nil
}
