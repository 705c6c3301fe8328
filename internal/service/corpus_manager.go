package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"lm-go/internal/model/ngram"
	"lm-go/internal/service/tokenizer"
	"lm-go/internal/util"

	"go.uber.org/zap"
)

// FileStats describes one file of a loaded corpus
type FileStats struct {
	Path      string `json:"path"`
	Language  string `json:"language"`
	Sentences int    `json:"sentences"`
	Tokens    int    `json:"tokens"`
}

// Corpus is a tokenized set of documents in a deterministic order
type Corpus struct {
	Sentences []ngram.Sentence `json:"-"`
	Files     []FileStats      `json:"files"`
}

// TokenCount returns the number of tokens over all sentences
func (c *Corpus) TokenCount() int {
	total := 0
	for _, sent := range c.Sentences {
		total += len(sent)
	}
	return total
}

// CorpusManager turns files and directories into training sentences
type CorpusManager struct {
	registry   *tokenizer.TokenizerRegistry
	numThreads int
	logger     *zap.Logger
}

// NewCorpusManager creates a corpus manager. numThreads bounds the number of
// files tokenized concurrently by LoadPath.
func NewCorpusManager(registry *tokenizer.TokenizerRegistry, numThreads int, logger *zap.Logger) *CorpusManager {
	if registry == nil {
		registry = tokenizer.NewTokenizerRegistry()
	}
	if numThreads < 1 {
		numThreads = 2
	}
	return &CorpusManager{
		registry:   registry,
		numThreads: numThreads,
		logger:     logger,
	}
}

// Registry returns the tokenizer registry
func (cm *CorpusManager) Registry() *tokenizer.TokenizerRegistry {
	return cm.registry
}

// LoadSource tokenizes an in-memory document
func (cm *CorpusManager) LoadSource(ctx context.Context, source []byte, language string) ([]ngram.Sentence, error) {
	tok, ok := cm.registry.GetTokenizer(language)
	if !ok {
		return nil, fmt.Errorf("no tokenizer found for language: %s", language)
	}

	sents, err := tokenizer.Sentences(ctx, tok, source)
	if err != nil {
		return nil, fmt.Errorf("tokenization failed: %w", err)
	}
	return sents, nil
}

// LoadFile tokenizes one file. An empty language is detected from the extension.
func (cm *CorpusManager) LoadFile(ctx context.Context, path string, language string) ([]ngram.Sentence, string, error) {
	if language == "" {
		language = cm.DetectLanguage(path)
		if language == "" {
			return nil, "", fmt.Errorf("no tokenizer found for file: %s", path)
		}
	}

	source, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read file: %w", err)
	}

	sents, err := cm.LoadSource(ctx, source, language)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load %s: %w", path, err)
	}
	return sents, language, nil
}

// DetectLanguage returns the language registered for the file extension, or ""
func (cm *CorpusManager) DetectLanguage(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return ""
	}
	tok, ok := cm.registry.GetTokenizerByExtension(ext)
	if !ok {
		return ""
	}
	return tok.Language()
}

// ListFiles returns the files under root that a tokenizer can read, sorted.
// A root that is a file is returned as is.
func (cm *CorpusManager) ListFiles(ctx context.Context, root string, language string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat corpus path: %w", err)
	}
	if !info.IsDir() {
		return []string{root}, nil
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if path != root && shouldSkipDirectory(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if cm.shouldProcessFile(path, language) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk corpus: %w", err)
	}

	sort.Strings(files)
	return files, nil
}

// LoadPath loads a file or every readable file under a directory. Files are
// tokenized concurrently; sentences are concatenated in path order.
func (cm *CorpusManager) LoadPath(ctx context.Context, root string, language string) (*Corpus, error) {
	return cm.LoadPathWithProgress(ctx, root, language, nil)
}

// LoadPathWithProgress is LoadPath with a callback invoked after each file
func (cm *CorpusManager) LoadPathWithProgress(ctx context.Context, root string, language string, progress func(path string)) (*Corpus, error) {
	if language != "" {
		if _, ok := cm.registry.GetTokenizer(language); !ok {
			return nil, fmt.Errorf("no tokenizer found for language: %s", language)
		}
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat corpus path: %w", err)
	}

	cm.logger.Info("Loading corpus",
		zap.String("path", root),
		zap.String("language", language),
	)

	type fileResult struct {
		sents []ngram.Sentence
		stats FileStats
	}
	results := make(map[string]fileResult)
	var mu sync.Mutex

	load := func(path string) error {
		sents, lang, err := cm.LoadFile(ctx, path, language)
		if progress != nil {
			progress(path)
		}
		if err != nil {
			return err
		}

		stats := FileStats{Path: path, Language: lang, Sentences: len(sents)}
		for _, sent := range sents {
			stats.Tokens += len(sent)
		}

		mu.Lock()
		results[path] = fileResult{sents: sents, stats: stats}
		mu.Unlock()

		cm.logger.Debug("Loaded corpus file",
			zap.String("path", path),
			zap.String("language", lang),
			zap.Int("sentences", stats.Sentences),
			zap.Int("tokens", stats.Tokens),
		)
		return nil
	}

	if !info.IsDir() {
		if err := load(root); err != nil {
			return nil, err
		}
	} else {
		err = util.WalkDirTree(root,
			func(path string, err error) error {
				if err != nil {
					return err
				}
				if ctx.Err() != nil {
					return nil
				}
				if err := load(path); err != nil {
					cm.logger.Warn("Failed to load corpus file",
						zap.String("path", path),
						zap.Error(err),
					)
				}
				return nil
			},
			func(path string, isDir bool) bool {
				if isDir {
					return shouldSkipDirectory(filepath.Base(path))
				}
				return !cm.shouldProcessFile(path, language)
			},
			cm.logger,
			0,
			cm.numThreads,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to walk corpus: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	paths := make([]string, 0, len(results))
	for path := range results {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	corpus := &Corpus{}
	for _, path := range paths {
		result := results[path]
		corpus.Sentences = append(corpus.Sentences, result.sents...)
		corpus.Files = append(corpus.Files, result.stats)
	}

	cm.logger.Info("Corpus loaded",
		zap.String("path", root),
		zap.Int("files", len(corpus.Files)),
		zap.Int("sentences", len(corpus.Sentences)),
		zap.Int("tokens", corpus.TokenCount()),
	)
	return corpus, nil
}

// shouldProcessFile reports whether a file belongs to the corpus. With an
// explicit language every visible file is read with that tokenizer.
func (cm *CorpusManager) shouldProcessFile(path string, language string) bool {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return false
	}
	if language != "" {
		return true
	}
	return cm.DetectLanguage(path) != ""
}

func shouldSkipDirectory(dirName string) bool {
	skipDirs := []string{
		".git", "node_modules", ".vscode", ".idea", "vendor", "target",
		"build", "dist", "__pycache__", ".pytest_cache", "coverage",
		"site-packages", ".next", ".nuxt", "venv", "env",
	}

	for _, skip := range skipDirs {
		if dirName == skip {
			return true
		}
	}

	return false
}
