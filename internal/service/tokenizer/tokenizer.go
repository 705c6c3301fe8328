package tokenizer

import (
	"context"
	"fmt"
	"sort"

	"lm-go/internal/model/ngram"
)

// Tokenizer splits a document into sentences of tokens
type Tokenizer interface {
	// Tokenize converts a document into one token sequence per sentence
	Tokenize(ctx context.Context, source []byte) ([]ngram.TokenSequence, error)

	// Normalize maps a token to the symbol the language model counts
	// (e.g., all identifiers -> "ID")
	Normalize(token ngram.Token) string

	// Language returns the language this tokenizer handles
	Language() string
}

// Sentences tokenizes a document and normalizes every token. Empty sentences
// and tokens that collide with the sentence markers are dropped.
func Sentences(ctx context.Context, tok Tokenizer, source []byte) ([]ngram.Sentence, error) {
	sequences, err := tok.Tokenize(ctx, source)
	if err != nil {
		return nil, err
	}

	sents := make([]ngram.Sentence, 0, len(sequences))
	for _, seq := range sequences {
		sent := make(ngram.Sentence, 0, len(seq))
		for _, token := range seq {
			symbol := tok.Normalize(token)
			if symbol == "" || ngram.IsReserved(symbol) {
				continue
			}
			sent = append(sent, symbol)
		}
		if len(sent) > 0 {
			sents = append(sents, sent)
		}
	}
	return sents, nil
}

// TokenizerRegistry manages tokenizers for different languages
type TokenizerRegistry struct {
	tokenizers map[string]Tokenizer
	extensions map[string]string // file extension -> language
}

// NewTokenizerRegistry creates a new tokenizer registry
func NewTokenizerRegistry() *TokenizerRegistry {
	return &TokenizerRegistry{
		tokenizers: make(map[string]Tokenizer),
		extensions: make(map[string]string),
	}
}

// NewDefaultRegistry registers every built-in tokenizer. Natural-language
// tokenizers lowercase their tokens when lowercase is set.
func NewDefaultRegistry(lowercase bool) (*TokenizerRegistry, error) {
	tr := NewTokenizerRegistry()

	text := NewTextTokenizer(lowercase)
	tr.Register(LanguageWhitespace, NewWhitespaceTokenizer(lowercase), []string{".tok"})
	tr.Register(LanguageText, text, []string{".txt"})
	tr.Register(LanguageHTML, NewHTMLTokenizer(text), []string{".html", ".htm"})

	for _, spec := range sourceLanguages() {
		tok, err := newSourceTokenizer(spec)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s tokenizer: %w", spec.name, err)
		}
		tr.Register(spec.name, tok, spec.extensions)
	}
	return tr, nil
}

// Register adds a tokenizer for a specific language
func (tr *TokenizerRegistry) Register(language string, tokenizer Tokenizer, extensions []string) {
	tr.tokenizers[language] = tokenizer
	for _, ext := range extensions {
		tr.extensions[ext] = language
	}
}

// GetTokenizer returns the tokenizer for a given language
func (tr *TokenizerRegistry) GetTokenizer(language string) (Tokenizer, bool) {
	tokenizer, ok := tr.tokenizers[language]
	return tokenizer, ok
}

// GetTokenizerByExtension returns the tokenizer for a given file extension
func (tr *TokenizerRegistry) GetTokenizerByExtension(extension string) (Tokenizer, bool) {
	language, ok := tr.extensions[extension]
	if !ok {
		return nil, false
	}
	return tr.GetTokenizer(language)
}

// SupportedLanguages returns a sorted list of all supported languages
func (tr *TokenizerRegistry) SupportedLanguages() []string {
	languages := make([]string, 0, len(tr.tokenizers))
	for lang := range tr.tokenizers {
		languages = append(languages, lang)
	}
	sort.Strings(languages)
	return languages
}
