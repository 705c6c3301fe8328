package tokenizer

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"lm-go/internal/model/ngram"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// SourceTokenizer tokenizes source code with a tree-sitter grammar. Each
// source line that holds at least one token becomes a sentence.
type SourceTokenizer struct {
	spec     languageSpec
	parser   *tree_sitter.Parser
	language *tree_sitter.Language
	mu       sync.Mutex // Protects parser (tree-sitter parsers are not thread-safe)
}

// newSourceTokenizer creates a tokenizer for one grammar
func newSourceTokenizer(spec languageSpec) (*SourceTokenizer, error) {
	parser := tree_sitter.NewParser()
	language := tree_sitter.NewLanguage(spec.grammar())

	err := parser.SetLanguage(language)
	if err != nil {
		return nil, fmt.Errorf("failed to set %s language: %w", spec.name, err)
	}

	return &SourceTokenizer{
		spec:     spec,
		parser:   parser,
		language: language,
	}, nil
}

func (t *SourceTokenizer) Tokenize(ctx context.Context, source []byte) ([]ngram.TokenSequence, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tree := t.parser.Parse(source, nil)
	if tree == nil {
		return nil, fmt.Errorf("failed to parse %s source", t.spec.name)
	}
	defer tree.Close()

	var tokens ngram.TokenSequence
	t.traverseNode(tree.RootNode(), source, &tokens)

	return groupByLine(tokens), nil
}

func (t *SourceTokenizer) traverseNode(node *tree_sitter.Node, source []byte, tokens *ngram.TokenSequence) {
	if node == nil {
		return
	}

	nodeType := node.Kind()
	if t.spec.skip[nodeType] {
		return
	}

	// Literals such as strings have inner nodes but count as one token
	_, atomic := t.spec.symbols[nodeType]
	if atomic || node.ChildCount() == 0 {
		content := node.Utf8Text(source)
		if strings.TrimSpace(content) == "" {
			return
		}

		startPoint := node.StartPosition()
		*tokens = append(*tokens, ngram.Token{
			Type:   nodeType,
			Value:  content,
			Line:   int(startPoint.Row) + 1,
			Column: int(startPoint.Column) + 1,
		})
		return
	}

	for i := uint(0); i < node.ChildCount(); i++ {
		t.traverseNode(node.Child(i), source, tokens)
	}
}

// groupByLine splits tokens into one sequence per start line
func groupByLine(tokens ngram.TokenSequence) []ngram.TokenSequence {
	var sequences []ngram.TokenSequence
	for i, token := range tokens {
		if i == 0 || token.Line != tokens[i-1].Line {
			sequences = append(sequences, ngram.TokenSequence{})
		}
		last := len(sequences) - 1
		sequences[last] = append(sequences[last], token)
	}
	return sequences
}

func (t *SourceTokenizer) Normalize(token ngram.Token) string {
	if symbol, ok := t.spec.symbols[token.Type]; ok {
		return symbol
	}
	// Keywords, operators, and punctuation keep their text
	return token.Value
}

func (t *SourceTokenizer) Language() string {
	return t.spec.name
}

// Close releases the parser
func (t *SourceTokenizer) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.parser.Close()
}
