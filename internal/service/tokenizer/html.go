package tokenizer

import (
	"bytes"
	"context"
	"fmt"

	"lm-go/internal/model/ngram"

	"github.com/PuerkitoBio/goquery"
)

const blockElements = "p, div, li, br, tr, h1, h2, h3, h4, h5, h6, blockquote, pre, section, article"

// HTMLTokenizer extracts the visible text of an HTML document and hands it to
// a text tokenizer
type HTMLTokenizer struct {
	text *TextTokenizer
}

// NewHTMLTokenizer creates a tokenizer for HTML documents
func NewHTMLTokenizer(text *TextTokenizer) *HTMLTokenizer {
	return &HTMLTokenizer{text: text}
}

func (t *HTMLTokenizer) Tokenize(ctx context.Context, source []byte) ([]ngram.TokenSequence, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(source))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find("script, style, noscript, template").Remove()
	// Block boundaries end sentences even when the markup has no whitespace
	doc.Find(blockElements).AfterHtml("\n")

	var buf bytes.Buffer
	doc.Find("body").Each(func(_ int, s *goquery.Selection) {
		buf.WriteString(s.Text())
		buf.WriteByte('\n')
	})
	if buf.Len() == 0 {
		buf.WriteString(doc.Text())
	}

	return t.text.Tokenize(ctx, buf.Bytes())
}

func (t *HTMLTokenizer) Normalize(token ngram.Token) string {
	return t.text.Normalize(token)
}

func (t *HTMLTokenizer) Language() string {
	return LanguageHTML
}
