package util

import (
	"path/filepath"
	"strings"
)

func ToRelativePath(rootPath, fullPath string) string {
	relPath, err := filepath.Rel(rootPath, fullPath)
	if err != nil {
		return fullPath
	}
	return relPath
}

func Ptr[T any](v T) *T { return &v }

const (
	noSpaceAfter  = "[(¿¡"
	noSpaceBefore = "])?!.,;:"
)

// Detokenize joins tokens with single spaces, except after opening symbols
// and before closing punctuation
func Detokenize(tokens []string) string {
	var b strings.Builder
	for i, token := range tokens {
		if i > 0 && !attachesLeft(token) && !attachesRight(tokens[i-1]) {
			b.WriteByte(' ')
		}
		b.WriteString(token)
	}
	return b.String()
}

func attachesLeft(token string) bool {
	return len([]rune(token)) == 1 && strings.Contains(noSpaceBefore, token)
}

func attachesRight(token string) bool {
	return len([]rune(token)) == 1 && strings.Contains(noSpaceAfter, token)
}
