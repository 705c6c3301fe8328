package tokenizer

import (
	"unsafe"

	golang "github.com/tree-sitter/tree-sitter-go/bindings/go"
	java "github.com/tree-sitter/tree-sitter-java/bindings/go"
	javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// languageSpec describes how one grammar is turned into model symbols
type languageSpec struct {
	name       string
	extensions []string
	grammar    func() unsafe.Pointer
	symbols    map[string]string // node kind -> normalized symbol
	skip       map[string]bool   // node kinds dropped with their subtree
}

func sourceLanguages() []languageSpec {
	comments := map[string]bool{"comment": true}

	return []languageSpec{
		{
			name:       "go",
			extensions: []string{".go"},
			grammar:    golang.Language,
			symbols: map[string]string{
				"identifier":                 "ID",
				"field_identifier":           "ID",
				"type_identifier":            "ID",
				"package_identifier":         "ID",
				"int_literal":                "NUM",
				"float_literal":              "NUM",
				"imaginary_literal":          "NUM",
				"raw_string_literal":         "STR",
				"interpreted_string_literal": "STR",
				"rune_literal":               "CHAR",
				"true":                       "BOOL",
				"false":                      "BOOL",
				"nil":                        "NIL",
			},
			skip: comments,
		},
		{
			name:       "python",
			extensions: []string{".py"},
			grammar:    python.Language,
			symbols: map[string]string{
				"identifier": "ID",
				"integer":    "NUM",
				"float":      "NUM",
				"string":     "STR",
				"true":       "BOOL",
				"false":      "BOOL",
				"none":       "NONE",
			},
			skip: map[string]bool{"comment": true, "line_continuation": true},
		},
		{
			name:       "java",
			extensions: []string{".java"},
			grammar:    java.Language,
			symbols: map[string]string{
				"identifier":                     "ID",
				"type_identifier":                "ID",
				"decimal_integer_literal":        "NUM",
				"hex_integer_literal":            "NUM",
				"octal_integer_literal":          "NUM",
				"binary_integer_literal":         "NUM",
				"decimal_floating_point_literal": "NUM",
				"hex_floating_point_literal":     "NUM",
				"string_literal":                 "STR",
				"character_literal":              "STR",
				"true":                           "BOOL",
				"false":                          "BOOL",
				"null_literal":                   "NULL",
			},
			skip: map[string]bool{"line_comment": true, "block_comment": true},
		},
		{
			name:       "javascript",
			extensions: []string{".js", ".jsx", ".mjs", ".cjs"},
			grammar:    javascript.Language,
			symbols: map[string]string{
				"identifier":          "ID",
				"property_identifier": "ID",
				"number":              "NUM",
				"string":              "STR",
				"template_string":     "STR",
				"regex":               "REGEX",
				"true":                "BOOL",
				"false":               "BOOL",
				"null":                "NULL",
				"undefined":           "UNDEF",
			},
			skip: comments,
		},
		{
			name:       "typescript",
			extensions: []string{".ts"},
			grammar:    typescript.LanguageTypescript,
			symbols: map[string]string{
				"identifier":          "ID",
				"property_identifier": "ID",
				"type_identifier":     "ID",
				"number":              "NUM",
				"string":              "STR",
				"template_string":     "STR",
				"regex":               "REGEX",
				"true":                "BOOL",
				"false":               "BOOL",
				"null":                "NULL",
				"undefined":           "UNDEF",
			},
			skip: comments,
		},
	}
}
