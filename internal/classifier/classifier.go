// Package classifier implements deciding a SourceUnit's language,
// parser kind, and binary-ness from its path and a bounded content sniff.
//
// Binary detection keeps the extension table and magic-number/byte-ratio
// heuristics the engine has always used to keep tree-sitter away from
// non-text input; everything above that (exact filename, extension,
// shebang and content-heuristic stages with confidence scoring) is new
// surface built to the classification contract.
package classifier

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	cerrors "github.com/Zmaroo/RepoAnalyzer/internal/errors"
	"github.com/Zmaroo/RepoAnalyzer/internal/types"
)

const sniffPrefixLimit = 64 * 1024

// Confidence levels for a classification decision.
const (
	confidenceExactFilename = 1.0
	confidenceExtension     = 0.9
	confidenceShebang       = 0.85
	confidenceContent       = 0.6
	confidencePlaintext     = 0.0
)

// Classifier holds the static lookup tables used by the four classification
// stages. It carries no mutable state and is safe for concurrent use.
type Classifier struct {
	exactFilenames   map[string]string
	extensions       map[string]string
	binaryExtensions map[string]bool
	shebangs         []shebangRule
	fallbacks        map[string][]string
	// excludeGlobs lets a host force specific paths to plaintext (e.g.
	// vendored or generated trees) ahead of any other stage.
	excludeGlobs []string
}

type shebangRule struct {
	prefix   string
	language string
}

// New returns a Classifier pre-loaded with the engine's default tables.
func New() *Classifier {
	return &Classifier{
		exactFilenames: map[string]string{
			"Dockerfile":       "dockerfile",
			"Makefile":         "makefile",
			"makefile":         "makefile",
			"CMakeLists.txt":   "cmake",
			"Rakefile":         "ruby",
			"Gemfile":          "ruby",
			"Vagrantfile":      "ruby",
			"go.mod":           "go-mod",
			"go.sum":           "go-mod",
			".gitignore":       "gitignore",
			".editorconfig":    "editorconfig",
			"package.json":     "json",
			"tsconfig.json":    "json",
			"Cargo.toml":       "toml",
		},
		extensions: map[string]string{
			".go":     "go",
			".py":     "python",
			".rs":     "rust",
			".java":   "java",
			".c":      "c",
			".h":      "c",
			".cpp":    "cpp",
			".cc":     "cpp",
			".hpp":    "cpp",
			".cs":     "c-sharp",
			".php":    "php",
			".zig":    "zig",
			".js":     "javascript",
			".mjs":    "javascript",
			".cjs":    "javascript",
			".jsx":    "javascript",
			".ts":     "typescript",
			".tsx":    "typescript",
			".md":     "markdown",
			".markdown": "markdown",
			".rst":    "rst",
			".adoc":   "asciidoc",
			".ini":    "ini",
			".cfg":    "ini",
			".toml":   "toml",
			".yaml":   "yaml",
			".yml":    "yaml",
			".xml":    "xml",
			".json":   "json",
			".env":    "env",
			".graphql": "graphql",
			".gql":    "graphql",
			".txt":    "plaintext",
		},
		binaryExtensions: defaultBinaryExtensions(),
		shebangs: []shebangRule{
			{"#!/usr/bin/env python", "python"},
			{"#!/usr/bin/python", "python"},
			{"#!/usr/bin/env node", "javascript"},
			{"#!/usr/bin/env bash", "bash"},
			{"#!/bin/bash", "bash"},
			{"#!/bin/sh", "bash"},
			{"#!/usr/bin/env ruby", "ruby"},
		},
		fallbacks: map[string][]string{
			"typescript": {"javascript"},
			"markdown":   {"plaintext"},
			"rst":        {"plaintext"},
			"asciidoc":   {"plaintext"},
			"dockerfile": {"plaintext"},
			"makefile":   {"plaintext"},
			"cmake":      {"plaintext"},
			"gitignore":  {"plaintext"},
		},
	}
}

// WithExcludeGlobs returns a copy of the Classifier that treats any path
// matching one of the doublestar glob patterns as forced plaintext before
// any other stage runs.
func (c *Classifier) WithExcludeGlobs(globs []string) *Classifier {
	cp := *c
	cp.excludeGlobs = globs
	return &cp
}

// Classify decides a SourceUnit's classification. bytesPrefix should be at most 64 KiB; the caller
// is responsible for truncating larger inputs before calling in, but
// Classify truncates defensively regardless.
func (c *Classifier) Classify(path string, bytesPrefix []byte) (types.Classification, error) {
	if bytesPrefix == nil {
		return types.Classification{}, cerrors.NewClassificationError(path, errUnreadable)
	}
	if len(bytesPrefix) > sniffPrefixLimit {
		bytesPrefix = bytesPrefix[:sniffPrefixLimit]
	}

	for _, g := range c.excludeGlobs {
		if ok, _ := doublestar.Match(g, path); ok {
			return types.Classification{
				LanguageID: "plaintext",
				ParserKind: types.ParserKindNone,
				FileKind:   types.FileKindDoc,
				Confidence: confidencePlaintext,
			}, nil
		}
	}

	if c.isBinary(path, bytesPrefix) {
		return types.Classification{
			LanguageID: "binary",
			ParserKind: types.ParserKindNone,
			FileKind:   types.FileKindBinary,
			Confidence: confidenceExtension,
		}, nil
	}

	base := filepath.Base(path)

	// Stage 1: exact filename table.
	if lang, ok := c.exactFilenames[base]; ok {
		return c.build(lang, confidenceExactFilename), nil
	}

	// Stage 2: extension table.
	ext := strings.ToLower(filepath.Ext(path))
	if lang, ok := c.extensions[ext]; ok {
		return c.build(lang, confidenceExtension), nil
	}

	// Stage 3: shebang sniff.
	if lang, ok := c.sniffShebang(bytesPrefix); ok {
		return c.build(lang, confidenceShebang), nil
	}

	// Stage 4: content heuristics.
	if lang, ok := c.sniffContent(bytesPrefix); ok {
		return c.build(lang, confidenceContent), nil
	}

	// Fallback.
	return types.Classification{
		LanguageID: "plaintext",
		ParserKind: types.ParserKindNone,
		FileKind:   types.FileKindDoc,
		Confidence: confidencePlaintext,
	}, nil
}

func (c *Classifier) build(languageID string, confidence float64) types.Classification {
	return types.Classification{
		LanguageID: languageID,
		ParserKind: parserKindFor(languageID),
		FileKind:   fileKindFor(languageID),
		Confidence: confidence,
		Fallbacks:  c.fallbacks[languageID],
	}
}

func (c *Classifier) sniffShebang(prefix []byte) (string, bool) {
	if len(prefix) < 2 || prefix[0] != '#' || prefix[1] != '!' {
		return "", false
	}
	line := prefix
	if idx := bytes.IndexByte(prefix, '\n'); idx >= 0 {
		line = prefix[:idx]
	}
	for _, rule := range c.shebangs {
		if strings.HasPrefix(string(line), rule.prefix) {
			return rule.language, true
		}
	}
	return "", false
}

func (c *Classifier) sniffContent(prefix []byte) (string, bool) {
	trimmed := bytes.TrimLeft(prefix, " \t\r\n")
	switch {
	case bytes.HasPrefix(trimmed, []byte("<?xml")):
		return "xml", true
	case bytes.HasPrefix(trimmed, []byte("{")) || bytes.HasPrefix(trimmed, []byte("[")):
		return "json", true
	case isTOMLTableHeader(trimmed):
		return "toml", true
	}
	return "", false
}

func isTOMLTableHeader(prefix []byte) bool {
	for _, line := range bytes.Split(prefix, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		return len(line) > 2 && line[0] == '[' && line[len(line)-1] == ']'
	}
	return false
}

// parserKindFor reports which backend, if any, serves a language id. This
// mirrors the grammar table in package astbackend without importing it
// (classifier must not depend on the backend layer per the dependency DAG).
func parserKindFor(languageID string) types.ParserKind {
	switch languageID {
	case "go", "python", "rust", "java", "c", "cpp", "c-sharp", "php", "zig", "javascript", "typescript":
		return types.ParserKindAST
	case "toml", "markdown", "rst", "asciidoc", "ini", "yaml", "xml", "json", "env", "editorconfig", "graphql":
		return types.ParserKindCustom
	default:
		return types.ParserKindNone
	}
}

func fileKindFor(languageID string) types.FileKind {
	switch languageID {
	case "go", "python", "rust", "java", "c", "cpp", "c-sharp", "php", "zig", "javascript", "typescript":
		return types.FileKindCode
	case "markdown", "rst", "asciidoc", "plaintext":
		return types.FileKindDoc
	case "toml", "yaml", "ini", "env", "editorconfig", "dockerfile", "makefile", "cmake", "gitignore":
		return types.FileKindConfig
	case "json", "xml", "graphql", "go-mod":
		return types.FileKindData
	default:
		return types.FileKindDoc
	}
}

var errUnreadable = errReadable("bytes prefix unavailable")

type errReadable string

func (e errReadable) Error() string { return string(e) }

// isBinary combines extension and magic-number/byte-ratio detection.
func (c *Classifier) isBinary(path string, content []byte) bool {
	if c.isBinaryByExtension(path) {
		return true
	}
	if len(content) > 0 {
		return c.isBinaryByMagicNumber(content)
	}
	return false
}

func (c *Classifier) isBinaryByExtension(path string) bool {
	if strings.HasSuffix(path, ".min.js") || strings.HasSuffix(path, ".min.css") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return false
	}
	isBinary, exists := c.binaryExtensions[ext]
	return exists && isBinary
}

func (c *Classifier) isBinaryByMagicNumber(content []byte) bool {
	checkLen := 512
	if len(content) < checkLen {
		checkLen = len(content)
	}
	sample := content[:checkLen]

	switch {
	case bytes.HasPrefix(sample, []byte{0x1F, 0x8B}): // gzip
		return true
	case bytes.HasPrefix(sample, []byte{0x50, 0x4B, 0x03, 0x04}),
		bytes.HasPrefix(sample, []byte{0x50, 0x4B, 0x05, 0x06}): // ZIP
		return true
	case bytes.HasPrefix(sample, []byte{0x89, 0x50, 0x4E, 0x47}): // PNG
		return true
	case bytes.HasPrefix(sample, []byte{0xFF, 0xD8, 0xFF}): // JPEG
		return true
	case bytes.HasPrefix(sample, []byte{0x47, 0x49, 0x46, 0x38}): // GIF
		return true
	case bytes.HasPrefix(sample, []byte{0x25, 0x50, 0x44, 0x46}): // PDF
		return true
	case bytes.HasPrefix(sample, []byte{0x7F, 0x45, 0x4C, 0x46}): // ELF
		return true
	case bytes.HasPrefix(sample, []byte{0x4D, 0x5A}): // DOS/Windows
		return true
	case bytes.HasPrefix(sample, []byte{0xCA, 0xFE, 0xBA, 0xBE}): // Mach-O
		return true
	case bytes.HasPrefix(sample, []byte{0x77, 0x4F, 0x46, 0x46}),
		bytes.HasPrefix(sample, []byte{0x77, 0x4F, 0x46, 0x32}): // WOFF/WOFF2
		return true
	}

	nullBytes, nonPrintable := 0, 0
	for _, b := range sample {
		if b == 0 {
			nullBytes++
		}
		if b < 0x20 && b != 0x09 && b != 0x0A && b != 0x0D {
			nonPrintable++
		}
	}
	if nullBytes > len(sample)/100 {
		return true
	}
	if nonPrintable > len(sample)*30/100 {
		return true
	}
	return false
}

func defaultBinaryExtensions() map[string]bool {
	return map[string]bool{
		".woff": true, ".woff2": true, ".ttf": true, ".otf": true, ".eot": true,
		".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true,
		".ico": true, ".webp": true, ".svg": false, ".tiff": true, ".tif": true,
		".zip": true, ".tar": true, ".gz": true, ".bz2": true, ".xz": true,
		".7z": true, ".rar": true, ".jar": true, ".war": true, ".ear": true,
		".exe": true, ".dll": true, ".so": true, ".dylib": true, ".a": true,
		".o": true, ".obj": true, ".bin": true,
		".mp3": true, ".mp4": true, ".avi": true, ".mov": true, ".wmv": true,
		".flv": true, ".wav": true, ".flac": true, ".ogg": true,
		".pdf": true, ".doc": true, ".docx": true, ".xls": true, ".xlsx": true,
		".ppt": true, ".pptx": true,
		".db": true, ".sqlite": true, ".sqlite3": true,
		".min.js": false, ".min.css": false, ".map": false, ".proto": false,
		".pyc": true, ".pyo": true, ".class": true, ".pickle": true, ".pkl": true,
	}
}
