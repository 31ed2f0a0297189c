package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zmaroo/RepoAnalyzer/internal/types"
)

func TestClassify_ExactFilename(t *testing.T) {
	c := New()
	got, err := c.Classify("Dockerfile", []byte("FROM alpine\n"))
	require.NoError(t, err)
	assert.Equal(t, "dockerfile", got.LanguageID)
	assert.Equal(t, confidenceExactFilename, got.Confidence)
}

func TestClassify_Extension(t *testing.T) {
	c := New()
	got, err := c.Classify("main.go", []byte("package main\n"))
	require.NoError(t, err)
	assert.Equal(t, "go", got.LanguageID)
	assert.Equal(t, types.ParserKindAST, got.ParserKind)
	assert.Equal(t, confidenceExtension, got.Confidence)
}

func TestClassify_TypeScriptFallsBackToJavaScript(t *testing.T) {
	c := New()
	got, err := c.Classify("app.ts", []byte("const x: number = 1\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"javascript"}, got.Fallbacks)
}

func TestClassify_Shebang(t *testing.T) {
	c := New()
	got, err := c.Classify("script", []byte("#!/usr/bin/env python\nprint(1)\n"))
	require.NoError(t, err)
	assert.Equal(t, "python", got.LanguageID)
	assert.Equal(t, confidenceShebang, got.Confidence)
}

func TestClassify_ContentHeuristicXML(t *testing.T) {
	c := New()
	got, err := c.Classify("data.unknown", []byte("<?xml version=\"1.0\"?><root/>"))
	require.NoError(t, err)
	assert.Equal(t, "xml", got.LanguageID)
	assert.Equal(t, confidenceContent, got.Confidence)
}

func TestClassify_PlaintextFallback(t *testing.T) {
	c := New()
	got, err := c.Classify("unknown.xyz", []byte("hello there"))
	require.NoError(t, err)
	assert.Equal(t, "plaintext", got.LanguageID)
	assert.Equal(t, types.ParserKindNone, got.ParserKind)
	assert.Equal(t, confidencePlaintext, got.Confidence)
}

func TestClassify_BinaryByMagicNumber(t *testing.T) {
	c := New()
	png := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	got, err := c.Classify("img.png", png)
	require.NoError(t, err)
	assert.Equal(t, types.FileKindBinary, got.FileKind)
	assert.Equal(t, types.ParserKindNone, got.ParserKind)
}

func TestClassify_BinaryByNullByteRatio(t *testing.T) {
	c := New()
	content := make([]byte, 200)
	for i := range content {
		if i%50 == 0 {
			content[i] = 0
		} else {
			content[i] = 'a'
		}
	}
	got, err := c.Classify("blob.unknownext", content)
	require.NoError(t, err)
	assert.Equal(t, types.FileKindBinary, got.FileKind)
}

func TestClassify_MinifiedJSIsNotBinary(t *testing.T) {
	c := New()
	got, err := c.Classify("bundle.min.js", []byte("var a=1;"))
	require.NoError(t, err)
	assert.NotEqual(t, types.FileKindBinary, got.FileKind)
}

func TestClassify_ExcludeGlobForcesPlaintext(t *testing.T) {
	c := New().WithExcludeGlobs([]string{"**/vendor/**"})
	got, err := c.Classify("third_party/vendor/lib.go", []byte("package main\n"))
	require.NoError(t, err)
	assert.Equal(t, "plaintext", got.LanguageID)
}

func TestClassify_UnreadableBytes(t *testing.T) {
	c := New()
	_, err := c.Classify("somefile", nil)
	require.Error(t, err)
}

func TestClassify_Deterministic(t *testing.T) {
	c := New()
	a, err1 := c.Classify("main.go", []byte("package main\n"))
	b, err2 := c.Classify("main.go", []byte("package main\n"))
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, a, b)
}
