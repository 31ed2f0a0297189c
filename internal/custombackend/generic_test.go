package custombackend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineBackend_SupportsOnlyItsOwnFormat(t *testing.T) {
	assert.True(t, NewINI().Supports("ini"))
	assert.False(t, NewINI().Supports("env"))
	assert.True(t, NewMarkdown().Supports("markdown"))
	assert.True(t, NewPlainText().Supports("plaintext"))
}

func TestLineBackend_INI_ClassifiesSections(t *testing.T) {
	source := []byte("; comment\n[core]\nautocrlf = input\n")
	tree, err := NewINI().Parse(source)
	require.NoError(t, err)

	var kinds []string
	for _, c := range tree.Root.Children {
		kinds = append(kinds, c.Kind)
	}
	assert.Equal(t, []string{"comment", "section_header", "key_value_pair"}, kinds)
	assert.Equal(t, "generic-lines", tree.Backend)
}

func TestLineBackend_Markdown_ClassifiesHeadingsAndFences(t *testing.T) {
	source := []byte("# Title\n\n```go\ncode\n```\n")
	tree, err := NewMarkdown().Parse(source)
	require.NoError(t, err)

	var kinds []string
	for _, c := range tree.Root.Children {
		kinds = append(kinds, c.Kind)
	}
	assert.Equal(t, []string{"heading", "fence", "text", "fence"}, kinds)
}

func TestLineBackend_PlainText_EverythingIsText(t *testing.T) {
	source := []byte("line one\nline two\n")
	tree, err := NewPlainText().Parse(source)
	require.NoError(t, err)
	require.Len(t, tree.Root.Children, 2)
	for _, c := range tree.Root.Children {
		assert.Equal(t, "text", c.Kind)
	}
}

func TestLineBackend_SkipsBlankLines(t *testing.T) {
	source := []byte("a = 1\n\n\nb = 2\n")
	tree, err := NewEnv().Parse(source)
	require.NoError(t, err)
	require.Len(t, tree.Root.Children, 2)
}
