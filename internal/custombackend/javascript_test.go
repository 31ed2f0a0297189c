package custombackend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJavaScript_Supports(t *testing.T) {
	j := NewJavaScript()
	assert.True(t, j.Supports("javascript"))
	assert.False(t, j.Supports("typescript"))
	assert.False(t, j.Supports("python"))
}

func TestJavaScript_Parse_TopLevelFunctionAndClass(t *testing.T) {
	j := NewJavaScript()
	source := []byte(`function greet(name) {
    return "Hello, " + name;
}

class Animal {
    speak() {
        return this.name;
    }
}
`)
	tree, err := j.Parse(source)
	require.NoError(t, err)
	require.NotNil(t, tree)
	assert.Equal(t, "javascript", tree.Language)
	assert.Equal(t, "javascript-fast", tree.Backend)
	assert.False(t, tree.Root.HasError)
	require.NotNil(t, tree.Root)

	var kinds []string
	for _, c := range tree.Root.Children {
		kinds = append(kinds, c.Kind)
	}
	assert.Contains(t, kinds, "function_declaration")
	assert.Contains(t, kinds, "class_declaration")
}

func TestJavaScript_Parse_VariableAndReturn(t *testing.T) {
	j := NewJavaScript()
	source := []byte("const add = (a, b) => a + b;\n")
	tree, err := j.Parse(source)
	require.NoError(t, err)
	require.NotEmpty(t, tree.Root.Children)
	assert.Equal(t, "variable_declaration", tree.Root.Children[0].Kind)
}

func TestJavaScript_Parse_ChildSpansCoverSource(t *testing.T) {
	j := NewJavaScript()
	source := []byte("let a = 1;\nlet b = 2;\n")
	tree, err := j.Parse(source)
	require.NoError(t, err)
	require.Len(t, tree.Root.Children, 2)

	first, second := tree.Root.Children[0], tree.Root.Children[1]
	assert.Equal(t, uint32(0), first.Span.StartByte)
	assert.Equal(t, second.Span.StartByte, first.Span.EndByte)
	assert.Equal(t, uint32(len(source)), second.Span.EndByte)
}

func TestJavaScript_Parse_InvalidSyntaxYieldsErrorNode(t *testing.T) {
	j := NewJavaScript()
	source := []byte(`function broken( { return }`)

	tree, err := j.Parse(source)
	require.NoError(t, err, "a custom backend may still report a successful, partial parse")
	require.NotNil(t, tree)
	assert.True(t, tree.Root.HasError)
	assert.Equal(t, "text", tree.Root.Kind)
	assert.Equal(t, source, tree.Root.Text)
}

func TestComputeLineStarts(t *testing.T) {
	starts := computeLineStarts("ab\ncd\n\nef")
	assert.Equal(t, []int{0, 3, 6, 7}, starts)
}

func TestOffsetToPoint(t *testing.T) {
	lineStarts := computeLineStarts("ab\ncd\nef")
	p := offsetToPoint(4, lineStarts)
	assert.Equal(t, 1, p.Row)
	assert.Equal(t, 1, p.Column)
}
