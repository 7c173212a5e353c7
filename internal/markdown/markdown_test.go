package markdown

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRenderEmpty(t *testing.T) {
	out, err := Render("")
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestRenderHeading(t *testing.T) {
	out, err := Render("<h1>Getting Started</h1>")
	require.NoError(t, err)
	require.Equal(t, "# Getting Started", out)
}

func TestRenderParagraph(t *testing.T) {
	out, err := Render("<p>hello world</p>")
	require.NoError(t, err)
	require.Equal(t, "hello world", out)
}

func TestRenderStructure(t *testing.T) {
	html := `<h2>Displays</h2>
<p>Pair a <strong>display</strong> with your account.</p>
<ul><li>Open the app</li><li>Enter the pairing code</li></ul>
<p>See <a href="https://support.example.test/pairing">the pairing guide</a> for details.</p>
<pre><code>device pair --code 123</code></pre>`

	out, err := Render(html)
	require.NoError(t, err)

	require.Contains(t, out, "## Displays")
	require.Contains(t, out, "**display**")
	require.Contains(t, out, "- Open the app")
	require.Contains(t, out, "- Enter the pairing code")
	require.Contains(t, out, "[the pairing guide](https://support.example.test/pairing)")
	require.Contains(t, out, "device pair --code 123")

	// No HTML survives.
	require.NotContains(t, out, "<p>")
	require.NotContains(t, out, "<ul>")
	require.NotContains(t, out, "</")
}

func TestRenderKeepsPlainText(t *testing.T) {
	out, err := Render("already plain text")
	require.NoError(t, err)
	require.Equal(t, "already plain text", out)
}
