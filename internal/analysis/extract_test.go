package analysis

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractPage(t *testing.T) {
	doc := `<!doctype html>
<html>
<head>
  <title>  Release   notes </title>
  <meta property="og:description" content="What changed">
  <style>body { color: red }</style>
</head>
<body>
  <header>Site header</header>
  <article>
    <h1>Version 2</h1>
    <p>Faster   builds.</p>
    <noscript>Enable JS</noscript>
    <svg><text>chart</text></svg>
  </article>
  <footer>Copyright</footer>
</body>
</html>`

	page, err := ExtractPage(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, "Release notes", page.Title)
	assert.Equal(t, "What changed", page.Description)
	assert.Equal(t, "Version 2\nFaster builds.", page.Text)
}
