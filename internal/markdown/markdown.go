// Package markdown rewrites help-center HTML bodies into Markdown for
// plain-text indexing.
package markdown

import (
	"fmt"

	md "github.com/JohannesKaufmann/html-to-markdown"
)

// converter is configured once and reused; conversion itself is stateless.
var converter = md.NewConverter("", true, nil)

// Render converts an HTML fragment to Markdown. Headings, emphasis, lists,
// links, blockquotes and code blocks survive the rewrite. Empty input renders
// to empty output without error.
func Render(html string) (string, error) {
	if html == "" {
		return "", nil
	}
	out, err := converter.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("convert html: %w", err)
	}
	return out, nil
}
