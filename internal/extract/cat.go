package extract

import (
	"fmt"
	"strings"

	"github.com/lu4p/cat"

	"github.com/hyperjump/vecbucket/internal/apperr"
)

// extractWithCat handles ODT and RTF, which cat detects from the content itself.
func extractWithCat(content []byte) (string, error) {
	text, err := cat.FromBytes(content)
	if err != nil {
		return "", fmt.Errorf("extract document: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", apperr.Invalid("extract", "document has no text")
	}
	return text, nil
}
