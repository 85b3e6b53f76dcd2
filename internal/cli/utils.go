// Package cli renders command results for the vecbucket CLI.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/vecbucket/internal/models"
	"github.com/hyperjump/vecbucket/pkg/utils"
)

// OutputFormat selects how results are written.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

const textPreviewWidth = 200

// ParseOutputFormat accepts "text", "json" or "" (text).
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(OutputText):
		return OutputText, nil
	case string(OutputJSON):
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text or json)", s)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteSearchResults writes matched document ids, nearest first.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	fmt.Fprintf(w, "Found %d matches\n", len(response.Matches))
	for i, id := range response.Matches {
		fmt.Fprintf(w, "%3d. %s\n", i+1, id)
	}
	return nil
}

// WriteMatches writes matches together with their distances.
func WriteMatches(w io.Writer, matches []models.Match, format OutputFormat) error {
	if format == OutputJSON {
		if matches == nil {
			matches = []models.Match{}
		}
		return writeJSON(w, map[string]interface{}{"matches": matches})
	}
	fmt.Fprintf(w, "Found %d matches\n", len(matches))
	for i, m := range matches {
		fmt.Fprintf(w, "%3d. %s (distance %.4f)\n", i+1, m.DocID, m.Distance)
	}
	return nil
}

// WriteDocument writes a single document.
func WriteDocument(w io.Writer, doc *models.Document, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, doc)
	}
	fmt.Fprintf(w, "ID: %s\n\n%s\n", doc.DocID, utils.Truncate(doc.Text, textPreviewWidth))
	return nil
}

// WriteDocumentList writes document summaries, one per line in text mode.
func WriteDocumentList(w io.Writer, docs []models.DocumentSummary, format OutputFormat) error {
	if format == OutputJSON {
		if docs == nil {
			docs = []models.DocumentSummary{}
		}
		return writeJSON(w, models.DocumentList{Documents: docs})
	}
	if len(docs) == 0 {
		fmt.Fprintln(w, "No documents")
		return nil
	}
	for _, d := range docs {
		fmt.Fprintf(w, "%s\t%s\n", d.DocID, strings.ReplaceAll(d.TextPreview, "\n", " "))
	}
	return nil
}

// WriteStatus writes the service status report.
func WriteStatus(w io.Writer, st *models.Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, st)
	}
	fmt.Fprintf(w, "Status:          %s\n", st.Status)
	fmt.Fprintf(w, "Documents:       %d\n", st.DocumentCount)
	fmt.Fprintf(w, "Embedding model: %s\n", st.EmbeddingModel)
	fmt.Fprintf(w, "Index:           %s (%s, %d vectors)\n", st.Index.State, st.Index.Type, st.Index.Vectors)
	fmt.Fprintf(w, "Backend:         %s\n", st.Index.Backend)
	return nil
}
