// Package extract turns uploaded files into the plain text that gets stored
// and embedded as a document.
package extract

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hyperjump/vecbucket/internal/apperr"
)

type extractFunc func(content []byte) (string, error)

// Extractor extracts plain text from document files, dispatching on extension.
type Extractor struct {
	formats map[string]extractFunc
}

// NewExtractor returns an Extractor with every built-in format registered.
func NewExtractor() *Extractor {
	return &Extractor{formats: map[string]extractFunc{
		".txt":  extractPlain,
		".md":   extractPlain,
		".rst":  extractPlain,
		".json": extractPlain,
		".csv":  extractPlain,
		".pdf":  extractPDF,
		".docx": extractDOCX,
		".pptx": extractPPTX,
		".xlsx": extractExcel,
		".odp":  extractODP,
		".ods":  extractODS,
		".odt":  extractWithCat,
		".rtf":  extractWithCat,
	}}
}

// Extract reads the file at path and returns its text content.
func (e *Extractor) Extract(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", apperr.E(apperr.InvalidInput, "extract", path, err)
	}
	text, err := e.ExtractBytes(content, filepath.Ext(path))
	if err != nil {
		return "", apperr.E(apperr.InvalidInput, "extract", path, err)
	}
	return text, nil
}

// ExtractBytes extracts text from content based on ext (with leading dot).
// Unknown extensions are treated as plain text.
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	fn, ok := e.formats[strings.ToLower(ext)]
	if !ok {
		fn = extractPlain
	}
	return fn(content)
}

// Supported reports whether ext has a dedicated extractor.
func (e *Extractor) Supported(ext string) bool {
	_, ok := e.formats[strings.ToLower(ext)]
	return ok
}

// Extensions lists the registered extensions in sorted order.
func (e *Extractor) Extensions() []string {
	out := make([]string, 0, len(e.formats))
	for ext := range e.formats {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}
