// Package models defines the documents, requests and responses shared by the
// repository, the query engine, the HTTP server and the CLI.
package models

// Document is a stored document. Its JSON form is exactly the metadata blob
// persisted next to the vector; the embedding lives in its own blob.
type Document struct {
	DocID     string    `json:"doc_id"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"-"`
}

// DocumentSummary is one entry of a document listing.
type DocumentSummary struct {
	DocID       string `json:"doc_id"`
	TextPreview string `json:"text_preview"`
}

// DocumentInput is the payload for adding a document. An empty DocID asks the
// server to generate one.
type DocumentInput struct {
	DocID string `json:"doc_id"`
	Text  string `json:"text"`
}

// DocumentList is the response for a document listing.
type DocumentList struct {
	Documents []DocumentSummary `json:"documents"`
}
