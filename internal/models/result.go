package models

// Match is a search hit with its squared L2 distance to the query.
type Match struct {
	DocID    string  `json:"doc_id"`
	Distance float32 `json:"distance"`
}

// SearchResponse lists matching document ids, nearest first.
type SearchResponse struct {
	Matches []string `json:"matches"`
}

// IndexStatus describes the persisted similarity index.
type IndexStatus struct {
	State   string `json:"state"`
	Type    string `json:"type"`
	Vectors int    `json:"vectors"`
	Backend string `json:"backend"`
}

// Status is the service status report.
type Status struct {
	Status         string      `json:"status"`
	DocumentCount  int         `json:"document_count"`
	EmbeddingModel string      `json:"embedding_model"`
	Index          IndexStatus `json:"index"`
}
