// Package search builds engine queries from raw user input and assembles raw
// engine hits into the client-facing response shape.
package search

// Request is a tenant-scoped search request.
type Request struct {
	TenantID string `json:"tenantId"`
	Query    string `json:"query"`
}

// Response is the search response envelope. Engine failures still produce a
// well-formed envelope with Success false and an empty result list.
type Response struct {
	Success bool     `json:"success"`
	Query   string   `json:"query"`
	Total   int      `json:"total"`
	Results []Result `json:"results"`
	Error   string   `json:"error,omitempty"`
}

// Result is one matched document with its match locations.
type Result struct {
	ID         string     `json:"id"`
	FileName   string     `json:"fileName"`
	FolderName string     `json:"folderName"`
	DocType    string     `json:"docType"`
	CreatedAt  string     `json:"createdAt"`
	Locations  []Location `json:"locations"`

	score     float64
	createdAt int64
}

// Location types.
const (
	LocationContent  = "content"
	LocationMetadata = "metadata"
)

// Location describes one place a document matched: either inside a page's
// text (content) or in a named field (metadata).
type Location struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Snippet     string `json:"snippet"`
}
