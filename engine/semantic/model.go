// Package semantic resolves free-text model names to registry models by
// embedding similarity, backed by a Qdrant collection.
package semantic

// Payload fields stored with every model vector.
const (
	FieldName  = "name"
	FieldBrand = "brand"
	FieldModel = "model"
)

// SearchResult is a single vector search hit.
type SearchResult struct {
	ID    string            `json:"id"`
	Score float32           `json:"score"`
	Name  string            `json:"name"`
	Brand string            `json:"brand"`
	Model string            `json:"model"`
	Meta  map[string]string `json:"meta,omitempty"`
}

// VectorRecord is a single vector to store in Qdrant.
type VectorRecord struct {
	ID        string
	Embedding []float32
	Payload   map[string]any
}
