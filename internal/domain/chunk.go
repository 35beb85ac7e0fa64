package domain

import "time"

// Fields requested from the vector index for every similarity search.
const (
	FieldText              = "text"
	FieldPreContext        = "pre_context"
	FieldPostContext       = "post_context"
	FieldSourceURL         = "source_url"
	FieldSourceDescription = "source_description"
	FieldSourceType        = "source_type"
	FieldOrder             = "order"
	FieldDialect           = "dialect"
	FieldTopic             = "topic"
)

// ChunkFields is the fixed field projection for retrieval queries.
var ChunkFields = []string{
	FieldText,
	FieldPreContext,
	FieldPostContext,
	FieldSourceURL,
	FieldSourceDescription,
	FieldSourceType,
	FieldOrder,
	FieldDialect,
	FieldTopic,
}

// Chunk is a single similarity-search hit from the vector index.
type Chunk struct {
	ID                string
	IndexName         string
	Namespace         string
	Text              string
	PreContext        string
	PostContext       string
	SourceURL         string
	SourceDescription string
	SourceType        string
	Order             int
	Dialect           string
	Topic             string
	Score             float32
	Embedding         []float32
	CreatedAt         time.Time
}

// Source groups the chunks that share one source URL.
type Source struct {
	URL         string
	Description string
	Type        string
	Chunks      []Chunk
}

// ValidateChunk checks the fields required to index a chunk
func ValidateChunk(c *Chunk) error {
	if c == nil {
		return NewDomainError(ErrCodeValidation, "chunk cannot be nil")
	}
	if c.ID == "" {
		return NewDomainError(ErrCodeValidation, "chunk ID is required")
	}
	if c.Text == "" {
		return NewDomainError(ErrCodeValidation, "chunk text is required")
	}
	if c.SourceURL == "" {
		return NewDomainError(ErrCodeValidation, "chunk source_url is required")
	}
	if c.Order < 0 {
		return NewDomainError(ErrCodeValidation, "chunk order cannot be negative")
	}
	return nil
}
