package domain

// Metadata keys shared by the chunker, indexer and synthesizer.
const (
	MetaFileID       = "file_id"
	MetaFilename     = "filename"
	MetaTitle        = "title"
	MetaName         = "name"
	MetaSource       = "source"
	MetaFileType     = "file_type"
	MetaModifiedTime = "modified_time"
	MetaChunkIndex   = "chunk_index"
	MetaContent      = "content"
	MetaTargetID     = "target_id"
	MetaPageNumber   = "page_number"
	MetaRowIndex     = "row_index"
	MetaURL          = "url"
)

// Chunk is a bounded span of document text prepared as one embedding unit.
// Overlap is the number of leading runes repeated from the previous chunk.
type Chunk struct {
	Text     string
	Index    int
	Overlap  int
	Metadata map[string]any
}

// VectorRecord is the unit written to a vector store.
type VectorRecord struct {
	ID       string
	Values   []float32
	Metadata map[string]any
}

// Match is a similarity search hit.
type Match struct {
	ID       string
	Score    float32
	Metadata map[string]any
}

// MetaString reads a string metadata field, tolerating absent or non-string values.
func MetaString(meta map[string]any, key string) string {
	if meta == nil {
		return ""
	}
	s, _ := meta[key].(string)
	return s
}

// MetaInt reads an integer metadata field. JSON round-trips turn ints into float64.
func MetaInt(meta map[string]any, key string) (int, bool) {
	if meta == nil {
		return 0, false
	}
	switch v := meta[key].(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case float32:
		return int(v), true
	}
	return 0, false
}

// IndexStats summarizes a vector index.
type IndexStats struct {
	Dimension        int              `json:"dimension"`
	TotalRecordCount int64            `json:"totalRecordCount"`
	Namespaces       map[string]int64 `json:"namespaces"`
}
