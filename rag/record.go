package rag

// RecordSource is the read-only view of one retrieval row that the context
// formatter needs. Accessors return ok=false for absent optional fields.
type RecordSource interface {
	SourcePath() (string, bool)
	HitIndex() (int, bool)
	Score() (float64, bool)
	HitText() string
	Prev() (index int, text string, ok bool)
	Next() (index int, text string, ok bool)
}

// RetrievedRecord is a similarity hit joined with its neighbouring chunks.
// A neighbour is present iff its index is non-nil.
type RetrievedRecord struct {
	Path      *string
	Index     *int
	Sim       *float64
	Text      string
	PrevIndex *int
	PrevText  string
	NextIndex *int
	NextText  string
}

func (r RetrievedRecord) SourcePath() (string, bool) {
	if r.Path == nil {
		return "", false
	}
	return *r.Path, true
}

func (r RetrievedRecord) HitIndex() (int, bool) {
	if r.Index == nil {
		return 0, false
	}
	return *r.Index, true
}

func (r RetrievedRecord) Score() (float64, bool) {
	if r.Sim == nil {
		return 0, false
	}
	return *r.Sim, true
}

func (r RetrievedRecord) HitText() string { return r.Text }

func (r RetrievedRecord) Prev() (int, string, bool) {
	if r.PrevIndex == nil {
		return 0, "", false
	}
	return *r.PrevIndex, r.PrevText, true
}

func (r RetrievedRecord) Next() (int, string, bool) {
	if r.NextIndex == nil {
		return 0, "", false
	}
	return *r.NextIndex, r.NextText, true
}

// MapRecord adapts a loosely typed row (decoded JSON, agtype maps) to
// RecordSource. Keys: source_path, hit_chunk, similarity_score, hit_text,
// prev_chunk, prev_text, next_chunk, next_text. Missing or mistyped values
// read as absent; missing texts read as "".
type MapRecord map[string]any

func (m MapRecord) SourcePath() (string, bool) {
	s, ok := m["source_path"].(string)
	return s, ok
}

func (m MapRecord) HitIndex() (int, bool) { return asInt(m["hit_chunk"]) }

func (m MapRecord) Score() (float64, bool) { return asFloat(m["similarity_score"]) }

func (m MapRecord) HitText() string { return asText(m["hit_text"]) }

func (m MapRecord) Prev() (int, string, bool) {
	idx, ok := asInt(m["prev_chunk"])
	if !ok {
		return 0, "", false
	}
	return idx, asText(m["prev_text"]), true
}

func (m MapRecord) Next() (int, string, bool) {
	idx, ok := asInt(m["next_chunk"])
	if !ok {
		return 0, "", false
	}
	return idx, asText(m["next_text"]), true
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		// encoding/json decodes every number as float64
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func asText(v any) string {
	s, _ := v.(string)
	return s
}
