package graph

// DocumentInfo identifies a source document. UID equals Path for files
// ingested from disk.
type DocumentInfo struct {
	Path         string
	UID          string
	Metadata     map[string]any
	DocumentType string
}

// AttachDocumentProvenance stamps every entity node with the document path,
// the document metadata and its doc_type. Existing properties are kept and
// lexical nodes are left alone.
func AttachDocumentProvenance(nodes []Node, doc DocumentInfo) {
	for i := range nodes {
		node := &nodes[i]
		if node.Label == DocumentLabel || node.Label == ChunkLabel {
			continue
		}
		if node.Properties == nil {
			node.Properties = make(map[string]any)
		}
		setDefault(node.Properties, DocumentPathProperty, doc.Path)
		for k, v := range doc.Metadata {
			setDefault(node.Properties, k, v)
		}
		if doc.DocumentType != "" {
			setDefault(node.Properties, DocTypeProperty, doc.DocumentType)
		}
	}
}

func setDefault(m map[string]any, key string, value any) {
	if _, ok := m[key]; !ok {
		m[key] = value
	}
}
