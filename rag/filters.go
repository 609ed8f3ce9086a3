package rag

import (
	"strings"

	apperrors "power-atlas/errors"
)

// Accepted document types. An empty value or "all" disables the filter.
const (
	DocTypeFacts     = "facts"
	DocTypeNarrative = "narrative"
	DocTypeAll       = "all"
)

// FilterSpec narrows a retrieval to a corpus, a document type or a single
// document. A nil field means no filter on that attribute.
type FilterSpec struct {
	Corpus       *string
	DocType      *string
	DocumentPath *string
}

// BuildQueryParams validates raw filter strings into a FilterSpec.
// doc_type values outside facts/narrative/all fail with InvalidFilterValueError.
func BuildQueryParams(corpus, docType, documentPath string) (FilterSpec, error) {
	dt, err := normalizeDocType(docType)
	if err != nil {
		return FilterSpec{}, err
	}
	return FilterSpec{
		Corpus:       optionalFilter(corpus),
		DocType:      dt,
		DocumentPath: optionalFilter(documentPath),
	}, nil
}

// BuildSparseFilters is BuildQueryParams followed by SparseFilters.
func BuildSparseFilters(corpus, docType, documentPath string) (map[string]string, error) {
	spec, err := BuildQueryParams(corpus, docType, documentPath)
	if err != nil {
		return nil, err
	}
	return spec.SparseFilters(), nil
}

// QueryParams returns every filter key; absent filters map to nil.
func (f FilterSpec) QueryParams() map[string]any {
	return map[string]any{
		"corpus":        derefOrNil(f.Corpus),
		"doc_type":      derefOrNil(f.DocType),
		"document_path": derefOrNil(f.DocumentPath),
	}
}

// SparseFilters returns only the filters that are set.
func (f FilterSpec) SparseFilters() map[string]string {
	out := make(map[string]string, 3)
	if f.Corpus != nil {
		out["corpus"] = *f.Corpus
	}
	if f.DocType != nil {
		out["doc_type"] = *f.DocType
	}
	if f.DocumentPath != nil {
		out["document_path"] = *f.DocumentPath
	}
	return out
}

func normalizeDocType(value string) (*string, error) {
	cleaned := strings.ToLower(strings.TrimSpace(value))
	switch cleaned {
	case "", DocTypeAll:
		return nil, nil
	case DocTypeFacts, DocTypeNarrative:
		return &cleaned, nil
	default:
		return nil, &apperrors.InvalidFilterValueError{
			Field:   "doc_type",
			Value:   value,
			Allowed: []string{DocTypeFacts, DocTypeNarrative, DocTypeAll},
		}
	}
}

func optionalFilter(value string) *string {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return nil
	}
	return &cleaned
}

func derefOrNil(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
