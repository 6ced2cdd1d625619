// Package merge combines freshly fetched remote metadata with existing
// local metadata without destroying previously known data.
package merge

import (
	"reflect"

	"github.com/openshelf/bibsync-service/internal/domain"
)

// Meaningful reports whether a value carries information worth keeping.
// Nil, empty strings and empty sequences are not meaningful.
func Meaningful(v interface{}) bool {
	if v == nil {
		return false
	}
	switch val := v.(type) {
	case string:
		return val != ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() > 0
	case reflect.Ptr, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}

// Metadata merges two metadata records field by field. For every key present
// in either record the incoming value wins if it is meaningful; otherwise
// the existing value is kept if present. A key absent from both is omitted.
//
// The merge is shallow (no deep merging of nested structures) and monotone:
// a key with a meaningful existing value never maps to an empty value in
// the result.
func Metadata(existing, incoming map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(existing)+len(incoming))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range incoming {
		if Meaningful(v) {
			merged[k] = v
			continue
		}
		if _, exists := merged[k]; !exists {
			merged[k] = v
		}
	}
	return merged
}

// ApplyRemote merges remote canonical metadata into a local paper using the
// same field-level policy as Metadata: an incoming field wins only when
// meaningful, so a previously known field can never be blanked by a merge.
// Identifier fields are filled in but never overwritten once set; the
// canonical identifiers of an existing record are stable.
func ApplyRemote(local *domain.Paper, remote *domain.RemotePaper) {
	if local == nil || remote == nil {
		return
	}

	if local.DOI == "" && remote.DOI != "" {
		local.DOI = remote.DOI
	}
	if local.ArxivID == "" && remote.ArxivID != "" {
		local.ArxivID = remote.ArxivID
	}
	if local.Bibcode == "" && remote.Bibcode != "" {
		local.Bibcode = remote.Bibcode
	}

	if remote.Title != "" {
		local.Title = remote.Title
	}
	if len(remote.Authors) > 0 {
		local.Authors = remote.Authors
	}
	if remote.Year != 0 {
		local.Year = remote.Year
	}
	if remote.Journal != "" {
		local.Journal = remote.Journal
	}
	if remote.Abstract != "" {
		local.Abstract = remote.Abstract
	}
	if remote.CitationCount > 0 {
		local.CitationCount = remote.CitationCount
	}
	if remote.CitationText != "" {
		local.CitationText = remote.CitationText
	}
}
