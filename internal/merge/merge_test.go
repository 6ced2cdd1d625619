package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openshelf/bibsync-service/internal/domain"
)

func TestMeaningful(t *testing.T) {
	assert.False(t, Meaningful(nil))
	assert.False(t, Meaningful(""))
	assert.False(t, Meaningful([]string{}))
	assert.False(t, Meaningful(map[string]interface{}{}))
	assert.False(t, Meaningful((*int)(nil)))

	assert.True(t, Meaningful("x"))
	assert.True(t, Meaningful(0))
	assert.True(t, Meaningful(false))
	assert.True(t, Meaningful([]string{"a"}))
}

func TestMetadata(t *testing.T) {
	t.Run("incoming meaningful value wins", func(t *testing.T) {
		existing := map[string]interface{}{"title": "old", "year": 1999}
		incoming := map[string]interface{}{"title": "new"}

		merged := Metadata(existing, incoming)
		assert.Equal(t, "new", merged["title"])
		assert.Equal(t, 1999, merged["year"])
	})

	t.Run("empty incoming value keeps existing", func(t *testing.T) {
		existing := map[string]interface{}{"journal": "ApJ", "authors": []string{"Doe"}}
		incoming := map[string]interface{}{"journal": "", "authors": []string{}}

		merged := Metadata(existing, incoming)
		assert.Equal(t, "ApJ", merged["journal"])
		assert.Equal(t, []string{"Doe"}, merged["authors"])
	})

	t.Run("key only in incoming is added even when empty", func(t *testing.T) {
		merged := Metadata(nil, map[string]interface{}{"abstract": ""})
		_, ok := merged["abstract"]
		assert.True(t, ok)
	})

	t.Run("key absent from both is omitted", func(t *testing.T) {
		merged := Metadata(map[string]interface{}{"a": 1}, map[string]interface{}{"b": 2})
		assert.Len(t, merged, 2)
	})

	t.Run("inputs are not mutated", func(t *testing.T) {
		existing := map[string]interface{}{"title": "old"}
		incoming := map[string]interface{}{"title": "new"}
		_ = Metadata(existing, incoming)
		assert.Equal(t, "old", existing["title"])
	})
}

// Monotonicity: for every key with a meaningful existing value, the merged
// value is still meaningful regardless of what the incoming record carries.
func TestMetadataMonotone(t *testing.T) {
	existing := map[string]interface{}{
		"title":   "A Title",
		"year":    2023,
		"authors": []string{"Doe, Jane"},
		"journal": "ApJ",
	}
	incomings := []map[string]interface{}{
		nil,
		{},
		{"title": "", "year": nil, "authors": []string{}, "journal": ""},
		{"title": "New", "authors": []string{"Smith, John"}},
	}

	for _, incoming := range incomings {
		merged := Metadata(existing, incoming)
		for k, v := range existing {
			if Meaningful(v) {
				assert.True(t, Meaningful(merged[k]), "key %q lost its value", k)
			}
		}
	}
}

func TestApplyRemote(t *testing.T) {
	t.Run("meaningful remote fields win", func(t *testing.T) {
		local := &domain.Paper{Title: "Old Title", Year: 2000, Journal: "Old J."}
		remote := &domain.RemotePaper{Title: "New Title", Year: 2023, Abstract: "An abstract."}

		ApplyRemote(local, remote)
		assert.Equal(t, "New Title", local.Title)
		assert.Equal(t, 2023, local.Year)
		assert.Equal(t, "An abstract.", local.Abstract)
		assert.Equal(t, "Old J.", local.Journal)
	})

	t.Run("empty remote fields never blank local ones", func(t *testing.T) {
		local := &domain.Paper{
			Title:         "Kept",
			Authors:       []domain.Author{{Name: "Doe, Jane"}},
			Abstract:      "Kept abstract",
			CitationCount: 41,
		}
		ApplyRemote(local, &domain.RemotePaper{})

		assert.Equal(t, "Kept", local.Title)
		assert.Len(t, local.Authors, 1)
		assert.Equal(t, "Kept abstract", local.Abstract)
		assert.Equal(t, 41, local.CitationCount)
	})

	t.Run("identifiers fill in but never overwrite", func(t *testing.T) {
		local := &domain.Paper{DOI: "10.1086/160554"}
		remote := &domain.RemotePaper{DOI: "10.9999/other", Bibcode: "2023ApJ...945L..13S"}

		ApplyRemote(local, remote)
		assert.Equal(t, "10.1086/160554", local.DOI)
		assert.Equal(t, "2023ApJ...945L..13S", local.Bibcode)
	})

	t.Run("nil safe", func(t *testing.T) {
		assert.NotPanics(t, func() {
			ApplyRemote(nil, &domain.RemotePaper{})
			ApplyRemote(&domain.Paper{}, nil)
		})
	})
}
