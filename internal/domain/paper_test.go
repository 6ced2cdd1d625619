package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuthorSurname(t *testing.T) {
	tests := []struct {
		name   string
		author Author
		want   string
	}{
		{"comma separated", Author{Name: "Accomazzi, Alberto"}, "Accomazzi"},
		{"comma with extra spaces", Author{Name: "  van der Berg , Jan"}, "van der Berg"},
		{"plain given-first", Author{Name: "Alberto Accomazzi"}, "Accomazzi"},
		{"single token", Author{Name: "Aristotle"}, "Aristotle"},
		{"empty name", Author{Name: ""}, ""},
		{"whitespace only", Author{Name: "   "}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.author.Surname())
		})
	}
}

func TestPaperFirstAuthorSurname(t *testing.T) {
	t.Run("no authors", func(t *testing.T) {
		p := &Paper{}
		assert.Equal(t, "", p.FirstAuthorSurname())
	})

	t.Run("uses first author only", func(t *testing.T) {
		p := &Paper{Authors: []Author{{Name: "Doe, Jane"}, {Name: "Smith, John"}}}
		assert.Equal(t, "Doe", p.FirstAuthorSurname())
	})
}

func TestPaperHasIdentifier(t *testing.T) {
	assert.False(t, (&Paper{}).HasIdentifier())
	assert.True(t, (&Paper{DOI: "10.1086/160554"}).HasIdentifier())
	assert.True(t, (&Paper{ArxivID: "2301.12345"}).HasIdentifier())
	assert.True(t, (&Paper{Bibcode: "2023ApJ...945...1A"}).HasIdentifier())
}

func TestEdgeHasTargetIdentifier(t *testing.T) {
	assert.False(t, (&Edge{TargetSourceID: "opaque"}).HasTargetIdentifier())
	assert.True(t, (&Edge{TargetDOI: "10.1000/x"}).HasTargetIdentifier())
	assert.True(t, (&Edge{TargetArxivID: "2301.12345"}).HasTargetIdentifier())
	assert.True(t, (&Edge{TargetBibcode: "2023ApJ...945...1A"}).HasTargetIdentifier())
}
