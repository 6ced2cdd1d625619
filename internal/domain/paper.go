package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Author represents a paper author. Order within Paper.Authors is the
// citation order and is preserved through merges.
type Author struct {
	Name        string `json:"name"`
	Affiliation string `json:"affiliation,omitempty"`
}

// Surname returns the author's surname using the conventions of formatted
// author strings: the token before the first comma, or the last
// whitespace-delimited token when no comma is present.
func (a Author) Surname() string {
	name := strings.TrimSpace(a.Name)
	if name == "" {
		return ""
	}
	if idx := strings.Index(name, ","); idx >= 0 {
		return strings.TrimSpace(name[:idx])
	}
	fields := strings.Fields(name)
	return fields[len(fields)-1]
}

// Paper is the canonical local record for a scholarly work, regardless of
// how many external sources describe it.
type Paper struct {
	ID            uuid.UUID
	DOI           string
	ArxivID       string
	Bibcode       string
	Title         string
	Authors       []Author
	Year          int
	Journal       string
	Abstract      string
	CitationCount int
	CitationText  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// HasIdentifier reports whether the paper carries at least one exact
// external identifier usable for remote lookup.
func (p *Paper) HasIdentifier() bool {
	return p.DOI != "" || p.ArxivID != "" || p.Bibcode != ""
}

// FirstAuthorSurname returns the surname of the first author, or "" when
// the paper has no authors.
func (p *Paper) FirstAuthorSurname() string {
	if len(p.Authors) == 0 {
		return ""
	}
	return p.Authors[0].Surname()
}
