package identifiers

import (
	"regexp"
	"strings"
)

// Kind labels what kind of identifier a strategy produced.
type Kind string

const (
	KindDOI     Kind = "doi"
	KindArxivID Kind = "arxiv_id"
	KindBibcode Kind = "bibcode"
)

// Candidate is an identifier proposed by a strategy.
type Candidate struct {
	Kind  Kind
	Value string
}

// Strategy is a pure function mapping free text to an optional identifier.
// Strategies are tried in priority order; the chain is extended by
// appending, never by branching.
type Strategy func(text string) (Candidate, bool)

var (
	// Path segment following /abs/ in ADS-style URLs; the segment may be
	// percent-encoded and is validated as a bibcode after decoding.
	adsURLSegmentRe = regexp.MustCompile(`/abs/([^/?#\s]+)`)

	// A canonical 19-character bibcode in free text.
	bibcodeRe = regexp.MustCompile(`\b[0-9]{4}[A-Za-z][A-Za-z0-9&.]{13}[A-Z]\b`)

	// A full string that is exactly one canonical bibcode.
	bibcodeExactRe = regexp.MustCompile(`^[0-9]{4}[A-Za-z][A-Za-z0-9&.]{13}[A-Z]$`)

	// DOI in free text.
	doiRe = regexp.MustCompile(`\b10\.\d{4,9}/[-._;()/:A-Za-z0-9]+`)

	// arXiv identifier in free text; the prefix is required to avoid false
	// positives on bare number groups.
	arxivTextRe = regexp.MustCompile(`(?i)\barxiv:\s*(\d{4}\.\d{4,5}(?:v\d+)?|[a-z-]+(?:\.[A-Za-z]{2})?/\d{7}(?:v\d+)?)`)
)

// BibcodeFromURL extracts a bibcode from an ADS-style abstract URL.
func BibcodeFromURL(text string) (Candidate, bool) {
	for _, m := range adsURLSegmentRe.FindAllStringSubmatch(text, -1) {
		segment := strings.ReplaceAll(m[1], "%26", "&")
		if bibcodeExactRe.MatchString(segment) {
			return Candidate{Kind: KindBibcode, Value: segment}, true
		}
	}
	return Candidate{}, false
}

// DOIFromText extracts the first DOI-shaped token from free text and cleans it.
func DOIFromText(text string) (Candidate, bool) {
	if m := doiRe.FindString(text); m != "" {
		if doi := CleanDOI(m); doi != "" {
			return Candidate{Kind: KindDOI, Value: doi}, true
		}
	}
	return Candidate{}, false
}

// ArxivIDFromText extracts the first prefixed arXiv identifier from free text.
func ArxivIDFromText(text string) (Candidate, bool) {
	if m := arxivTextRe.FindStringSubmatch(text); m != nil {
		return Candidate{Kind: KindArxivID, Value: m[1]}, true
	}
	return Candidate{}, false
}

// BibcodeFromText extracts the first canonical bibcode from free text.
func BibcodeFromText(text string) (Candidate, bool) {
	if m := bibcodeRe.FindString(text); m != "" {
		return Candidate{Kind: KindBibcode, Value: m}, true
	}
	return Candidate{}, false
}

// DefaultStrategies returns the standard extraction chain in priority order:
// DOI, then arXiv ID, then bibcode.
func DefaultStrategies() []Strategy {
	return []Strategy{DOIFromText, ArxivIDFromText, BibcodeFromText}
}

// ExtractFirst runs strategies in order and returns the first candidate.
func ExtractFirst(text string, strategies []Strategy) (Candidate, bool) {
	for _, strategy := range strategies {
		if c, ok := strategy(text); ok {
			return c, true
		}
	}
	return Candidate{}, false
}
