// Package identifiers provides pure functions for cleaning, normalizing and
// extracting bibliographic identifiers (DOI, arXiv ID, bibcode) from strings.
//
// All functions in this package are total: they never fail, and malformed
// input degrades to an empty result rather than an error.
package identifiers

import (
	"regexp"
	"strings"
)

// Known garbage suffixes appended to DOIs by publisher landing pages.
var doiGarbageSuffixes = []string{
	"/abstract",
	"/full",
	"/pdf",
	"/CITE/REFWORKS",
}

// Publisher asset and image sub-paths occasionally glued onto a DOI.
var doiSubPathMarkers = []string{
	"/asset/",
	"/image/",
}

var doiPrefixRe = regexp.MustCompile(`(?i)^(?:https?://(?:dx\.)?doi\.org/|doi\.org/|doi:\s*)`)

// CleanDOI strips protocol and "doi:" prefixes and known garbage suffixes
// from a raw DOI string. It is pure, total and idempotent: applying it twice
// yields the same result as applying it once.
func CleanDOI(raw string) string {
	doi := strings.TrimSpace(raw)

	// Prefixes can be stacked ("doi: https://doi.org/10...."); strip until
	// none remain so a second pass is a no-op.
	for {
		stripped := doiPrefixRe.ReplaceAllString(doi, "")
		if stripped == doi {
			break
		}
		doi = stripped
	}

	// Suffixes can stack too ("10.1/x/pdf/"): stripping one can expose
	// another, so run marker, suffix and trailing-slash trimming to a
	// fixpoint as well.
	for {
		prev := doi

		for _, marker := range doiSubPathMarkers {
			if idx := strings.Index(doi, marker); idx >= 0 {
				doi = doi[:idx]
			}
		}

		for _, suffix := range doiGarbageSuffixes {
			if strings.HasSuffix(strings.ToUpper(doi), strings.ToUpper(suffix)) {
				doi = doi[:len(doi)-len(suffix)]
			}
		}

		doi = strings.TrimSuffix(strings.TrimSpace(doi), "/")
		if doi == prev {
			return doi
		}
	}
}

// NormalizeDOI returns the canonical matching form of a DOI: cleaned and
// lowercased. DOI matching is case-insensitive exact comparison.
func NormalizeDOI(raw string) string {
	return strings.ToLower(CleanDOI(raw))
}

var (
	// New-style arXiv identifiers: 2301.12345 or 2301.1234, optional version.
	arxivNewRe = regexp.MustCompile(`(?i)^(?:arxiv:\s*)?(\d{4}\.\d{4,5})(v\d+)?$`)
	// Old-style arXiv identifiers: astro-ph/0601001, math.GT/0309136, optional version.
	arxivOldRe = regexp.MustCompile(`(?i)^(?:arxiv:\s*)?([a-z-]+(?:\.[A-Za-z]{2})?/\d{7})(v\d+)?$`)
)

// ExtractArxivID scans identifier candidates in order and returns the first
// that is a new-style or old-style arXiv identifier, with or without an
// "arXiv:" prefix. Input order determines precedence. The returned value
// keeps its version suffix; use NormalizeArxivID for matching.
func ExtractArxivID(candidates []string) (string, bool) {
	for _, candidate := range candidates {
		c := strings.TrimSpace(candidate)
		if m := arxivNewRe.FindStringSubmatch(c); m != nil {
			return m[1] + m[2], true
		}
		if m := arxivOldRe.FindStringSubmatch(c); m != nil {
			return m[1] + m[2], true
		}
	}
	return "", false
}

var arxivVersionRe = regexp.MustCompile(`(?i)v\d+$`)

// NormalizeArxivID returns the canonical matching form of an arXiv
// identifier: "arXiv:" prefix and version suffix stripped. "2301.12345",
// "arXiv:2301.12345" and "2301.12345v2" all normalize to "2301.12345".
func NormalizeArxivID(raw string) string {
	id := strings.TrimSpace(raw)
	if len(id) >= 6 && strings.EqualFold(id[:6], "arxiv:") {
		id = strings.TrimSpace(id[6:])
	}
	return arxivVersionRe.ReplaceAllString(id, "")
}

// NormalizeBibcode returns the dot-stripped form of a bibcode, used as a
// secondary match key because bibcode punctuation can vary between sources.
// Case is preserved: bibcode matching is case-sensitive.
func NormalizeBibcode(raw string) string {
	return strings.ReplaceAll(strings.TrimSpace(raw), ".", "")
}
