package identifiers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanDOI(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"bare doi", "10.1086/160554", "10.1086/160554"},
		{"https prefix", "https://doi.org/10.1086/160554", "10.1086/160554"},
		{"dx prefix", "http://dx.doi.org/10.1086/160554", "10.1086/160554"},
		{"doi scheme", "doi:10.1086/160554", "10.1086/160554"},
		{"doi scheme with space", "doi: 10.1086/160554", "10.1086/160554"},
		{"stacked prefixes", "doi:https://doi.org/10.1086/160554", "10.1086/160554"},
		{"abstract suffix", "10.1002/andp.19053221004/abstract", "10.1002/andp.19053221004"},
		{"full suffix", "10.1002/andp.19053221004/full", "10.1002/andp.19053221004"},
		{"pdf suffix", "10.1002/andp.19053221004/pdf", "10.1002/andp.19053221004"},
		{"refworks suffix", "10.1002/andp.19053221004/CITE/REFWORKS", "10.1002/andp.19053221004"},
		{"asset sub-path", "10.1002/andp.19053221004/asset/figures/fig1.png", "10.1002/andp.19053221004"},
		{"image sub-path", "10.1002/andp.19053221004/image/fig1.png", "10.1002/andp.19053221004"},
		{"trailing slash", "10.1086/160554/", "10.1086/160554"},
		{"suffix behind trailing slash", "10.1234/j.x/pdf/", "10.1234/j.x"},
		{"stacked suffixes", "10.1002/andp.1/abstract/full", "10.1002/andp.1"},
		{"surrounding whitespace", "  10.1086/160554  ", "10.1086/160554"},
		{"empty", "", ""},
		{"garbage", "not a doi", "not a doi"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanDOI(tt.raw))
		})
	}
}

// CleanDOI must be idempotent: cleaning a cleaned DOI changes nothing.
func TestCleanDOIIdempotent(t *testing.T) {
	inputs := []string{
		"10.1086/160554",
		"https://doi.org/10.1086/160554",
		"doi:10.1002/andp.19053221004/abstract",
		"10.1002/andp.19053221004/asset/fig.png",
		"10.1234/j.x/pdf/",
		"10.1/abstract/full",
		"10.1002/a/full/pdf/abstract/",
		"",
		"random text",
	}
	for _, raw := range inputs {
		once := CleanDOI(raw)
		assert.Equal(t, once, CleanDOI(once), "CleanDOI not idempotent for %q", raw)
	}
}

func TestNormalizeDOI(t *testing.T) {
	assert.Equal(t, "10.1086/abc", NormalizeDOI("DOI:10.1086/ABC"))
	assert.Equal(t, NormalizeDOI("10.1086/AbC"), NormalizeDOI("10.1086/aBc"))
}

func TestExtractArxivID(t *testing.T) {
	tests := []struct {
		name       string
		candidates []string
		want       string
		found      bool
	}{
		{"new style", []string{"2301.12345"}, "2301.12345", true},
		{"new style short", []string{"0704.0001"}, "0704.0001", true},
		{"new style versioned", []string{"2301.12345v2"}, "2301.12345v2", true},
		{"prefixed", []string{"arXiv:2301.12345"}, "2301.12345", true},
		{"prefix case insensitive", []string{"ARXIV:2301.12345"}, "2301.12345", true},
		{"old style", []string{"astro-ph/0601001"}, "astro-ph/0601001", true},
		{"old style subclass", []string{"math.GT/0309136"}, "math.GT/0309136", true},
		{"old style versioned prefixed", []string{"arXiv:hep-th/9901001v3"}, "hep-th/9901001v3", true},
		{"order determines precedence", []string{"10.1086/160554", "2301.12345", "2302.99999"}, "2301.12345", true},
		{"no match", []string{"10.1086/160554", "2023ApJ...945L..13S"}, "", false},
		{"empty input", nil, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractArxivID(tt.candidates)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

// The three spellings of the same preprint must normalize identically so
// they land on one canonical paper.
func TestNormalizeArxivIDUnifiesVariants(t *testing.T) {
	variants := []string{"2301.12345", "arXiv:2301.12345", "2301.12345v2", "arXiv:2301.12345v9"}
	for _, v := range variants {
		assert.Equal(t, "2301.12345", NormalizeArxivID(v), "variant %q", v)
	}

	assert.Equal(t, "astro-ph/0601001", NormalizeArxivID("arXiv:astro-ph/0601001v2"))
}

func TestNormalizeBibcode(t *testing.T) {
	assert.Equal(t, "2023ApJ945L13S", NormalizeBibcode("2023ApJ...945L..13S"))
	assert.Equal(t, "2023ApJ945L13S", NormalizeBibcode("2023ApJ945L13S"))
	// Case is preserved; bibcode matching stays case-sensitive.
	assert.NotEqual(t, NormalizeBibcode("2023apj...945l..13s"), NormalizeBibcode("2023ApJ...945L..13S"))
}
