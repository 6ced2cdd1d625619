package sync

import (
	"regexp"
	"strings"

	"github.com/openshelf/bibsync-service/internal/domain"
)

// Canonical abstract URL embedded in every exported citation entry. The
// bibcode segment may carry a percent-encoded ampersand.
var abstractURLRe = regexp.MustCompile(`https://ui\.adsabs\.harvard\.edu/abs/([^/\s]+)/abstract`)

// PartitionCitationText splits a bulk citation-text export back into
// per-bibcode entries. Entries are separated by blank lines and are matched
// to a bibcode by the embedded canonical abstract URL first, falling back
// to substring containment of the bibcode itself. Bibcodes with no matching
// entry are absent from the result.
func PartitionCitationText(blob string, bibcodes []string) map[string]string {
	entries := splitEntries(blob)
	if len(entries) == 0 {
		return map[string]string{}
	}

	byURL := make(map[string]string, len(entries))
	for _, entry := range entries {
		if m := abstractURLRe.FindStringSubmatch(entry); m != nil {
			key := strings.ReplaceAll(m[1], "%26", "&")
			if _, seen := byURL[key]; !seen {
				byURL[key] = entry
			}
		}
	}

	out := make(map[string]string, len(bibcodes))
	for _, bibcode := range bibcodes {
		if bibcode == "" {
			continue
		}
		if entry, ok := byURL[bibcode]; ok {
			out[bibcode] = entry
			continue
		}
		for _, entry := range entries {
			if strings.Contains(entry, bibcode) {
				out[bibcode] = entry
				break
			}
		}
	}
	return out
}

func splitEntries(blob string) []string {
	var entries []string
	for _, chunk := range strings.Split(strings.ReplaceAll(blob, "\r\n", "\n"), "\n\n") {
		if entry := strings.TrimSpace(chunk); entry != "" {
			entries = append(entries, entry)
		}
	}
	return entries
}

// chunkPapers slices papers into consecutive windows of at most size items.
func chunkPapers(papers []*domain.Paper, size int) [][]*domain.Paper {
	if size <= 0 {
		size = 1
	}
	var chunks [][]*domain.Paper
	for start := 0; start < len(papers); start += size {
		end := start + size
		if end > len(papers) {
			end = len(papers)
		}
		chunks = append(chunks, papers[start:end])
	}
	return chunks
}

// chunkStrings slices values into consecutive windows of at most size items.
func chunkStrings(values []string, size int) [][]string {
	if size <= 0 {
		size = 1
	}
	var chunks [][]string
	for start := 0; start < len(values); start += size {
		end := start + size
		if end > len(values) {
			end = len(values)
		}
		chunks = append(chunks, values[start:end])
	}
	return chunks
}
