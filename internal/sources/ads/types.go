package ads

// searchResponse is the envelope returned by /search/query and
// /search/bigquery.
type searchResponse struct {
	Response struct {
		NumFound int   `json:"numFound"`
		Docs     []doc `json:"docs"`
	} `json:"response"`
}

// doc is a single record in a search response. Title and DOI arrive as
// arrays even for single-valued records.
type doc struct {
	Bibcode       string   `json:"bibcode"`
	Title         []string `json:"title"`
	Author        []string `json:"author"`
	Aff           []string `json:"aff"`
	Year          string   `json:"year"`
	Pub           string   `json:"pub"`
	Abstract      string   `json:"abstract"`
	DOI           []string `json:"doi"`
	Identifier    []string `json:"identifier"`
	CitationCount int      `json:"citation_count"`
}

// exportRequest is the body of /export/custom.
type exportRequest struct {
	Bibcode []string `json:"bibcode"`
	Format  string   `json:"format"`
}

// exportResponse is the envelope returned by the export service.
type exportResponse struct {
	Export string `json:"export"`
}

// errorResponse covers the error shapes the API produces.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
