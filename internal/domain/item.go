package domain

// CatalogItem is one catalog entry. ID equals the item's offset in the source
// dataset and never changes after the index is built.
type CatalogItem struct {
	ID          int
	Description string
}

// Candidate is a retrieval hit handed from the retriever to the reranker.
type Candidate struct {
	ID      int
	Content string
	Score   float64 // similarity, informational only
}

// NormalizedIntent is a query that has gone through intent normalization.
// Retrieval accepts only this type so raw user text cannot reach the index.
type NormalizedIntent string

// String returns the intent text.
func (n NormalizedIntent) String() string { return string(n) }

// Recommendation is the terminal output of one pipeline run.
// IDs keeps the reranker's order; Items is IDs resolved against the catalog.
type Recommendation struct {
	NormalizedIntent NormalizedIntent
	IDs              []int
	Items            []CatalogItem
}

// CandidateIDs returns the ids of cands in order.
func CandidateIDs(cands []Candidate) []int {
	ids := make([]int, len(cands))
	for i, c := range cands {
		ids[i] = c.ID
	}
	return ids
}
