package lookbook

// Item is one catalog entry. ID is stable for the lifetime of an index.
type Item struct {
	ID          int
	Description string
}

// Recommendation is the result of one pipeline run. Items keep the
// reranker's order.
type Recommendation struct {
	NormalizedIntent string
	Items            []Item
	Usage            Usage
}

// Image is a garment picture for Describe: either a public http(s) URL or
// raw image bytes.
type Image struct {
	URL   string
	Bytes []byte
}

// IndexInfo describes the loaded index.
type IndexInfo struct {
	BuildID    string
	Model      string
	Items      int
	Dimensions int
}
