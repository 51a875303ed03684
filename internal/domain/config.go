package domain

// VectorConfig holds vectorization defaults used when config leaves them empty.
type VectorConfig struct {
	Model            string
	Dimensions       int
	DistanceMetric   string
	QueryInstruction string
}

// DefaultVectorConfig returns defaults tuned for BAAI/bge-base-en-v1.5,
// which expects an instruction prefix on queries but not on documents.
func DefaultVectorConfig() VectorConfig {
	return VectorConfig{
		Model:            "BAAI/bge-base-en-v1.5",
		Dimensions:       768,
		DistanceMetric:   "cosine",
		QueryInstruction: "Represent this sentence for searching relevant passages: ",
	}
}
