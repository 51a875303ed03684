// Package lookbook embeds the fashion recommender in a Go program.
//
// A Client loads a prebuilt embedding index (see "lookbook build") and runs
// the recommendation pipeline in-process: the query is normalized by a
// language model, matched against the index, and the nearest candidates are
// reranked by a second model call.
//
//	client, err := lookbook.New(
//	    lookbook.WithIndexDir("data/index"),
//	    lookbook.WithEmbeddingProvider("https://api.deepinfra.com/v1/openai", embKey, "BAAI/bge-base-en-v1.5", 768),
//	    lookbook.WithCompletionProvider("https://api.groq.com/openai/v1", groqKey),
//	)
//	rec, err := client.Recommend(ctx, "something warm for a winter wedding", lookbook.WithN(4))
//	for _, item := range rec.Items {
//	    fmt.Println(item.ID, item.Description)
//	}
//
// Failures carry the pipeline stage that produced them:
//
//	if stage, ok := lookbook.StageOf(err); ok {
//	    log.Printf("%s failed: %v", stage, err)
//	}
package lookbook
