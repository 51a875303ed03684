package commands

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/lookbook/internal/db"
	"github.com/kailas-cloud/lookbook/internal/domain"
	recommenduc "github.com/kailas-cloud/lookbook/internal/usecase/recommend"
)

type recommendOptions struct {
	n           int
	k           int
	description string
	image       string
	format      string
}

func newRecommendCmd(opts *globalOptions) *cobra.Command {
	ro := &recommendOptions{}
	cmd := &cobra.Command{
		Use:   "recommend <query>",
		Short: "Run one recommendation from the command line",
		Long: `Run the full pipeline once and print the recommended items.

Examples:
  lookbook recommend "looking for warm winter outerwear"
  lookbook recommend --n 6 --k 50 "a dress for a summer wedding"
  lookbook recommend --image ./shirt.jpg "what trousers go with this"
  lookbook recommend --format json "running shoes"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateNonNegative(ro.n, "n"); err != nil {
				return err
			}
			if err := validateNonNegative(ro.k, "k"); err != nil {
				return err
			}
			if ro.format != "text" && ro.format != "json" {
				return fmt.Errorf("--format must be text or json, got %q", ro.format)
			}
			if ro.description != "" && ro.image != "" {
				return fmt.Errorf("--item-description and --image are mutually exclusive")
			}
			a, err := loadApp(opts)
			if err != nil {
				return err
			}
			defer func() { _ = a.logger.Sync() }()
			return a.recommend(cmd, args[0], ro)
		},
	}
	cmd.Flags().IntVar(&ro.n, "n", 0, "Number of items to return (default recommend.default_n)")
	cmd.Flags().IntVar(&ro.k, "k", 0, "Candidates retrieved before reranking (default recommend.default_k)")
	cmd.Flags().StringVar(&ro.description, "item-description", "", "Description of an item the user already has")
	cmd.Flags().StringVar(&ro.image, "image", "", "Image path or URL of an item the user already has")
	cmd.Flags().StringVar(&ro.format, "format", "text", "Output format: text or json")
	return cmd
}

func (a *app) recommend(cmd *cobra.Command, query string, ro *recommendOptions) error {
	ctx := cmd.Context()
	idx, err := a.loadIndex()
	if err != nil {
		return err
	}
	cache, err := a.openCache(ctx)
	if err != nil {
		return err
	}
	var (
		kv       db.KVStore
		counters db.CounterStore
	)
	if cache != nil {
		defer cache.Close()
		kv, counters = cache, cache
	}
	embedder, err := a.queryEmbedder(kv)
	if err != nil {
		return err
	}
	gen, _, err := a.generator(ctx, counters)
	if err != nil {
		return err
	}

	itemDesc := ro.description
	if ro.image != "" {
		img, err := imageArg(ro.image)
		if err != nil {
			return err
		}
		describer, err := a.describer(gen)
		if err != nil {
			return err
		}
		if itemDesc, err = describer.Describe(ctx, img); err != nil {
			return err //nolint:wrapcheck // ErrCaption with detail
		}
	}

	pipeline, err := a.pipeline(idx, embedder, gen)
	if err != nil {
		return err
	}
	rec, err := pipeline.Recommend(ctx, recommenduc.Request{
		Query:           query,
		ItemDescription: itemDesc,
		N:               ro.n,
		K:               ro.k,
	})
	if err != nil {
		return err //nolint:wrapcheck // StageError names the failing stage
	}
	return printRecommendation(cmd, ro.format, itemDesc, rec)
}

type itemOutput struct {
	ID          int    `json:"id"`
	Description string `json:"description"`
}

type recommendationOutput struct {
	NormalizedIntent string       `json:"normalized_intent"`
	ItemDescription  string       `json:"item_description,omitempty"`
	Items            []itemOutput `json:"items"`
}

func printRecommendation(cmd *cobra.Command, format, itemDesc string, rec domain.Recommendation) error {
	out := cmd.OutOrStdout()
	if format == "json" {
		items := make([]itemOutput, len(rec.Items))
		for i, it := range rec.Items {
			items[i] = itemOutput{ID: it.ID, Description: it.Description}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		//nolint:wrapcheck // stdout write
		return enc.Encode(recommendationOutput{
			NormalizedIntent: rec.NormalizedIntent.String(),
			ItemDescription:  itemDesc,
			Items:            items,
		})
	}

	if itemDesc != "" {
		fmt.Fprintf(out, "Item: %s\n", truncate(itemDesc, 100))
	}
	fmt.Fprintf(out, "Intent: %s\n\n", rec.NormalizedIntent)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tID\tDESCRIPTION")
	for i, it := range rec.Items {
		fmt.Fprintf(w, "%d\t%d\t%s\n", i+1, it.ID, truncate(it.Description, 80))
	}
	return w.Flush() //nolint:wrapcheck // stdout write
}
