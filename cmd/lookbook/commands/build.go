package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/lookbook/internal/index"
	builduc "github.com/kailas-cloud/lookbook/internal/usecase/build"
)

type buildOptions struct {
	input string
	limit int
	out   string
}

func newBuildCmd(opts *globalOptions) *cobra.Command {
	bo := &buildOptions{}
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Embed the catalog and write the index directory",
		Long: `Embed every catalog description and persist the index.

Descriptions come from --input (a JSON array of strings or one description per
line) or, by default, from the configured Hugging Face dataset. Item ids are
positions in that list. The previous index in the output directory is replaced
only after the new one is fully written.

Examples:
  lookbook build --limit 5000
  lookbook build --input captions.txt --out data/index`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateNonNegative(bo.limit, "limit"); err != nil {
				return err
			}
			a, err := loadApp(opts)
			if err != nil {
				return err
			}
			defer func() { _ = a.logger.Sync() }()
			return a.build(cmd, bo)
		},
	}
	cmd.Flags().StringVar(&bo.input, "input", "", "Catalog file; empty reads the configured dataset")
	cmd.Flags().IntVar(&bo.limit, "limit", 0, "Maximum items to index, 0 = all")
	cmd.Flags().StringVar(&bo.out, "out", "", "Index directory (default index.dir from config)")
	return cmd
}

func (a *app) build(cmd *cobra.Command, bo *buildOptions) error {
	embedder, err := a.baseEmbedder()
	if err != nil {
		return err
	}
	e := a.cfg.Embedding
	builder, err := index.NewBuilder(embedder, index.BuilderConfig{
		Model:      e.Model,
		Dimensions: e.Dimensions,
		Metric:     index.Metric(e.Metric),
		BatchSize:  e.BatchSize,
		Workers:    e.Workers,
		RateLimit:  e.RateLimit,
	}, a.logger)
	if err != nil {
		return fmt.Errorf("create builder: %w", err)
	}

	var src builduc.Source = a.dataset()
	if bo.input != "" {
		src = builduc.FileSource{Path: bo.input}
	}
	dir := bo.out
	if dir == "" {
		dir = a.cfg.Index.Dir
	}

	a.logger.Info("Building index",
		zap.String("model", e.Model),
		zap.String("out", dir),
		zap.Int("limit", bo.limit),
	)
	res, err := builduc.New(builder, a.logger).Run(cmd.Context(), src, dir, bo.limit)
	if err != nil {
		return err //nolint:wrapcheck // ErrBuild with detail
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Index %s written to %s\n", res.BuildID, res.Dir)
	fmt.Fprintf(cmd.OutOrStdout(), "Items: %d embedded, %d skipped of %d (%s)\n",
		res.Stats.Embedded, res.Stats.Skipped, res.Stats.Total, res.Stats.Duration.Round(time.Millisecond))
	return nil
}
