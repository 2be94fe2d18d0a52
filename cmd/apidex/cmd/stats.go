package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			p, err := openPipeline(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = p.close(false) }()

			stats, err := p.engine.Stats(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(stats)
			}

			fmt.Fprintf(out, "Documents:       %d\n", stats.Documents)
			fmt.Fprintf(out, "Keyword indexed: %d\n", stats.SparseIndexed)
			fmt.Fprintf(out, "Vectors:         %d\n", stats.Vectors)
			fmt.Fprintf(out, "Embed cache:     %d entries\n", stats.EmbedCacheLen)
			fmt.Fprintf(out, "Rerank cache:    %d entries\n", stats.RerankCacheLen)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
