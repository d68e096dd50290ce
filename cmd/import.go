package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/openings-cli/internal/ingest"
)

var (
	importFile    string
	importCity    string
	importDataset string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import normalized records from a file (json, yaml, csv, xlsx)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		records, skipped, err := ingest.ParseFile(importFile, importCity, importDataset)
		if err != nil {
			return eris.Wrap(err, "parse records file")
		}

		inserted, err := st.InsertRecords(ctx, records)
		if err != nil {
			return eris.Wrap(err, "insert records")
		}

		zap.L().Info("import complete",
			zap.String("file", importFile),
			zap.String("city", importCity),
			zap.String("dataset", importDataset),
			zap.Int("inserted", inserted),
			zap.Int("skipped", skipped),
		)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importFile, "file", "", "path to records file (required)")
	importCmd.Flags().StringVar(&importCity, "city", "", "city for rows without a city column (required)")
	importCmd.Flags().StringVar(&importDataset, "dataset", "", "dataset name for rows without a dataset column")
	_ = importCmd.MarkFlagRequired("file")
	_ = importCmd.MarkFlagRequired("city")
	rootCmd.AddCommand(importCmd)
}
