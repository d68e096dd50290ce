package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/openings-cli/internal/model"
	"github.com/sells-group/openings-cli/internal/store"
)

var (
	fuseCity   string
	fuseDryRun bool
)

var fuseCmd = &cobra.Command{
	Use:   "fuse",
	Short: "Run signal fusion over a city's records and persist the leads",
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

		records, err := st.ListRecords(ctx, store.RecordFilter{City: fuseCity})
		if err != nil {
			return eris.Wrap(err, "list records")
		}
		if len(records) == 0 {
			return eris.Errorf("no records found for city %q (run import first)", fuseCity)
		}

		orc := initOracle()
		eng, err := initEngine(orc)
		if err != nil {
			return err
		}

		leads, stats, err := eng.Run(ctx, records)
		if err != nil {
			return eris.Wrap(err, "fusion run")
		}

		if !fuseDryRun {
			events := make([]model.Event, 0, len(leads))
			for i := range leads {
				events = append(events, leads[i].Evidence...)
			}
			if err := st.SaveEvents(ctx, events); err != nil {
				return eris.Wrap(err, "save events")
			}
			if err := st.SaveLeads(ctx, leads); err != nil {
				return eris.Wrap(err, "save leads")
			}
			runID, err := st.SaveRun(ctx, fuseCity, stats)
			if err != nil {
				return eris.Wrap(err, "save run")
			}
			zap.L().Info("run persisted", zap.String("run_id", runID))
		}

		zap.L().Info("fusion complete",
			zap.String("city", fuseCity),
			zap.Int("records", stats.RecordsIn),
			zap.Int("addresses", stats.AddressesEvaluated),
			zap.Int("filtered", stats.OperationalFiltered),
			zap.Int("unmatched", stats.RuleUnmatched),
			zap.Int("leads", stats.LeadsProduced),
			zap.Int("deduped", stats.LeadsDeduped),
			zap.Int("oracle_fallbacks", stats.OracleFallbacks),
			zap.Duration("elapsed", stats.Duration),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	},
}

func init() {
	fuseCmd.Flags().StringVar(&fuseCity, "city", "", "city to fuse (required)")
	fuseCmd.Flags().BoolVar(&fuseDryRun, "dry-run", false, "run without persisting events or leads")
	_ = fuseCmd.MarkFlagRequired("city")
	rootCmd.AddCommand(fuseCmd)
}
