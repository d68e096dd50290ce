package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/openings-cli/internal/store"
)

var (
	leadsCity     string
	leadsMinScore float64
	leadsLimit    int
	leadsJSON     bool
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "List and manage scored leads",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		leads, err := st.ListLeads(ctx, store.LeadFilter{
			City:     leadsCity,
			MinScore: leadsMinScore,
			Limit:    leadsLimit,
		})
		if err != nil {
			return eris.Wrap(err, "list leads")
		}

		if leadsJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(leads)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SCORE\tADDRESS\tNAME\tSTAGE\tDAYS\tRULE\tID")
		for i := range leads {
			l := &leads[i]
			rule := ""
			if ev := l.PrimaryEvent(); ev != nil {
				rule = ev.Rule
			}
			fmt.Fprintf(w, "%.1f\t%s\t%s\t%s\t%d\t%s\t%s\n",
				l.Score, l.Address, l.Name, l.ProjectStage, l.DaysRemaining, rule, l.ID)
		}
		return w.Flush()
	},
}

var leadsShowCmd = &cobra.Command{
	Use:   "show <lead-id>",
	Short: "Print one lead with its full evidence chain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		lead, err := st.GetLead(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "get lead")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(lead)
	},
}

var leadsDeleteCmd = &cobra.Command{
	Use:   "delete <lead-id>",
	Short: "Delete a lead",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.DeleteLead(ctx, args[0]); err != nil {
			return eris.Wrap(err, "delete lead")
		}
		fmt.Println("deleted", args[0])
		return nil
	},
}

func init() {
	leadsCmd.Flags().StringVar(&leadsCity, "city", "", "filter by city")
	leadsCmd.Flags().Float64Var(&leadsMinScore, "min-score", 0, "minimum score")
	leadsCmd.Flags().IntVar(&leadsLimit, "limit", 50, "maximum leads to list")
	leadsCmd.Flags().BoolVar(&leadsJSON, "json", false, "emit JSON instead of a table")
	leadsCmd.AddCommand(leadsShowCmd, leadsDeleteCmd)
	rootCmd.AddCommand(leadsCmd)
}
