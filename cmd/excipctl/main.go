// Command excipctl queries the compound database and the prediction service from a terminal.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Skufu/excipredict/internal/analytics"
	"github.com/Skufu/excipredict/internal/config"
	"github.com/Skufu/excipredict/internal/dataset"
	"github.com/Skufu/excipredict/internal/prediction"
	"github.com/Skufu/excipredict/internal/table"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfg *config.Config

	root := &cobra.Command{
		Use:          "excipctl",
		Short:        "Drug-excipient compatibility tools",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			return err
		},
	}

	root.AddCommand(newSearchCmd(&cfg), newPredictCmd(&cfg), newAnalyticsCmd(&cfg))
	return root
}

func newSearchCmd(cfg **config.Config) *cobra.Command {
	var sortField, dir string

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Filter and sort the compound database",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			field, err := table.ParseField(sortField)
			if err != nil {
				return err
			}
			direction, err := table.ParseDirection(dir)
			if err != nil {
				return err
			}

			records, err := dataset.Open((*cfg).Dataset.Path)
			if err != nil {
				return err
			}
			engine, err := table.New(records)
			if err != nil {
				return err
			}
			if err := engine.SetSort(field, direction); err != nil {
				return err
			}
			if len(args) == 1 {
				engine.SetQuery(args[0])
			}

			view := engine.View()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "\tID\tDRUG NAME\tSMILE CODE (drug)\tEXCIPIENT NAME")
			for _, r := range view.Records {
				marker := ""
				if view.PrimaryMatch != nil && *view.PrimaryMatch == r.ID {
					marker = "*"
				}
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n", marker, r.ID, r.DrugName, r.StructureCode, r.ExcipientName)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d of %d compounds\n", len(view.Records), view.Total)
			return nil
		},
	}

	cmd.Flags().StringVar(&sortField, "sort", string(table.FieldDrugName), "sort field: id, drugName, structureCode, excipientName")
	cmd.Flags().StringVar(&dir, "dir", string(table.Asc), "sort direction: asc or desc")
	return cmd
}

func newPredictCmd(cfg **config.Config) *cobra.Command {
	var in prediction.Input

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Ask the prediction service whether a drug and an excipient are compatible",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := *cfg
			pipeline := prediction.NewPipeline(prediction.NewClient(c.Prediction.BaseURL, c.Prediction.Timeout()))
			defer pipeline.Close()

			ticket, err := pipeline.Submit(in)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), c.Prediction.Timeout()+5*time.Second)
			defer cancel()
			out, err := ticket.Wait(ctx)
			if err != nil {
				return err
			}

			verdict := "Not Compatible"
			if out.Compatible {
				verdict = "Compatible"
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Prediction:  %s\n", verdict)
			fmt.Fprintf(w, "Probability: %.1f%%\n", out.Probability)
			fmt.Fprintf(w, "Risk level:  %s\n", out.RiskLevel)
			if len(out.SummaryLines) > 0 {
				fmt.Fprintf(w, "\n%s\n", strings.Join(out.SummaryLines, "\n\n"))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&in.DrugName, "drug", "", "drug name")
	cmd.Flags().StringVar(&in.StructureCode, "smiles", "", "drug structure code (SMILES)")
	cmd.Flags().StringVar(&in.ExcipientName, "excipient", "", "excipient name")
	return cmd
}

func newAnalyticsCmd(cfg **config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "analytics",
		Short: "Print the usage counters of the prediction service",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := *cfg
			if c.Analytics.BaseURL == "" {
				return fmt.Errorf("ANALYTICS_URL is not configured")
			}
			counters, err := analytics.NewRemoteClient(c.Analytics.BaseURL, c.Analytics.Timeout()).Fetch(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(counters)
		},
	}
}
