package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/elan-ai/elan/pkg/config"
	"github.com/elan-ai/elan/pkg/models"
	"github.com/elan-ai/elan/pkg/usagedb"
)

func newCostCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "cost",
		Short: "Show the latest archived usage and estimated cost per provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if configPath != "" {
				var err error
				cfg, err = config.Load(configPath)
				if err != nil {
					return err
				}
			}

			store, err := usagedb.New(cfg.Usage.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			rows, err := store.Latest(context.Background())
			if err != nil {
				return err
			}

			fmt.Print(formatCostTable(rows))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to elan config file")
	return cmd
}

func formatCostTable(rows []models.UsageSnapshot) string {
	if len(rows) == 0 {
		return "No usage data archived yet.\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Captured at %s\n\n", rows[0].CapturedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "%-20s %10s %14s %18s %12s\n",
		"PROVIDER", "REQUESTS", "PROMPT TOK", "COMPLETION TOK", "EST. COST")
	b.WriteString(strings.Repeat("-", 78) + "\n")

	var totalCost float64
	var totalRequests int64
	for _, r := range rows {
		fmt.Fprintf(&b, "%-20s %10d %14d %18d $%10.4f\n",
			r.Provider, r.Requests, r.PromptTokens, r.CompletionTokens, r.Cost)
		totalCost += r.Cost
		totalRequests += r.Requests
	}
	b.WriteString(strings.Repeat("-", 78) + "\n")
	fmt.Fprintf(&b, "%-20s %10d %33s $%10.4f\n", "TOTAL", totalRequests, "", totalCost)
	return b.String()
}
