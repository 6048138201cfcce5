package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/elan-ai/elan/pkg/audit"
	"github.com/elan-ai/elan/pkg/config"
	"github.com/elan-ai/elan/pkg/models"
)

func newAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Query the generation audit log",
	}
	cmd.AddCommand(newAuditSearchCmd(), newAuditStatsCmd())
	return cmd
}

func openAuditLogger(configPath string) (*audit.Logger, func(), error) {
	cfg := config.Default()
	if configPath != "" {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return nil, nil, err
		}
	}
	if cfg.Audit.DBPath == "" {
		return nil, nil, fmt.Errorf("audit db_path not configured")
	}

	l, err := audit.New(cfg.Audit)
	if err != nil {
		return nil, nil, err
	}
	return l, func() { _ = l.Close() }, nil
}

func newAuditSearchCmd() *cobra.Command {
	var (
		configPath string
		provider   string
		status     string
		subject    string
		since      string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search audit log entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, cleanup, err := openAuditLogger(configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			opts := models.AuditQueryOpts{
				Provider:      provider,
				Status:        status,
				SubjectPrefix: subject,
				Limit:         limit,
			}
			if since != "" {
				t, err := time.Parse("2006-01-02", since)
				if err != nil {
					return fmt.Errorf("invalid --since date (use YYYY-MM-DD): %w", err)
				}
				opts.Since = t
			}

			entries, err := l.Query(context.Background(), opts)
			if err != nil {
				return err
			}
			fmt.Print(formatAuditEntries(entries))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to elan config file")
	cmd.Flags().StringVar(&provider, "provider", "", "filter by provider")
	cmd.Flags().StringVar(&status, "status", "", "filter by status (ok, rate_limited, timeout, upstream_error)")
	cmd.Flags().StringVar(&subject, "subject", "", "filter by subject prefix")
	cmd.Flags().StringVar(&since, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&limit, "limit", 50, "max entries to return")

	return cmd
}

func newAuditStatsCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show audit counts by provider and day",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, cleanup, err := openAuditLogger(configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			stats, err := l.Stats(context.Background())
			if err != nil {
				return err
			}
			if len(stats) == 0 {
				fmt.Println("No audit entries.")
				return nil
			}

			fmt.Printf("%-12s %-20s %8s\n", "DAY", "PROVIDER", "COUNT")
			for _, s := range stats {
				fmt.Printf("%-12s %-20s %8d\n", s.Day, s.Provider, s.Count)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to elan config file")
	return cmd
}

func formatAuditEntries(entries []models.AuditEntry) string {
	if len(entries) == 0 {
		return "No matching audit entries.\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%-36s %-16s %-12s %-13s %-6s %8s %10s\n",
		"REQUEST ID", "PROVIDER", "STATUS", "COMPLEXITY", "CACHE", "TOKENS", "COST")
	b.WriteString(strings.Repeat("-", 108) + "\n")

	for _, e := range entries {
		cacheFlag := "miss"
		if e.FromCache {
			cacheFlag = "hit"
		}
		fmt.Fprintf(&b, "%-36s %-16s %-12s %-13s %-6s %8d $%9.4f\n",
			e.RequestID, defaultStr(e.Provider, "(none)"), e.Status, e.Complexity,
			cacheFlag, e.PromptTokens+e.CompletionTokens, e.Cost)
	}
	return b.String()
}

func defaultStr(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
