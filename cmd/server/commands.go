package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"compliance-agent/internal/classifier"
	"compliance-agent/internal/gemini"
	"compliance-agent/internal/llm"
	"compliance-agent/internal/models"
	"compliance-agent/internal/repository"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var auditTimeout time.Duration

func init() {
	auditCmd.Flags().DurationVar(&auditTimeout, "timeout", 2*time.Minute, "overall audit deadline")
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create and seed the transaction store",
	Long: `Apply the embedded migrations to the configured transaction store.

Creates the unified_transactions table and loads the sample rows.
Running it again on an up-to-date store is a no-op.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Database.Type == repository.DriverSQLite {
			if err := ensureDataDir(cfg.Database.Path); err != nil {
				return fmt.Errorf("failed to create data directory: %w", err)
			}
		}
		return repository.MigrateDB(cfg.Database.Type, cfg.Database.Path, logger.Named("migrate"))
	},
}

var auditCmd = &cobra.Command{
	Use:   "audit <file>",
	Short: "Audit one policy document and print the report",
	Long: `Run a single policy document through the audit pipeline without
starting the server. The report is printed to stdout as JSON.

Examples:
  compliance-agent audit policies/aml.txt
  compliance-agent audit --config configs/prod.yml policies/handbook.pdf`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		content, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read policy: %w", err)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), auditTimeout)
		defer cancel()

		a, err := buildApp(ctx, cfg, nil, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.auditor.Audit(ctx, models.Document{
			Name:    filepath.Base(args[0]),
			Content: content,
		})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List Gemini models that support content generation",
	RunE: func(cmd *cobra.Command, args []string) error {
		apiKey := cfg.Gemini.APIKey
		for _, p := range cfg.Providers {
			if p.Type == llm.ProviderGemini && p.APIKey != "" {
				apiKey = p.APIKey
				break
			}
		}

		client, err := gemini.NewClient(gemini.Config{APIKey: apiKey}, logger.Named("gemini"))
		if err != nil {
			return err
		}
		defer client.Close()

		list, err := client.ListModels(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, m := range list {
			if !slices.Contains(m.SupportedGenerationMethods, "generateContent") {
				continue
			}
			fmt.Fprintf(out, "%s\t%s\tin=%d out=%d\n", m.Name, m.DisplayName, m.InputTokenLimit, m.OutputTokenLimit)
		}
		return nil
	},
}

var inspectModelCmd = &cobra.Command{
	Use:   "inspect-model",
	Short: "Show the risk model and check it against the configured features",
	RunE: func(cmd *cobra.Command, args []string) error {
		clf := classifier.Load(cmd.Context(), cfg.Classifier, logger.Named("classifier"))
		if clf == nil {
			return fmt.Errorf("risk model unavailable (type %q)", cfg.Classifier.Type)
		}

		info := clf.GetModelInfo()
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(info); err != nil {
			return err
		}

		names, ok := info["feature_names"].([]string)
		if !ok || len(names) == 0 {
			return nil
		}
		if !slices.Equal(names, cfg.Features) {
			logger.Warn("Model features differ from the configured feature list, scoring will fall back to manual review",
				zap.Strings("model", names),
				zap.Strings("configured", cfg.Features))
		}
		return nil
	},
}
