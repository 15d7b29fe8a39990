package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"vocacare-intake-go/internal/aggregator"
	"vocacare-intake-go/internal/logger"
	"vocacare-intake-go/internal/roster"
	"vocacare-intake-go/internal/types"
	"vocacare-intake-go/internal/webhook"
)

func defaultExportPath(now time.Time) string {
	return fmt.Sprintf("VocaCare_Patients_%s.xlsx", now.Format("2006-01-02"))
}

func exportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export [path]",
		Short: "Download stored patient registrations to .xlsx or .csv",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			path := defaultExportPath(time.Now())
			if len(args) == 1 {
				path = args[0]
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			client := webhook.NewClient(cfg.BaseURL, cfg.HTTPTimeout)
			docs, err := client.FetchPatients(ctx, cfg.ExportLimit)
			if err != nil {
				return err
			}
			if len(docs) == 0 {
				log.Warn("no patient data to download")
				return nil
			}

			if err := writeRoster(path, docs, log); err != nil {
				return err
			}
			log.WithField("path", path).WithField("patients", len(docs)).Info("roster exported")
			return nil
		},
	}
}

func writeRoster(path string, docs []types.PatientDocument, log *logger.Logger) error {
	if !strings.EqualFold(filepath.Ext(path), ".csv") {
		return roster.WriteWorkbook(path, docs, log)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := roster.WriteCSV(f, docs); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func summarizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summarize <path>",
		Short: "Summarize an exported roster workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			docs, err := roster.Load(args[0])
			if err != nil {
				return err
			}
			printJSON(aggregator.Aggregate(docs))
			return nil
		},
	}
}
