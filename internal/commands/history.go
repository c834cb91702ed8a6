package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/slotter-org/gemini-chat/internal/config"
	"github.com/slotter-org/gemini-chat/internal/db"
	"github.com/slotter-org/gemini-chat/internal/repos"
	"github.com/slotter-org/gemini-chat/internal/services"
)

var (
	historyLimitFlag int
	historyOutFlag   string
	historyYesFlag   bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect and maintain the stored exchanges",
}

var historyRecentCmd = &cobra.Command{
	Use:   "recent",
	Short: "List the most recent exchanges, newest first",
	RunE:  runHistoryRecent,
}

var historyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the most recent exchanges as CSV",
	RunE:  runHistoryExport,
}

var historyPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete every stored exchange",
	RunE:  runHistoryPurge,
}

func init() {
	historyRecentCmd.Flags().IntVarP(&historyLimitFlag, "limit", "n", 5, "number of exchanges")
	historyExportCmd.Flags().IntVarP(&historyLimitFlag, "limit", "n", 5, "number of exchanges")
	historyExportCmd.Flags().StringVarP(&historyOutFlag, "out", "o", "-", "output file, - for stdout")
	historyPurgeCmd.Flags().BoolVar(&historyYesFlag, "yes", false, "confirm the purge")

	historyCmd.AddCommand(historyRecentCmd)
	historyCmd.AddCommand(historyExportCmd)
	historyCmd.AddCommand(historyPurgeCmd)
}

// openHistory needs only the store settings, not the model key.
func openHistory() (services.HistoryService, *db.DatabaseService, error) {
	cfg := config.Read(log)
	if err := cfg.RequireDatabase(); err != nil {
		return nil, nil, err
	}
	dbService, err := db.NewDatabaseService(cfg.Database, log)
	if err != nil {
		return nil, nil, err
	}
	if err := dbService.AutoMigrateAll(rootCmd.Context()); err != nil {
		dbService.Close()
		return nil, nil, err
	}
	repo := repos.NewChatHistoryRepo(dbService, log)
	return services.NewHistoryService(log, repo, nil, cfg.Export.DefaultLimit), dbService, nil
}

func runHistoryRecent(cmd *cobra.Command, args []string) error {
	historyService, dbService, err := openHistory()
	if err != nil {
		return err
	}
	defer dbService.Close()

	rows, err := historyService.Recent(cmd.Context(), historyLimitFlag)
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}
	out := cmd.OutOrStdout()
	if len(rows) == 0 {
		fmt.Fprintln(out, "No exchanges found.")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tUSUARIO\tGEMINI")
	for _, row := range rows {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\n", row.ID, preview(row.UserMessage, 40), preview(row.GeminiResponse, 60))
	}
	return w.Flush()
}

func runHistoryExport(cmd *cobra.Command, args []string) error {
	if historyLimitFlag <= 0 {
		return errors.New("--limit must be positive")
	}
	historyService, dbService, err := openHistory()
	if err != nil {
		return err
	}
	defer dbService.Close()

	var w io.Writer = cmd.OutOrStdout()
	if historyOutFlag != "-" {
		f, err := os.Create(historyOutFlag)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", historyOutFlag, err)
		}
		defer f.Close()
		w = f
	}
	n, err := historyService.ExportCSV(cmd.Context(), w, historyLimitFlag)
	if err != nil {
		return fmt.Errorf("failed to export history: %w", err)
	}
	if historyOutFlag != "-" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d exchanges to %s\n", n, historyOutFlag)
	}
	return nil
}

func runHistoryPurge(cmd *cobra.Command, args []string) error {
	if !historyYesFlag {
		return errors.New("refusing to purge without --yes")
	}
	historyService, dbService, err := openHistory()
	if err != nil {
		return err
	}
	defer dbService.Close()

	deleted, err := historyService.PurgeAll(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to purge history: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d exchanges.\n", deleted)
	return nil
}

// preview flattens s onto one line and cuts it to max runes.
func preview(s string, max int) string {
	runes := []rune(s)
	for i, r := range runes {
		if r == '\n' || r == '\t' {
			runes[i] = ' '
		}
	}
	if len(runes) > max {
		return string(runes[:max]) + "..."
	}
	return string(runes)
}
