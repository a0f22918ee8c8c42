package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"saldo/internal/config"
	"saldo/internal/core"
	gsheet "saldo/internal/sheets/google"
	"saldo/internal/storage"
	"saldo/internal/tabular"
)

var removeAfterImport bool

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Print every transaction and the current balance",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := bootstrap(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.close()

		l, err := a.services.Transactions.ListWithBalance(cmd.Context())
		if err != nil {
			return err
		}
		return printLedger(cmd.OutOrStdout(), l.Transactions, l.Balance)
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file.csv>",
	Short: "Import transactions from a CSV file (title,type,value,category)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var src tabular.Source = keptFile{tabular.NewFileSource(args[0])}
		if removeAfterImport {
			src = tabular.NewFileSource(args[0])
		}
		return runImport(cmd, src)
	},
}

var importSheetCmd = &cobra.Command{
	Use:   "import-sheet <range>",
	Short: "Import transactions from a Google Sheets range, e.g. Import!A:D",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		client, err := gsheet.New(cmd.Context(), cfg.GoogleSpreadsheetID, cfg.GoogleSheetName)
		if err != nil {
			return err
		}
		return runImport(cmd, client.Source(args[0]))
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		var repo *storage.Repository
		switch cfg.DataBackend {
		case config.BackendSQLite:
			repo, err = storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		case config.BackendPostgres:
			repo, err = storage.NewPostgresRepository(cfg.DatabaseURL)
		default:
			return fmt.Errorf("backend %q has no migrations", cfg.DataBackend)
		}
		if err != nil {
			return err
		}
		defer repo.Close()
		fmt.Fprintf(cmd.OutOrStdout(), "%s schema is up to date\n", cfg.DataBackend)
		return nil
	},
}

func init() {
	importCmd.Flags().BoolVar(&removeAfterImport, "remove", false, "delete the file once its rows are stored")
}

func runImport(cmd *cobra.Command, src tabular.Source) error {
	a, err := bootstrap(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer a.close()

	created, err := a.services.Import.Import(cmd.Context(), src)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d transactions from %s\n", len(created), src.Name())
	return nil
}

// keptFile leaves the user's file in place after a successful import.
type keptFile struct {
	*tabular.FileSource
}

func (keptFile) Release(context.Context) error { return nil }

func printLedger(w io.Writer, txs []core.Transaction, b core.Balance) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tTYPE\tVALUE\tCATEGORY\tTITLE")
	for _, tx := range txs {
		category := tx.CategoryID
		if tx.Category != nil {
			category = tx.Category.Title
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			tx.CreatedAt.Format("2006-01-02"), tx.Type, tx.Value, category, tx.Title)
	}
	fmt.Fprintf(tw, "\t\t\t\t\nincome\t\t%s\t\t\n", b.Income)
	fmt.Fprintf(tw, "outcome\t\t%s\t\t\n", b.Outcome)
	fmt.Fprintf(tw, "total\t\t%s\t\t\n", b.Total)
	return tw.Flush()
}
