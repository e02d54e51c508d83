package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mmdatafocus/gelato_backoffice/config"
	"github.com/mmdatafocus/gelato_backoffice/models"
	"github.com/mmdatafocus/gelato_backoffice/models/reports"
	"github.com/mmdatafocus/gelato_backoffice/workflow"
	"github.com/spf13/cobra"
)

// reconcile runs the stock reconciliation of one store from the command line,
// for back-office operators and scheduled jobs.
//
// Env is read like the server (DB_*, REDIS_ADDRESS, STORE_ID, RECONCILE_*).
// Redis is optional here; without it runs lock per process only.
var rootCmd = &cobra.Command{
	Use:           "reconcile",
	Short:         "Reconcile verified receipts into catalog stock",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Apply verified receipts to catalog stock and print the report",
	Example: `  reconcile run
  reconcile run --pending --export report.xlsx`,
	RunE: runReconcile,
}

var linkCmd = &cobra.Command{
	Use:     "link <product name> <category> <catalog id>",
	Short:   "Link an unresolved product name to a catalog entry",
	Example: `  reconcile link "Tapioca Recheada" accompaniments 12`,
	Args:    cobra.ExactArgs(3),
	RunE:    runLink,
}

var registerCmd = &cobra.Command{
	Use:     "register <product name> <category>",
	Short:   "Create a catalog entry for a product that has none",
	Example: `  reconcile register Tapioca accompaniments --stock 40`,
	Args:    cobra.ExactArgs(2),
	RunE:    runRegister,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the reconciliation tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		config.ConnectDatabaseWithRetry()
		if err := models.MigrateTable(config.GetDB()); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
		return nil
	},
}

var (
	pendingOnly  bool
	exportPath   string
	initialStock int
	useRedis     bool
)

func init() {
	runCmd.Flags().BoolVar(&pendingOnly, "pending", false, "only revisit lines that still have an open ledger row")
	runCmd.Flags().StringVar(&exportPath, "export", "", "also write the report as an xlsx workbook to this path")
	registerCmd.Flags().IntVar(&initialStock, "stock", 0, "initial stock of the new entry")
	rootCmd.PersistentFlags().BoolVar(&useRedis, "redis", true, "use redis for the run lock and the last-report cache")

	rootCmd.AddCommand(runCmd, linkCmd, registerCmd, migrateCmd)
}

func newWorkflow() *workflow.ReconciliationWorkflow {
	config.ConnectDatabaseWithRetry()
	opts := workflow.OptionsFromEnv()
	if useRedis {
		config.ConnectRedisWithRetry()
		opts.Locker = workflow.NewRunLocker()
	} else {
		opts.Locker = workflow.NewLocalRunLocker()
		opts.Publisher = workflow.PubSubReportPublisher{}
	}
	return workflow.NewReconciliationWorkflow(models.NewGormStore(config.GetDB()), opts)
}

func runReconcile(cmd *cobra.Command, args []string) error {
	report, err := newWorkflow().Reconcile(cmd.Context(), pendingOnly)
	if err != nil {
		return err
	}
	if exportPath != "" {
		if err := reports.SaveReconciliationExcel(report, exportPath); err != nil {
			return fmt.Errorf("export %s: %w", exportPath, err)
		}
	}
	return printJSON(cmd, report)
}

func runLink(cmd *cobra.Command, args []string) error {
	category, err := models.ParseCategory(args[1])
	if err != nil {
		return err
	}
	var catalogId int
	if _, err := fmt.Sscanf(args[2], "%d", &catalogId); err != nil {
		return fmt.Errorf("catalog id %q: %w", args[2], err)
	}
	delta, err := newWorkflow().LinkProduct(cmd.Context(), args[0], catalogId, category)
	if err != nil {
		return err
	}
	return printJSON(cmd, delta)
}

func runRegister(cmd *cobra.Command, args []string) error {
	category, err := models.ParseCategory(args[1])
	if err != nil {
		return err
	}
	entry, err := newWorkflow().RegisterCatalogEntry(cmd.Context(), args[0], category, initialStock)
	if err != nil {
		return err
	}
	return printJSON(cmd, entry)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
