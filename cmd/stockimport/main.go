// Command stockimport validates a stock import file and, with -apply,
// reconciles it against the WooCommerce store without running the server.
//
// Usage:
//
//	stockimport -file stock.csv            # validate only
//	stockimport -file stock.csv -apply     # validate, then add quantities
//	stockimport -orders completed          # units sold per SKU
//
// Store credentials come from the same WC_* environment variables the
// server reads. Exit status is 1 when the file is invalid or any row fails.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/JonMunkholm/stocksync/internal/config"
	"github.com/JonMunkholm/stocksync/internal/core"
	"github.com/JonMunkholm/stocksync/internal/logging"
	"github.com/JonMunkholm/stocksync/internal/woocommerce"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, out io.Writer) int {
	fs := flag.NewFlagSet("stockimport", flag.ContinueOnError)
	file := fs.String("file", "", "path to the import file (- for stdin)")
	apply := fs.Bool("apply", false, "apply a valid file to the store")
	workers := fs.Int("workers", 0, "concurrent store writes (default IMPORT_WORKERS)")
	fold := fs.Bool("fold-sku", false, "match SKUs case-insensitively")
	orders := fs.String("orders", "", "print units sold for orders with this status and exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *file == "" && *orders == "" {
		fmt.Fprintln(out, "-file is required")
		fs.Usage()
		return 2
	}

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(out, "configuration: %v\n", err)
		return 1
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *orders != "" {
		gateway, err := newGateway(cfg)
		if err != nil {
			fmt.Fprintf(out, "catalog client: %v\n", err)
			return 1
		}
		return printSales(ctx, out, gateway, *orders)
	}

	report, err := validateFile(*file, cfg.Import.MaxFileSize)
	if err != nil {
		fmt.Fprintf(out, "%s: %s\n", *file, describe(err))
		return 1
	}

	if !report.Valid {
		fmt.Fprintf(out, "%s: %d issue(s) found\n", *file, len(report.Issues))
		for _, msg := range report.Messages() {
			fmt.Fprintf(out, "  %s\n", msg)
		}
		return 1
	}
	fmt.Fprintf(out, "%s: %d rows ready to import\n", *file, len(report.Rows))
	if !*apply {
		return 0
	}

	match, err := core.ParseSKUMatch(cfg.Import.SKUMatch)
	if err != nil {
		fmt.Fprintf(out, "configuration: %v\n", err)
		return 1
	}
	if *fold {
		match = core.MatchFold
	}
	if *workers <= 0 {
		*workers = cfg.Import.Workers
	}

	gateway, err := newGateway(cfg)
	if err != nil {
		fmt.Fprintf(out, "catalog client: %v\n", err)
		return 1
	}

	return applyReport(ctx, out, gateway, report, core.ReconcileOptions{
		Workers: *workers,
		Match:   match,
		Logger:  logging.ForImport(ctx, uuid.NewString(), filepath.Base(*file)),
	})
}

func newGateway(cfg *config.Config) (*woocommerce.Client, error) {
	return woocommerce.New(woocommerce.Config{
		StoreURL:          cfg.Catalog.StoreURL,
		ConsumerKey:       cfg.Catalog.ConsumerKey,
		ConsumerSecret:    cfg.Catalog.ConsumerSecret,
		Timeout:           cfg.Catalog.Timeout,
		RequestsPerSecond: cfg.Catalog.RequestsPerSecond,
		PageSize:          cfg.Catalog.PageSize,
	}, woocommerce.WithLogger(slog.Default().With("component", "woocommerce")))
}

func validateFile(path string, maxBytes int64) (core.ValidationReport, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return core.ValidationReport{}, err
		}
		defer f.Close()
		r = f
	}

	text, err := core.ReadImportText(r, maxBytes)
	if err != nil {
		return core.ValidationReport{}, err
	}
	return core.Validate(core.Parse(text)), nil
}

// applyReport reconciles a valid report and prints one line per SKU plus
// the tally.
func applyReport(ctx context.Context, out io.Writer, gateway core.CatalogGateway, report core.ValidationReport, opts core.ReconcileOptions) int {
	outcomes, err := core.NewReconciler(gateway, opts).Apply(ctx, report)
	if err != nil {
		fmt.Fprintf(out, "apply: %s\n", describe(err))
		return 1
	}

	for _, o := range outcomes {
		switch {
		case o.NewQuantity != nil:
			fmt.Fprintf(out, "  line %d  %-20s %-9s new stock %d\n", o.Line, o.SKU, o.Status, *o.NewQuantity)
		default:
			fmt.Fprintf(out, "  line %d  %-20s %-9s %s\n", o.Line, o.SKU, o.Status, o.ErrorDetail)
		}
	}

	summary := core.Summarize(outcomes)
	fmt.Fprintln(out, summary.String())
	if summary.Failed > 0 {
		return 1
	}
	return 0
}

// printSales lists units sold per SKU for orders with the given status.
func printSales(ctx context.Context, out io.Writer, lister core.OrderLister, status string) int {
	status, err := core.ParseOrderStatus(status)
	if err != nil {
		fmt.Fprintf(out, "orders: %s\n", describe(err))
		return 2
	}
	orders, err := lister.ListOrders(ctx, status)
	if err != nil {
		fmt.Fprintf(out, "orders: %s\n", describe(err))
		return 1
	}

	fmt.Fprintf(out, "%d %s orders\n", len(orders), status)
	for _, item := range core.SummarizeSales(orders) {
		fmt.Fprintf(out, "  %-20s %6d units in %d orders\n", item.SKU, item.Units, item.Orders)
	}
	return 0
}

// describe prefers the operator-facing message and falls back to the raw
// error when nothing more specific than ERR000 applies.
func describe(err error) string {
	if core.IsUserFacing(err) {
		return core.FormatUserError(err)
	}
	return err.Error()
}
