package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"bitbucket.org/nordfoods/mrp_backend/config"
	"bitbucket.org/nordfoods/mrp_backend/workflow"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var errDryRun = errors.New("dry run, rolling back")

func main() {
	businessID := flag.String("business-id", "", "Business id (uuid); required unless --all is set")
	supplierID := flag.Int("supplier-id", 0, "Optional: rebuild a single supplier")
	all := flag.Bool("all", false, "Rebuild every active business")
	dryRun := flag.Bool("dry-run", false, "Run the rebuild and roll it back, printing the summary")
	flag.Parse()

	if !*all && strings.TrimSpace(*businessID) == "" {
		fmt.Fprintln(os.Stderr, "--business-id is required (or pass --all)")
		os.Exit(1)
	}
	if *all && *dryRun {
		fmt.Fprintln(os.Stderr, "--all and --dry-run cannot be combined")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	logger := logrus.New()

	if *all {
		if err := workflow.RebuildCatalogAll(logger); err != nil {
			fmt.Fprintf(os.Stderr, "rebuild failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("catalog rebuild complete")
		return
	}

	var summary *workflow.CatalogRebuildSummary
	if *dryRun {
		err := db.Transaction(func(tx *gorm.DB) error {
			var txErr error
			summary, txErr = workflow.RebuildCatalogTx(logger, tx, *businessID, *supplierID)
			if txErr != nil {
				return txErr
			}
			return errDryRun
		})
		if err != nil && !errors.Is(err, errDryRun) {
			fmt.Fprintf(os.Stderr, "rebuild failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		var err error
		summary, err = workflow.RebuildCatalog(logger, *businessID, *supplierID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "rebuild failed: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Printf("business=%s supplier=%d deleted=%d created=%d updated=%d orders=%d suppliers=%d certificates=%d errors=%d duration_ms=%d\n",
		summary.BusinessId, summary.SupplierId,
		summary.EntriesDeleted, summary.EntriesCreated, summary.EntriesUpdated,
		summary.OrdersProcessed, summary.SuppliersTouched, summary.CertificatesPreserved,
		summary.LineItemErrors, summary.DurationMs)
	if *dryRun {
		fmt.Println("dry run: all changes rolled back")
	}
	fmt.Println("catalog rebuild complete")
}
