// ledger-audit runs the integrity sweep for a business and prints the
// summary. Findings land in the ledger_audit_reports table for manual
// remediation; pass --export to also write per-site settlement workbooks.
//
// Usage:
//
//	go run ./cmd/ledger-audit --business-id=<uuid> [--export --out-dir=/tmp/audit]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/sitebooks/siteledger_backend/config"
	"github.com/sitebooks/siteledger_backend/workflow"
)

func main() {
	businessID := flag.String("business-id", "", "Required: business id (uuid)")
	export := flag.Bool("export", false, "Also export per-site settlement workbooks")
	outDir := flag.String("out-dir", ".", "Directory for exported workbooks")
	flag.Parse()

	if strings.TrimSpace(*businessID) == "" {
		fmt.Fprintln(os.Stderr, "--business-id is required")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	logger := logrus.New()
	ctx := context.Background()

	summary, err := workflow.RunLedgerIntegrityChecks(ctx, db, logger, *businessID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "integrity checks failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("correlation id:      %s\n", summary.CorrelationId)
	fmt.Printf("orphan obligations:  %d\n", summary.OrphanObligations)
	fmt.Printf("pool discrepancies:  %d\n", summary.PoolDiscrepancies)
	fmt.Printf("fifo violations:     %d\n", summary.FifoViolations)
	fmt.Printf("batch conservation:  %d\n", summary.BatchConservation)
	fmt.Printf("total findings:      %d\n", summary.TotalFindings)

	if *export {
		var siteIds []int
		if err := db.Raw(`
			SELECT DISTINCT consumer_site_id FROM allocation_records
			WHERE business_id = ? AND requires_settlement = 1 AND is_reversed = 0
			UNION
			SELECT DISTINCT beneficiary_site_id FROM pool_allocations
			WHERE business_id = ? AND is_reversed = 0
		`, *businessID, *businessID).Scan(&siteIds).Error; err != nil {
			fmt.Fprintf(os.Stderr, "discover sites: %v\n", err)
			os.Exit(1)
		}

		for _, siteId := range siteIds {
			path := filepath.Join(*outDir, fmt.Sprintf("settlement-audit-site-%d.xlsx", siteId))
			f, err := os.Create(path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "site %d: create %s: %v\n", siteId, path, err)
				os.Exit(1)
			}
			if err := workflow.ExportSettlementAudit(db, logger, f, *businessID, siteId); err != nil {
				f.Close()
				fmt.Fprintf(os.Stderr, "site %d: export failed: %v\n", siteId, err)
				os.Exit(1)
			}
			f.Close()
			fmt.Printf("site %d: exported %s\n", siteId, path)
		}
	}

	if summary.TotalFindings > 0 {
		os.Exit(2)
	}
}
