// waterfall-rebuild re-derives the settlement state of one site (or every
// site of a business) from its payment history. Run it after a data repair
// or when the integrity checks report settlement drift.
//
// Usage:
//
//	DB_USER=... DB_PASSWORD=... go run ./cmd/waterfall-rebuild --business-id=<uuid> [--site-id=3] [--continue-on-error]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"
	"github.com/sitebooks/siteledger_backend/config"
	"github.com/sitebooks/siteledger_backend/workflow"
	"gorm.io/gorm"
)

func main() {
	businessID := flag.String("business-id", "", "Required: business id (uuid)")
	siteID := flag.Int("site-id", 0, "Optional: rebuild one site only")
	continueOnError := flag.Bool("continue-on-error", false, "Skip failing sites and continue rebuilding others")
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
	config.ConnectRedisWithRetry()
	logger := logrus.New()

	// A redis lock keeps two operators from racing the same business. The
	// per-site advisory locks inside RebuildWaterfall still serialize against
	// live posting either way.
	ctx := context.Background()
	var jobLock *redislock.Lock
	if locker := config.GetRedisLock(); locker != nil {
		var err error
		jobLock, err = locker.Obtain(ctx, "waterfall_rebuild_job:"+*businessID, 10*time.Minute, nil)
		if err == redislock.ErrNotObtained {
			fmt.Fprintln(os.Stderr, "another rebuild is already running for this business")
			os.Exit(1)
		} else if err != nil {
			fmt.Fprintf(os.Stderr, "obtain job lock: %v\n", err)
			os.Exit(1)
		}
		defer jobLock.Release(ctx)
	}

	var siteIds []int
	if *siteID > 0 {
		siteIds = []int{*siteID}
	} else {
		if err := db.Raw(`
			SELECT DISTINCT consumer_site_id FROM allocation_records
			WHERE business_id = ? AND requires_settlement = 1 AND is_reversed = 0
			UNION
			SELECT DISTINCT beneficiary_site_id FROM pool_allocations
			WHERE business_id = ? AND is_reversed = 0
			UNION
			SELECT DISTINCT payer_site_id FROM payments
			WHERE business_id = ?
		`, *businessID, *businessID, *businessID).Scan(&siteIds).Error; err != nil {
			fmt.Fprintf(os.Stderr, "discover sites: %v\n", err)
			os.Exit(1)
		}
	}

	failed := 0
	for _, id := range siteIds {
		err := db.Transaction(func(tx *gorm.DB) error {
			return workflow.RebuildWaterfall(tx, logger, *businessID, id)
		})
		if err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "site %d: rebuild failed: %v\n", id, err)
			if !*continueOnError {
				os.Exit(1)
			}
			continue
		}
		fmt.Printf("site %d: rebuilt\n", id)
	}

	if failed > 0 {
		fmt.Fprintf(os.Stderr, "%d of %d sites failed\n", failed, len(siteIds))
		os.Exit(1)
	}
	fmt.Printf("rebuilt %d sites\n", len(siteIds))
}
