// seed-dev populates a fresh local database with a small working ledger:
// one business, three sites, two materials, a mix of own and shared batches,
// a few allocations, one shared pool and a partial payment. Intended for
// manual API poking, never for production.
//
// Usage:
//
//	DB_USER=... DB_PASSWORD=... go run ./cmd/seed-dev
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sitebooks/siteledger_backend/config"
	"github.com/sitebooks/siteledger_backend/models"
	"github.com/sitebooks/siteledger_backend/utils"
	"github.com/sitebooks/siteledger_backend/workflow"
	"gorm.io/gorm"
)

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func main() {
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fatal("database not initialized")
	}
	models.MigrateTable()
	logger := logrus.New()

	ctx := context.Background()
	business, err := models.CreateBusiness(ctx, &models.NewBusiness{
		Name:  "Sitebooks Dev",
		Email: "dev@sitebooks.local",
	})
	if err != nil {
		fatal("create business: %v", err)
	}
	businessId := business.ID.String()
	ctx = utils.SetBusinessIdInContext(ctx, businessId)
	ctx = utils.SetUserNameInContext(ctx, "Seed")

	var sites []*models.Site
	for _, name := range []string{"Hlaing Site", "Insein Site", "Bago Site"} {
		site, err := models.CreateSite(ctx, &models.NewSite{Name: name})
		if err != nil {
			fatal("create site %s: %v", name, err)
		}
		sites = append(sites, site)
	}

	cement, err := models.CreateMaterial(ctx, &models.NewMaterial{Name: "Cement", Unit: "bag"})
	if err != nil {
		fatal("create material: %v", err)
	}
	teaShop, err := models.CreateMaterial(ctx, &models.NewMaterial{Name: "Tea Shop Tab", Unit: "day"})
	if err != nil {
		fatal("create material: %v", err)
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)

	// Own stock for site 1, then a shared batch funded by site 1.
	_, err = models.CreateCostBatch(ctx, &models.NewCostBatch{
		MaterialId:      cement.ID,
		Ownership:       models.BatchOwnershipOwn,
		FundingSiteId:   sites[0].ID,
		AcquisitionDate: today.AddDate(0, 0, -10),
		Quantity:        decimal.NewFromInt(100),
		UnitCost:        decimal.NewFromInt(9500),
	})
	if err != nil {
		fatal("create own batch: %v", err)
	}
	_, err = models.CreateCostBatch(ctx, &models.NewCostBatch{
		MaterialId:      cement.ID,
		Ownership:       models.BatchOwnershipShared,
		FundingSiteId:   sites[0].ID,
		AcquisitionDate: today.AddDate(0, 0, -7),
		Quantity:        decimal.NewFromInt(200),
		UnitCost:        decimal.NewFromInt(9800),
	})
	if err != nil {
		fatal("create shared batch: %v", err)
	}
	// A per-weight shared batch funded by site 2.
	_, err = models.CreateCostBatch(ctx, &models.NewCostBatch{
		MaterialId:      cement.ID,
		Ownership:       models.BatchOwnershipShared,
		FundingSiteId:   sites[1].ID,
		AcquisitionDate: today.AddDate(0, 0, -3),
		Quantity:        decimal.NewFromInt(50),
		PricingMode:     models.PricingModePerWeight,
		TotalWeight:     decimal.NewFromInt(2500),
		WeightUnitCost:  decimal.NewFromInt(200),
	})
	if err != nil {
		fatal("create per-weight batch: %v", err)
	}

	// Site 2 draws cement: its own stock is empty, so this hits site 1's
	// shared batch and creates obligations.
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, txErr := workflow.AllocateStock(tx, logger, workflow.AllocateStockInput{
			BusinessId:     businessId,
			MaterialId:     cement.ID,
			ConsumerSiteId: sites[1].ID,
			UsageDate:      today.AddDate(0, 0, -5),
			Quantity:       decimal.NewFromInt(40),
		})
		return txErr
	})
	if err != nil {
		fatal("allocate stock: %v", err)
	}

	// One day's shared tea-shop tab split by attendance.
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, _, txErr := workflow.SplitSharedPool(tx, logger, workflow.SplitSharedPoolInput{
			BusinessId:    businessId,
			MaterialId:    teaShop.ID,
			FundingSiteId: sites[0].ID,
			PoolDate:      today.AddDate(0, 0, -4),
			TotalAmount:   decimal.NewFromInt(30000),
			Beneficiaries: []workflow.ShareInput{
				{SiteId: sites[0].ID, Weight: decimal.NewFromInt(12)},
				{SiteId: sites[1].ID, Weight: decimal.NewFromInt(8)},
				{SiteId: sites[2].ID, Weight: decimal.NewFromInt(5)},
			},
			Notes: "daily tea shop tab",
		})
		return txErr
	})
	if err != nil {
		fatal("split pool: %v", err)
	}

	// Site 2 pays part of what it owes.
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, _, txErr := workflow.ApplyPayment(tx, logger, workflow.ApplyPaymentInput{
			BusinessId:  businessId,
			PayerSiteId: sites[1].ID,
			PaymentDate: today.AddDate(0, 0, -1),
			Amount:      decimal.NewFromInt(200000),
			Notes:       "partial settlement",
		})
		return txErr
	})
	if err != nil {
		fatal("apply payment: %v", err)
	}

	fmt.Printf("seeded business %s with %d sites\n", businessId, len(sites))
}
