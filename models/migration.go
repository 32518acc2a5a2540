package models

import (
	"log"

	"github.com/sitebooks/siteledger_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Business{}, &Site{},
		&Material{}, &MaterialBrand{},
		&CostBatch{}, &AllocationRecord{},
		&SharedPoolEntry{}, &PoolAllocation{},
		&Payment{}, &PaymentApplication{},
		&SettlementNumberSeries{},
		&IdempotencyKey{},
		&LedgerAuditReport{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
