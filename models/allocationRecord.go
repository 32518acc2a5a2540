package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllocationRecord is one draw from one batch by one site on one date.
// UnitCostAtDraw is copied at draw time; later corrections to the batch never
// touch historical allocations. Rows are tombstoned on reversal, not deleted,
// so the ledger stays append-only.
type AllocationRecord struct {
	ID                 int              `gorm:"primary_key" json:"id"`
	BusinessId         string           `gorm:"index;not null" json:"business_id"`
	AllocationNumber   string           `gorm:"size:30;index" json:"allocation_number"`
	BatchId            int              `gorm:"index;not null" json:"batch_id"`
	ConsumerSiteId     int              `gorm:"index;not null" json:"consumer_site_id"`
	UsageDate          time.Time        `gorm:"not null;index" json:"usage_date"`
	Quantity           decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"quantity"`
	UnitCostAtDraw     decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"unit_cost_at_draw"`
	TotalCost          decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"total_cost"`
	RequiresSettlement *bool            `gorm:"not null;default:false;index" json:"requires_settlement"`
	SettlementStatus   SettlementStatus `gorm:"type:enum('Unsettled','PartiallyPaid','Settled');default:'Unsettled';index" json:"settlement_status"`
	AmountPaid         decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"amount_paid"`
	IsReversed         bool             `gorm:"not null;default:false;index" json:"is_reversed"`
	ReversedAt         *time.Time       `json:"reversed_at"`
	ReversalReason     *string          `gorm:"type:text" json:"reversal_reason"`
	CreatedAt          time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

// Outstanding is what the waterfall can still apply against this record.
func (a *AllocationRecord) Outstanding() decimal.Decimal {
	return a.TotalCost.Sub(a.AmountPaid)
}

// GetAllocationForUpdate row-locks one allocation record.
func GetAllocationForUpdate(tx *gorm.DB, businessId string, id int) (*AllocationRecord, error) {
	var record AllocationRecord
	if err := tx.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("business_id = ? AND id = ?", businessId, id).
		First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// ListAllocationsForBatch returns the active (non-reversed) draws of a batch,
// oldest first.
func ListAllocationsForBatch(tx *gorm.DB, businessId string, batchId int) ([]*AllocationRecord, error) {
	var records []*AllocationRecord
	if err := tx.
		Where("business_id = ? AND batch_id = ? AND is_reversed = 0", businessId, batchId).
		Order("usage_date, id").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
