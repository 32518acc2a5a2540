package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SharedPoolEntry is a cost pool shared by several sites on one date, e.g.
// one day's tea-shop tab or a shared water tanker. Its total amount is split
// across beneficiaries by attendance day-units before settlement tracking.
type SharedPoolEntry struct {
	ID            int             `gorm:"primary_key" json:"id"`
	BusinessId    string          `gorm:"index;not null" json:"business_id"`
	PoolNumber    string          `gorm:"size:30;index" json:"pool_number"`
	MaterialId    int             `gorm:"index" json:"material_id"`
	FundingSiteId int             `gorm:"index;not null" json:"funding_site_id"`
	PoolDate      time.Time       `gorm:"not null;index" json:"pool_date"`
	TotalAmount   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
	IsManualSplit bool            `gorm:"not null;default:false" json:"is_manual_split"`
	// PercentageMismatch flags a manual split whose percentages do not sum to
	// 100. The split is stored as given; the flag is never silently cleared.
	PercentageMismatch bool      `gorm:"not null;default:false" json:"percentage_mismatch"`
	Notes              string    `gorm:"type:text" json:"notes"`
	CreatedAt          time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// PoolAllocation is one beneficiary's share of a pool. It is the pool-derived
// payable obligation the waterfall engine walks alongside AllocationRecords.
type PoolAllocation struct {
	ID                int              `gorm:"primary_key" json:"id"`
	BusinessId        string           `gorm:"index;not null" json:"business_id"`
	PoolId            int              `gorm:"index;not null" json:"pool_id"`
	BeneficiarySiteId int              `gorm:"index;not null" json:"beneficiary_site_id"`
	// Position preserves the caller's beneficiary order; the rounding
	// remainder always lands on the highest position.
	Position         int              `gorm:"not null;default:0" json:"position"`
	Weight           decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"weight"`
	Percentage       decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"percentage"`
	Amount           decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"amount"`
	SettlementStatus SettlementStatus `gorm:"type:enum('Unsettled','PartiallyPaid','Settled');default:'Unsettled';index" json:"settlement_status"`
	AmountPaid       decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"amount_paid"`
	IsReversed       bool             `gorm:"not null;default:false;index" json:"is_reversed"`
	ReversedAt       *time.Time       `json:"reversed_at"`
	ReversalReason   *string          `gorm:"type:text" json:"reversal_reason"`
	CreatedAt        time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *PoolAllocation) Outstanding() decimal.Decimal {
	return p.Amount.Sub(p.AmountPaid)
}

func (p *PoolAllocation) IsFullyPaid() bool {
	return p.SettlementStatus == SettlementStatusSettled
}

// GetPoolAllocationForUpdate row-locks one pool allocation.
func GetPoolAllocationForUpdate(tx *gorm.DB, businessId string, id int) (*PoolAllocation, error) {
	var allocation PoolAllocation
	if err := tx.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("business_id = ? AND id = ?", businessId, id).
		First(&allocation).Error; err != nil {
		return nil, err
	}
	return &allocation, nil
}

// ListPoolAllocations returns the active shares of a pool in caller order.
func ListPoolAllocations(tx *gorm.DB, businessId string, poolId int, forUpdate bool) ([]*PoolAllocation, error) {
	query := tx.
		Where("business_id = ? AND pool_id = ? AND is_reversed = 0", businessId, poolId).
		Order("position, id")
	if forUpdate {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var allocations []*PoolAllocation
	if err := query.Find(&allocations).Error; err != nil {
		return nil, err
	}
	return allocations, nil
}

func GetSharedPoolForUpdate(tx *gorm.DB, businessId string, poolId int) (*SharedPoolEntry, error) {
	var pool SharedPoolEntry
	if err := tx.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("business_id = ? AND id = ?", businessId, poolId).
		First(&pool).Error; err != nil {
		return nil, err
	}
	return &pool, nil
}
