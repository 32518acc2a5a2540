package models

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sitebooks/siteledger_backend/config"
	"github.com/sitebooks/siteledger_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CostBatch is one acquisition of cost: a purchased stock lot, or one entry
// of a recurring shared-vendor tab. Batches are append-only; an exhausted
// batch (remaining = 0) is kept for the audit trail, never deleted.
//
// Invariant: 0 <= remaining_quantity <= total_quantity. RemainingQuantity is
// decremented only by the allocator and incremented only by reversal, both
// inside the same transaction that writes the allocation rows.
type CostBatch struct {
	ID                int             `gorm:"primary_key" json:"id"`
	BusinessId        string          `gorm:"index;not null" json:"business_id"`
	BatchNumber       string          `gorm:"size:30;index" json:"batch_number"`
	MaterialId        int             `gorm:"index;not null" json:"material_id"`
	BrandId           int             `gorm:"index" json:"brand_id"`
	Ownership         BatchOwnership  `gorm:"type:enum('Own','Shared');default:'Own'" json:"ownership"`
	FundingSiteId     int             `gorm:"index;not null" json:"funding_site_id"`
	AcquisitionDate   time.Time       `gorm:"not null;index" json:"acquisition_date"`
	TotalQuantity     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_quantity"`
	RemainingQuantity decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"remaining_quantity"`
	PricingMode       PricingMode     `gorm:"type:enum('PerUnit','PerWeight');default:'PerUnit'" json:"pricing_mode"`
	UnitCost          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_cost"`
	TotalWeight       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_weight"`
	WeightUnitCost    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"weight_unit_cost"`
	Notes             string          `gorm:"type:text" json:"notes"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// EffectiveUnitCost derives the per-unit cost used for draws. PerWeight
// batches are priced by weight (weight per unit x weight cost); everything
// else uses the stored unit cost directly.
func (b *CostBatch) EffectiveUnitCost() decimal.Decimal {
	if b.PricingMode == PricingModePerWeight {
		if b.TotalQuantity.IsZero() {
			return decimal.Zero
		}
		weightPerUnit := b.TotalWeight.Div(b.TotalQuantity)
		return weightPerUnit.Mul(b.WeightUnitCost)
	}
	return b.UnitCost
}

// ConsumedQuantity is total minus remaining; reversal-adjusted draws net out.
func (b *CostBatch) ConsumedQuantity() decimal.Decimal {
	return b.TotalQuantity.Sub(b.RemainingQuantity)
}

type NewCostBatch struct {
	MaterialId      int             `json:"material_id" binding:"required"`
	BrandId         int             `json:"brand_id"`
	Ownership       BatchOwnership  `json:"ownership" binding:"required"`
	FundingSiteId   int             `json:"funding_site_id" binding:"required"`
	AcquisitionDate time.Time       `json:"acquisition_date" binding:"required"`
	Quantity        decimal.Decimal `json:"quantity"`
	PricingMode     PricingMode     `json:"pricing_mode"`
	UnitCost        decimal.Decimal `json:"unit_cost"`
	TotalWeight     decimal.Decimal `json:"total_weight"`
	WeightUnitCost  decimal.Decimal `json:"weight_unit_cost"`
	Notes           string          `json:"notes"`
}

func (input *NewCostBatch) validate() error {
	if input.Quantity.IsZero() || input.Quantity.IsNegative() {
		return &InvalidRequestError{Reason: "quantity must be positive"}
	}
	if input.Ownership != BatchOwnershipOwn && input.Ownership != BatchOwnershipShared {
		return &InvalidRequestError{Reason: "ownership must be Own or Shared"}
	}
	switch input.PricingMode {
	case "", PricingModePerUnit:
		if input.UnitCost.IsNegative() {
			return &InvalidRequestError{Reason: "unit cost cannot be negative"}
		}
	case PricingModePerWeight:
		if input.TotalWeight.IsZero() || input.TotalWeight.IsNegative() {
			return &InvalidRequestError{Reason: "per-weight pricing requires a positive total weight"}
		}
		if input.WeightUnitCost.IsNegative() {
			return &InvalidRequestError{Reason: "weight unit cost cannot be negative"}
		}
	default:
		return &InvalidRequestError{Reason: "pricing mode must be PerUnit or PerWeight"}
	}
	return nil
}

// CreateCostBatch records an acquired cost pool. The batch number comes from
// the per-period number series so payable documents stay human-referencable.
func CreateCostBatch(ctx context.Context, input *NewCostBatch) (*CostBatch, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	pricingMode := input.PricingMode
	if pricingMode == "" {
		pricingMode = PricingModePerUnit
	}

	db := config.GetDB()
	var batch *CostBatch
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		batchNumber, err := NextReferenceNumber(tx, businessId, NumberModuleBatch, input.AcquisitionDate)
		if err != nil {
			return err
		}
		batch = &CostBatch{
			BusinessId:        businessId,
			BatchNumber:       batchNumber,
			MaterialId:        input.MaterialId,
			BrandId:           input.BrandId,
			Ownership:         input.Ownership,
			FundingSiteId:     input.FundingSiteId,
			AcquisitionDate:   input.AcquisitionDate,
			TotalQuantity:     input.Quantity,
			RemainingQuantity: input.Quantity,
			PricingMode:       pricingMode,
			UnitCost:          input.UnitCost,
			TotalWeight:       input.TotalWeight,
			WeightUnitCost:    input.WeightUnitCost,
			Notes:             input.Notes,
		}
		return tx.Create(batch).Error
	})
	if err != nil {
		return nil, err
	}
	return batch, nil
}

// ListOpenBatches returns the batches consumable by a site for a material in
// FIFO draw order: the site's own-stock tier before shared, then strictly
// oldest acquisition first, id as the final tie-break. Own batches of other
// sites are excluded. forUpdate row-locks the batches for the duration of the
// surrounding transaction; the allocator always locks in this order so
// concurrent allocations cannot deadlock.
func ListOpenBatches(tx *gorm.DB, businessId string, materialId int, brandId int, consumerSiteId int, forUpdate bool) ([]*CostBatch, error) {
	query := tx.
		Where("business_id = ? AND material_id = ? AND remaining_quantity > 0", businessId, materialId).
		Where("(ownership = 'Shared' OR funding_site_id = ?)", consumerSiteId).
		Order("CASE WHEN ownership = 'Own' THEN 0 ELSE 1 END, acquisition_date, id")
	if brandId > 0 {
		query = query.Where("brand_id = ?", brandId)
	}
	if forUpdate {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var batches []*CostBatch
	if err := query.Find(&batches).Error; err != nil {
		return nil, err
	}
	return batches, nil
}

// ListBatches returns every batch for a material, exhausted ones included,
// for reporting and consolidation.
func ListBatches(tx *gorm.DB, businessId string, materialId int, brandId int) ([]*CostBatch, error) {
	query := tx.
		Where("business_id = ? AND material_id = ?", businessId, materialId).
		Order("acquisition_date, id")
	if brandId > 0 {
		query = query.Where("brand_id = ?", brandId)
	}

	var batches []*CostBatch
	if err := query.Find(&batches).Error; err != nil {
		return nil, err
	}
	return batches, nil
}

// GetCostBatchForUpdate row-locks one batch.
func GetCostBatchForUpdate(tx *gorm.DB, businessId string, id int) (*CostBatch, error) {
	var batch CostBatch
	if err := tx.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("business_id = ? AND id = ?", businessId, id).
		First(&batch).Error; err != nil {
		return nil, err
	}
	return &batch, nil
}
