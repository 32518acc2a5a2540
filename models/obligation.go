package models

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Obligation is the unified payable view the waterfall engine walks: an
// AllocationRecord draw against a shared batch, or a PoolAllocation share of
// a shared pool. One abstraction, one engine; the settlement rules must not
// fork per obligation shape.
type Obligation struct {
	Kind            ObligationKind   `json:"kind"`
	ID              int              `json:"id"`
	SiteId          int              `json:"site_id"`
	EventDate       time.Time        `json:"event_date"`
	ReferenceNumber string           `json:"reference_number"`
	TotalAmount     decimal.Decimal  `json:"total_amount"`
	AmountPaid      decimal.Decimal  `json:"amount_paid"`
	Status          SettlementStatus `json:"status"`
}

func (o *Obligation) Outstanding() decimal.Decimal {
	return o.TotalAmount.Sub(o.AmountPaid)
}

// SortObligations orders by event date ascending, then kind, then id. This is
// the deterministic walk/lock order shared by payment application and rebuild.
func SortObligations(obligations []Obligation) {
	sort.SliceStable(obligations, func(i, j int) bool {
		a, b := obligations[i], obligations[j]
		if !a.EventDate.Equal(b.EventDate) {
			return a.EventDate.Before(b.EventDate)
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.ID < b.ID
	})
}

func obligationFromAllocation(r *AllocationRecord) Obligation {
	return Obligation{
		Kind:            ObligationKindAllocation,
		ID:              r.ID,
		SiteId:          r.ConsumerSiteId,
		EventDate:       r.UsageDate,
		ReferenceNumber: r.AllocationNumber,
		TotalAmount:     r.TotalCost,
		AmountPaid:      r.AmountPaid,
		Status:          r.SettlementStatus,
	}
}

type poolObligationRow struct {
	ID         int
	SiteId     int
	EventDate  time.Time
	PoolNumber string
	Amount     decimal.Decimal
	AmountPaid decimal.Decimal
	Status     SettlementStatus
}

func listPoolObligationRows(tx *gorm.DB, businessId string, siteId int, outstandingOnly bool, forUpdate bool) ([]poolObligationRow, error) {
	query := tx.Table("pool_allocations AS pa").
		Joins("JOIN shared_pool_entries AS pool ON pool.id = pa.pool_id").
		Select("pa.id, pa.beneficiary_site_id AS site_id, pool.pool_date AS event_date, pool.pool_number, pa.amount, pa.amount_paid, pa.settlement_status AS status").
		Where("pa.business_id = ? AND pa.beneficiary_site_id = ? AND pa.is_reversed = 0", businessId, siteId).
		Order("pool.pool_date, pa.id")
	if outstandingOnly {
		query = query.Where("pa.amount_paid < pa.amount")
	}
	if forUpdate {
		query = query.Clauses(clause.Locking{Strength: "UPDATE", Table: clause.Table{Name: "pa"}})
	}

	var rows []poolObligationRow
	if err := query.Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func listAllocationObligations(tx *gorm.DB, businessId string, siteId int, outstandingOnly bool, forUpdate bool) ([]*AllocationRecord, error) {
	query := tx.
		Where("business_id = ? AND consumer_site_id = ? AND requires_settlement = 1 AND is_reversed = 0", businessId, siteId).
		Order("usage_date, id")
	if outstandingOnly {
		query = query.Where("amount_paid < total_cost")
	}
	if forUpdate {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var records []*AllocationRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// ListObligationsForSite merges both obligation shapes into one date-ordered
// list. With forUpdate set, allocation rows are always locked before pool
// rows so concurrent payment/rebuild transactions acquire locks in the same
// order.
func ListObligationsForSite(tx *gorm.DB, businessId string, siteId int, outstandingOnly bool, forUpdate bool) ([]Obligation, error) {
	records, err := listAllocationObligations(tx, businessId, siteId, outstandingOnly, forUpdate)
	if err != nil {
		return nil, err
	}
	poolRows, err := listPoolObligationRows(tx, businessId, siteId, outstandingOnly, forUpdate)
	if err != nil {
		return nil, err
	}

	obligations := make([]Obligation, 0, len(records)+len(poolRows))
	for _, r := range records {
		obligations = append(obligations, obligationFromAllocation(r))
	}
	for _, row := range poolRows {
		obligations = append(obligations, Obligation{
			Kind:            ObligationKindPool,
			ID:              row.ID,
			SiteId:          row.SiteId,
			EventDate:       row.EventDate,
			ReferenceNumber: row.PoolNumber,
			TotalAmount:     row.Amount,
			AmountPaid:      row.AmountPaid,
			Status:          row.Status,
		})
	}
	SortObligations(obligations)
	return obligations, nil
}

// UpdateObligationSettlement writes back one obligation's paid amount and
// status after a waterfall step.
func UpdateObligationSettlement(tx *gorm.DB, businessId string, kind ObligationKind, id int, amountPaid decimal.Decimal, status SettlementStatus) error {
	values := map[string]interface{}{
		"amount_paid":       amountPaid,
		"settlement_status": status,
	}
	switch kind {
	case ObligationKindAllocation:
		return tx.Model(&AllocationRecord{}).
			Where("business_id = ? AND id = ?", businessId, id).
			Updates(values).Error
	case ObligationKindPool:
		return tx.Model(&PoolAllocation{}).
			Where("business_id = ? AND id = ?", businessId, id).
			Updates(values).Error
	default:
		return fmt.Errorf("unknown obligation kind %q", kind)
	}
}

// ResetObligationsForSite zeroes every active obligation of the site back to
// Unsettled. Only the rebuild calls this, inside its own transaction.
func ResetObligationsForSite(tx *gorm.DB, businessId string, siteId int) error {
	values := map[string]interface{}{
		"amount_paid":       decimal.Zero,
		"settlement_status": SettlementStatusUnsettled,
	}
	if err := tx.Model(&AllocationRecord{}).
		Where("business_id = ? AND consumer_site_id = ? AND requires_settlement = 1 AND is_reversed = 0", businessId, siteId).
		Updates(values).Error; err != nil {
		return err
	}
	return tx.Model(&PoolAllocation{}).
		Where("business_id = ? AND beneficiary_site_id = ? AND is_reversed = 0", businessId, siteId).
		Updates(values).Error
}
