package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Payment is an inbound settlement amount from one site against its
// outstanding obligations. Payments are the source of truth for the
// waterfall: PaymentApplications are derived and may be rebuilt from them.
type Payment struct {
	ID            int             `gorm:"primary_key" json:"id"`
	BusinessId    string          `gorm:"index;not null" json:"business_id"`
	PaymentNumber string          `gorm:"size:30;index" json:"payment_number"`
	PayerSiteId   int             `gorm:"index;not null" json:"payer_site_id"`
	PaymentDate   time.Time       `gorm:"not null;index" json:"payment_date"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	// UnappliedAmount is the credit left over when the payment exceeded the
	// outstanding obligations at application time. Reported, never discarded.
	UnappliedAmount decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unapplied_amount"`
	Notes           string          `gorm:"type:text" json:"notes"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// PaymentApplication is the audit trail of one payment hitting one
// obligation: which kind, which row, how much.
type PaymentApplication struct {
	ID             int             `gorm:"primary_key" json:"id"`
	BusinessId     string          `gorm:"index;not null" json:"business_id"`
	PaymentId      int             `gorm:"index;not null" json:"payment_id"`
	ObligationKind ObligationKind  `gorm:"type:enum('Allocation','Pool');not null" json:"obligation_kind"`
	ObligationId   int             `gorm:"index;not null" json:"obligation_id"`
	AppliedAmount  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"applied_amount"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// ListPaymentsForSite returns payments oldest first (date, then id), the
// replay order for rebuildWaterfall.
func ListPaymentsForSite(tx *gorm.DB, businessId string, siteId int) ([]*Payment, error) {
	var payments []*Payment
	if err := tx.
		Where("business_id = ? AND payer_site_id = ?", businessId, siteId).
		Order("payment_date, id").
		Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

// ListPaymentApplications returns the audit rows for one payment.
func ListPaymentApplications(tx *gorm.DB, businessId string, paymentId int) ([]*PaymentApplication, error) {
	var applications []*PaymentApplication
	if err := tx.
		Where("business_id = ? AND payment_id = ?", businessId, paymentId).
		Order("id").
		Find(&applications).Error; err != nil {
		return nil, err
	}
	return applications, nil
}
