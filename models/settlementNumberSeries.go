package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/sitebooks/siteledger_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// IsDuplicateKeyError reports whether err is a MySQL unique-key violation.
func IsDuplicateKeyError(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}

// SettlementNumberSeries hands out the human-readable reference numbers that
// batches, allocations, pools and payments carry for display and audit.
// Numbering is monotonic within (business, module, fiscal period) and the
// next value is claimed under a row lock, so numbers never repeat even under
// concurrent posting.
type SettlementNumberSeries struct {
	ID           int       `gorm:"primary_key" json:"id"`
	BusinessId   string    `gorm:"size:64;not null;index:uniq_series,unique" json:"business_id"`
	ModuleName   string    `gorm:"size:20;not null;index:uniq_series,unique" json:"module_name"`
	FiscalPeriod string    `gorm:"size:10;not null;index:uniq_series,unique" json:"fiscal_period"`
	Prefix       string    `gorm:"size:10" json:"prefix"`
	NextSequence int       `gorm:"not null;default:1" json:"next_sequence"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// NextReferenceNumber claims the next number in the module's series for the
// fiscal period of eventDate, creating the series row on first use.
// Format: <module><period>-<seq>, e.g. "PAY2025-26-00042".
func NextReferenceNumber(tx *gorm.DB, businessId string, module NumberSeriesModule, eventDate time.Time) (string, error) {
	period := utils.FiscalPeriodLabel(eventDate)

	var series SettlementNumberSeries
	err := tx.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("business_id = ? AND module_name = ? AND fiscal_period = ?", businessId, module, period).
		First(&series).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		series = SettlementNumberSeries{
			BusinessId:   businessId,
			ModuleName:   string(module),
			FiscalPeriod: period,
			Prefix:       string(module),
			NextSequence: 1,
		}
		if createErr := tx.Create(&series).Error; createErr != nil && !IsDuplicateKeyError(createErr) {
			return "", createErr
		}
		// Re-acquire under lock: another transaction may have created the row
		// first and the unique index rejected ours.
		if lockErr := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("business_id = ? AND module_name = ? AND fiscal_period = ?", businessId, module, period).
			First(&series).Error; lockErr != nil {
			return "", lockErr
		}
	} else if err != nil {
		return "", err
	}

	number := fmt.Sprintf("%s%s-%05d", series.Prefix, series.FiscalPeriod, series.NextSequence)
	if err := tx.Model(&SettlementNumberSeries{}).
		Where("id = ?", series.ID).
		Update("next_sequence", series.NextSequence+1).Error; err != nil {
		return "", err
	}
	return number, nil
}
