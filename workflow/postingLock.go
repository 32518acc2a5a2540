package workflow

import (
	"fmt"

	"gorm.io/gorm"
)

// AcquireSitePostingLock serializes ledger posting per business+site across
// instances using MySQL advisory locks.
// NOTE: GET_LOCK is connection-scoped, so this must be called on the same
// *gorm.DB that runs the posting transaction.
func AcquireSitePostingLock(tx *gorm.DB, businessId string, siteId int) error {
	lockName := fmt.Sprintf("ledger_posting:%s:%d", businessId, siteId)
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(?, 30)", lockName).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("could not acquire posting lock for business_id=%s site_id=%d", businessId, siteId)
	}
	return nil
}

func ReleaseSitePostingLock(tx *gorm.DB, businessId string, siteId int) {
	lockName := fmt.Sprintf("ledger_posting:%s:%d", businessId, siteId)
	var _ok int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", lockName).Scan(&_ok).Error
}

func acquireWaterfallRebuildLock(tx *gorm.DB, businessId string, siteId int) error {
	lockName := fmt.Sprintf("waterfall_rebuild:%s:%d", businessId, siteId)
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(?, 30)", lockName).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("could not acquire rebuild lock for business_id=%s site_id=%d", businessId, siteId)
	}
	return nil
}

func releaseWaterfallRebuildLock(tx *gorm.DB, businessId string, siteId int) {
	lockName := fmt.Sprintf("waterfall_rebuild:%s:%d", businessId, siteId)
	var _ok int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", lockName).Scan(&_ok).Error
}
