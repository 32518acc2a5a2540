package models

import "time"

// LedgerAuditReport is one finding of the integrity checks. The checks are
// detect-then-report: rows are written for manual remediation and nothing is
// auto-healed.
type LedgerAuditReport struct {
	ID            int       `gorm:"primary_key" json:"id"`
	BusinessId    string    `gorm:"size:64;not null;index" json:"business_id"`
	CheckType     string    `gorm:"size:40;not null;index" json:"check_type"`
	EntityType    string    `gorm:"size:40;not null" json:"entity_type"`
	EntityId      int       `gorm:"index" json:"entity_id"`
	SiteId        int       `gorm:"index" json:"site_id"`
	Details       string    `gorm:"type:text" json:"details"`
	CorrelationId string    `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}
