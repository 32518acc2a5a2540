package models

import (
	"context"
	"errors"
	"time"

	"github.com/sitebooks/siteledger_backend/config"
	"github.com/sitebooks/siteledger_backend/utils"
)

// Site is a consuming/funding party: a construction site office. Shared
// batches and shared pools create settlement obligations between sites.
type Site struct {
	ID         int       `gorm:"primary_key" json:"id"`
	BusinessId string    `gorm:"index;not null" json:"business_id"`
	Name       string    `gorm:"size:100;not null" json:"name"`
	Code       string    `gorm:"size:20" json:"code"`
	IsActive   *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewSite struct {
	Name string `json:"name" binding:"required"`
	Code string `json:"code"`
}

func CreateSite(ctx context.Context, input *NewSite) (*Site, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	site := Site{
		BusinessId: businessId,
		Name:       input.Name,
		Code:       input.Code,
		IsActive:   utils.NewTrue(),
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&site).Error; err != nil {
		return nil, err
	}
	return &site, nil
}

func GetSitesAll(ctx context.Context) ([]*Site, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	var sites []*Site
	if err := db.WithContext(ctx).
		Where("business_id = ?", businessId).
		Order("name").
		Find(&sites).Error; err != nil {
		return nil, err
	}
	return sites, nil
}
