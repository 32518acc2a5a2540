package models

import (
	"context"
	"errors"
	"time"

	"github.com/sitebooks/siteledger_backend/config"
	"github.com/sitebooks/siteledger_backend/utils"
)

// Material is the logical item a cost batch is acquired for: cement, sand,
// steel, or a recurring shared-vendor tab (tea shop, water supply).
type Material struct {
	ID              int       `gorm:"primary_key" json:"id"`
	BusinessId      string    `gorm:"index;not null" json:"business_id"`
	Name            string    `gorm:"size:100;not null" json:"name"`
	Unit            string    `gorm:"size:20" json:"unit"`
	IsBrandTracking *bool     `gorm:"not null;default:false" json:"is_brand_tracking"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// MaterialBrand is an optional variant of a material (brand of cement, grade
// of steel). Batches may carry a brand; allocation then filters by it.
type MaterialBrand struct {
	ID         int       `gorm:"primary_key" json:"id"`
	BusinessId string    `gorm:"index;not null" json:"business_id"`
	MaterialId int       `gorm:"index;not null" json:"material_id"`
	Name       string    `gorm:"size:100;not null" json:"name"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewMaterial struct {
	Name            string `json:"name" binding:"required"`
	Unit            string `json:"unit"`
	IsBrandTracking *bool  `json:"is_brand_tracking"`
}

func CreateMaterial(ctx context.Context, input *NewMaterial) (*Material, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	material := Material{
		BusinessId:      businessId,
		Name:            input.Name,
		Unit:            input.Unit,
		IsBrandTracking: input.IsBrandTracking,
	}
	if material.IsBrandTracking == nil {
		material.IsBrandTracking = utils.NewFalse()
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&material).Error; err != nil {
		return nil, err
	}
	return &material, nil
}

func GetMaterialById(ctx context.Context, id int) (*Material, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	var material Material
	if err := db.WithContext(ctx).
		Where("business_id = ? AND id = ?", businessId, id).
		First(&material).Error; err != nil {
		return nil, err
	}
	return &material, nil
}
