package models

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sitebooks/siteledger_backend/config"
)

// Business is the tenant: one construction firm running any number of sites.
type Business struct {
	ID        uuid.UUID `gorm:"primary_key;type:char(36)" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Email     string    `gorm:"size:100" json:"email"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewBusiness struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email"`
}

func CreateBusiness(ctx context.Context, input *NewBusiness) (*Business, error) {
	business := Business{
		ID:    uuid.New(),
		Name:  input.Name,
		Email: input.Email,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&business).Error; err != nil {
		return nil, err
	}
	return &business, nil
}

func GetBusinessById(ctx context.Context, businessId string) (*Business, error) {
	if businessId == "" {
		return nil, errors.New("business id is required")
	}
	db := config.GetDB()
	var business Business
	if err := db.WithContext(ctx).Where("id = ?", businessId).First(&business).Error; err != nil {
		return nil, err
	}
	return &business, nil
}
