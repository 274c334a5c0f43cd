package dao

import (
	"Recharge/models"
	"context"

	"gorm.io/gorm"
)

type PaymentPackage struct {
	Repo[models.PaymentPackage]
}

func NewPaymentPackage(db *gorm.DB) *PaymentPackage {
	return &PaymentPackage{
		Repo: NewRepo[models.PaymentPackage](db),
	}
}

func (d *PaymentPackage) FindByID(ctx context.Context, id uint64) (*models.PaymentPackage, error) {
	return d.Repo.FindByWhere(ctx, "id = ?", id)
}

// ListActive 上架套餐，按 sort_order 升序
func (d *PaymentPackage) ListActive(ctx context.Context) ([]models.PaymentPackage, error) {
	var items []models.PaymentPackage
	err := d.Db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("sort_order ASC, id ASC").
		Find(&items).Error
	return items, err
}
