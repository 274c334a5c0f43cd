package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PaymentPackage 积分充值套餐
type PaymentPackage struct {
	ID          uint64          `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	Name        string          `gorm:"column:name;size:64;not null" json:"name"`
	Description string          `gorm:"column:description;size:255" json:"description"`
	Price       decimal.Decimal `gorm:"column:price;type:decimal(10,2);not null" json:"price"` // 单位：元
	Points      int64           `gorm:"column:points;not null" json:"points"`
	BonusPoints int64           `gorm:"column:bonus_points;not null;default:0" json:"bonus_points"`
	IsActive    bool            `gorm:"column:is_active;not null;default:true;index:idx_payment_packages_active_sort" json:"is_active"`
	SortOrder   int             `gorm:"column:sort_order;not null;default:0;index:idx_payment_packages_active_sort" json:"sort_order"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt  `gorm:"index;column:deleted_at" json:"-"`
}

func (PaymentPackage) TableName() string {
	return "payment_packages"
}
