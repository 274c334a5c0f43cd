package dao

import (
	"Recharge/models"
	"context"
	"time"

	"gorm.io/gorm"
)

type PaymentOrder struct {
	Repo[models.PaymentOrder]
}

func NewPaymentOrder(db *gorm.DB) *PaymentOrder {
	return &PaymentOrder{
		Repo: NewRepo[models.PaymentOrder](db),
	}
}

// WithTx 绑定到事务
func (d *PaymentOrder) WithTx(tx *gorm.DB) *PaymentOrder {
	return NewPaymentOrder(tx)
}

func (d *PaymentOrder) FindByOrderNo(ctx context.Context, orderNo string) (*models.PaymentOrder, error) {
	return d.Repo.FindByWhere(ctx, "order_no = ?", orderNo)
}

func (d *PaymentOrder) FindByOutTradeNo(ctx context.Context, outTradeNo string) (*models.PaymentOrder, error) {
	return d.Repo.FindByWhere(ctx, "out_trade_no = ?", outTradeNo)
}

// UpdateStatus 条件更新 status = from 时才写入，返回影响行数，0 表示并发中已被其他请求改掉
func (d *PaymentOrder) UpdateStatus(ctx context.Context, orderNo, from, to string, fields map[string]any) (int64, error) {
	updates := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		updates[k] = v
	}
	updates["status"] = to

	result := d.Repo.Model(ctx).
		Where("order_no = ? AND status = ?", orderNo, from).
		Updates(updates)
	return result.RowsAffected, result.Error
}

// ListByUser 游标分页，按 id 倒序
func (d *PaymentOrder) ListByUser(ctx context.Context, userID uint64, status string, cursor uint64, limit int) ([]models.PaymentOrder, error) {
	var orders []models.PaymentOrder
	query := d.Db.WithContext(ctx).Where("user_id = ?", userID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if cursor > 0 {
		query = query.Where("id < ?", cursor)
	}
	err := query.Order("id DESC").Limit(limit).Find(&orders).Error
	return orders, err
}

// FindPending 待对账订单，最早创建的优先
func (d *PaymentOrder) FindPending(ctx context.Context, limit int) ([]models.PaymentOrder, error) {
	var orders []models.PaymentOrder
	err := d.Db.WithContext(ctx).
		Where("status = ?", models.OrderStatusPending).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

// FindPaidSince 按 id 游标扫描已支付订单，供退款状态同步使用
func (d *PaymentOrder) FindPaidSince(ctx context.Context, since int64, limit int) ([]models.PaymentOrder, error) {
	var orders []models.PaymentOrder
	err := d.Db.WithContext(ctx).
		Where("status = ? AND id > ?", models.OrderStatusPaid, since).
		Order("id ASC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

// TouchNotifyTime 记录最近一次收到支付通知的时间
func (d *PaymentOrder) TouchNotifyTime(ctx context.Context, orderNo string, at time.Time) error {
	return d.Repo.Model(ctx).
		Where("order_no = ?", orderNo).
		Update("notify_time", at).Error
}
