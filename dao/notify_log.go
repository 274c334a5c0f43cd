package dao

import (
	"Recharge/models"
	"context"
	"time"

	"gorm.io/gorm"
)

type NotifyLog struct {
	Repo[models.PaymentNotifyLog]
}

func NewNotifyLog(db *gorm.DB) *NotifyLog {
	return &NotifyLog{
		Repo: NewRepo[models.PaymentNotifyLog](db),
	}
}

// MarkProcessed 回写处理结果
func (d *NotifyLog) MarkProcessed(ctx context.Context, id uint64, status, outcome, errMsg string, at time.Time) error {
	if r := []rune(errMsg); len(r) > 500 {
		errMsg = string(r[:500])
	}
	return d.Repo.Model(ctx).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        status,
			"outcome":       outcome,
			"error_message": errMsg,
			"process_time":  at,
		}).Error
}

func (d *NotifyLog) ListByOrderNo(ctx context.Context, orderNo string) ([]models.PaymentNotifyLog, error) {
	var logs []models.PaymentNotifyLog
	err := d.Db.WithContext(ctx).Where("order_no = ?", orderNo).Order("id ASC").Find(&logs).Error
	return logs, err
}
