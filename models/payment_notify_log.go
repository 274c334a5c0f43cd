package models

import (
	"time"

	"gorm.io/datatypes"
)

// 回调处理状态
const (
	NotifyStatusPending = "PENDING"
	NotifyStatusSuccess = "SUCCESS"
	NotifyStatusFailed  = "FAILED"
)

// PaymentNotifyLog 支付回调原文留档
type PaymentNotifyLog struct {
	ID            uint64         `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	OrderNo       string         `gorm:"column:order_no;type:varchar(32);index:idx_notify_logs_order_no" json:"order_no"`
	OutTradeNo    string         `gorm:"column:out_trade_no;type:varchar(32)" json:"out_trade_no"`
	TransactionID string         `gorm:"column:transaction_id;type:varchar(64)" json:"transaction_id"`
	RawBody       string         `gorm:"column:raw_body;type:text" json:"raw_body"`
	Headers       datatypes.JSON `gorm:"column:headers" json:"headers"`
	ClientIP      string         `gorm:"column:client_ip;type:varchar(64)" json:"client_ip"`
	Status        string         `gorm:"column:status;type:varchar(16);not null" json:"status"`
	Outcome       string         `gorm:"column:outcome;type:varchar(32)" json:"outcome"`
	ErrorMessage  string         `gorm:"column:error_message;type:varchar(512)" json:"error_message"`
	ProcessTime   *time.Time     `gorm:"column:process_time" json:"process_time"`
	CreatedAt     time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (PaymentNotifyLog) TableName() string {
	return "payment_notify_logs"
}
