package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// 订单状态
const (
	OrderStatusPending   = "PENDING"   // 待支付
	OrderStatusPaid      = "PAID"      // 已支付
	OrderStatusFailed    = "FAILED"    // 支付失败
	OrderStatusExpired   = "EXPIRED"   // 已过期
	OrderStatusCancelled = "CANCELLED" // 已取消
	OrderStatusRefunded  = "REFUNDED"  // 已退款
)

const PaymentMethodWechatPay = "WECHAT_PAY"

// orderTransitions 允许的状态迁移，其余一律视为 no-op
var orderTransitions = map[string][]string{
	OrderStatusPending: {OrderStatusPaid, OrderStatusExpired, OrderStatusCancelled, OrderStatusFailed},
	OrderStatusPaid:    {OrderStatusRefunded},
}

// CanTransition 判断 from -> to 是否为合法边
func CanTransition(from, to string) bool {
	for _, s := range orderTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// PaymentOrder 积分充值订单
type PaymentOrder struct {
	ID            uint64          `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	OrderNo       string          `gorm:"column:order_no;type:varchar(32);not null;uniqueIndex:uk_order_no" json:"order_no"`
	OutTradeNo    string          `gorm:"column:out_trade_no;type:varchar(32);not null;uniqueIndex:uk_out_trade_no" json:"out_trade_no"`
	UserID        uint64          `gorm:"column:user_id;not null;index:idx_payment_orders_user_id" json:"user_id"`
	PackageID     uint64          `gorm:"column:package_id;not null" json:"package_id"`
	Amount        decimal.Decimal `gorm:"column:amount;type:decimal(10,2);not null" json:"amount"` // 单位：元
	Points        int64           `gorm:"column:points;not null" json:"points"`
	BonusPoints   int64           `gorm:"column:bonus_points;not null;default:0" json:"bonus_points"`
	PaymentMethod string          `gorm:"column:payment_method;type:varchar(20);not null" json:"payment_method"`
	Status        string          `gorm:"column:status;type:varchar(16);not null;index:idx_payment_orders_status_created" json:"status"`
	TransactionID string          `gorm:"column:transaction_id;type:varchar(64)" json:"transaction_id"`
	PaymentTime   *time.Time      `gorm:"column:payment_time" json:"payment_time"`
	NotifyTime    *time.Time      `gorm:"column:notify_time" json:"notify_time"`
	ExpireTime    time.Time       `gorm:"column:expire_time;not null" json:"expire_time"`
	FailReason    string          `gorm:"column:fail_reason;type:varchar(255)" json:"fail_reason"`
	Metadata      datatypes.JSON  `gorm:"column:metadata" json:"metadata"` // 回传给网关的 attach
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime;index:idx_payment_orders_status_created" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (PaymentOrder) TableName() string {
	return "payment_orders"
}

// TotalPoints 应入账积分
func (o *PaymentOrder) TotalPoints() int64 {
	return o.Points + o.BonusPoints
}
