package models

import "time"

type UserPoint struct {
	ID          uint64    `gorm:"primaryKey;column:id"`
	UserID      uint64    `gorm:"column:user_id;uniqueIndex"`
	Balance     int64     `gorm:"column:balance;default:0"`
	TotalEarned uint64    `gorm:"column:total_earned;default:0"`
	TotalUsed   uint64    `gorm:"column:total_used;default:0"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

func (UserPoint) TableName() string {
	return "user_points"
}

// 积分变动类型
const (
	TypeRecharge = 5 // 充值入账
)

// 流水状态
const (
	PointsLogPending   = 0 // 待入账
	PointsLogConfirmed = 1 // 已入账
)

// PointsLog (source_id, change_type) 唯一，同一订单只能入账一次
type PointsLog struct {
	ID         uint64    `gorm:"primaryKey;column:id"`
	UserID     uint64    `gorm:"column:user_id;index:idx_point_logs_user_id"`
	Amount     int64     `gorm:"column:amount"`  // 变动数额（正负）
	Balance    int64     `gorm:"column:balance"` // 变动后余额
	ChangeType int8      `gorm:"column:change_type;uniqueIndex:uk_source_type,priority:2"`
	Status     int8      `gorm:"column:status"`
	SourceID   string    `gorm:"column:source_id;size:64;uniqueIndex:uk_source_type,priority:1"`
	Remark     string    `gorm:"column:remark;size:255"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (PointsLog) TableName() string {
	return "point_logs"
}
