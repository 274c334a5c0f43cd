package dao

import (
	"Recharge/models"
	"context"

	"gorm.io/gorm"
)

type Point struct {
	Repo[models.UserPoint]
}

func NewPoint(db *gorm.DB) *Point {
	return &Point{
		Repo: NewRepo[models.UserPoint](db),
	}
}

// WithTx 绑定到调用方事务，余额与流水必须和订单状态同一事务提交
func (p *Point) WithTx(tx *gorm.DB) *Point {
	return NewPoint(tx)
}

func (p *Point) FindLog(ctx context.Context, sourceID string, changeType int) (*models.PointsLog, error) {
	var log models.PointsLog
	err := p.Db.WithContext(ctx).
		Where("source_id = ? AND change_type = ?", sourceID, changeType).
		First(&log).Error
	if err != nil {
		return nil, err
	}
	return &log, nil
}

func (p *Point) GetAccount(ctx context.Context, userID uint64) (*models.UserPoint, error) {
	var account models.UserPoint
	err := p.Db.WithContext(ctx).Where("user_id = ?", userID).First(&account).Error
	return &account, err
}

// CreateAccount 初始化账户（针对新用户）
func (p *Point) CreateAccount(ctx context.Context, userID uint64, initialPoints int64) error {
	newAccount := &models.UserPoint{
		UserID:      userID,
		Balance:     initialPoints,
		TotalEarned: uint64(initialPoints),
	}
	return p.Db.WithContext(ctx).Create(newAccount).Error
}

func (p *Point) CreatePointLog(ctx context.Context, log *models.PointsLog) error {
	return p.Db.WithContext(ctx).Create(log).Error
}

func (p *Point) UpdateBalance(ctx context.Context, userID uint64, amount int64) (int64, error) {
	result := p.Db.WithContext(ctx).Model(&models.UserPoint{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			// gorm.Expr 保证了并发下的原子加减，避免数据覆盖
			"balance":      gorm.Expr("balance + ?", amount),
			"total_earned": gorm.Expr("total_earned + ?", amount),
		})

	// 影响行数为 0 说明账户不存在，需要开户
	return result.RowsAffected, result.Error
}

// GetPendingStats 统计待入账数据
func (p *Point) GetPendingStats(ctx context.Context, userID uint64) (count int64, amount int64, err error) {
	var res struct {
		Count  int64
		Amount int64
	}
	err = p.Db.WithContext(ctx).Model(&models.PointsLog{}).
		Select("COUNT(*) AS count, COALESCE(SUM(amount), 0) AS amount").
		Where("user_id = ? AND status = ?", userID, models.PointsLogPending).
		Scan(&res).Error
	return res.Count, res.Amount, err
}

// ListRecords 分页筛选查询
func (p *Point) ListRecords(ctx context.Context, userID uint64, action string, cursor int64, limit int) ([]models.PointsLog, error) {
	var logs []models.PointsLog
	query := p.Db.WithContext(ctx).Where("user_id = ?", userID)

	switch action {
	case "income":
		query = query.Where("amount > ?", 0)
	case "expense":
		query = query.Where("amount < ?", 0)
	}

	if cursor > 0 {
		query = query.Where("id < ?", cursor)
	}

	err := query.Order("id DESC").Limit(limit).Find(&logs).Error
	return logs, err
}
