package service

import (
	"Recharge/dao"
	"Recharge/models"
	"Recharge/types"
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

type PointService struct {
	DB       *gorm.DB
	PointDAO *dao.Point
}

var _ IPointService = (*PointService)(nil)

type IPointService interface {
	// Credit 在调用方事务 tx 内入账，同一 SourceID 只入账一次
	Credit(ctx context.Context, tx *gorm.DB, req *CreditRequest) (*CreditResult, error)

	// 查询
	GetAccountDashboard(ctx context.Context, userID uint64) (*types.PointsAccount, error)
	ListPointRecords(ctx context.Context, userID uint64, action string, cursor int64, limit int) (*types.ListPointsRecord, error)
}

type CreditRequest struct {
	UserID   uint64
	Amount   int64
	SourceID string // 幂等键，充值场景为 orderNo
	Remark   string
}

type CreditResult struct {
	Balance       int64
	TransactionID uint64
	Duplicate     bool
}

func (p *PointService) Credit(ctx context.Context, tx *gorm.DB, req *CreditRequest) (*CreditResult, error) {
	if req.Amount <= 0 {
		return nil, errors.New("入账积分数额必须大于0")
	}
	if req.SourceID == "" {
		return nil, errors.New("入账缺少业务单号")
	}
	if tx == nil {
		tx = p.DB
	}
	points := p.PointDAO.WithTx(tx)

	// 1. 幂等检查
	existing, err := points.FindLog(ctx, req.SourceID, models.TypeRecharge)
	if err == nil {
		return &CreditResult{Balance: existing.Balance, TransactionID: existing.ID, Duplicate: true}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("检查积分变动记录失败: %w", err)
	}

	// 2. 原子加余额，无账户则开户
	rows, err := points.UpdateBalance(ctx, req.UserID, req.Amount)
	if err != nil {
		return nil, fmt.Errorf("更新用户积分余额失败: %w", err)
	}
	if rows == 0 {
		if err := points.CreateAccount(ctx, req.UserID, req.Amount); err != nil {
			return nil, fmt.Errorf("新用户积分账户创建失败: %w", err)
		}
	}

	// 3. 账户快照
	account, err := points.GetAccount(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("查询积分账户失败: %w", err)
	}

	// 4. 流水，(source_id, change_type) 唯一索引兜底
	record := &models.PointsLog{
		UserID:     req.UserID,
		Amount:     req.Amount,
		Balance:    account.Balance,
		ChangeType: models.TypeRecharge,
		Status:     models.PointsLogConfirmed,
		SourceID:   req.SourceID,
		Remark:     req.Remark,
	}
	if err := points.CreatePointLog(ctx, record); err != nil {
		return nil, fmt.Errorf("写入积分流水失败: %w", err)
	}

	return &CreditResult{Balance: account.Balance, TransactionID: record.ID}, nil
}

func (p *PointService) GetAccountDashboard(ctx context.Context, userID uint64) (*types.PointsAccount, error) {
	account, err := p.PointDAO.GetAccount(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// 没记录说明还没充值过，直接返回初始状态
			return &types.PointsAccount{}, nil
		}
		return nil, fmt.Errorf("查询积分账户失败: %w", err)
	}
	pCount, pAmount, err := p.PointDAO.GetPendingStats(ctx, userID)
	if err != nil {
		pCount, pAmount = 0, 0
	}
	return &types.PointsAccount{
		Balance:       int(account.Balance),
		TotalEarned:   int(account.TotalEarned),
		TotalUsed:     int(account.TotalUsed),
		PendingCount:  int(pCount),
		PendingAmount: int(pAmount),
	}, nil
}

func (p *PointService) ListPointRecords(ctx context.Context, userID uint64, action string, cursor int64, limit int) (*types.ListPointsRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	logs, err := p.PointDAO.ListRecords(ctx, userID, action, cursor, limit+1)
	if err != nil {
		return nil, fmt.Errorf("查询积分流水失败: %w", err)
	}

	resp := &types.ListPointsRecord{
		Records: make([]types.PointRecord, 0),
		HasMore: false,
	}

	if len(logs) > limit {
		resp.HasMore = true
		logs = logs[:limit]
		resp.NextCursor = int64(logs[len(logs)-1].ID)
	}

	for _, l := range logs {
		orderType := "INCOME"
		if l.Amount < 0 {
			orderType = "EXPENSE"
		}
		resp.Records = append(resp.Records, types.PointRecord{
			ID:          int(l.ID),
			Amount:      int(l.Amount),
			Balance:     int(l.Balance),
			Description: l.Remark,
			OrderType:   orderType,
			SourceID:    l.SourceID,
			Status:      int(l.Status),
			CreatedAt:   l.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}
	return resp, nil
}
