package service

import (
	"Recharge/config"
	"Recharge/dao"
	"Recharge/models"
	"Recharge/pkg/log"
	"Recharge/pkg/snowflake"
	"Recharge/pkg/wxpay"
	"Recharge/types"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	reasonAmountMismatch = "amount mismatch"
	reasonExpired        = "订单已过期"
	reasonClosed         = "订单已关闭"
	reasonPayError       = "支付失败"
	reasonUserCancel     = "用户取消"
)

// errSettleLost 条件更新影响 0 行，需要在事务外重新读取最新状态
var errSettleLost = errors.New("settle: lost status race")

// IWechatPay 支付网关
type IWechatPay interface {
	CreateNativeOrder(ctx context.Context, req *wxpay.UnifiedOrderRequest) (*wxpay.UnifiedOrderResult, error)
	QueryOrder(ctx context.Context, outTradeNo string) (*wxpay.OrderQueryResult, error)
	CloseOrder(ctx context.Context, outTradeNo string) error
	ParseNotify(raw []byte) (*wxpay.Notification, error)
}

// IOrderEventPublisher 结算完成后的事件投递
type IOrderEventPublisher interface {
	PublishOrderPaid(ctx context.Context, event *types.OrderPaidEvent) error
}

type PaymentService struct {
	DB       *gorm.DB
	Config   *config.OrderConfig
	OrderDAO *dao.PaymentOrder
	Packages IPackageService
	Points   IPointService
	Gateway  IWechatPay
	Events   IOrderEventPublisher
	Now      func() time.Time
}

var _ IPaymentService = (*PaymentService)(nil)

type IPaymentService interface {
	CreateOrder(ctx context.Context, userID, packageID uint64, clientIP string) (*CreateOrderResult, error)
	GetOrder(ctx context.Context, orderNo string) (*models.PaymentOrder, error)
	QueryStatus(ctx context.Context, orderNo string) (*QueryResult, error)
	CloseOrder(ctx context.Context, orderNo string) (*QueryResult, error)
	Settle(ctx context.Context, orderNo string, paidFen int64, transactionID string) (*models.PaymentOrder, error)
	SyncRefund(ctx context.Context, orderNo string) (*QueryResult, error)
	ListOrders(ctx context.Context, userID uint64, status string, cursor uint64, limit int) (*types.ListOrdersResponse, error)
}

type CreateOrderResult struct {
	Order   *models.PaymentOrder
	CodeURL string
}

// QueryResult 本地订单以及本次观察到的网关交易状态
type QueryResult struct {
	Order          *models.PaymentOrder
	TradeState     string
	TradeStateDesc string
	Warning        string
}

func (s *PaymentService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *PaymentService) CreateOrder(ctx context.Context, userID, packageID uint64, clientIP string) (*CreateOrderResult, error) {
	pkg, err := s.Packages.GetPurchasablePackage(ctx, packageID)
	if err != nil {
		return nil, err
	}
	if !pkg.Price.IsPositive() || pkg.Price.GreaterThan(s.Config.Ceiling()) {
		log.L.Error("package price out of range",
			zap.Uint64("package_id", pkg.ID),
			zap.String("price", pkg.Price.String()))
		return nil, fmt.Errorf("%w: %s", ErrInvalidAmount, pkg.Price.String())
	}
	// 入账积分为 0 的套餐付款后无法结算
	if pkg.Points < 0 || pkg.BonusPoints < 0 || pkg.Points+pkg.BonusPoints <= 0 {
		log.L.Error("package points invalid",
			zap.Uint64("package_id", pkg.ID),
			zap.Int64("points", pkg.Points),
			zap.Int64("bonus_points", pkg.BonusPoints))
		return nil, fmt.Errorf("%w: %d+%d", ErrInvalidPoints, pkg.Points, pkg.BonusPoints)
	}

	now := s.now()
	orderNo := snowflake.GenOrderNo()
	attach, err := json.Marshal(map[string]any{
		"orderNo":   orderNo,
		"packageId": pkg.ID,
	})
	if err != nil {
		return nil, err
	}

	order := &models.PaymentOrder{
		OrderNo:       orderNo,
		OutTradeNo:    snowflake.GenOutTradeNo(),
		UserID:        userID,
		PackageID:     pkg.ID,
		Amount:        pkg.Price.Round(2),
		Points:        pkg.Points,
		BonusPoints:   pkg.BonusPoints,
		PaymentMethod: models.PaymentMethodWechatPay,
		Status:        models.OrderStatusPending,
		ExpireTime:    now.Add(s.Config.TTL()),
		Metadata:      datatypes.JSON(attach),
	}
	if err := s.OrderDAO.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	res, err := s.Gateway.CreateNativeOrder(ctx, &wxpay.UnifiedOrderRequest{
		OutTradeNo:     order.OutTradeNo,
		TotalFee:       wxpay.ToFen(order.Amount),
		Body:           "积分充值-" + pkg.Name,
		Attach:         string(attach),
		ProductID:      strconv.FormatUint(pkg.ID, 10),
		SpbillCreateIP: clientIP,
		TimeExpire:     order.ExpireTime,
	})
	if err != nil {
		// 没有 code_url 用户无法支付，远端即使建单成功也会按 time_expire 失效
		reason := gatewayMessage(err)
		if _, terr := s.transition(context.WithoutCancel(ctx), order, models.OrderStatusFailed, map[string]any{
			"fail_reason": reason,
		}); terr != nil {
			log.L.Error("mark order failed", zap.String("order_no", orderNo), zap.Error(terr))
		}
		log.L.Warn("create gateway order failed",
			zap.String("order_no", orderNo),
			zap.String("reason", reason),
			zap.Error(err))
		return nil, fmt.Errorf("create gateway order: %w", err)
	}

	log.L.Info("order created",
		zap.String("order_no", orderNo),
		zap.String("out_trade_no", order.OutTradeNo),
		zap.Uint64("user_id", userID),
		zap.String("amount", order.Amount.StringFixed(2)))
	return &CreateOrderResult{Order: order, CodeURL: res.CodeURL}, nil
}

func (s *PaymentService) GetOrder(ctx context.Context, orderNo string) (*models.PaymentOrder, error) {
	order, err := s.OrderDAO.FindByOrderNo(ctx, orderNo)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderNo)
		}
		return nil, err
	}
	return order, nil
}

// QueryStatus 终态直接返回；过期订单本次观察即置为 EXPIRED；否则按网关交易状态迁移
func (s *PaymentService) QueryStatus(ctx context.Context, orderNo string) (*QueryResult, error) {
	order, err := s.GetOrder(ctx, orderNo)
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderStatusPending {
		return &QueryResult{Order: order}, nil
	}

	remote, err := s.Gateway.QueryOrder(ctx, order.OutTradeNo)
	if s.now().After(order.ExpireTime) {
		return s.expire(ctx, order, remote, err)
	}
	if err != nil {
		return nil, fmt.Errorf("query gateway order: %w", err)
	}
	return s.applyTradeState(ctx, order, remote)
}

// expire 网关明确报告支付成功时结算，其余情况（包括网关不可达）一律过期
func (s *PaymentService) expire(ctx context.Context, order *models.PaymentOrder, remote *wxpay.OrderQueryResult, queryErr error) (*QueryResult, error) {
	if queryErr == nil && remote.TradeState == wxpay.TradeStateSuccess {
		return s.applyTradeState(ctx, order, remote)
	}
	if queryErr != nil {
		log.L.Warn("expire order without gateway confirmation",
			zap.String("order_no", order.OrderNo),
			zap.Error(queryErr))
	}

	updated, err := s.transition(ctx, order, models.OrderStatusExpired, map[string]any{
		"fail_reason": reasonExpired,
	})
	if err != nil {
		return nil, err
	}
	res := &QueryResult{Order: updated}
	if remote != nil {
		res.TradeState = remote.TradeState
		res.TradeStateDesc = remote.TradeStateDesc
	}
	return res, nil
}

func (s *PaymentService) applyTradeState(ctx context.Context, order *models.PaymentOrder, remote *wxpay.OrderQueryResult) (*QueryResult, error) {
	res := &QueryResult{
		Order:          order,
		TradeState:     remote.TradeState,
		TradeStateDesc: remote.TradeStateDesc,
	}

	var err error
	switch remote.TradeState {
	case wxpay.TradeStateSuccess:
		res.Order, err = s.Settle(ctx, order.OrderNo, remote.TotalFee, remote.TransactionID)
	case wxpay.TradeStateNotPay, wxpay.TradeStateUserPaying:
	case wxpay.TradeStateClosed, wxpay.TradeStateRevoked:
		res.Order, err = s.transition(ctx, order, models.OrderStatusCancelled, map[string]any{
			"fail_reason": orDefault(remote.TradeStateDesc, reasonClosed),
		})
	case wxpay.TradeStatePayError:
		res.Order, err = s.transition(ctx, order, models.OrderStatusFailed, map[string]any{
			"fail_reason": orDefault(remote.TradeStateDesc, reasonPayError),
		})
	case wxpay.TradeStateRefund:
		// 只允许 PAID -> REFUNDED，本地未支付的订单不跟随
		res.Warning = "gateway reports refund for an unpaid order"
		log.L.Warn("refund state on non-paid order",
			zap.String("order_no", order.OrderNo),
			zap.String("status", order.Status))
	default:
		res.Warning = "unknown trade state " + remote.TradeState
		log.L.Warn("unknown trade state",
			zap.String("order_no", order.OrderNo),
			zap.String("trade_state", remote.TradeState))
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Settle 结算：订单置为 PAID 与积分入账在同一事务内完成，同一订单至多入账一次
func (s *PaymentService) Settle(ctx context.Context, orderNo string, paidFen int64, transactionID string) (*models.PaymentOrder, error) {
	var (
		settled     *models.PaymentOrder
		credit      *CreditResult
		mismatch    bool
		expectedFen int64
	)

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orders := s.OrderDAO.WithTx(tx)

		order, err := orders.FindByOrderNo(ctx, orderNo)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %s", ErrOrderNotFound, orderNo)
			}
			return err
		}
		switch order.Status {
		case models.OrderStatusPaid:
			settled = order
			return nil
		case models.OrderStatusPending:
		default:
			return fmt.Errorf("%w: order %s is %s", ErrOrderConflict, orderNo, order.Status)
		}

		expectedFen = wxpay.ToFen(order.Amount)
		if diff := paidFen - expectedFen; diff > 1 || diff < -1 {
			n, err := orders.UpdateStatus(ctx, orderNo, models.OrderStatusPending, models.OrderStatusFailed, map[string]any{
				"fail_reason": reasonAmountMismatch,
			})
			if err != nil {
				return err
			}
			if n == 0 {
				return errSettleLost
			}
			mismatch = true
			return nil
		}

		now := s.now()
		n, err := orders.UpdateStatus(ctx, orderNo, models.OrderStatusPending, models.OrderStatusPaid, map[string]any{
			"transaction_id": transactionID,
			"payment_time":   now,
		})
		if err != nil {
			return err
		}
		if n == 0 {
			return errSettleLost
		}

		credit, err = s.Points.Credit(ctx, tx, &CreditRequest{
			UserID:   order.UserID,
			Amount:   order.TotalPoints(),
			SourceID: order.OrderNo,
			Remark:   "积分充值 " + order.OrderNo,
		})
		if err != nil {
			return fmt.Errorf("credit points: %w", err)
		}

		order.Status = models.OrderStatusPaid
		order.TransactionID = transactionID
		order.PaymentTime = &now
		settled = order
		return nil
	})

	switch {
	case errors.Is(err, errSettleLost):
		current, lerr := s.GetOrder(ctx, orderNo)
		if lerr != nil {
			return nil, lerr
		}
		if current.Status == models.OrderStatusPaid {
			settleTotal.WithLabelValues("duplicate").Inc()
			return current, nil
		}
		settleTotal.WithLabelValues("conflict").Inc()
		return nil, fmt.Errorf("%w: order %s is %s", ErrOrderConflict, orderNo, current.Status)
	case errors.Is(err, ErrOrderConflict):
		settleTotal.WithLabelValues("conflict").Inc()
		log.L.Warn("late payment for dead order",
			zap.String("order_no", orderNo),
			zap.String("transaction_id", transactionID),
			zap.Error(err))
		return nil, err
	case err != nil:
		settleTotal.WithLabelValues("error").Inc()
		log.L.Error("settle failed", zap.String("order_no", orderNo), zap.Error(err))
		return nil, err
	}

	if mismatch {
		settleTotal.WithLabelValues("amount_mismatch").Inc()
		transitionTotal.WithLabelValues(models.OrderStatusPending, models.OrderStatusFailed).Inc()
		log.L.Error("payment amount mismatch",
			zap.String("order_no", orderNo),
			zap.Int64("expected_fen", expectedFen),
			zap.Int64("paid_fen", paidFen),
			zap.String("transaction_id", transactionID))
		return nil, fmt.Errorf("%w: order %s expects %d fen, paid %d", ErrAmountMismatch, orderNo, expectedFen, paidFen)
	}
	if credit == nil {
		settleTotal.WithLabelValues("duplicate").Inc()
		return settled, nil
	}

	settleTotal.WithLabelValues("settled").Inc()
	transitionTotal.WithLabelValues(models.OrderStatusPending, models.OrderStatusPaid).Inc()
	log.L.Info("order settled",
		zap.String("order_no", orderNo),
		zap.String("transaction_id", transactionID),
		zap.Int64("points", settled.TotalPoints()),
		zap.Int64("balance", credit.Balance))
	s.publishPaid(ctx, settled)
	return settled, nil
}

// CloseOrder 仅 PENDING 可关单；网关返回已支付时转为对账
func (s *PaymentService) CloseOrder(ctx context.Context, orderNo string) (*QueryResult, error) {
	order, err := s.GetOrder(ctx, orderNo)
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderStatusPending {
		return nil, fmt.Errorf("%w: order %s is %s", ErrOrderNotPending, orderNo, order.Status)
	}

	err = s.Gateway.CloseOrder(ctx, order.OutTradeNo)
	switch {
	case err == nil, wxpay.IsBusinessCode(err, wxpay.ErrCodeOrderClosed):
	case wxpay.IsBusinessCode(err, wxpay.ErrCodeOrderPaid):
		log.L.Info("close rejected, order already paid, reconciling", zap.String("order_no", orderNo))
		return s.QueryStatus(ctx, orderNo)
	default:
		return nil, fmt.Errorf("close gateway order: %w", err)
	}

	updated, err := s.transition(ctx, order, models.OrderStatusCancelled, map[string]any{
		"fail_reason": reasonUserCancel,
	})
	if err != nil {
		return nil, err
	}
	return &QueryResult{Order: updated}, nil
}

// SyncRefund 网关报告退款时记录 PAID -> REFUNDED，积分不回收
func (s *PaymentService) SyncRefund(ctx context.Context, orderNo string) (*QueryResult, error) {
	order, err := s.GetOrder(ctx, orderNo)
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderStatusPaid {
		return &QueryResult{Order: order}, nil
	}

	remote, err := s.Gateway.QueryOrder(ctx, order.OutTradeNo)
	if err != nil {
		return nil, fmt.Errorf("query gateway order: %w", err)
	}
	res := &QueryResult{Order: order, TradeState: remote.TradeState, TradeStateDesc: remote.TradeStateDesc}
	if remote.TradeState != wxpay.TradeStateRefund {
		return res, nil
	}

	res.Order, err = s.transition(ctx, order, models.OrderStatusRefunded, nil)
	if err != nil {
		return nil, err
	}
	// 退款只记录状态，已发放的积分不回收
	log.L.Warn("order refunded, points not reversed",
		zap.String("order_no", orderNo),
		zap.Uint64("user_id", order.UserID),
		zap.Int64("points", order.TotalPoints()))
	return res, nil
}

func (s *PaymentService) ListOrders(ctx context.Context, userID uint64, status string, cursor uint64, limit int) (*types.ListOrdersResponse, error) {
	if limit <= 0 {
		limit = 10
	}
	// 多查一条用来判断是否还有下一页
	orders, err := s.OrderDAO.ListByUser(ctx, userID, status, cursor, limit+1)
	if err != nil {
		return nil, err
	}

	resp := &types.ListOrdersResponse{Orders: make([]types.PaymentOrder, 0, len(orders))}
	if len(orders) > limit {
		resp.HasMore = true
		orders = orders[:limit]
		resp.NextCursor = orders[len(orders)-1].ID
	}
	for i := range orders {
		resp.Orders = append(resp.Orders, ToOrderDTO(&orders[i]))
	}
	return resp, nil
}

// transition 按状态机迁移，非法边为 no-op；并发下输掉条件更新时返回最新状态
func (s *PaymentService) transition(ctx context.Context, order *models.PaymentOrder, to string, fields map[string]any) (*models.PaymentOrder, error) {
	if !models.CanTransition(order.Status, to) {
		return order, nil
	}
	n, err := s.OrderDAO.UpdateStatus(ctx, order.OrderNo, order.Status, to, fields)
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}
	if n == 0 {
		log.L.Info("order status changed concurrently",
			zap.String("order_no", order.OrderNo),
			zap.String("from", order.Status),
			zap.String("to", to))
	} else {
		transitionTotal.WithLabelValues(order.Status, to).Inc()
	}
	return s.GetOrder(ctx, order.OrderNo)
}

func (s *PaymentService) publishPaid(ctx context.Context, order *models.PaymentOrder) {
	if s.Events == nil {
		return
	}
	event := &types.OrderPaidEvent{
		OrderNo:       order.OrderNo,
		OutTradeNo:    order.OutTradeNo,
		UserID:        order.UserID,
		Amount:        order.Amount.StringFixed(2),
		Points:        order.TotalPoints(),
		TransactionID: order.TransactionID,
	}
	if order.PaymentTime != nil {
		event.PaidAt = order.PaymentTime.Unix()
	}
	if err := s.Events.PublishOrderPaid(context.WithoutCancel(ctx), event); err != nil {
		log.L.Warn("publish order paid event", zap.String("order_no", order.OrderNo), zap.Error(err))
	}
}

// gatewayMessage 网关失败原因，写入 fail_reason
func gatewayMessage(err error) string {
	var (
		be *wxpay.BusinessError
		te *wxpay.TransportError
	)
	msg := err.Error()
	switch {
	case errors.As(err, &be):
		msg = be.Code + ": " + be.Desc
	case errors.As(err, &te) && te.Msg != "":
		msg = te.Msg
	}
	if r := []rune(msg); len(r) > 250 {
		msg = string(r[:250])
	}
	return msg
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

const timeLayout = "2006-01-02 15:04:05"

func ToOrderDTO(o *models.PaymentOrder) types.PaymentOrder {
	dto := types.PaymentOrder{
		OrderNo:       o.OrderNo,
		PackageID:     o.PackageID,
		Amount:        o.Amount.StringFixed(2),
		Points:        o.Points,
		BonusPoints:   o.BonusPoints,
		PaymentMethod: o.PaymentMethod,
		Status:        o.Status,
		TransactionID: o.TransactionID,
		ExpireTime:    o.ExpireTime.Format(timeLayout),
		FailReason:    o.FailReason,
		CreatedAt:     o.CreatedAt.Format(timeLayout),
	}
	if o.PaymentTime != nil {
		dto.PaymentTime = o.PaymentTime.Format(timeLayout)
	}
	return dto
}
