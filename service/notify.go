package service

import (
	"Recharge/dao"
	"Recharge/models"
	"Recharge/pkg/log"
	"Recharge/pkg/wxpay"
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 回调处理结果
const (
	NotifySettled      = "SETTLED"
	NotifyDuplicate    = "DUPLICATE"
	NotifyTradeFailed  = "TRADE_FAILED"
	NotifyUnknownOrder = "UNKNOWN_ORDER"
	NotifyMismatch     = "AMOUNT_MISMATCH"
	NotifyConflict     = "CONFLICT"
	NotifyRejected     = "REJECTED" // 验签或报文格式失败
	NotifyRetry        = "RETRY"    // 内部可重试错误
)

type NotifyService struct {
	Gateway   IWechatPay
	Payment   IPaymentService
	OrderDAO  *dao.PaymentOrder
	NotifyLog *dao.NotifyLog
	Now       func() time.Time
}

var _ INotifyService = (*NotifyService)(nil)

type INotifyService interface {
	Handle(ctx context.Context, req *NotifyRequest) (*NotifyOutcome, []byte)
}

type NotifyRequest struct {
	Body     []byte
	Headers  map[string]string
	ClientIP string
}

type NotifyOutcome struct {
	Outcome string
	OrderNo string
	Order   *models.PaymentOrder
	Err     error
}

// Ack 成功应答会让网关停止重推
func (o *NotifyOutcome) Ack() bool {
	return o.Outcome != NotifyRejected && o.Outcome != NotifyRetry
}

func (n *NotifyService) now() time.Time {
	if n.Now != nil {
		return n.Now()
	}
	return time.Now()
}

// Handle 验签通过前不读取任何业务字段；返回处理结果和回给网关的应答报文
func (n *NotifyService) Handle(ctx context.Context, req *NotifyRequest) (*NotifyOutcome, []byte) {
	logID := n.record(ctx, req)

	out := n.process(ctx, req.Body)
	notifyTotal.WithLabelValues(out.Outcome).Inc()

	status := models.NotifyStatusSuccess
	msg := "OK"
	if !out.Ack() {
		status = models.NotifyStatusFailed
		msg = "FAIL"
	}
	errMsg := ""
	if out.Err != nil {
		errMsg = out.Err.Error()
		log.L.Warn("payment notify",
			zap.String("outcome", out.Outcome),
			zap.String("order_no", out.OrderNo),
			zap.Error(out.Err))
	} else {
		log.L.Info("payment notify", zap.String("outcome", out.Outcome), zap.String("order_no", out.OrderNo))
	}

	if logID > 0 {
		if err := n.NotifyLog.MarkProcessed(context.WithoutCancel(ctx), logID, status, out.Outcome, errMsg, n.now()); err != nil {
			log.L.Warn("update notify log", zap.Uint64("id", logID), zap.Error(err))
		}
	}
	return out, wxpay.NotifyAck(out.Ack(), msg)
}

func (n *NotifyService) process(ctx context.Context, body []byte) *NotifyOutcome {
	notification, err := n.Gateway.ParseNotify(body)
	if err != nil {
		var be *wxpay.BusinessError
		if errors.As(err, &be) {
			// 支付失败的通知不改订单，交给轮询确认
			return &NotifyOutcome{Outcome: NotifyTradeFailed, Err: err}
		}
		return &NotifyOutcome{Outcome: NotifyRejected, Err: err}
	}

	order, err := n.resolveOrder(ctx, notification)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return &NotifyOutcome{Outcome: NotifyUnknownOrder, Err: err}
		}
		if errors.Is(err, ErrOrderConflict) {
			return &NotifyOutcome{Outcome: NotifyConflict, Err: err}
		}
		return &NotifyOutcome{Outcome: NotifyRetry, Err: err}
	}
	out := &NotifyOutcome{OrderNo: order.OrderNo, Order: order}

	if err := n.OrderDAO.TouchNotifyTime(ctx, order.OrderNo, n.now()); err != nil {
		log.L.Warn("update notify time", zap.String("order_no", order.OrderNo), zap.Error(err))
	}

	if order.Status == models.OrderStatusPaid {
		out.Outcome = NotifyDuplicate
		return out
	}

	settled, err := n.Payment.Settle(ctx, order.OrderNo, notification.TotalFee, notification.TransactionID)
	switch {
	case err == nil:
		out.Outcome = NotifySettled
		out.Order = settled
	case errors.Is(err, ErrAmountMismatch):
		out.Outcome = NotifyMismatch
		out.Err = err
	case errors.Is(err, ErrOrderConflict):
		out.Outcome = NotifyConflict
		out.Err = err
	case errors.Is(err, ErrOrderNotFound):
		out.Outcome = NotifyUnknownOrder
		out.Err = err
	default:
		out.Outcome = NotifyRetry
		out.Err = err
	}
	return out
}

// resolveOrder attach 里的 orderNo 优先，缺失时按 out_trade_no 查找；两者必须指向同一订单
func (n *NotifyService) resolveOrder(ctx context.Context, notification *wxpay.Notification) (*models.PaymentOrder, error) {
	orderNo := gjson.Get(notification.Attach, "orderNo").String()

	var (
		order *models.PaymentOrder
		err   error
	)
	if orderNo != "" {
		order, err = n.OrderDAO.FindByOrderNo(ctx, orderNo)
	} else {
		order, err = n.OrderDAO.FindByOutTradeNo(ctx, notification.OutTradeNo)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if order.OutTradeNo != notification.OutTradeNo {
		log.L.Error("notify attach does not match out_trade_no",
			zap.String("order_no", order.OrderNo),
			zap.String("out_trade_no", notification.OutTradeNo))
		return nil, ErrOrderConflict
	}
	return order, nil
}

// record 原文落库，失败不影响处理
func (n *NotifyService) record(ctx context.Context, req *NotifyRequest) uint64 {
	if n.NotifyLog == nil {
		return 0
	}
	entry := &models.PaymentNotifyLog{
		RawBody:  string(req.Body),
		ClientIP: req.ClientIP,
		Status:   models.NotifyStatusPending,
	}
	if len(req.Headers) > 0 {
		if headers, err := json.Marshal(req.Headers); err == nil {
			entry.Headers = headers
		}
	}
	// 未验签前只做留档，字段不参与业务
	if params, err := wxpay.DecodeXML(req.Body); err == nil {
		entry.OutTradeNo = truncate(params["out_trade_no"], 32)
		entry.TransactionID = truncate(params["transaction_id"], 64)
		entry.OrderNo = truncate(gjson.Get(params["attach"], "orderNo").String(), 32)
	}
	if err := n.NotifyLog.Create(ctx, entry); err != nil {
		log.L.Warn("save notify log", zap.Error(err))
		return 0
	}
	return entry.ID
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
