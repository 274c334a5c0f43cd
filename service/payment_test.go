package service

import (
	"Recharge/models"
	"Recharge/pkg/wxpay"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tidwall/gjson"
)

func TestCreateOrderSendsFen(t *testing.T) {
	env := newTestEnv(t)
	res, err := env.payment.CreateOrder(context.Background(), 7, env.pkgID, "10.0.0.1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(env.gw.created) != 1 {
		t.Fatalf("gateway create calls = %d", len(env.gw.created))
	}
	req := env.gw.created[0]
	if req.TotalFee != 990 {
		t.Fatalf("total_fee = %d, want 990", req.TotalFee)
	}
	if !req.TimeExpire.Equal(env.clock.Add(30 * time.Minute)) {
		t.Fatalf("time_expire = %v", req.TimeExpire)
	}
	if gjson.Get(req.Attach, "orderNo").String() != res.Order.OrderNo {
		t.Fatalf("attach %s does not carry order no", req.Attach)
	}
	if res.CodeURL == "" {
		t.Fatalf("empty code_url")
	}

	order := env.reload(res.Order.OrderNo)
	if order.Status != models.OrderStatusPending || order.OutTradeNo != req.OutTradeNo {
		t.Fatalf("unexpected order %+v", order)
	}
	if order.Points != 100 || order.BonusPoints != 10 || order.PaymentMethod != models.PaymentMethodWechatPay {
		t.Fatalf("unexpected order %+v", order)
	}
}

func TestCreateOrderRejectsPackage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	noPoints := env.seedPackage("9.90", true)
	if err := env.db.Model(&models.PaymentPackage{}).Where("id = ?", noPoints).
		Updates(map[string]any{"points": 0, "bonus_points": 0}).Error; err != nil {
		t.Fatalf("update points: %v", err)
	}

	cases := []struct {
		name string
		id   uint64
		want error
	}{
		{"missing", 9999, ErrPackageNotFound},
		{"inactive", env.seedPackage("9.90", false), ErrPackageNotFound},
		{"zero price", env.seedPackage("0", true), ErrInvalidAmount},
		{"above ceiling", env.seedPackage("10000.01", true), ErrInvalidAmount},
		{"no points", noPoints, ErrInvalidPoints},
	}
	for _, c := range cases {
		_, err := env.payment.CreateOrder(ctx, 1, c.id, "")
		if !errors.Is(err, c.want) {
			t.Fatalf("%s: want %v, got %v", c.name, c.want, err)
		}
	}

	var n int64
	env.db.Model(&models.PaymentOrder{}).Count(&n)
	if n != 0 || len(env.gw.created) != 0 {
		t.Fatalf("rejected packages must not create orders: orders=%d gateway=%d", n, len(env.gw.created))
	}

	if _, err := env.payment.CreateOrder(ctx, 1, env.seedPackage("10000", true), ""); err != nil {
		t.Fatalf("ceiling itself is allowed: %v", err)
	}
}

func TestCreateOrderGatewayFailure(t *testing.T) {
	env := newTestEnv(t)
	env.gw.createErr = &wxpay.BusinessError{Op: "unifiedorder", Code: wxpay.ErrCodeSystemError, Desc: "系统错误"}

	_, err := env.payment.CreateOrder(context.Background(), 1, env.pkgID, "")
	var be *wxpay.BusinessError
	if !errors.As(err, &be) {
		t.Fatalf("want BusinessError, got %v", err)
	}

	var order models.PaymentOrder
	if err := env.db.First(&order).Error; err != nil {
		t.Fatalf("load order: %v", err)
	}
	if order.Status != models.OrderStatusFailed || order.FailReason != "SYSTEMERROR: 系统错误" {
		t.Fatalf("order = %s %q", order.Status, order.FailReason)
	}
}

func TestQueryStatusPendingThenPaid(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.createOrder(1)

	res, err := env.payment.QueryStatus(ctx, order.OrderNo)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if res.Order.Status != models.OrderStatusPending || res.TradeState != wxpay.TradeStateNotPay {
		t.Fatalf("first poll: %s / %s", res.Order.Status, res.TradeState)
	}

	env.gw.setState(order.OutTradeNo, wxpay.TradeStateSuccess, 990)
	res, err = env.payment.QueryStatus(ctx, order.OrderNo)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if res.Order.Status != models.OrderStatusPaid || res.Order.TransactionID != "42000"+order.OutTradeNo {
		t.Fatalf("second poll: %+v", res.Order)
	}
	if env.balance(1) != 110 || env.ledger.n.Load() != 1 {
		t.Fatalf("balance=%d ledger calls=%d", env.balance(1), env.ledger.n.Load())
	}

	calls := env.gw.calls()
	res, err = env.payment.QueryStatus(ctx, order.OrderNo)
	if err != nil || res.Order.Status != models.OrderStatusPaid {
		t.Fatalf("third poll: %v %v", res, err)
	}
	if env.gw.calls() != calls || env.ledger.n.Load() != 1 {
		t.Fatalf("paid order must not hit gateway or ledger again")
	}
	if len(env.events.events) != 1 || env.events.events[0].Points != 110 {
		t.Fatalf("events = %+v", env.events.events)
	}
}

func TestSettleIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.createOrder(1)

	for i := 0; i < 2; i++ {
		got, err := env.payment.Settle(ctx, order.OrderNo, 990, "tx-1")
		if err != nil {
			t.Fatalf("settle #%d: %v", i, err)
		}
		if got.Status != models.OrderStatusPaid {
			t.Fatalf("settle #%d status %s", i, got.Status)
		}
	}
	if env.ledger.n.Load() != 1 || env.logCount(order.OrderNo) != 1 || env.balance(1) != 110 {
		t.Fatalf("ledger calls=%d logs=%d balance=%d", env.ledger.n.Load(), env.logCount(order.OrderNo), env.balance(1))
	}
}

func TestSettleConcurrent(t *testing.T) {
	env := newTestEnv(t)
	order := env.createOrder(1)

	const workers = 10
	var wg sync.WaitGroup
	errs := make([]error, workers)
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.payment.Settle(context.Background(), order.OrderNo, 990, "tx-1")
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("worker %d: %v", i, err)
		}
	}
	if env.logCount(order.OrderNo) != 1 || env.balance(1) != 110 {
		t.Fatalf("logs=%d balance=%d", env.logCount(order.OrderNo), env.balance(1))
	}
}

func TestSettleAmountMismatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.createOrder(1)

	_, err := env.payment.Settle(ctx, order.OrderNo, 1000, "tx-1")
	if !errors.Is(err, ErrAmountMismatch) {
		t.Fatalf("want ErrAmountMismatch, got %v", err)
	}
	got := env.reload(order.OrderNo)
	if got.Status != models.OrderStatusFailed || got.FailReason != "amount mismatch" {
		t.Fatalf("order = %s %q", got.Status, got.FailReason)
	}
	if env.ledger.n.Load() != 0 || env.balance(1) != 0 {
		t.Fatalf("mismatch must not credit")
	}

	// 1 分以内视为一致
	other := env.createOrder(2)
	if _, err := env.payment.Settle(ctx, other.OrderNo, 989, "tx-2"); err != nil {
		t.Fatalf("within tolerance: %v", err)
	}
}

func TestSettleNoResurrection(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, status := range []string{models.OrderStatusFailed, models.OrderStatusExpired, models.OrderStatusCancelled, models.OrderStatusRefunded} {
		order := env.createOrder(1)
		env.setStatus(order.OrderNo, status)

		_, err := env.payment.Settle(ctx, order.OrderNo, 990, "tx")
		if !errors.Is(err, ErrOrderConflict) {
			t.Fatalf("%s: want ErrOrderConflict, got %v", status, err)
		}
		if got := env.reload(order.OrderNo).Status; got != status {
			t.Fatalf("%s: status moved to %s", status, got)
		}
	}
	if env.ledger.n.Load() != 0 {
		t.Fatalf("dead orders must not credit")
	}

	if _, err := env.payment.Settle(ctx, "PAY-missing", 990, "tx"); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("want ErrOrderNotFound, got %v", err)
	}
}

func TestSettleLedgerFailureRollsBack(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.createOrder(1)

	env.ledger.fail = errors.New("ledger unavailable")
	if _, err := env.payment.Settle(ctx, order.OrderNo, 990, "tx-1"); err == nil {
		t.Fatalf("expected error")
	}
	if got := env.reload(order.OrderNo); got.Status != models.OrderStatusPending || got.TransactionID != "" {
		t.Fatalf("rollback failed: %+v", got)
	}

	env.ledger.fail = nil
	if _, err := env.payment.Settle(ctx, order.OrderNo, 990, "tx-1"); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if env.balance(1) != 110 {
		t.Fatalf("balance = %d", env.balance(1))
	}
}

func TestQueryStatusExpired(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.createOrder(1)

	env.clock = env.clock.Add(31 * time.Minute)
	res, err := env.payment.QueryStatus(ctx, order.OrderNo)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if res.Order.Status != models.OrderStatusExpired {
		t.Fatalf("status = %s", res.Order.Status)
	}

	// 过期后网关再报成功也不复活
	env.gw.setState(order.OutTradeNo, wxpay.TradeStateSuccess, 990)
	res, err = env.payment.QueryStatus(ctx, order.OrderNo)
	if err != nil || res.Order.Status != models.OrderStatusExpired {
		t.Fatalf("expired order changed: %v %v", res, err)
	}
	if env.ledger.n.Load() != 0 {
		t.Fatalf("expired order credited")
	}
}

func TestQueryStatusExpiredButPaidInTime(t *testing.T) {
	env := newTestEnv(t)
	order := env.createOrder(1)
	env.gw.setState(order.OutTradeNo, wxpay.TradeStateSuccess, 990)
	env.clock = env.clock.Add(31 * time.Minute)

	res, err := env.payment.QueryStatus(context.Background(), order.OrderNo)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if res.Order.Status != models.OrderStatusPaid || env.balance(1) != 110 {
		t.Fatalf("status=%s balance=%d", res.Order.Status, env.balance(1))
	}
}

func TestQueryStatusTransportError(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.createOrder(1)
	env.gw.queryErr = &wxpay.TransportError{Op: "orderquery", Msg: "timeout"}

	// 未过期：可重试错误，订单保持 PENDING
	_, err := env.payment.QueryStatus(ctx, order.OrderNo)
	if !wxpay.IsRetryable(err) {
		t.Fatalf("want retryable error, got %v", err)
	}
	if got := env.reload(order.OrderNo).Status; got != models.OrderStatusPending {
		t.Fatalf("status = %s", got)
	}

	// 已过期：网关不可达也要过期
	env.clock = env.clock.Add(24 * time.Hour)
	res, err := env.payment.QueryStatus(ctx, order.OrderNo)
	if err != nil {
		t.Fatalf("query expired order: %v", err)
	}
	if res.Order.Status != models.OrderStatusExpired || env.reload(order.OrderNo).Status != models.OrderStatusExpired {
		t.Fatalf("status = %s", res.Order.Status)
	}
	if res.Order.FailReason != reasonExpired || env.ledger.n.Load() != 0 {
		t.Fatalf("order = %+v", res.Order)
	}
}

func TestQueryStatusMapping(t *testing.T) {
	cases := []struct {
		state   string
		want    string
		warning bool
	}{
		{wxpay.TradeStateNotPay, models.OrderStatusPending, false},
		{wxpay.TradeStateUserPaying, models.OrderStatusPending, false},
		{wxpay.TradeStateClosed, models.OrderStatusCancelled, false},
		{wxpay.TradeStateRevoked, models.OrderStatusCancelled, false},
		{wxpay.TradeStatePayError, models.OrderStatusFailed, false},
		{wxpay.TradeStateRefund, models.OrderStatusPending, true},
		{"SOMETHING_NEW", models.OrderStatusPending, true},
	}
	env := newTestEnv(t)
	for _, c := range cases {
		order := env.createOrder(1)
		env.gw.setState(order.OutTradeNo, c.state, 990)

		res, err := env.payment.QueryStatus(context.Background(), order.OrderNo)
		if err != nil {
			t.Fatalf("%s: %v", c.state, err)
		}
		if res.Order.Status != c.want {
			t.Fatalf("%s: status = %s, want %s", c.state, res.Order.Status, c.want)
		}
		if (res.Warning != "") != c.warning {
			t.Fatalf("%s: warning = %q", c.state, res.Warning)
		}
	}
	if env.ledger.n.Load() != 0 {
		t.Fatalf("non-success states must not credit")
	}
}

func TestCloseOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	order := env.createOrder(1)
	res, err := env.payment.CloseOrder(ctx, order.OrderNo)
	if err != nil || res.Order.Status != models.OrderStatusCancelled {
		t.Fatalf("close: %v %v", res, err)
	}
	if _, err := env.payment.CloseOrder(ctx, order.OrderNo); !errors.Is(err, ErrOrderNotPending) {
		t.Fatalf("second close: want ErrOrderNotPending, got %v", err)
	}

	closed := env.createOrder(1)
	env.gw.closeErr = &wxpay.BusinessError{Code: wxpay.ErrCodeOrderClosed}
	res, err = env.payment.CloseOrder(ctx, closed.OrderNo)
	if err != nil || res.Order.Status != models.OrderStatusCancelled {
		t.Fatalf("ORDERCLOSED: %v %v", res, err)
	}

	paid := env.createOrder(1)
	env.gw.closeErr = &wxpay.BusinessError{Code: wxpay.ErrCodeOrderPaid}
	env.gw.setState(paid.OutTradeNo, wxpay.TradeStateSuccess, 990)
	res, err = env.payment.CloseOrder(ctx, paid.OrderNo)
	if err != nil || res.Order.Status != models.OrderStatusPaid {
		t.Fatalf("ORDERPAID: %v %v", res, err)
	}
	if env.balance(1) != 110 {
		t.Fatalf("balance = %d", env.balance(1))
	}

	failing := env.createOrder(1)
	env.gw.closeErr = &wxpay.TransportError{Op: "closeorder", Msg: "timeout"}
	if _, err := env.payment.CloseOrder(ctx, failing.OrderNo); !wxpay.IsRetryable(err) {
		t.Fatalf("want transport error, got %v", err)
	}
	if got := env.reload(failing.OrderNo).Status; got != models.OrderStatusPending {
		t.Fatalf("status = %s", got)
	}
}

func TestSyncRefund(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.createOrder(1)
	if _, err := env.payment.Settle(ctx, order.OrderNo, 990, "tx-1"); err != nil {
		t.Fatalf("settle: %v", err)
	}

	env.gw.setState(order.OutTradeNo, wxpay.TradeStateSuccess, 990)
	res, err := env.payment.SyncRefund(ctx, order.OrderNo)
	if err != nil || res.Order.Status != models.OrderStatusPaid {
		t.Fatalf("no refund yet: %v %v", res, err)
	}

	env.gw.setState(order.OutTradeNo, wxpay.TradeStateRefund, 990)
	res, err = env.payment.SyncRefund(ctx, order.OrderNo)
	if err != nil || res.Order.Status != models.OrderStatusRefunded {
		t.Fatalf("refund: %v %v", res, err)
	}
	// 退款只记录状态，积分不回收
	if env.balance(1) != 110 {
		t.Fatalf("balance = %d", env.balance(1))
	}
}

func TestListOrders(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		env.createOrder(1)
	}
	env.createOrder(2)

	page, err := env.payment.ListOrders(ctx, 1, "", 0, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Orders) != 2 || !page.HasMore || page.NextCursor == 0 {
		t.Fatalf("first page: %+v", page)
	}
	next, err := env.payment.ListOrders(ctx, 1, "", page.NextCursor, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(next.Orders) != 1 || next.HasMore {
		t.Fatalf("second page: %+v", next)
	}
	if next.Orders[0].Amount != "9.90" {
		t.Fatalf("amount = %s", next.Orders[0].Amount)
	}

	paid, err := env.payment.ListOrders(ctx, 1, models.OrderStatusPaid, 0, 10)
	if err != nil || len(paid.Orders) != 0 {
		t.Fatalf("status filter: %v %v", paid, err)
	}
}
