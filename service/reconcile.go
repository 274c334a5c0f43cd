package service

import (
	"Recharge/config"
	"Recharge/dao"
	"Recharge/models"
	"Recharge/pkg/log"
	"context"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/robfig/cron/v3"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

const (
	reconcileLockKey = "recharge:reconcile:pending"
	refundLockKey    = "recharge:reconcile:refund"
	resultError      = "error"
)

// ReconcileService 定时把 PENDING 订单拿去网关核对，补漏回调
type ReconcileService struct {
	Config   *config.OrderConfig
	OrderDAO *dao.PaymentOrder
	Payment  IPaymentService
	Locker   *redsync.Redsync
}

// SweepReport 一轮对账的结果统计，key 为订单最终状态或 error
type SweepReport struct {
	Scanned int
	Results map[string]int
	Skipped bool // 其他实例持有锁
}

func (r *ReconcileService) Sweep(ctx context.Context) (*SweepReport, error) {
	unlock, ok := r.lock(ctx, reconcileLockKey)
	if !ok {
		return &SweepReport{Skipped: true}, nil
	}
	defer unlock()

	orders, err := r.OrderDAO.FindPending(ctx, r.Config.ReconcileBatch)
	if err != nil {
		return nil, err
	}
	report := r.run(ctx, orders, func(ctx context.Context, orderNo string) (*QueryResult, error) {
		return r.Payment.QueryStatus(ctx, orderNo)
	})
	log.L.Info("reconcile sweep finished", zap.Int("scanned", report.Scanned), zap.Any("results", report.Results))
	return report, nil
}

// SyncRefunds 扫描已支付订单同步退款状态
func (r *ReconcileService) SyncRefunds(ctx context.Context) (*SweepReport, error) {
	unlock, ok := r.lock(ctx, refundLockKey)
	if !ok {
		return &SweepReport{Skipped: true}, nil
	}
	defer unlock()

	total := &SweepReport{Results: make(map[string]int)}
	var cursor int64
	for {
		orders, err := r.OrderDAO.FindPaidSince(ctx, cursor, r.Config.ReconcileBatch)
		if err != nil {
			return nil, err
		}
		if len(orders) == 0 {
			break
		}
		cursor = int64(orders[len(orders)-1].ID)

		report := r.run(ctx, orders, r.Payment.SyncRefund)
		total.Scanned += report.Scanned
		for k, v := range report.Results {
			total.Results[k] += v
		}
		if len(orders) < r.Config.ReconcileBatch {
			break
		}
	}
	log.L.Info("refund sync finished", zap.Int("scanned", total.Scanned), zap.Any("results", total.Results))
	return total, nil
}

func (r *ReconcileService) run(ctx context.Context, orders []models.PaymentOrder, fn func(context.Context, string) (*QueryResult, error)) *SweepReport {
	p := pool.NewWithResults[string]().WithMaxGoroutines(r.Config.ReconcileWorkers)
	for _, o := range orders {
		orderNo := o.OrderNo
		p.Go(func() string {
			res, err := fn(ctx, orderNo)
			if err != nil {
				log.L.Warn("reconcile order", zap.String("order_no", orderNo), zap.Error(err))
				return resultError
			}
			return res.Order.Status
		})
	}

	report := &SweepReport{Scanned: len(orders), Results: make(map[string]int)}
	for _, status := range p.Wait() {
		report.Results[status]++
		reconcileTotal.WithLabelValues(status).Inc()
	}
	return report
}

// lock 未配置 redis 时视为单实例，直接执行
func (r *ReconcileService) lock(ctx context.Context, key string) (func(), bool) {
	if r.Locker == nil {
		return func() {}, true
	}
	mutex := r.Locker.NewMutex(key, redsync.WithExpiry(5*time.Minute), redsync.WithTries(1))
	if err := mutex.LockContext(ctx); err != nil {
		log.L.Info("reconcile lock held elsewhere", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return func() {
		if _, err := mutex.UnlockContext(context.WithoutCancel(ctx)); err != nil {
			log.L.Warn("release reconcile lock", zap.String("key", key), zap.Error(err))
		}
	}, true
}

// Scheduler 按配置的 cron 表达式定时对账，上一轮未结束时跳过
func (r *ReconcileService) Scheduler() (*cron.Cron, error) {
	logger := cronLogger{}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	_, err := c.AddFunc(r.Config.ReconcileSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 4*time.Minute)
		defer cancel()
		if _, err := r.Sweep(ctx); err != nil {
			log.L.Error("reconcile sweep", zap.Error(err))
		}
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.L.Sugar().Debugw(msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.L.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
