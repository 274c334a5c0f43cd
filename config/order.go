package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OrderConfig 订单与对账配置
type OrderConfig struct {
	ExpireMinutes    int    `yaml:"expire_minutes"`
	MaxAmount        string `yaml:"max_amount"` // 单笔金额上限，元
	ReconcileSpec    string `yaml:"reconcile_spec"`
	ReconcileBatch   int    `yaml:"reconcile_batch"`
	ReconcileWorkers int    `yaml:"reconcile_workers"`
	Topic            string `yaml:"topic"` // 支付成功事件 topic
}

func (o *OrderConfig) Validate() error {
	if o.ExpireMinutes <= 0 {
		o.ExpireMinutes = 30
	}
	if o.MaxAmount == "" {
		o.MaxAmount = "10000"
	}
	amount, err := decimal.NewFromString(o.MaxAmount)
	if err != nil || !amount.IsPositive() {
		return fmt.Errorf("config: order.max_amount %q invalid", o.MaxAmount)
	}
	if o.ReconcileSpec == "" {
		o.ReconcileSpec = "@every 30s"
	}
	if o.ReconcileBatch <= 0 {
		o.ReconcileBatch = 100
	}
	if o.ReconcileWorkers <= 0 {
		o.ReconcileWorkers = 8
	}
	if o.Topic == "" {
		o.Topic = "recharge_order_paid"
	}
	return nil
}

func (o *OrderConfig) TTL() time.Duration {
	return time.Duration(o.ExpireMinutes) * time.Minute
}

func (o *OrderConfig) Ceiling() decimal.Decimal {
	return decimal.RequireFromString(o.MaxAmount)
}
