package rocketmq

import (
	"Recharge/config"
	"Recharge/pkg/log"
	"Recharge/types"
	"context"
	"encoding/json"
	"errors"

	"github.com/apache/rocketmq-client-go/v2"
	"github.com/apache/rocketmq-client-go/v2/primitive"
	"github.com/apache/rocketmq-client-go/v2/producer"
	"github.com/apache/rocketmq-client-go/v2/rlog"
	"go.uber.org/zap"
)

func init() {
	rlog.SetLogLevel("error")
}

// InitProducer 未配置 nameserver 时返回 nil，事件发送降级为仅记日志
func InitProducer(cfg *config.RocketMQConfig) (rocketmq.Producer, func(), error) {
	if cfg == nil || len(cfg.NameServer) == 0 {
		log.L.Warn("rocketmq nameserver not configured, order events disabled")
		return nil, func() {}, nil
	}

	retry := cfg.Producer.Retry
	if retry <= 0 {
		retry = 2
	}
	p, err := rocketmq.NewProducer(
		producer.WithNsResolver(primitive.NewPassthroughResolver(cfg.NameServer)),
		producer.WithGroupName(cfg.Producer.Group),
		producer.WithRetry(retry),
	)
	if err != nil {
		return nil, nil, err
	}
	if err = p.Start(); err != nil {
		return nil, nil, err
	}
	log.L.Info("init producer success")

	cleanup := func() {
		if err := p.Shutdown(); err != nil {
			log.L.Warn("shutdown producer", zap.Error(err))
		}
	}
	return p, cleanup, nil
}

// OrderEventProducer 订单事件投递
type OrderEventProducer struct {
	Producer rocketmq.Producer
	Topic    string
}

func NewOrderEventProducer(p rocketmq.Producer, conf *config.OrderConfig) *OrderEventProducer {
	return &OrderEventProducer{Producer: p, Topic: conf.Topic}
}

// PublishOrderPaid 以 orderNo 作为 key 和分区键，下游按 orderNo 去重
func (o *OrderEventProducer) PublishOrderPaid(ctx context.Context, event *types.OrderPaidEvent) error {
	if o.Producer == nil {
		log.L.Info("order paid event skipped", zap.String("order_no", event.OrderNo))
		return nil
	}
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := primitive.NewMessage(o.Topic, body)
	msg.WithKeys([]string{event.OrderNo})
	msg.WithTag("order.paid")
	msg.WithShardingKey(event.OrderNo)

	res, err := o.Producer.SendSync(ctx, msg)
	if err != nil {
		return err
	}
	if res.Status != primitive.SendOK {
		return errors.New("rocketmq send status " + res.String())
	}
	log.L.Info("send message success", zap.String("msg_id", res.MsgID), zap.String("order_no", event.OrderNo))
	return nil
}
