//go:build wireinject
// +build wireinject

package main

import (
	"Recharge/config"
	"Recharge/dao"
	"Recharge/handler"
	"Recharge/pkg/client"
	"Recharge/pkg/database"
	"Recharge/pkg/rocketmq"
	"Recharge/pkg/server"
	"Recharge/pkg/wxpay"
	"Recharge/service"

	"github.com/google/wire"
)

func InitServer(cfg *config.Config) (*server.AppProvider, func(), error) {
	wire.Build(
		config.ProvideOrderConfig,
		config.ProvideWechatPayConfig,
		config.ProvideRocketMQConfig,
		database.NewDB,
		client.NewRedisClient,
		client.NewRedsync,
		rocketmq.InitProducer,
		rocketmq.NewOrderEventProducer,
		wire.Bind(new(service.IOrderEventPublisher), new(*rocketmq.OrderEventProducer)),
		wxpay.NewClient,
		wire.Bind(new(service.IWechatPay), new(*wxpay.Client)),

		dao.ProviderSet,
		service.ProviderSet,

		wire.Struct(new(handler.Pay), "*"),
		wire.Struct(new(handler.Point), "*"),
		wire.Struct(new(server.Handlers), "*"),
		server.NewGinEngine,
		wire.Struct(new(server.AppProvider), "*"),
	)
	return nil, nil, nil
}
