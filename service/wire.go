package service

import (
	"github.com/google/wire"
)

var ProviderSet = wire.NewSet(
	wire.Struct(new(PackageService), "*"),
	wire.Bind(new(IPackageService), new(*PackageService)),

	wire.Struct(new(PointService), "*"),
	wire.Bind(new(IPointService), new(*PointService)),

	wire.Struct(new(PaymentService), "DB", "Config", "OrderDAO", "Packages", "Points", "Gateway", "Events"),
	wire.Bind(new(IPaymentService), new(*PaymentService)),

	wire.Struct(new(NotifyService), "Gateway", "Payment", "OrderDAO", "NotifyLog"),
	wire.Bind(new(INotifyService), new(*NotifyService)),

	wire.Struct(new(ReconcileService), "*"),
)
