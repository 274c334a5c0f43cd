package dao

import (
	"github.com/google/wire"
)

var ProviderSet = wire.NewSet(
	NewPaymentOrder,
	NewPaymentPackage,
	NewPoint,
	NewNotifyLog,
)
