package server

import (
	"Recharge/handler"
)

type Handlers struct {
	Pay    *handler.Pay
	Points *handler.Point
}
