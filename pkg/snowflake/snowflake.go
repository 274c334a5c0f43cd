package snowflake

import "github.com/bwmarrin/snowflake"

var node *snowflake.Node

func init() {
	node, _ = snowflake.NewNode(1)
}

func GenID() int64 {
	return node.Generate().Int64()
}

// GenOrderNo 内部订单号
func GenOrderNo() string {
	return "PAY" + node.Generate().String()
}

// GenOutTradeNo 发给网关的商户订单号，不超过 32 位
func GenOutTradeNo() string {
	return "OUT" + node.Generate().String()
}
