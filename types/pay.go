package types

// CreateOrderRequest 下单
type CreateOrderRequest struct {
	PackageID uint64 `json:"package_id" binding:"required,min=1"` // 套餐ID
}

// CreateOrderResponse 下单返回，code_url 由前端渲染成二维码
type CreateOrderResponse struct {
	OrderNo    string `json:"order_no"`
	CodeURL    string `json:"code_url"`
	Amount     string `json:"amount"` // 元，两位小数
	ExpireTime string `json:"expire_time"`
}

// PaymentOrder 订单详情
type PaymentOrder struct {
	OrderNo       string `json:"order_no"`
	PackageID     uint64 `json:"package_id"`
	Amount        string `json:"amount"`
	Points        int64  `json:"points"`
	BonusPoints   int64  `json:"bonus_points"`
	PaymentMethod string `json:"payment_method"`
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id,omitempty"`
	PaymentTime   string `json:"payment_time,omitempty"`
	ExpireTime    string `json:"expire_time"`
	FailReason    string `json:"fail_reason,omitempty"`
	CreatedAt     string `json:"created_at"`
}

// OrderStatusResponse 轮询结果
type OrderStatusResponse struct {
	PaymentOrder
	TradeState string `json:"trade_state,omitempty"` // 网关原始交易状态
	Warning    string `json:"warning,omitempty"`
}

type ListOrdersRequest struct {
	Status string `form:"status" binding:"omitempty,oneof=PENDING PAID FAILED EXPIRED CANCELLED REFUNDED"`
	Cursor uint64 `form:"cursor"`
	Limit  int    `form:"limit,default=10" binding:"omitempty,min=1,max=50"`
}

type ListOrdersResponse struct {
	Orders     []PaymentOrder `json:"orders"`
	NextCursor uint64         `json:"next_cursor"`
	HasMore    bool           `json:"has_more"`
}

// Package 充值套餐
type Package struct {
	ID          uint64 `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       string `json:"price"`
	Points      int64  `json:"points"`
	BonusPoints int64  `json:"bonus_points"`
}

// OrderPaidEvent 结算成功后投递到 MQ
type OrderPaidEvent struct {
	OrderNo       string `json:"order_no"`
	OutTradeNo    string `json:"out_trade_no"`
	UserID        uint64 `json:"user_id"`
	Amount        string `json:"amount"`
	Points        int64  `json:"points"`
	TransactionID string `json:"transaction_id"`
	PaidAt        int64  `json:"paid_at"` // unix 秒
}
