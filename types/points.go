package types

// PointRecord 每一条流水的细节
type PointRecord struct {
	ID          int    `json:"id"`          // 流水唯一ID
	Amount      int    `json:"amount"`      // 变动数值（如 +10, -50）
	Balance     int    `json:"balance"`     // 变动后余额
	Description string `json:"description"` // 详细描述
	OrderType   string `json:"order_type"`  // 业务类型：INCOME(收入), EXPENSE(支出)
	SourceID    string `json:"source_id"`   // 关联单号
	Status      int    `json:"status"`      // 状态：0-待入账, 1-已入账
	CreatedAt   string `json:"created_at"`  // 发放/变动时间：格式化字符串
}

// ListPointsRecord 流水列表包装
type ListPointsRecord struct {
	Records    []PointRecord `json:"records"`     // 积分流水细节
	NextCursor int64         `json:"next_cursor"` // 游标：用于下一页请求
	HasMore    bool          `json:"has_more"`    // 标记是否还有更多数据
}

// PointsAccount 账户概览统计
type PointsAccount struct {
	Balance       int `json:"balance"`        // 当前可用积分余额
	TotalEarned   int `json:"total_earned"`   // 历史累计获得
	TotalUsed     int `json:"total_used"`     // 历史累计使用
	PendingCount  int `json:"pending_count"`  // 待入账订单数量
	PendingAmount int `json:"pending_amount"` // 待入账积分总额
}

type ListPointRecordsReq struct {
	Action string `form:"action" binding:"omitempty,oneof=all income expense"`
	Cursor int64  `form:"cursor"`                                      // 分页游标 (ID)
	Limit  int    `form:"limit,default=10" binding:"omitempty,min=1,max=50"` // 每页数量
}
