package repository

import "time"

// TransactionListFilter 查询支付交易列表的过滤条件
type TransactionListFilter struct {
	Page        int
	PageSize    int
	BookingID   uint
	Gateway     string
	Status      string
	TxnRef      string
	Keyword     string // 交易号或网关流水号模糊匹配
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// RefundListFilter 查询退款申请列表的过滤条件
type RefundListFilter struct {
	Page          int
	PageSize      int
	Status        string
	TransactionID uint
	CustomerID    uint
}

// PayoutListFilter 查询提现申请列表的过滤条件
type PayoutListFilter struct {
	Page     int
	PageSize int
	Status   string
	GuideID  uint
}

// AnomalyListFilter 查询对账异常列表的过滤条件
type AnomalyListFilter struct {
	Page     int
	PageSize int
	Gateway  string
	Kind     string
	Resolved *bool
}

// RevenueFilter 营收扫描条件（日期为归一化后的出团日期，闭区间）
type RevenueFilter struct {
	TourID  uint
	GuideID uint
	From    *time.Time
	To      *time.Time
}

// OperatorAuditListFilter 查询运营审计日志的过滤条件
type OperatorAuditListFilter struct {
	Page            int
	PageSize        int
	OperatorAdminID uint
	Action          string
	TargetType      string
	TargetID        uint
	CreatedFrom     *time.Time
	CreatedTo       *time.Time
}
