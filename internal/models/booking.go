package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Participant 参团人
type Participant struct {
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
	Age   int    `json:"age,omitempty"`
}

// Booking 预订
type Booking struct {
	ID            uint                             `gorm:"primarykey" json:"id"`                                     // 主键
	BookingNo     string                           `gorm:"uniqueIndex;size:32;not null" json:"booking_no"`           // 预订编号
	TourID        uint                             `gorm:"index;not null" json:"tour_id"`                            // 线路ID
	CustomerID    uint                             `gorm:"index;not null" json:"customer_id"`                        // 下单用户ID
	GuideID       uint                             `gorm:"index" json:"guide_id"`                                    // 导游ID
	Status        string                           `gorm:"index;size:20;not null" json:"status"`                     // 预订状态
	PaymentStatus string                           `gorm:"index;size:20;not null" json:"payment_status"`             // 支付状态（unpaid/paid/refunded）
	TotalPrice    Money                            `gorm:"type:decimal(20,2);not null;default:0" json:"total_price"` // 订单总价
	Currency      string                           `gorm:"size:8;not null;default:'VND'" json:"currency"`            // 币种
	Participants  datatypes.JSONSlice[Participant] `gorm:"type:json" json:"participants"`                            // 参团人
	TourDate      *time.Time                       `gorm:"index" json:"tour_date"`                                   // 出团日期
	PaidAt        *time.Time                       `gorm:"index" json:"paid_at"`                                     // 支付时间
	RefundedAt    *time.Time                       `json:"refunded_at"`                                              // 退款时间
	LegacyAttrs   JSON                             `gorm:"type:json" json:"-"`                                       // 历史导入记录的原始字段
	CreatedAt     time.Time                        `gorm:"index" json:"created_at"`                                  // 创建时间
	UpdatedAt     time.Time                        `gorm:"index" json:"updated_at"`                                  // 更新时间
	DeletedAt     gorm.DeletedAt                   `gorm:"index" json:"-"`                                           // 软删除时间

	Tour *Tour `gorm:"foreignKey:TourID" json:"tour,omitempty"` // 关联线路
}

// TableName 指定表名
func (Booking) TableName() string {
	return "bookings"
}
