package model

import (
	"time"

	"gorm.io/gorm"
)

// ShipmentStatus 描述发货登记的 outbox 状态机。
type ShipmentStatus int

const (
	ShipmentPending    ShipmentStatus = iota // 订单已入账、待向 FoxPost 登记
	ShipmentRegistered                       // 登记成功，已拿到追踪号
	ShipmentFailed                           // 重试耗尽，已标记失败
)

func (s ShipmentStatus) String() string {
	switch s {
	case ShipmentPending:
		return "pending"
	case ShipmentRegistered:
		return "registered"
	case ShipmentFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Shipment 一条待登记或已登记的包裹。它和订单台账解耦：
// 这里的任何失败都不会回滚已入账的订单。
type Shipment struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	OrderID        string `gorm:"size:64;uniqueIndex;not null" json:"order_id"`
	RecipientName  string `gorm:"size:128;not null" json:"recipient_name"`
	RecipientEmail string `gorm:"size:128" json:"recipient_email"`
	RecipientPhone string `gorm:"size:32" json:"recipient_phone"`
	PointID        string `gorm:"size:64;not null" json:"point_id"`

	// Status + Attempts + ErrorMsg 支撑重试与失败排查。
	Status      ShipmentStatus `gorm:"not null;default:0;index" json:"status"`
	Attempts    int            `gorm:"not null;default:0" json:"attempts"`
	TrackingRef string         `gorm:"size:128" json:"tracking_ref"`
	ErrorMsg    string         `gorm:"size:255" json:"error_msg"`

	// NextAttemptAt 下次可尝试的时间，unix 毫秒；0 表示立即可处理
	NextAttemptAt int64 `gorm:"not null;default:0;index" json:"next_attempt_at"`
}

func (Shipment) TableName() string { return "shipments" }
