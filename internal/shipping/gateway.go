// Package shipping 对接 FoxPost 自提柜服务。
package shipping

import (
	"context"

	"webshop/internal/model"
)

// Recipient 收件人。
type Recipient struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// ShipmentRequest 登记一个寄往自提柜的包裹。
type ShipmentRequest struct {
	OrderNumber string
	Recipient   Recipient
	PointID     model.PointID
}

type ShipmentReceipt struct {
	TrackingRef string
}

// Gateway 物流网关端口。
type Gateway interface {
	ListPickupPoints(ctx context.Context) ([]model.PickupPoint, error)
	RegisterShipment(ctx context.Context, req ShipmentRequest) (ShipmentReceipt, error)
}

// FallbackPickupPoints 网关不可用时展示的固定自提点，仅用于保证下拉框不为空。
func FallbackPickupPoints() []model.PickupPoint {
	return []model.PickupPoint{
		{ID: "1", Name: "Budapest, Nyugati tér", Address: "1132 Budapest, Váci út 1-3."},
		{ID: "2", Name: "Szentendre, Duna korzó", Address: "2000 Szentendre, Duna korzó 15."},
		{ID: "3", Name: "Budapest, Oktogon", Address: "1067 Budapest, Teréz körút 1."},
	}
}
