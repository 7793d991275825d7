package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidOrder 订单字段校验失败。
var ErrInvalidOrder = errors.New("invalid order")

// ShippingMethod 配送方式：FoxPost 自提柜或送货上门。
type ShippingMethod string

const (
	ShippingFoxpost ShippingMethod = "foxpost"
	ShippingHome    ShippingMethod = "home"
)

// OrderItem 订单行；price 是下单时的单价，可能与当前目录价不同。
// JSON 字段名沿用店面前端（id / price）。
type OrderItem struct {
	ProductID int             `json:"id"`
	Name      string          `json:"name,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"price"`
}

// CustomerInfo 收件人信息；地址字段只在送货上门时必填。
type CustomerInfo struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	ZipCode string `json:"zipCode,omitempty"`
	City    string `json:"city,omitempty"`
	Address string `json:"address,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

// Order 客户端提交的完整订单，落入台账后不再修改。
type Order struct {
	OrderID           string          `json:"orderId"`
	Items             []OrderItem     `json:"items"`
	CustomerInfo      CustomerInfo    `json:"customerInfo"`
	ShippingMethod    ShippingMethod  `json:"shippingMethod"`
	FoxpostLocation   string          `json:"foxpostLocation,omitempty"`
	FoxpostLocationID PointID         `json:"foxpostLocationId,omitempty"`
	Total             decimal.Decimal `json:"total"`
	PaymentStatus     string          `json:"paymentStatus,omitempty"`
}

// TotalQuantity 所有订单行数量之和。
func (o Order) TotalQuantity() int {
	n := 0
	for _, it := range o.Items {
		n += it.Quantity
	}
	return n
}

// Validate 做字段校验，防止脏订单进入扣库存和台账。
func (o Order) Validate() error {
	if strings.TrimSpace(o.OrderID) == "" {
		return fmt.Errorf("%w: orderId is required", ErrInvalidOrder)
	}
	if len(o.Items) == 0 {
		return fmt.Errorf("%w: items must not be empty", ErrInvalidOrder)
	}
	for i, it := range o.Items {
		if it.Quantity <= 0 {
			return fmt.Errorf("%w: items[%d].quantity must be > 0", ErrInvalidOrder, i)
		}
		if it.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: items[%d].price must not be negative", ErrInvalidOrder, i)
		}
	}
	if strings.TrimSpace(o.CustomerInfo.Name) == "" {
		return fmt.Errorf("%w: customerInfo.name is required", ErrInvalidOrder)
	}
	if strings.TrimSpace(o.CustomerInfo.Email) == "" {
		return fmt.Errorf("%w: customerInfo.email is required", ErrInvalidOrder)
	}
	switch o.ShippingMethod {
	case ShippingFoxpost:
		if o.FoxpostLocationID == "" {
			return fmt.Errorf("%w: foxpostLocationId is required for foxpost shipping", ErrInvalidOrder)
		}
	case ShippingHome:
		c := o.CustomerInfo
		if strings.TrimSpace(c.ZipCode) == "" || strings.TrimSpace(c.City) == "" || strings.TrimSpace(c.Address) == "" {
			return fmt.Errorf("%w: zipCode, city and address are required for home delivery", ErrInvalidOrder)
		}
	default:
		return fmt.Errorf("%w: unknown shippingMethod %q", ErrInvalidOrder, o.ShippingMethod)
	}
	if o.Total.IsNegative() {
		return fmt.Errorf("%w: total must not be negative", ErrInvalidOrder)
	}
	return nil
}
