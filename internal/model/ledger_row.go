package model

import "github.com/shopspring/decimal"

// LedgerRow 台账中的一行：订单的扁平化、人可读投影。
// 读回时按列位置映射，不按表头名称。
type LedgerRow struct {
	OrderID         string          `json:"orderId"`
	Date            string          `json:"date"`
	Name            string          `json:"name"`
	Email           string          `json:"email"`
	Phone           string          `json:"phone"`
	ShippingMethod  string          `json:"shippingMethod"`
	FoxpostLocation string          `json:"foxpostLocation"`
	Address         string          `json:"address"`
	Items           string          `json:"items"`
	TotalQuantity   int             `json:"totalQuantity"`
	Total           decimal.Decimal `json:"total"`
	PaymentMethod   string          `json:"paymentMethod"`
	PaymentStatus   string          `json:"paymentStatus"`
	Notes           string          `json:"notes"`
}
