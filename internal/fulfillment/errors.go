package fulfillment

import (
	"errors"
	"fmt"

	"webshop/internal/catalog"
	"webshop/internal/ledger"
	"webshop/internal/model"
)

var (
	ErrInvalidOrder       = model.ErrInvalidOrder
	ErrUnknownProduct     = errors.New("unknown product")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrDuplicateOrder     = errors.New("duplicate order")
	ErrOrderInProgress    = errors.New("order is already being processed")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrPaymentFailed      = errors.New("payment failed")
)

// 客户端可依据 kind 分支处理，message 仅供展示。
const (
	KindInvalidOrder       = "invalid_order"
	KindUnknownProduct     = "unknown_product"
	KindInsufficientStock  = "insufficient_stock"
	KindDuplicateOrder     = "duplicate_order"
	KindOrderInProgress    = "order_in_progress"
	KindStorageUnavailable = "storage_unavailable"
	KindPaymentFailed      = "payment_failed"
	KindInternal           = "internal"
)

// Kind 把错误映射为稳定的错误类别。
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidOrder):
		return KindInvalidOrder
	case errors.Is(err, ErrUnknownProduct):
		return KindUnknownProduct
	case errors.Is(err, ErrInsufficientStock):
		return KindInsufficientStock
	case errors.Is(err, ErrDuplicateOrder):
		return KindDuplicateOrder
	case errors.Is(err, ErrOrderInProgress):
		return KindOrderInProgress
	case errors.Is(err, ErrStorageUnavailable):
		return KindStorageUnavailable
	case errors.Is(err, ErrPaymentFailed):
		return KindPaymentFailed
	default:
		return KindInternal
	}
}

// storageErr 让两个存储层的错误都能用 ErrStorageUnavailable 判断。
func storageErr(op string, err error) error {
	if errors.Is(err, catalog.ErrStorageUnavailable) || errors.Is(err, ledger.ErrStorageUnavailable) {
		return fmt.Errorf("%s: %w: %w", op, ErrStorageUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
