// Package payment 对接支付服务：只负责创建 payment intent，返回前端可用的 client secret。
package payment

import (
	"context"
	"errors"
)

var ErrInvalidAmount = errors.New("payment amount must be positive")

// IntentRequest 金额以最小货币单位表示（HUF 没有辅币，即整数福林）。
type IntentRequest struct {
	AmountMinor int64
	Currency    string
	Metadata    map[string]string
}

type Intent struct {
	ID           string
	ClientSecret string
}

// Gateway 支付网关端口。
type Gateway interface {
	CreateIntent(ctx context.Context, req IntentRequest) (Intent, error)
}
