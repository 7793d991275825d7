package payment

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"go.uber.org/zap"
)

// intentCreator 是 stripe paymentintent.Client 中用到的那一个方法。
type intentCreator interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

// Stripe 基于 stripe-go 的 Gateway 实现。
type Stripe struct {
	intents intentCreator
	log     *zap.Logger
}

// NewStripe 用注入的密钥创建独立的 API client，不修改 stripe.Key 全局变量。
func NewStripe(secretKey string, log *zap.Logger) *Stripe {
	sc := client.New(secretKey, nil)
	return newStripe(sc.PaymentIntents, log)
}

func newStripe(intents intentCreator, log *zap.Logger) *Stripe {
	if log == nil {
		log = zap.NewNop()
	}
	return &Stripe{intents: intents, log: log.Named("stripe")}
}

func (s *Stripe) CreateIntent(ctx context.Context, req IntentRequest) (Intent, error) {
	if req.AmountMinor <= 0 {
		return Intent{}, ErrInvalidAmount
	}
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.AmountMinor),
		Currency: stripe.String(req.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := s.intents.New(params)
	if err != nil {
		s.log.Warn("create payment intent failed",
			zap.Int64("amount", req.AmountMinor),
			zap.String("currency", req.Currency),
			zap.Error(err),
		)
		return Intent{}, fmt.Errorf("stripe create intent: %w", err)
	}
	return Intent{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}
