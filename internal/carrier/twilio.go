package carrier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/twilio/twilio-go"
	twclient "github.com/twilio/twilio-go/client"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"

	"github.com/popeskul/review-sms/internal/config"
)

// messageCreator is the slice of the Twilio REST client the gateway needs.
type messageCreator interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// TwilioGateway sends SMS through the Twilio Messages API.
type TwilioGateway struct {
	api     messageCreator
	breaker *CircuitBreaker
	timeout time.Duration
	logger  *zap.Logger
}

// NewTwilioGateway builds a gateway from carrier credentials.
func NewTwilioGateway(cfg *config.CarrierConfig, logger *zap.Logger) *TwilioGateway {
	rest := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	timeout := time.Duration(cfg.Timeout) * time.Second
	rest.SetTimeout(timeout)

	return newTwilioGateway(rest.Api, NewCircuitBreaker(&cfg.CircuitBreaker, logger), timeout, logger)
}

func newTwilioGateway(api messageCreator, breaker *CircuitBreaker, timeout time.Duration, logger *zap.Logger) *TwilioGateway {
	return &TwilioGateway{
		api:     api,
		breaker: breaker,
		timeout: timeout,
		logger:  logger,
	}
}

// Breaker exposes the circuit breaker for health checks.
func (g *TwilioGateway) Breaker() *CircuitBreaker {
	return g.breaker
}

// Send dispatches sms. When the destination rejects an alphanumeric sender
// and a fallback number is known, the message is resent once from the number.
func (g *TwilioGateway) Send(ctx context.Context, sms OutboundSMS) (*Receipt, error) {
	receipt, err := g.breaker.Execute(ctx, func() (*Receipt, error) {
		return g.create(ctx, sms)
	})
	if err == nil {
		return receipt, nil
	}

	ce, ok := AsError(err)
	if ok && ce.Code == CodeAlphanumericRejected && sms.From.Alphanumeric && sms.From.Fallback != "" {
		g.logger.Info("Alphanumeric sender rejected, retrying from number",
			zap.String("sender", sms.From.Value),
		)
		retry := sms
		retry.From = SenderIdentity{Value: sms.From.Fallback}
		return g.breaker.Execute(ctx, func() (*Receipt, error) {
			return g.create(ctx, retry)
		})
	}
	return nil, err
}

type createResult struct {
	msg *openapi.ApiV2010Message
	err error
}

func (g *TwilioGateway) create(ctx context.Context, sms OutboundSMS) (*Receipt, error) {
	params := &openapi.CreateMessageParams{}
	params.SetTo(sms.To)
	params.SetFrom(sms.From.Value)
	params.SetBody(sms.Body)
	if sms.StatusCallbackURL != "" {
		params.SetStatusCallback(sms.StatusCallbackURL)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	done := make(chan createResult, 1)
	go func() {
		msg, err := g.api.CreateMessage(params)
		done <- createResult{msg: msg, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, NewUnconfirmedError(CodeTimeout, ctx.Err())
	case res := <-done:
		if res.err != nil {
			return nil, translate(res.err)
		}
		return toReceipt(res.msg)
	}
}

func toReceipt(msg *openapi.ApiV2010Message) (*Receipt, error) {
	if msg == nil || msg.Sid == nil || *msg.Sid == "" {
		return nil, NewUnconfirmedError(CodeTransport, errors.New("carrier response has no message id"))
	}
	receipt := &Receipt{MessageID: *msg.Sid}
	if msg.Status != nil {
		receipt.Status = string(*msg.Status)
	}
	return receipt, nil
}

func translate(err error) error {
	var restErr *twclient.TwilioRestError
	if errors.As(err, &restErr) {
		return NewError(restErr.Code, fmt.Errorf("%s (http %d)", restErr.Message, restErr.Status))
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewUnconfirmedError(CodeTimeout, err)
	}
	return NewUnconfirmedError(CodeTransport, err)
}
