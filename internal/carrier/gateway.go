// Package carrier sends SMS through the upstream carrier and translates its
// failures into user-facing categories.
package carrier

import "context"

//go:generate mockgen -source=gateway.go -destination=mocks/gateway_mock.go -package=mocks

// OutboundSMS is one message handed to the carrier.
type OutboundSMS struct {
	To                string
	Body              string
	From              SenderIdentity
	StatusCallbackURL string
}

// Receipt is the carrier's acknowledgement of an accepted message.
type Receipt struct {
	MessageID string
	Status    string
}

// Gateway dispatches a single SMS. Implementations must honour ctx and
// return *Error for every failure.
type Gateway interface {
	Send(ctx context.Context, sms OutboundSMS) (*Receipt, error)
}
