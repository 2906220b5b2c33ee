package carrier_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/popeskul/review-sms/internal/carrier"
	"github.com/popeskul/review-sms/internal/config"
)

func newBreaker() *carrier.CircuitBreaker {
	cfg := &config.CircuitBreakerConfig{
		MaxRequests:      1,
		Interval:         10,
		Timeout:          60,
		FailureRatio:     0.6,
		ConsecutiveFails: 2,
	}
	return carrier.NewCircuitBreaker(cfg, zap.NewNop())
}

func TestCircuitBreaker_Execute(t *testing.T) {
	tests := []struct {
		name     string
		fn       func() (*carrier.Receipt, error)
		wantID   string
		wantCode int
	}{
		{
			name: "success",
			fn: func() (*carrier.Receipt, error) {
				return &carrier.Receipt{MessageID: "SM1", Status: "queued"}, nil
			},
			wantID: "SM1",
		},
		{
			name: "carrier error passes through",
			fn: func() (*carrier.Receipt, error) {
				return nil, carrier.NewError(21211, errors.New("invalid"))
			},
			wantCode: 21211,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			receipt, err := newBreaker().Execute(context.Background(), tt.fn)
			if tt.wantCode != 0 {
				ce, ok := carrier.AsError(err)
				require.True(t, ok)
				assert.Equal(t, tt.wantCode, ce.Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, receipt.MessageID)
		})
	}
}

func TestCircuitBreaker_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	_, err := newBreaker().Execute(ctx, func() (*carrier.Receipt, error) {
		called = true
		return nil, nil
	})

	ce, ok := carrier.AsError(err)
	require.True(t, ok)
	assert.Equal(t, carrier.CodeTimeout, ce.Code)
	assert.False(t, ce.Unconfirmed)
	assert.False(t, called)
}

func TestCircuitBreaker_OpensOnTransientFailures(t *testing.T) {
	cb := newBreaker()
	unreachable := func() (*carrier.Receipt, error) {
		return nil, carrier.NewError(30003, nil)
	}

	for i := 0; i < 2; i++ {
		_, _ = cb.Execute(context.Background(), unreachable)
	}
	assert.Equal(t, carrier.BreakerOpen, cb.State())

	_, err := cb.Execute(context.Background(), func() (*carrier.Receipt, error) {
		return &carrier.Receipt{MessageID: "SM2"}, nil
	})
	ce, ok := carrier.AsError(err)
	require.True(t, ok)
	assert.Equal(t, carrier.CodeUnavailable, ce.Code)
	assert.Equal(t, carrier.CategoryUnreachable, ce.Info.Category)
}

func TestCircuitBreaker_IgnoresRecipientErrors(t *testing.T) {
	cb := newBreaker()
	for _, code := range []int{21211, 21610, 21612, 30005, 21211} {
		_, _ = cb.Execute(context.Background(), func() (*carrier.Receipt, error) {
			return nil, carrier.NewError(code, nil)
		})
	}

	assert.Equal(t, carrier.BreakerClosed, cb.State())
	requests, failures := cb.Counts()
	assert.Equal(t, uint32(5), requests)
	assert.Equal(t, uint32(0), failures)
}
