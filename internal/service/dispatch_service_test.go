package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"github.com/popeskul/review-sms/internal/carrier"
	carriermocks "github.com/popeskul/review-sms/internal/carrier/mocks"
	"github.com/popeskul/review-sms/internal/models"
	"github.com/popeskul/review-sms/internal/quota"
	"github.com/popeskul/review-sms/internal/repository"
	repomocks "github.com/popeskul/review-sms/internal/repository/mocks"
	"github.com/popeskul/review-sms/internal/service"
)

func TestDispatchService_Send_HappyPath(t *testing.T) {
	p := newPipeline()
	acct := p.store.addAccount(activeAccount())
	cust := p.store.addCustomer(gbCustomer(acct.ID))

	res, err := p.dispatch.Send(context.Background(), acct.ID, cust.ID, true)
	require.NoError(t, err)

	assert.True(t, res.Persisted)
	assert.Equal(t, 1, res.SMSSentThisMonth)
	assert.Equal(t, 1, res.RequestCount)
	assert.Equal(t, 100, res.MonthlyLimit)
	assert.Equal(t, string(models.DeliveryStatusQueued), res.Status)

	require.Equal(t, 1, p.gateway.calls())
	sms := p.gateway.sent[0]
	assert.Equal(t, "+447400123456", sms.To)
	assert.Equal(t, "Thanks, Acme!\n\nGoogle: https://g.page/acme", sms.Body)
	assert.Equal(t, carrier.SenderIdentity{Value: "Acme", Alphanumeric: true}, sms.From)

	assert.Equal(t, 1, p.store.account(acct.ID).SMSSentThisMonth)
	stored := p.store.customer(cust.ID)
	assert.Equal(t, 1, stored.RequestCount)
	assert.Equal(t, models.DeliveryStateSent, stored.DeliveryState)
	assert.True(t, stored.SentAt.Valid)

	id, ok, err := p.index.Get(context.Background(), res.CarrierMessageID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, res.MessageID, id)
}

func TestDispatchService_Send_USAddsComplianceSuffix(t *testing.T) {
	p := newPipeline()
	acct := p.store.addAccount(activeAccount())
	cust := p.store.addCustomer(&models.Customer{
		UserID:      acct.ID,
		Name:        "Joe",
		PhoneRegion: "US",
		PhoneLocal:  "(201) 555-0123",
	})

	_, err := p.dispatch.Send(context.Background(), acct.ID, cust.ID, true)
	require.NoError(t, err)

	sms := p.gateway.sent[0]
	assert.Equal(t, "+12015550123", sms.To)
	assert.Contains(t, sms.Body, "Reply STOP to opt out")
	assert.Equal(t, carrier.SenderIdentity{Value: "+15005550006"}, sms.From)
}

func TestDispatchService_Send_Denied(t *testing.T) {
	tests := []struct {
		name       string
		account    func(*models.Account)
		customer   func(*models.Customer)
		wantReason quota.Reason
	}{
		{
			name:       "monthly limit reached",
			account:    func(a *models.Account) { a.SMSSentThisMonth = 100 },
			wantReason: quota.ReasonMonthlyLimitReached,
		},
		{
			name:       "free plan limit",
			account:    func(a *models.Account) { a.Plan = models.PlanFree; a.SMSSentThisMonth = 20 },
			wantReason: quota.ReasonMonthlyLimitReached,
		},
		{
			name:       "payment inactive",
			account:    func(a *models.Account) { a.AccessStatus = models.AccessStatusPastDue },
			wantReason: quota.ReasonPaymentInactive,
		},
		{
			name:       "customer opted out",
			customer:   func(c *models.Customer) { c.OptedOut = true },
			wantReason: quota.ReasonOptedOut,
		},
		{
			name:       "customer cap reached",
			customer:   func(c *models.Customer) { c.RequestCount = quota.CustomerCap },
			wantReason: quota.ReasonCustomerCapReached,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPipeline()
			acct := activeAccount()
			if tt.account != nil {
				tt.account(acct)
			}
			p.store.addAccount(acct)
			cust := gbCustomer(acct.ID)
			if tt.customer != nil {
				tt.customer(cust)
			}
			p.store.addCustomer(cust)
			before := p.store.account(acct.ID).SMSSentThisMonth

			res, err := p.dispatch.Send(context.Background(), acct.ID, cust.ID, true)
			assert.Nil(t, res)

			var quotaErr *service.QuotaError
			require.ErrorAs(t, err, &quotaErr)
			assert.Equal(t, tt.wantReason, quotaErr.Reason)

			assert.Zero(t, p.gateway.calls())
			assert.Zero(t, p.store.messageCount())
			assert.Equal(t, before, p.store.account(acct.ID).SMSSentThisMonth)
		})
	}
}

func TestDispatchService_Send_InvalidPhone(t *testing.T) {
	p := newPipeline()
	acct := p.store.addAccount(activeAccount())
	cust := gbCustomer(acct.ID)
	cust.PhoneLocal = "123"
	p.store.addCustomer(cust)

	_, err := p.dispatch.Send(context.Background(), acct.ID, cust.ID, true)
	require.ErrorIs(t, err, service.ErrInvalidPhone)

	assert.Zero(t, p.gateway.calls())
	assert.Zero(t, p.store.account(acct.ID).SMSSentThisMonth)
}

func TestDispatchService_Send_ConsentRequired(t *testing.T) {
	p := newPipeline()
	acct := p.store.addAccount(activeAccount())
	cust := p.store.addCustomer(gbCustomer(acct.ID))

	_, err := p.dispatch.Send(context.Background(), acct.ID, cust.ID, false)
	require.ErrorIs(t, err, service.ErrConsentRequired)
	assert.Zero(t, p.gateway.calls())
}

func TestDispatchService_Send_NotFound(t *testing.T) {
	p := newPipeline()
	acct := p.store.addAccount(activeAccount())

	_, err := p.dispatch.Send(context.Background(), acct.ID, uuid.New(), true)
	require.ErrorIs(t, err, service.ErrNotFound)

	_, err = p.dispatch.Send(context.Background(), uuid.New(), uuid.New(), true)
	require.ErrorIs(t, err, service.ErrNotFound)
}

func TestDispatchService_Send_CarrierErrorReleasesReservation(t *testing.T) {
	p := newPipeline()
	p.gateway.err = carrier.NewError(21614, errors.New("not a mobile number"))
	acct := p.store.addAccount(activeAccount())
	cust := p.store.addCustomer(gbCustomer(acct.ID))

	_, err := p.dispatch.Send(context.Background(), acct.ID, cust.ID, true)

	var carrierErr *service.CarrierError
	require.ErrorAs(t, err, &carrierErr)
	assert.Equal(t, 21614, carrierErr.Code)
	assert.Equal(t, carrier.CategoryInvalidNumber, carrierErr.Category)
	assert.NotEmpty(t, carrierErr.Message)

	assert.Zero(t, p.store.account(acct.ID).SMSSentThisMonth)
	stored := p.store.customer(cust.ID)
	assert.Zero(t, stored.RequestCount)
	assert.Equal(t, models.DeliveryStatePending, stored.DeliveryState)
	assert.Zero(t, p.store.messageCount())
}

func TestDispatchService_Send_UnconfirmedCarrierOutcomeKeepsReservation(t *testing.T) {
	p := newPipeline()
	p.gateway.err = carrier.NewUnconfirmedError(carrier.CodeTimeout, context.DeadlineExceeded)
	acct := p.store.addAccount(activeAccount())
	cust := p.store.addCustomer(gbCustomer(acct.ID))

	_, err := p.dispatch.Send(context.Background(), acct.ID, cust.ID, true)

	var carrierErr *service.CarrierError
	require.ErrorAs(t, err, &carrierErr)
	assert.True(t, carrierErr.Unconfirmed)
	assert.Equal(t, carrier.CodeTimeout, carrierErr.Code)
	assert.Contains(t, carrierErr.Message, "may still be delivered")

	// The message may have gone out, so it still counts against both quotas.
	assert.Equal(t, 1, p.store.account(acct.ID).SMSSentThisMonth)
	assert.Equal(t, 1, p.store.customer(cust.ID).RequestCount)
	assert.Zero(t, p.store.messageCount())
}

// Quota counters advance by exactly one per successful dispatch and stop at
// the plan limit.
func TestDispatchService_Send_QuotaMonotonic(t *testing.T) {
	p := newPipeline()
	acct := activeAccount()
	acct.Plan = models.PlanFree
	p.store.addAccount(acct)

	limit := quota.DefaultPlanLimits()[models.PlanFree]
	var sent int
	for i := 0; i < limit+5; i++ {
		cust := gbCustomer(acct.ID)
		cust.PhoneLocal = "07400" + padDigits(i)
		p.store.addCustomer(cust)

		_, err := p.dispatch.Send(context.Background(), acct.ID, cust.ID, true)
		if err == nil {
			sent++
		}
		assert.Equal(t, sent, p.store.account(acct.ID).SMSSentThisMonth)
		assert.LessOrEqual(t, p.store.account(acct.ID).SMSSentThisMonth, limit)
	}

	assert.Equal(t, limit, sent)
	assert.Equal(t, limit, p.gateway.calls())
}

func padDigits(i int) string {
	s := "000000" + itoa(i)
	return s[len(s)-6:]
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var b []byte
	for ; i > 0; i /= 10 {
		b = append([]byte{byte('0' + i%10)}, b...)
	}
	return string(b)
}

func TestDispatchService_Send_CustomerCapAfterThreeSends(t *testing.T) {
	p := newPipeline()
	acct := p.store.addAccount(activeAccount())
	cust := p.store.addCustomer(gbCustomer(acct.ID))

	for i := 0; i < quota.CustomerCap; i++ {
		_, err := p.dispatch.Send(context.Background(), acct.ID, cust.ID, true)
		require.NoError(t, err)
	}

	_, err := p.dispatch.Send(context.Background(), acct.ID, cust.ID, true)
	var quotaErr *service.QuotaError
	require.ErrorAs(t, err, &quotaErr)
	assert.Equal(t, quota.ReasonCustomerCapReached, quotaErr.Reason)
	assert.True(t, quotaErr.Permanent())
}

type dispatchMocks struct {
	repo     *repomocks.MockRepository
	accounts *repomocks.MockAccountRepository
	customer *repomocks.MockCustomerRepository
	dispatch *repomocks.MockDispatchRepository
	gateway  *carriermocks.MockGateway
}

func newDispatchMocks(ctrl *gomock.Controller) *dispatchMocks {
	m := &dispatchMocks{
		repo:     repomocks.NewMockRepository(ctrl),
		accounts: repomocks.NewMockAccountRepository(ctrl),
		customer: repomocks.NewMockCustomerRepository(ctrl),
		dispatch: repomocks.NewMockDispatchRepository(ctrl),
		gateway:  carriermocks.NewMockGateway(ctrl),
	}
	m.repo.EXPECT().Account().Return(m.accounts).AnyTimes()
	m.repo.EXPECT().Customer().Return(m.customer).AnyTimes()
	m.repo.EXPECT().Dispatch().Return(m.dispatch).AnyTimes()
	return m
}

func (m *dispatchMocks) service() service.DispatchService {
	return service.NewDispatchService(service.DispatchDeps{
		Repo:    m.repo,
		Guard:   quota.NewGuard(quota.DefaultPlanLimits()),
		Gateway: m.gateway,
		Senders: testSenders(),
		Logger:  zap.NewNop(),
	})
}

func (m *dispatchMocks) expectLoad(acct *models.Account, cust *models.Customer) {
	m.accounts.EXPECT().GetByID(gomock.Any(), acct.ID).Return(acct, nil)
	m.customer.EXPECT().GetByID(gomock.Any(), acct.ID, cust.ID).Return(cust, nil)
}

func fixtures() (*models.Account, *models.Customer) {
	acct := activeAccount()
	acct.ID = uuid.New()
	cust := gbCustomer(acct.ID)
	cust.ID = uuid.New()
	return acct, cust
}

// A storage-level denial that races past the guard is still a quota error.
func TestDispatchService_Send_ReservationRace(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := newDispatchMocks(ctrl)
	acct, cust := fixtures()

	m.expectLoad(acct, cust)
	m.dispatch.EXPECT().
		Reserve(gomock.Any(), acct.ID, cust.ID, 100, quota.CustomerCap).
		Return(nil, repository.ErrMonthlyLimitReached)

	_, err := m.service().Send(context.Background(), acct.ID, cust.ID, true)

	var quotaErr *service.QuotaError
	require.ErrorAs(t, err, &quotaErr)
	assert.Equal(t, quota.ReasonMonthlyLimitReached, quotaErr.Reason)
}

func TestDispatchService_Send_RecordFailureIsNotSurfaced(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := newDispatchMocks(ctrl)
	acct, cust := fixtures()

	m.expectLoad(acct, cust)
	m.dispatch.EXPECT().
		Reserve(gomock.Any(), acct.ID, cust.ID, 100, quota.CustomerCap).
		Return(&models.Reservation{SMSSentThisMonth: 1, RequestCount: 1}, nil)
	m.gateway.EXPECT().
		Send(gomock.Any(), gomock.Any()).
		Return(&carrier.Receipt{MessageID: "SM123", Status: "sent"}, nil)
	m.dispatch.EXPECT().
		RecordSent(gomock.Any(), gomock.Any()).
		Return(errors.New("connection reset"))

	res, err := m.service().Send(context.Background(), acct.ID, cust.ID, true)
	require.NoError(t, err)
	assert.False(t, res.Persisted)
	assert.Equal(t, "SM123", res.CarrierMessageID)
	assert.Equal(t, string(models.DeliveryStatusSent), res.Status)
}

// Bookkeeping after the carrier accepted a message survives the caller
// going away.
func TestDispatchService_Send_BookkeepingIgnoresCancellation(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := newDispatchMocks(ctrl)
	acct, cust := fixtures()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m.expectLoad(acct, cust)
	m.dispatch.EXPECT().
		Reserve(gomock.Any(), acct.ID, cust.ID, 100, quota.CustomerCap).
		Return(&models.Reservation{SMSSentThisMonth: 1, RequestCount: 1}, nil)
	m.gateway.EXPECT().
		Send(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, carrier.OutboundSMS) (*carrier.Receipt, error) {
			cancel()
			return &carrier.Receipt{MessageID: "SM456", Status: "queued"}, nil
		})
	m.dispatch.EXPECT().
		RecordSent(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, msg *models.Message) error {
			assert.NoError(t, ctx.Err())
			assert.Equal(t, "SM456", msg.CarrierMessageID)
			assert.Equal(t, cust.ID, msg.CustomerID.UUID)
			return nil
		})

	res, err := m.service().Send(ctx, acct.ID, cust.ID, true)
	require.NoError(t, err)
	assert.True(t, res.Persisted)
}

func TestDispatchService_Send_ReleaseFailureStillReportsCarrierError(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := newDispatchMocks(ctrl)
	acct, cust := fixtures()

	m.expectLoad(acct, cust)
	m.dispatch.EXPECT().
		Reserve(gomock.Any(), acct.ID, cust.ID, 100, quota.CustomerCap).
		Return(&models.Reservation{SMSSentThisMonth: 1, RequestCount: 1}, nil)
	m.gateway.EXPECT().
		Send(gomock.Any(), gomock.Any()).
		Return(nil, carrier.NewError(30003, errors.New("unreachable handset")))
	m.dispatch.EXPECT().
		Release(gomock.Any(), acct.ID, cust.ID).
		Return(errors.New("db down"))

	_, err := m.service().Send(context.Background(), acct.ID, cust.ID, true)

	var carrierErr *service.CarrierError
	require.ErrorAs(t, err, &carrierErr)
	assert.Equal(t, carrier.CategoryUnreachable, carrierErr.Category)
}

// A gateway failure that is not a carrier error cannot prove the message was
// not sent, so nothing is released.
func TestDispatchService_Send_UnknownGatewayErrorKeepsReservation(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := newDispatchMocks(ctrl)
	acct, cust := fixtures()

	m.expectLoad(acct, cust)
	m.dispatch.EXPECT().
		Reserve(gomock.Any(), acct.ID, cust.ID, 100, quota.CustomerCap).
		Return(&models.Reservation{SMSSentThisMonth: 1, RequestCount: 1}, nil)
	m.gateway.EXPECT().
		Send(gomock.Any(), gomock.Any()).
		Return(nil, errors.New("read: connection reset by peer"))

	_, err := m.service().Send(context.Background(), acct.ID, cust.ID, true)

	var carrierErr *service.CarrierError
	require.ErrorAs(t, err, &carrierErr)
	assert.True(t, carrierErr.Unconfirmed)
	assert.Equal(t, carrier.CodeTransport, carrierErr.Code)
}
