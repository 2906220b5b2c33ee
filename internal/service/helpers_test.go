package service_test

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/popeskul/review-sms/internal/carrier"
	"github.com/popeskul/review-sms/internal/models"
	"github.com/popeskul/review-sms/internal/quota"
	"github.com/popeskul/review-sms/internal/service"
)

// fakeGateway accepts every message unless err is set.
type fakeGateway struct {
	mu   sync.Mutex
	sent []carrier.OutboundSMS
	err  error
}

func (g *fakeGateway) Send(_ context.Context, sms carrier.OutboundSMS) (*carrier.Receipt, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	g.sent = append(g.sent, sms)
	return &carrier.Receipt{MessageID: fmt.Sprintf("SM%032d", len(g.sent)), Status: "queued"}, nil
}

func (g *fakeGateway) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sent)
}

type memIndex struct {
	mu  sync.Mutex
	ids map[string]uuid.UUID
}

func newMemIndex() *memIndex {
	return &memIndex{ids: make(map[string]uuid.UUID)}
}

func (i *memIndex) Put(_ context.Context, carrierID string, messageID uuid.UUID) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.ids[carrierID] = messageID
	return nil
}

func (i *memIndex) Get(_ context.Context, carrierID string) (uuid.UUID, bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	id, ok := i.ids[carrierID]
	return id, ok, nil
}

func testSenders() carrier.Senders {
	return carrier.Senders{AlphanumericID: "Acme", PhoneNumber: "+15005550006"}
}

func activeAccount() *models.Account {
	return &models.Account{
		BusinessName: "Acme",
		ReviewLinks:  models.ReviewLinks{{Name: "Google", URL: "https://g.page/acme"}},
		SMSTemplate:  "Thanks, {businessName}!",
		Plan:         models.PlanStarter,
		AccessStatus: models.AccessStatusActive,
	}
}

func gbCustomer(userID uuid.UUID) *models.Customer {
	return &models.Customer{
		UserID:      userID,
		Name:        "Jane",
		PhoneRegion: "GB",
		PhoneLocal:  "07400123456",
	}
}

// pipeline wires dispatch and webhook services over one in-memory store.
type pipeline struct {
	store    *memStore
	gateway  *fakeGateway
	index    *memIndex
	dispatch service.DispatchService
	webhook  service.WebhookService
}

func newPipeline() *pipeline {
	p := &pipeline{
		store:   newMemStore(),
		gateway: &fakeGateway{},
		index:   newMemIndex(),
	}
	p.dispatch = service.NewDispatchService(service.DispatchDeps{
		Repo:    p.store,
		Guard:   quota.NewGuard(quota.DefaultPlanLimits()),
		Gateway: p.gateway,
		Senders: testSenders(),
		Index:   p.index,
		Logger:  zap.NewNop(),
	})
	p.webhook = service.NewWebhookService(p.store, p.index, zap.NewNop())
	return p
}
