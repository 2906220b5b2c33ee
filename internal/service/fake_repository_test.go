package service_test

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/popeskul/review-sms/internal/models"
	"github.com/popeskul/review-sms/internal/repository"
)

// memStore is an in-memory repository.Repository with the same conditional
// semantics as the Postgres implementation.
type memStore struct {
	mu        sync.Mutex
	accounts  map[uuid.UUID]*models.Account
	customers map[uuid.UUID]*models.Customer
	messages  map[uuid.UUID]*models.Message
}

func newMemStore() *memStore {
	return &memStore{
		accounts:  make(map[uuid.UUID]*models.Account),
		customers: make(map[uuid.UUID]*models.Customer),
		messages:  make(map[uuid.UUID]*models.Message),
	}
}

func (s *memStore) Ping() error                             { return nil }
func (s *memStore) Account() repository.AccountRepository   { return memAccounts{s} }
func (s *memStore) Customer() repository.CustomerRepository { return memCustomers{s} }
func (s *memStore) Message() repository.MessageRepository   { return memMessages{s} }
func (s *memStore) Dispatch() repository.DispatchRepository { return memDispatch{s} }

func (s *memStore) addAccount(a *models.Account) *models.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	s.accounts[a.ID] = a
	return a
}

func (s *memStore) addCustomer(c *models.Customer) *models.Customer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.DeliveryState == "" {
		c.DeliveryState = models.DeliveryStatePending
	}
	s.customers[c.ID] = c
	return c
}

func (s *memStore) account(id uuid.UUID) models.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.accounts[id]
}

func (s *memStore) customer(id uuid.UUID) models.Customer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.customers[id]
}

func (s *memStore) messageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

type memAccounts struct{ s *memStore }

func (r memAccounts) GetByID(_ context.Context, id uuid.UUID) (*models.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.accounts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r memAccounts) Upsert(_ context.Context, acct *models.Account) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.accounts[acct.ID]
	if !ok {
		cp := *acct
		if cp.Plan == "" {
			cp.Plan = models.PlanFree
		}
		if cp.AccessStatus == "" {
			cp.AccessStatus = models.AccessStatusInactive
		}
		r.s.accounts[acct.ID] = &cp
		return nil
	}
	if acct.Email.Valid {
		existing.Email = acct.Email
	}
	existing.BusinessName = acct.BusinessName
	existing.ReviewLinks = acct.ReviewLinks
	existing.SMSTemplate = acct.SMSTemplate
	existing.IncludeNameInSMS = acct.IncludeNameInSMS
	existing.IncludeJobInSMS = acct.IncludeJobInSMS
	return nil
}

func (r memAccounts) GetAccessStatus(_ context.Context, userID uuid.UUID) (models.AccessStatus, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.accounts[userID]
	if !ok {
		return "", repository.ErrNotFound
	}
	return a.AccessStatus, nil
}

func (r memAccounts) UpdateBilling(_ context.Context, billingCustomerID string, status models.AccessStatus, plan models.Plan) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.accounts {
		if a.BillingCustomerID.Valid && a.BillingCustomerID.String == billingCustomerID {
			a.AccessStatus = status
			if plan != "" {
				a.Plan = plan
			}
			return true, nil
		}
	}
	return false, nil
}

func (r memAccounts) ResetMonthlyCounters(context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, a := range r.s.accounts {
		if a.SMSSentThisMonth > 0 {
			a.SMSSentThisMonth = 0
			n++
		}
	}
	return n, nil
}

type memCustomers struct{ s *memStore }

func (r memCustomers) Create(_ context.Context, c *models.Customer) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	r.s.addCustomer(c)
	return nil
}

func (r memCustomers) GetByID(_ context.Context, userID, id uuid.UUID) (*models.Customer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.customers[id]
	if !ok || c.UserID != userID {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r memCustomers) List(_ context.Context, f models.CustomerFilter) ([]*models.Customer, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var all []*models.Customer
	for _, c := range r.s.customers {
		if c.UserID == f.UserID && (f.State == "" || c.DeliveryState == f.State) {
			cp := *c
			all = append(all, &cp)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	total := len(all)
	if f.Offset >= total {
		return nil, total, nil
	}
	end := f.Offset + f.Limit
	if end > total {
		end = total
	}
	return all[f.Offset:end], total, nil
}

func (r memCustomers) Delete(_ context.Context, userID, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.customers[id]
	if !ok || c.UserID != userID {
		return repository.ErrNotFound
	}
	delete(r.s.customers, id)
	return nil
}

func (r memCustomers) Schedule(_ context.Context, userID, id uuid.UUID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.customers[id]
	if !ok || c.UserID != userID {
		return repository.ErrNotFound
	}
	c.DeliveryState = models.DeliveryStateScheduled
	c.ScheduledSendAt.Time, c.ScheduledSendAt.Valid = at.UTC(), true
	c.SweepAttempts = 0
	return nil
}

func (r memCustomers) SetOptedOut(_ context.Context, ids []uuid.UUID, optedOut bool) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, id := range ids {
		if c, ok := r.s.customers[id]; ok {
			c.OptedOut = optedOut
			n++
		}
	}
	return n, nil
}

func (r memCustomers) ListPhones(_ context.Context, userID, after uuid.UUID, limit int) ([]*models.CustomerPhone, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var phones []*models.CustomerPhone
	for _, c := range r.s.customers {
		if userID != uuid.Nil && c.UserID != userID {
			continue
		}
		if bytes.Compare(c.ID[:], after[:]) <= 0 {
			continue
		}
		phones = append(phones, &models.CustomerPhone{ID: c.ID, UserID: c.UserID, PhoneRegion: c.PhoneRegion, PhoneLocal: c.PhoneLocal})
	}
	sort.Slice(phones, func(i, j int) bool { return bytes.Compare(phones[i].ID[:], phones[j].ID[:]) < 0 })
	if len(phones) > limit {
		phones = phones[:limit]
	}
	return phones, nil
}

func (r memCustomers) ListDue(_ context.Context, now time.Time, limit int) ([]*models.Customer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var due []*models.Customer
	for _, c := range r.s.customers {
		if c.DeliveryState == models.DeliveryStateScheduled && !c.ScheduledSendAt.Time.After(now) {
			cp := *c
			due = append(due, &cp)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ScheduledSendAt.Time.Before(due[j].ScheduledSendAt.Time) })
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (r memCustomers) BeginSend(_ context.Context, id uuid.UUID, now time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.customers[id]
	if !ok || c.DeliveryState != models.DeliveryStateScheduled || c.ScheduledSendAt.Time.After(now) {
		return false, nil
	}
	c.DeliveryState = models.DeliveryStateSending
	return true, nil
}

func (r memCustomers) ReturnToSchedule(_ context.Context, id uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.customers[id]
	if !ok || c.DeliveryState != models.DeliveryStateSending {
		return false, nil
	}
	c.DeliveryState = models.DeliveryStateScheduled
	return true, nil
}

func (r memCustomers) MarkFailed(_ context.Context, id uuid.UUID, from models.DeliveryState) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.customers[id]
	if !ok || c.DeliveryState != from {
		return false, nil
	}
	c.DeliveryState = models.DeliveryStateFailed
	c.ScheduledSendAt.Valid = false
	return true, nil
}

func (r memCustomers) RecordSweepFailure(_ context.Context, id uuid.UUID, maxAttempts int) (int, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.customers[id]
	if !ok || c.DeliveryState != models.DeliveryStateSending {
		return 0, false, repository.ErrNotFound
	}
	c.SweepAttempts++
	if c.SweepAttempts >= maxAttempts {
		c.DeliveryState = models.DeliveryStateFailed
		c.ScheduledSendAt.Valid = false
		return c.SweepAttempts, true, nil
	}
	c.DeliveryState = models.DeliveryStateScheduled
	return c.SweepAttempts, false, nil
}

type memMessages struct{ s *memStore }

func (r memMessages) GetByID(_ context.Context, id uuid.UUID) (*models.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.messages[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (r memMessages) GetByCarrierID(_ context.Context, carrierID string) (*models.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, m := range r.s.messages {
		if m.CarrierMessageID == carrierID {
			cp := *m
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r memMessages) ListByCustomer(_ context.Context, userID, customerID uuid.UUID, offset, limit int) ([]*models.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Message
	for _, m := range r.s.messages {
		if m.UserID == userID && m.CustomerID.Valid && m.CustomerID.UUID == customerID {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SentAt.After(out[j].SentAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memMessages) UpdateDeliveryStatus(_ context.Context, id uuid.UUID, prev *models.DeliveryStatus, update models.DeliveryUpdate) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.messages[id]
	if !ok {
		return false, nil
	}
	if (prev == nil) != (m.DeliveryStatus == nil) || (prev != nil && *prev != *m.DeliveryStatus) {
		return false, nil
	}
	st := update.Status
	m.DeliveryStatus = &st
	m.DeliveryErrorCode.String, m.DeliveryErrorCode.Valid = update.ErrorCode, update.ErrorCode != ""
	m.DeliveryErrorMessage.String, m.DeliveryErrorMessage.Valid = update.ErrorMessage, update.ErrorMessage != ""
	return true, nil
}

type memDispatch struct{ s *memStore }

func (r memDispatch) Reserve(_ context.Context, userID, customerID uuid.UUID, monthlyLimit, customerCap int) (*models.Reservation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.accounts[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c, ok := r.s.customers[customerID]
	if !ok || c.UserID != userID {
		return nil, repository.ErrNotFound
	}
	switch {
	case a.SMSSentThisMonth >= monthlyLimit:
		return nil, repository.ErrMonthlyLimitReached
	case c.OptedOut:
		return nil, repository.ErrCustomerOptedOut
	case c.RequestCount >= customerCap:
		return nil, repository.ErrCustomerCapReached
	}
	a.SMSSentThisMonth++
	c.RequestCount++
	return &models.Reservation{SMSSentThisMonth: a.SMSSentThisMonth, RequestCount: c.RequestCount}, nil
}

func (r memDispatch) Release(_ context.Context, userID, customerID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if a, ok := r.s.accounts[userID]; ok && a.SMSSentThisMonth > 0 {
		a.SMSSentThisMonth--
	}
	if c, ok := r.s.customers[customerID]; ok && c.RequestCount > 0 {
		c.RequestCount--
	}
	return nil
}

func (r memDispatch) RecordSent(_ context.Context, msg *models.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *msg
	r.s.messages[msg.ID] = &cp
	if msg.CustomerID.Valid {
		if c, ok := r.s.customers[msg.CustomerID.UUID]; ok {
			c.DeliveryState = models.DeliveryStateSent
			c.SentAt.Time, c.SentAt.Valid = msg.SentAt, true
			c.ScheduledSendAt.Valid = false
			c.SweepAttempts = 0
		}
	}
	return nil
}
