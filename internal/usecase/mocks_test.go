//go:build !integration

package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"habit-ai-billing/internal/domain"
	"habit-ai-billing/internal/domain/model"
	"habit-ai-billing/internal/domain/ports/adapter"
	"habit-ai-billing/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger { l := zerolog.Nop(); return &l }

// ---------------- in-memory repositories ----------------

type memPaymentRepo struct {
	mu    sync.RWMutex
	store map[string]*model.PaymentRecord // by internal ID

	MarkCancelledFunc func(ctx context.Context, tx repository.Tx, id string, at time.Time) error
}

func newMemPaymentRepo() *memPaymentRepo {
	return &memPaymentRepo{store: make(map[string]*model.PaymentRecord)}
}

func (m *memPaymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.PaymentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.store[p.ID] = &cp
	return nil
}

func (m *memPaymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPaymentRepo) FindByGatewayRef(ctx context.Context, tx repository.Tx, ref string) (*model.PaymentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.store {
		if (p.ImpUID != "" && p.ImpUID == ref) || (p.PaymentID != "" && p.PaymentID == ref) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memPaymentRepo) FindByMerchantUID(ctx context.Context, tx repository.Tx, merchantUID string) (*model.PaymentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.store {
		if p.MerchantUID != "" && p.MerchantUID == merchantUID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memPaymentRepo) MarkCancelled(ctx context.Context, tx repository.Tx, id string, at time.Time) error {
	if m.MarkCancelledFunc != nil {
		return m.MarkCancelledFunc(ctx, tx, id, at)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.Status = model.PaymentStatusCancelled
	if p.CancelledAt == nil {
		cp := at
		p.CancelledAt = &cp
	}
	return nil
}

func (m *memPaymentRepo) ListCancelledSince(ctx context.Context, tx repository.Tx, since time.Time, limit int) ([]*model.PaymentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.PaymentRecord
	for _, p := range m.store {
		if p.Status == model.PaymentStatusCancelled && p.CancelledAt != nil && !p.CancelledAt.Before(since) {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memSubscriptionRepo struct {
	mu    sync.RWMutex
	store map[string]*model.SubscriptionRecord

	CancelFunc error // returned by Cancel when set
	DeleteFunc func(ctx context.Context, tx repository.Tx, id string) error
}

func newMemSubscriptionRepo() *memSubscriptionRepo {
	return &memSubscriptionRepo{store: make(map[string]*model.SubscriptionRecord)}
}

func (m *memSubscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.SubscriptionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.store[s.ID] = &cp
	return nil
}

func (m *memSubscriptionRepo) FindActiveByUserAndType(ctx context.Context, tx repository.Tx, userID, subType string) ([]*model.SubscriptionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.SubscriptionRecord
	for _, s := range m.store {
		if s.UserID == userID && s.Type == subType && s.Status == model.SubscriptionStatusActive {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memSubscriptionRepo) CountActiveByUserAndType(ctx context.Context, tx repository.Tx, userID, subType string) (int, error) {
	subs, err := m.FindActiveByUserAndType(ctx, tx, userID, subType)
	if err != nil {
		return 0, err
	}
	return len(subs), nil
}

func (m *memSubscriptionRepo) Cancel(ctx context.Context, tx repository.Tx, id string) error {
	if m.CancelFunc != nil {
		return m.CancelFunc
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.Status = model.SubscriptionStatusCancelled
	return nil
}

func (m *memSubscriptionRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, tx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.store, id)
	return nil
}

func (m *memSubscriptionRepo) get(id string) *model.SubscriptionRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.store[id]; ok {
		cp := *s
		return &cp
	}
	return nil
}

type memProfileRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Profile

	UpdateTierFunc func(ctx context.Context, tx repository.Tx, userID, tier string) error
}

func newMemProfileRepo() *memProfileRepo {
	return &memProfileRepo{store: make(map[string]*model.Profile)}
}

func (m *memProfileRepo) FindByUserID(ctx context.Context, tx repository.Tx, userID string) (*model.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.store[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memProfileRepo) UpdateTier(ctx context.Context, tx repository.Tx, userID, tier string) error {
	if m.UpdateTierFunc != nil {
		return m.UpdateTierFunc(ctx, tx, userID, tier)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[userID]
	if !ok {
		return domain.ErrNotFound
	}
	p.SubscriptionTier = tier
	p.UpdatedAt = time.Now()
	return nil
}

// ---------------- gateway mock ----------------

type MockPaymentGateway struct {
	VerifyFunc func(ctx context.Context, ref model.TransactionRef) (adapter.GatewayPayload, error)
	CancelFunc func(ctx context.Context, ref model.TransactionRef, opts adapter.CancelOptions) (adapter.CancelResult, error)

	VerifyCalls int
	CancelCalls int
}

func (m *MockPaymentGateway) Name() string { return "mock" }

func (m *MockPaymentGateway) Verify(ctx context.Context, ref model.TransactionRef) (adapter.GatewayPayload, error) {
	m.VerifyCalls++
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, ref)
	}
	return adapter.GatewayPayload{"status": "paid"}, nil
}

func (m *MockPaymentGateway) Cancel(ctx context.Context, ref model.TransactionRef, opts adapter.CancelOptions) (adapter.CancelResult, error) {
	m.CancelCalls++
	if m.CancelFunc != nil {
		return m.CancelFunc(ctx, ref, opts)
	}
	return adapter.CancelResult{Payload: adapter.GatewayPayload{"status": "cancelled"}}, nil
}
