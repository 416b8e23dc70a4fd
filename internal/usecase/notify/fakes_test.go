package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"gift-notify/internal/domain/entity"
	"gift-notify/internal/infra/notifier"
	"gift-notify/internal/infra/webpush"
)

func success(ch entity.Channel, sid string) entity.DeliveryResult {
	return entity.DeliveryResult{Success: true, Channel: ch, SID: sid, Status: "accepted"}
}

func providerError(ch entity.Channel, status int) entity.DeliveryResult {
	return entity.DeliveryResult{Channel: ch, ErrorCode: entity.ErrCodeProvider, Error: "provider rejected", StatusCode: status}
}

// fakeSMS is a test implementation of notifier.SMSSender
type fakeSMS struct {
	mu       sync.Mutex
	disabled bool
	result   entity.DeliveryResult
	calls    []string
	opts     []notifier.SMSOptions
}

func (f *fakeSMS) Enabled() bool { return !f.disabled }

func (f *fakeSMS) SendSMS(_ context.Context, to, _ string, opts notifier.SMSOptions) entity.DeliveryResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, to)
	f.opts = append(f.opts, opts)
	return f.result
}

func (f *fakeSMS) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakeWhatsApp records template and free-form sends separately
type fakeWhatsApp struct {
	mu        sync.Mutex
	disabled  bool
	template  entity.DeliveryResult
	freeform  entity.DeliveryResult
	templates []entity.TemplateMessage
	freeforms []string
}

func (f *fakeWhatsApp) Enabled() bool { return !f.disabled }

func (f *fakeWhatsApp) SendFreeform(_ context.Context, _, message string) entity.DeliveryResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.freeforms = append(f.freeforms, message)
	return f.freeform
}

func (f *fakeWhatsApp) SendTemplate(_ context.Context, _ string, tmpl entity.TemplateMessage) entity.DeliveryResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.templates = append(f.templates, tmpl)
	return f.template
}

// fakePush answers per endpoint; unknown endpoints succeed
type fakePush struct {
	mu       sync.Mutex
	disabled bool
	results  map[string]entity.DeliveryResult
	payloads [][]byte
}

func (f *fakePush) Enabled() bool { return !f.disabled }

func (f *fakePush) Send(_ context.Context, sub webpush.Subscription, payload []byte) entity.DeliveryResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, payload)
	if res, ok := f.results[sub.Endpoint]; ok {
		return res
	}
	return success(entity.ChannelPush, "push-"+sub.Endpoint)
}

// memAttempts is an in-memory DeliveryAttemptRepository
type memAttempts struct {
	mu       sync.Mutex
	err      error
	attempts []*entity.DeliveryAttempt
}

func (m *memAttempts) Create(_ context.Context, a *entity.DeliveryAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	cp := *a
	m.attempts = append(m.attempts, &cp)
	return nil
}

func (m *memAttempts) ListByRequest(_ context.Context, requestID string) ([]*entity.DeliveryAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.DeliveryAttempt
	for _, a := range m.attempts {
		if a.RequestID == requestID {
			out = append(out, a)
		}
	}
	return out, nil
}

// memSubs is an in-memory PushSubscriptionRepository
type memSubs struct {
	mu      sync.Mutex
	listErr error
	subs    map[int64]*entity.PushSubscription
	touched map[int64]time.Time
	nextID  int64
}

func newMemSubs(subs ...*entity.PushSubscription) *memSubs {
	m := &memSubs{subs: map[int64]*entity.PushSubscription{}, touched: map[int64]time.Time{}}
	for _, s := range subs {
		m.nextID++
		s.ID = m.nextID
		s.Active = true
		m.subs[s.ID] = s
	}
	return m
}

func (m *memSubs) Upsert(_ context.Context, sub *entity.PushSubscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.subs {
		if s.Endpoint == sub.Endpoint {
			sub.ID = s.ID
			sub.Active = true
			m.subs[s.ID] = sub
			return nil
		}
	}
	m.nextID++
	sub.ID = m.nextID
	sub.Active = true
	m.subs[sub.ID] = sub
	return nil
}

func (m *memSubs) ListActiveByUser(_ context.Context, userID string) ([]*entity.PushSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*entity.PushSubscription
	for id := int64(1); id <= m.nextID; id++ {
		if s, ok := m.subs[id]; ok && s.UserID == userID && s.Active {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memSubs) Deactivate(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[id]
	if !ok {
		return entity.ErrNotFound
	}
	s.Active = false
	return nil
}

func (m *memSubs) TouchLastUsed(_ context.Context, id int64, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touched[id] = t
	return nil
}

func (m *memSubs) active(id int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subs[id].Active
}

// memDedup claims keys in a map, ignoring the window
type memDedup struct {
	mu       sync.Mutex
	err      error
	claimed  map[entity.DedupKey]bool
	released []entity.DedupKey
}

func newMemDedup() *memDedup {
	return &memDedup{claimed: map[entity.DedupKey]bool{}}
}

func (m *memDedup) Claim(_ context.Context, key entity.DedupKey, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	if m.claimed[key] {
		return false, nil
	}
	m.claimed[key] = true
	return true, nil
}

func (m *memDedup) Release(_ context.Context, key entity.DedupKey, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.claimed, key)
	m.released = append(m.released, key)
	return nil
}

var errStorage = errors.New("storage unavailable")
