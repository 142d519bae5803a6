package service

import (
	"context"
	"encoding/json"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-paylink/app/entity"
	"github.com/vibast-solutions/ms-go-paylink/app/hub"
	"github.com/vibast-solutions/ms-go-paylink/app/provider"
	"github.com/vibast-solutions/ms-go-paylink/app/repository"
	"github.com/vibast-solutions/ms-go-paylink/config"
)

var testNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func silentLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testRetry() config.RetryConfig {
	return config.RetryConfig{MinInterval: 30 * time.Second, MaxInterval: time.Hour, Concurrency: 2}
}

type fakePayments struct {
	mu       sync.Mutex
	payments map[string]*entity.Payment
}

func newFakePayments(payments ...*entity.Payment) *fakePayments {
	f := &fakePayments{payments: map[string]*entity.Payment{}}
	for _, p := range payments {
		f.payments[p.ID] = p.Clone()
	}
	return f
}

func (f *fakePayments) get(id string) *entity.Payment {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.payments[id].Clone()
}

func (f *fakePayments) FindByID(_ context.Context, id string) (*entity.Payment, error) {
	return f.get(id), nil
}

func (f *fakePayments) Apply(_ context.Context, id string, patch *entity.PaymentPatch, now time.Time) (*entity.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[id]
	if !ok {
		return nil, repository.ErrPaymentNotFound
	}
	patch.Apply(p)
	p.UpdatedAt = now
	return p.Clone(), nil
}

func pendingFor(kind entity.JobKind, p *entity.Payment) bool {
	switch kind {
	case entity.JobGatewayStatus:
		return !p.IsFailed && !p.IsFinished
	case entity.JobSettlementStatus:
		return p.IsFinished && !p.IsAbsFinished
	case entity.JobRefundStatus:
		return p.RefundStatus == entity.RefundStarted
	case entity.JobNotification:
		return p.AwaitingNotification()
	}
	return false
}

func clockFor(kind entity.JobKind, p *entity.Payment) (startAt, retryAt *time.Time) {
	if kind == entity.JobNotification {
		return p.NotifyStartAt, p.NotifyRetryAt
	}
	return p.StatusUpdateStartAt, p.StatusUpdateRetryAt
}

func (f *fakePayments) ListDue(_ context.Context, kind entity.JobKind, q repository.DueQuery) ([]*entity.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entity.Payment
	for _, p := range f.payments {
		if !pendingFor(kind, p) {
			continue
		}
		startAt, retryAt := clockFor(kind, p)
		if retryAt != nil && retryAt.After(q.Now) {
			continue
		}
		if !q.GiveUpCutoff.IsZero() && startAt != nil && startAt.Before(q.GiveUpCutoff) {
			continue
		}
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (f *fakePayments) MarkAbandoned(_ context.Context, kind entity.JobKind, cutoff, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, p := range f.payments {
		startAt, _ := clockFor(kind, p)
		stamp := &p.StatusUpdateAbandonedAt
		if kind == entity.JobNotification {
			stamp = &p.NotifyAbandonedAt
		}
		if pendingFor(kind, p) && startAt != nil && startAt.Before(cutoff) && *stamp == nil {
			*stamp = &now
			n++
		}
	}
	return n, nil
}

type fakeRefundOrders struct {
	mu     sync.Mutex
	orders map[string]*entity.RefundOrder
}

func newFakeRefundOrders(orders ...*entity.RefundOrder) *fakeRefundOrders {
	f := &fakeRefundOrders{orders: map[string]*entity.RefundOrder{}}
	for _, o := range orders {
		f.orders[o.ID] = o.Clone()
	}
	return f
}

func (f *fakeRefundOrders) get(id string) *entity.RefundOrder {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.orders[id].Clone()
}

func (f *fakeRefundOrders) FindByID(_ context.Context, id string) (*entity.RefundOrder, error) {
	return f.get(id), nil
}

func (f *fakeRefundOrders) Apply(_ context.Context, id string, patch *entity.RefundOrderPatch, now time.Time) (*entity.RefundOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, repository.ErrRefundOrderNotFound
	}
	patch.Apply(o)
	o.UpdatedAt = now
	return o.Clone(), nil
}

func (f *fakeRefundOrders) ListDue(_ context.Context, q repository.DueQuery) ([]*entity.RefundOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entity.RefundOrder
	for _, o := range f.orders {
		if o.IsPayerNotified {
			continue
		}
		if o.PayerNotifyRetryAt != nil && o.PayerNotifyRetryAt.After(q.Now) {
			continue
		}
		if !q.GiveUpCutoff.IsZero() && o.PayerNotifyStartAt != nil && o.PayerNotifyStartAt.Before(q.GiveUpCutoff) {
			continue
		}
		out = append(out, o.Clone())
	}
	return out, nil
}

func (f *fakeRefundOrders) MarkAbandoned(context.Context, time.Time, time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeRefundOrders) Create(_ context.Context, order *entity.RefundOrder) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if o.ID == order.ID || o.Numb == order.Numb {
			return repository.ErrRefundOrderAlreadyExists
		}
	}
	f.orders[order.ID] = order.Clone()
	return nil
}

func (f *fakeRefundOrders) FindByNumb(_ context.Context, numb string) (*entity.RefundOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if o.Numb == numb {
			return o.Clone(), nil
		}
	}
	return nil, nil
}

type fakePanErrors struct {
	mu   sync.Mutex
	rows []entity.PanError
}

func (f *fakePanErrors) Upsert(_ context.Context, panError *entity.PanError) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, *panError)
	return nil
}

type fakeEvents struct {
	mu     sync.Mutex
	events []entity.PaymentEvent
}

func (f *fakeEvents) Create(_ context.Context, event *entity.PaymentEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, *event)
	return nil
}

func (f *fakeEvents) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.EventType)
	}
	return out
}

type fakeGateway struct {
	state  func(sid string) (*provider.TransactionState, error)
	refund func(sid string) (*provider.RefundResult, error)
}

func (g *fakeGateway) GetTransactionState(_ context.Context, sid string) (*provider.TransactionState, error) {
	return g.state(sid)
}

func (g *fakeGateway) CreateRefund(_ context.Context, sid string) (*provider.RefundResult, error) {
	return g.refund(sid)
}

type fakeSettlement struct {
	create func(req *provider.ActionRequest) (*provider.ActionResult, error)
	status func(actionID int64) (*provider.ActionStatusResult, error)
}

func (s *fakeSettlement) CreateAction(_ context.Context, req *provider.ActionRequest) (*provider.ActionResult, error) {
	return s.create(req)
}

func (s *fakeSettlement) GetActionStatus(_ context.Context, actionID int64) (*provider.ActionStatusResult, error) {
	return s.status(actionID)
}

type fakeNotifier struct {
	mu        sync.Mutex
	err       error
	delivered []*provider.PaymentNotification
}

func (n *fakeNotifier) Deliver(_ context.Context, _ string, notification *provider.PaymentNotification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.delivered = append(n.delivered, notification)
	return nil
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.delivered)
}

// fakeMailer reports each send on started, when set, and then waits for release to close.
type fakeMailer struct {
	err     error
	started chan string
	release chan struct{}

	mu   sync.Mutex
	sent []string
}

func (m *fakeMailer) SendRefundPayerEmail(_ context.Context, order *entity.RefundOrder) error {
	if m.started != nil {
		m.started <- order.ID
	}
	if m.release != nil {
		<-m.release
	}
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, order.ID)
	return nil
}

func (m *fakeMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type recordingTrigger struct {
	mu  sync.Mutex
	ids []string
}

func (r *recordingTrigger) Notify(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, id)
	return nil
}

func testDeps(payments *fakePayments, events *fakeEvents, h *PaymentHub) Deps {
	return Deps{
		Payments: payments,
		Events:   events,
		Hub:      h,
		Now:      fixedClock,
		Logger:   silentLogger(),
	}
}

func newTestHub() *PaymentHub {
	return hub.New[*entity.Payment](4)
}

func gatewayState(raw string) *provider.TransactionState {
	var s provider.TransactionState
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		panic(err)
	}
	return &s
}

func refundResult(raw string) *provider.RefundResult {
	var r provider.RefundResult
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		panic(err)
	}
	return &r
}

func notifyURL() *string {
	return entity.Ptr("https://merchant.test/hook")
}
