package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"event-ticket/internal/credential"
	"event-ticket/internal/data/entity"
	"event-ticket/internal/data/repository"
	"event-ticket/internal/live"
	"event-ticket/pkg/clock"
	"event-ticket/pkg/utils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testNow = time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)

// memStore is an in-memory stand-in for Postgres. FindByIDForUpdate takes a
// per-event lock held until the surrounding WithTx returns, and writes made
// inside a transaction become visible only on commit.
type memStore struct {
	mu      sync.Mutex
	events  map[uuid.UUID]*entity.Event
	tickets map[uuid.UUID]*entity.Ticket
	locks   map[uuid.UUID]chan struct{}

	saveErr   error
	ticketErr error
	lockErr   map[uuid.UUID]error
	listErr   error

	// afterFind runs once FindByID has read its copy.
	afterFind func()
}

type memTxKey struct{}

type memTx struct {
	held    []uuid.UUID
	events  map[uuid.UUID]*entity.Event
	tickets []*entity.Ticket
}

func newMemStore() *memStore {
	return &memStore{
		events:  map[uuid.UUID]*entity.Event{},
		tickets: map[uuid.UUID]*entity.Ticket{},
		locks:   map[uuid.UUID]chan struct{}{},
		lockErr: map[uuid.UUID]error{},
	}
}

func (m *memStore) repository() *repository.Repository {
	return &repository.Repository{
		Tx:     m,
		Event:  &memEvents{m},
		Ticket: &memTickets{m},
	}
}

func (m *memStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(memTxKey{}).(*memTx); ok {
		return fn(ctx)
	}

	tx := &memTx{events: map[uuid.UUID]*entity.Event{}}
	err := fn(context.WithValue(ctx, memTxKey{}, tx))
	if err == nil {
		m.mu.Lock()
		for id, ev := range tx.events {
			m.events[id] = ev
		}
		for _, t := range tx.tickets {
			m.tickets[t.ID] = t
		}
		m.mu.Unlock()
	}
	for _, id := range tx.held {
		<-m.lockFor(id)
	}
	return err
}

func (m *memStore) lockFor(id uuid.UUID) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.locks[id]
	if !ok {
		ch = make(chan struct{}, 1)
		m.locks[id] = ch
	}
	return ch
}

func (m *memStore) put(ev *entity.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[ev.ID] = cloneEvent(ev)
}

func (m *memStore) get(id uuid.UUID) *entity.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneEvent(m.events[id])
}

func (m *memStore) ticketCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tickets)
}

func txFrom(ctx context.Context) *memTx {
	tx, _ := ctx.Value(memTxKey{}).(*memTx)
	return tx
}

func cloneEvent(ev *entity.Event) *entity.Event {
	if ev == nil {
		return nil
	}
	out := *ev
	out.Seats = make(map[string]entity.SeatStatus, len(ev.Seats))
	for k, v := range ev.Seats {
		out.Seats[k] = v
	}
	out.Holders = make(map[string]string, len(ev.Holders))
	for k, v := range ev.Holders {
		out.Holders[k] = v
	}
	out.Expires = make(map[string]time.Time, len(ev.Expires))
	for k, v := range ev.Expires {
		out.Expires[k] = v
	}
	out.ReservationIDs = make(map[string]string, len(ev.ReservationIDs))
	for k, v := range ev.ReservationIDs {
		out.ReservationIDs[k] = v
	}
	return &out
}

type memEvents struct{ m *memStore }

func (r *memEvents) Create(ctx context.Context, ev *entity.Event) error {
	r.m.put(ev)
	return nil
}

func (r *memEvents) FindByID(ctx context.Context, id uuid.UUID) (*entity.Event, error) {
	ev := r.m.get(id)
	if ev == nil {
		return nil, entity.ErrEventNotFound
	}
	r.m.mu.Lock()
	hook := r.m.afterFind
	r.m.mu.Unlock()
	if hook != nil {
		hook()
	}
	return ev, nil
}

func (r *memEvents) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Event, error) {
	tx := txFrom(ctx)
	if tx == nil {
		return nil, errors.New("no transaction in context")
	}
	r.m.mu.Lock()
	err := r.m.lockErr[id]
	r.m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if r.m.get(id) == nil {
		return nil, entity.ErrEventNotFound
	}

	r.m.lockFor(id) <- struct{}{}
	tx.held = append(tx.held, id)
	return r.m.get(id), nil
}

func (r *memEvents) List(ctx context.Context, limit, offset int) ([]*entity.Event, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	all := make([]*entity.Event, 0, len(r.m.events))
	for _, ev := range r.m.events {
		all = append(all, cloneEvent(ev))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	if offset >= len(all) {
		return nil, nil
	}
	end := min(offset+limit, len(all))
	return all[offset:end], nil
}

func (r *memEvents) Count(ctx context.Context) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return int64(len(r.m.events)), nil
}

func (r *memEvents) SaveSeatMap(ctx context.Context, ev *entity.Event) error {
	if r.m.saveErr != nil {
		return r.m.saveErr
	}
	ev.Version++
	if tx := txFrom(ctx); tx != nil {
		tx.events[ev.ID] = cloneEvent(ev)
		return nil
	}
	r.m.put(ev)
	return nil
}

func (r *memEvents) SeatMapVersion(ctx context.Context, id uuid.UUID) (int64, error) {
	ev := r.m.get(id)
	if ev == nil {
		return 0, entity.ErrEventNotFound
	}
	return ev.Version, nil
}

func (r *memEvents) ListIDsWithActiveHolds(ctx context.Context) ([]uuid.UUID, error) {
	if r.m.listErr != nil {
		return nil, r.m.listErr
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var ids []uuid.UUID
	for id, ev := range r.m.events {
		if len(ev.Expires) > 0 {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}

type memTickets struct{ m *memStore }

func (r *memTickets) Create(ctx context.Context, t *entity.Ticket) error {
	if r.m.ticketErr != nil {
		return r.m.ticketErr
	}
	if tx := txFrom(ctx); tx != nil {
		tx.tickets = append(tx.tickets, t)
		return nil
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.tickets[t.ID] = t
	return nil
}

func (r *memTickets) FindByID(ctx context.Context, id uuid.UUID) (*entity.Ticket, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return r.m.tickets[id], nil
}

func (r *memTickets) FindByEventID(ctx context.Context, eventID uuid.UUID) ([]*entity.Ticket, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*entity.Ticket
	for _, t := range r.m.tickets {
		if t.EventID == eventID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SeatID < out[j].SeatID })
	return out, nil
}

type publishedMessage struct {
	key string
	msg any
}

type fakePublisher struct {
	mu     sync.Mutex
	msgs   []publishedMessage
	failOn map[string]error
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{failOn: map[string]error{}}
}

func (p *fakePublisher) Publish(ctx context.Context, routingKey string, msg any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failOn[routingKey]; err != nil {
		return err
	}
	p.msgs = append(p.msgs, publishedMessage{key: routingKey, msg: msg})
	return nil
}

func (p *fakePublisher) fail(routingKey string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failOn[routingKey] = err
}

func (p *fakePublisher) count(routingKey string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, m := range p.msgs {
		if m.key == routingKey {
			n++
		}
	}
	return n
}

func (p *fakePublisher) last(routingKey string) any {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.msgs) - 1; i >= 0; i-- {
		if p.msgs[i].key == routingKey {
			return p.msgs[i].msg
		}
	}
	return nil
}

// recordingCache is an in-memory SeatMapCache that counts invalidations.
type recordingCache struct {
	mu          sync.Mutex
	entries     map[string][]byte
	invalidated []string
}

func newRecordingCache() *recordingCache {
	return &recordingCache{entries: map[string][]byte{}}
}

func (c *recordingCache) Get(ctx context.Context, eventID string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.entries[eventID]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dst)
}

func (c *recordingCache) Set(ctx context.Context, eventID string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[eventID] = raw
	return nil
}

func (c *recordingCache) Invalidate(ctx context.Context, eventID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, eventID)
	c.invalidated = append(c.invalidated, eventID)
	return nil
}

func (c *recordingCache) invalidations() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.invalidated)
}

type fixture struct {
	store     *memStore
	repo      *repository.Repository
	publisher *fakePublisher
	hub       *live.Hub
	cache     *recordingCache
	clock     *clock.Manual
	issuer    *credential.MACIssuer
	deps      Deps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	issuer, err := credential.NewMACIssuer("fixture-secret-0123456789")
	require.NoError(t, err)
	f := &fixture{
		store:     newMemStore(),
		publisher: newFakePublisher(),
		hub:       live.NewHub(16, zap.NewNop()),
		cache:     newRecordingCache(),
		clock:     clock.NewManual(testNow),
		issuer:    issuer,
	}
	f.repo = f.store.repository()
	f.deps = Deps{
		Publisher: f.publisher,
		Feed:      f.hub,
		Cache:     f.cache,
		Issuer:    issuer,
		Opener:    issuer,
		Clock:     f.clock,
	}
	return f
}

func (f *fixture) event(rows, cols int) *entity.Event {
	ev := entity.NewEvent("Show", rows, cols, 5000, "organizer", testNow)
	f.store.put(ev)
	return ev
}

func testConfig() *utils.Config {
	return &utils.Config{
		Reserve: utils.ReservationConfig{HoldDuration: 600 * time.Second, SweepInterval: 5 * time.Second},
	}
}
